package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"zazoom-be/internal/admin"
	"zazoom-be/internal/auth"
	"zazoom-be/internal/broker"
	"zazoom-be/internal/cart"
	"zazoom-be/internal/config"
	"zazoom-be/internal/db"
	"zazoom-be/internal/delivery"
	"zazoom-be/internal/events"
	"zazoom-be/internal/httpapi"
	"zazoom-be/internal/logger"
	"zazoom-be/internal/middleware"
	"zazoom-be/internal/notify"
	"zazoom-be/internal/order"
	"zazoom-be/internal/payment"
	"zazoom-be/internal/retry"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	cfg := config.LoadConfig()
	logger.Init(cfg.AppEnv)
	defer logger.Sync()

	log := logger.Component("server")
	if err := cfg.Validate(); err != nil {
		log.Fatal("invalid configuration", zap.Error(err))
	}

	database := db.InitDB(cfg)
	defer database.Close()
	if err := db.MigrateUp(database); err != nil {
		log.Fatal("failed to run migrations", zap.Error(err))
	}

	rdb, err := newRedis(context.Background(), cfg)
	if err != nil {
		log.Fatal("failed to connect redis", zap.Error(err))
	}
	defer rdb.Close()

	publisher, err := broker.New(brokerConfig(cfg))
	if err != nil {
		log.Fatal("failed to start event broker", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := build(ctx, cfg, database, rdb, publisher)
	if err := a.serve(ctx, cfg); err != nil {
		log.Fatal("server stopped with error", zap.Error(err))
	}
}

// app holds what the server owns and must release on shutdown.
type app struct {
	handler   http.Handler
	monitor   *payment.Monitor
	hub       *events.Hub
	publisher broker.Publisher
	telegram  *notify.TelegramClient
}

func build(ctx context.Context, cfg *config.Config, database *sql.DB, rdb *redis.Client, publisher broker.Publisher) *app {
	log := logger.Component("server")

	carts := cart.NewManager(cart.NewRedisStorage(rdb, cfg.CartTTL))

	orderRepo := order.NewRepository(database)
	orderSvc := order.NewService(orderRepo, publisher)

	telegram := notify.NewTelegramClient(cfg.TelegramBotToken, cfg.TelegramDriverChatID)
	twilio := notify.NewTwilioClient(cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.TwilioPhoneNumber)
	dispatcher := notify.NewDispatcher(orderSvc, telegram, twilio, notify.NewInstagramBot())

	deliveryRepo := delivery.NewRepository(database)
	deliverySvc := delivery.NewService(deliveryRepo, orderSvc, notify.NewRelay(publisher, dispatcher))

	deps := httpapi.Deps{
		Carts:          carts,
		Orders:         orderSvc,
		Delivery:       deliverySvc,
		Notifier:       dispatcher,
		Chat:           telegram,
		CORSOrigins:    cfg.CORSOrigins,
		TrackingPoll:   cfg.TrackingPoll,
		TelegramSecret: cfg.TelegramSecret,
		SecureCookies:  cfg.IsProduction(),
	}

	monitor, err := payment.NewMonitor(
		payment.Config{
			Wallet:        cfg.AdminWallet,
			Timeout:       cfg.PaymentTimeout,
			RefreshPeriod: cfg.PriceRefreshPeriod,
		},
		payment.NewBlockchainFeed(cfg.BlockchainFeedURL, retry.Default),
		payment.NewCoinDeskFeed(cfg.PriceFeedURL),
		orderSvc,
		dispatcher,
	)
	if err != nil {
		log.Warn("bitcoin payments disabled", zap.Error(err))
	} else {
		deps.Payments = monitor
	}

	issuer, err := auth.NewIssuer(cfg.JWTSecret, auth.DefaultTTL)
	if err != nil {
		log.Warn("admin login disabled", zap.Error(err))
	} else {
		deps.Issuer = issuer
	}
	deps.Admin = admin.NewService(orderSvc, deliveryRepo, orderRepo, issuer, admin.Credentials{
		Username:     cfg.AdminUsername,
		PasswordHash: cfg.AdminPasswordHash,
	})

	hub := events.NewHub(events.NewPQSource(db.DSN(cfg)))
	deps.Hub = hub

	limiter := middleware.NewLimiter(cfg.InternalKey)
	go limiter.Cleanup(ctx)
	deps.Limiter = limiter

	return &app{
		handler:   httpapi.NewRouter(deps),
		monitor:   monitor,
		hub:       hub,
		publisher: publisher,
		telegram:  telegram,
	}
}

func (a *app) serve(ctx context.Context, cfg *config.Config) error {
	log := logger.Component("server")

	if cfg.TelegramWebhookURL != "" {
		if err := a.telegram.SetWebhook(ctx, cfg.TelegramWebhookURL, cfg.TelegramSecret); err != nil {
			log.Error("failed to register telegram webhook", zap.Error(err))
		}
	}

	srv := newHTTPServer(cfg, a.handler)
	errCh := make(chan error, 1)
	go func() {
		log.Info("server running", zap.String("addr", srv.Addr), zap.String("env", cfg.AppEnv))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		a.close()
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	err := srv.Shutdown(shutdownCtx)
	a.close()
	return err
}

// close stops background work after the listener is gone.
func (a *app) close() {
	if a.monitor != nil {
		a.monitor.Close()
	}
	a.hub.Close()
	if err := a.publisher.Close(); err != nil {
		logger.Component("server").Warn("failed to close publisher", zap.Error(err))
	}
}

func newHTTPServer(cfg *config.Config, h http.Handler) *http.Server {
	return &http.Server{
		Addr:              ":" + cfg.AppPort,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}
}

func newRedis(ctx context.Context, cfg *config.Config) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		rdb.Close()
		return nil, err
	}
	return rdb, nil
}

func brokerConfig(cfg *config.Config) broker.Config {
	return broker.Config{
		Kind:           cfg.BrokerKind,
		RabbitMQURL:    cfg.RabbitMQURL,
		RabbitExchange: cfg.RabbitExchange,
		KafkaBrokers:   cfg.KafkaBrokers,
		KafkaTopic:     cfg.KafkaTopic,
	}
}
