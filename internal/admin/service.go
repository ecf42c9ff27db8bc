package admin

import (
	"context"
	"crypto/subtle"
	"time"

	"zazoom-be/internal/auth"
	"zazoom-be/internal/delivery"
	"zazoom-be/internal/logger"
	"zazoom-be/internal/order"
	"zazoom-be/internal/utils"

	"go.uber.org/zap"
)

type OrderStore interface {
	List(ctx context.Context, filter order.Filter) ([]*order.Order, error)
	SetStatus(ctx context.Context, id string, status order.Status) error
}

type DriverStore interface {
	SetDriverStatus(ctx context.Context, id string, status delivery.DriverStatus) error
}

// Wiper removes order rows created at or before a cutoff; deliveries
// cascade.
type Wiper interface {
	DeleteThrough(ctx context.Context, cutoff time.Time) (int64, error)
}

type Credentials struct {
	Username     string
	PasswordHash string
}

// Service holds the operator escape hatches. Its writes are unconditional
// and never go through the payment or delivery pipeline.
type Service struct {
	orders  OrderStore
	drivers DriverStore
	wiper   Wiper
	issuer  *auth.Issuer
	creds   Credentials
	now     func() time.Time
}

func NewService(orders OrderStore, drivers DriverStore, wiper Wiper, issuer *auth.Issuer, creds Credentials) *Service {
	return &Service{
		orders:  orders,
		drivers: drivers,
		wiper:   wiper,
		issuer:  issuer,
		creds:   creds,
		now:     time.Now,
	}
}

func (s *Service) UpdateOrderStatus(ctx context.Context, orderID, status string) error {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "admin"),
		zap.String("method", "UpdateOrderStatus"),
		zap.String("order_id", orderID),
		zap.String("status", status),
	)

	st, err := order.ParseStatus(status)
	if err != nil {
		return err
	}
	if err := s.orders.SetStatus(ctx, orderID, st); err != nil {
		log.Error("failed to override order status", zap.Error(err))
		return err
	}

	admin, _ := utils.GetAdminFromContext(ctx)
	log.Info("order status overridden", zap.String("admin", admin))
	return nil
}

func (s *Service) UpdateDriverStatus(ctx context.Context, driverID, status string) error {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "admin"),
		zap.String("method", "UpdateDriverStatus"),
		zap.String("driver_id", driverID),
		zap.String("status", status),
	)

	st, err := delivery.ParseDriverStatus(status)
	if err != nil {
		return err
	}
	if err := s.drivers.SetDriverStatus(ctx, driverID, st); err != nil {
		log.Error("failed to override driver status", zap.Error(err))
		return err
	}

	log.Info("driver status overridden")
	return nil
}

func (s *Service) ListOrders(ctx context.Context, filter order.Filter) ([]*order.Order, error) {
	return s.orders.List(ctx, filter)
}

// Login checks the operator password and returns a signed admin token.
func (s *Service) Login(ctx context.Context, username, password string) (string, time.Time, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "admin"),
		zap.String("method", "Login"),
	)

	if s.issuer == nil || s.creds.PasswordHash == "" {
		return "", time.Time{}, ErrLoginDisabled
	}

	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(s.creds.Username)) == 1
	passOK := auth.CheckPasswordHash(password, s.creds.PasswordHash)
	if !userOK || !passOK {
		log.Warn("failed admin login", zap.String("username", username))
		return "", time.Time{}, ErrInvalidCredentials
	}

	token, exp, err := s.issuer.Generate(s.creds.Username, utils.RoleAdmin)
	if err != nil {
		log.Error("failed to sign admin token", zap.Error(err))
		return "", time.Time{}, err
	}
	log.Info("admin logged in", zap.String("username", username))
	return token, exp, nil
}
