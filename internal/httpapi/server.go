package httpapi

import (
	"context"
	"io"
	"net/http"
	"time"

	"zazoom-be/internal/admin"
	"zazoom-be/internal/auth"
	"zazoom-be/internal/cart"
	"zazoom-be/internal/delivery"
	"zazoom-be/internal/events"
	"zazoom-be/internal/logger"
	"zazoom-be/internal/middleware"
	"zazoom-be/internal/notify"
	"zazoom-be/internal/order"
	"zazoom-be/internal/payment"
	"zazoom-be/internal/utils"

	"filippo.io/age"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
)

type Payments interface {
	Quote(ctx context.Context, fiat decimal.Decimal) (payment.Quote, error)
	Watch(ctx context.Context, orderID string, fiat decimal.Decimal) (*payment.Session, error)
	Session(orderID string) (*payment.Session, bool)
}

type Notifier interface {
	OrderConfirmation(ctx context.Context, to notify.Recipient, orderID string) error
	OrderUpdate(ctx context.Context, to notify.Recipient, orderID, status string) error
	DeliveryConfirmation(ctx context.Context, to notify.Recipient, orderID string) error
}

type ChatReplier interface {
	SendMessage(ctx context.Context, chatID, text string) error
}

type Admin interface {
	UpdateOrderStatus(ctx context.Context, orderID, status string) error
	UpdateDriverStatus(ctx context.Context, driverID, status string) error
	ListOrders(ctx context.Context, filter order.Filter) ([]*order.Order, error)
	Login(ctx context.Context, username, password string) (string, time.Time, error)
	Export(ctx context.Context, w io.Writer, recipients []age.Recipient) (*admin.BurnReport, error)
	Wipe(ctx context.Context, cutoff time.Time) (int64, error)
}

// Deps are the collaborators the routes call into. Nil optional fields
// switch their routes off.
type Deps struct {
	Carts    *cart.Manager
	Orders   order.Service
	Payments Payments
	Delivery delivery.Service
	Notifier Notifier
	Chat     ChatReplier
	Admin    Admin
	Hub      *events.Hub
	Issuer   *auth.Issuer
	Limiter  *middleware.Limiter

	CORSOrigins    []string
	TrackingPoll   time.Duration
	TelegramSecret string
	SecureCookies  bool
}

type Server struct {
	Deps
}

// NewRouter builds the chi router for the whole /api surface.
func NewRouter(d Deps) http.Handler {
	s := &Server{Deps: d}

	r := chi.NewRouter()
	r.Use(logger.RequestIDMiddleware)
	r.Use(logger.LoggingMiddleware)
	r.Use(middleware.Metrics)
	r.Use(middleware.CORS(d.CORSOrigins))
	if d.Limiter != nil {
		r.Use(d.Limiter.Middleware)
	}

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.health)

		r.Route("/cart", func(r chi.Router) {
			r.Use(s.withProfile)
			r.Get("/", s.getCart)
			r.Delete("/", s.clearCart)
			r.Post("/items", s.addItem)
			r.Patch("/items/{productID}", s.updateQuantity)
			r.Delete("/items/{productID}", s.removeItem)
		})

		r.Get("/payment/quote", s.quote)

		r.Route("/orders", func(r chi.Router) {
			r.With(s.withProfile).Post("/", s.checkout)
			r.Get("/{orderID}", s.getOrder)
			r.Post("/{orderID}/payment", s.watchPayment)
			r.Get("/{orderID}/payment", s.paymentStatus)
			r.Get("/{orderID}/tracking", s.tracking)
			r.Get("/{orderID}/tracking/stream", s.trackingStream)
		})

		r.Route("/messaging", func(r chi.Router) {
			r.Post("/order-confirmation", s.orderConfirmation)
			r.Post("/order-update", s.orderUpdate)
			r.Post("/delivery-confirmation", s.deliveryConfirmation)
		})

		r.Post("/telegram/webhook", s.telegramWebhook)
		r.Get("/events", s.events)

		r.Route("/admin", func(r chi.Router) {
			r.Post("/login", s.login)

			if d.Issuer == nil || d.Admin == nil {
				return
			}
			r.Group(func(r chi.Router) {
				r.Use(middleware.AdminOnly(d.Issuer))
				r.Get("/orders", s.adminOrders)
				r.Put("/orders/{orderID}/status", s.adminOrderStatus)
				r.Get("/drivers", s.adminDrivers)
				r.Post("/drivers", s.adminRegisterDriver)
				r.Put("/drivers/{driverID}/status", s.adminDriverStatus)
				r.Post("/deliveries/{orderID}/assign", s.adminAssign)
				r.Post("/deliveries/{orderID}/status", s.adminAdvance)
				r.Post("/burn", s.adminBurn)
				r.Post("/burn/wipe", s.adminWipe)
			})
		})
	})

	return r
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	utils.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
