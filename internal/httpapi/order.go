package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"zazoom-be/internal/cart"
	"zazoom-be/internal/delivery"
	"zazoom-be/internal/logger"
	"zazoom-be/internal/order"
	"zazoom-be/internal/payment"
	"zazoom-be/internal/utils"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type checkoutResponse struct {
	OrderID string          `json:"order_id"`
	Amount  decimal.Decimal `json:"amount"`
	Order   *order.Order    `json:"order"`
}

func (s *Server) checkout(w http.ResponseWriter, r *http.Request) {
	var o *order.Order
	_, err := s.withCart(r, func(c *cart.Store) error {
		var err error
		o, err = s.Orders.Checkout(r.Context(), c)
		return err
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusCreated, checkoutResponse{
		OrderID: o.ID.String(),
		Amount:  o.Amount,
		Order:   o,
	})
}

func (s *Server) getOrder(w http.ResponseWriter, r *http.Request) {
	o, err := s.Orders.Get(r.Context(), chi.URLParam(r, "orderID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, o)
}

func (s *Server) quote(w http.ResponseWriter, r *http.Request) {
	if s.Payments == nil {
		writeError(w, r, errUnavailable)
		return
	}
	amount, err := decimal.NewFromString(r.URL.Query().Get("amount"))
	if err != nil {
		writeError(w, r, payment.ErrInvalidAmount)
		return
	}

	q, err := s.Payments.Quote(r.Context(), amount)
	if err != nil {
		writeError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, q)
}

// watchPayment starts monitoring for the order's BTC payment. Watching an
// order that is already being watched returns the live session.
func (s *Server) watchPayment(w http.ResponseWriter, r *http.Request) {
	if s.Payments == nil {
		writeError(w, r, errUnavailable)
		return
	}

	o, err := s.Orders.Get(r.Context(), chi.URLParam(r, "orderID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if o.Status != order.StatusPending {
		utils.WriteJSONError(w, "order is already "+string(o.Status), http.StatusConflict)
		return
	}

	session, err := s.Payments.Watch(r.Context(), o.ID.String(), o.Amount)
	if errors.Is(err, payment.ErrAlreadyWatching) {
		utils.WriteJSON(w, http.StatusOK, session.Status())
		return
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusAccepted, session.Status())
}

func (s *Server) paymentStatus(w http.ResponseWriter, r *http.Request) {
	if s.Payments == nil {
		writeError(w, r, errUnavailable)
		return
	}
	session, ok := s.Payments.Session(chi.URLParam(r, "orderID"))
	if !ok {
		writeError(w, r, payment.ErrSessionNotFound)
		return
	}
	utils.WriteJSON(w, http.StatusOK, session.Status())
}

func (s *Server) tracking(w http.ResponseWriter, r *http.Request) {
	t, err := s.Delivery.Track(r.Context(), chi.URLParam(r, "orderID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, t)
}

// trackingStream pushes a tracking view on every poll until the delivery
// completes or the client goes away.
func (s *Server) trackingStream(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderID")
	if _, err := s.Orders.Get(r.Context(), orderID); err != nil {
		writeError(w, r, err)
		return
	}

	stream, ok := newSSE(w)
	if !ok {
		utils.WriteJSONError(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "handler"),
		zap.String("method", "trackingStream"),
		zap.String("order_id", orderID),
	)

	tracker := delivery.NewTracker(s.Delivery, orderID, s.TrackingPoll)
	go tracker.Run(ctx)

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-heartbeat.C:
			if err := stream.ping(); err != nil {
				return
			}
		case view := <-tracker.Updates():
			if err := stream.send("tracking", view); err != nil {
				log.Debug("tracking stream closed", zap.Error(err))
				return
			}
			if view.Tracking != nil && view.Tracking.Status == delivery.StatusDelivered {
				return
			}
		}
	}
}
