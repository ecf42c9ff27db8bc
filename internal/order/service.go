package order

import (
	"context"
	"errors"
	"time"

	"zazoom-be/internal/broker"
	"zazoom-be/internal/cart"
	"zazoom-be/internal/logger"
	"zazoom-be/internal/metrics"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CartSource is the slice of a cart checkout needs.
type CartSource interface {
	State() cart.State
	Clear(ctx context.Context) error
}

type Service interface {
	Checkout(ctx context.Context, c CartSource) (*Order, error)
	Get(ctx context.Context, id string) (*Order, error)
	List(ctx context.Context, filter Filter) ([]*Order, error)
	MarkPaid(ctx context.Context, id, txHash string) (bool, error)
	MarkDriverNotified(ctx context.Context, id string) (bool, error)
	ReleaseDriverNotified(ctx context.Context, id string, prev Status) (bool, error)
	Advance(ctx context.Context, id string, status Status) (bool, error)
	SetStatus(ctx context.Context, id string, status Status) error
}

type service struct {
	repo      Repository
	publisher broker.Publisher
	now       func() time.Time
}

func NewService(repo Repository, publisher broker.Publisher) Service {
	if publisher == nil {
		publisher = broker.NoopPublisher{}
	}
	return &service{
		repo:      repo,
		publisher: publisher,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Checkout turns the cart into a pending order. The cart is cleared only
// after the order row is written.
func (s *service) Checkout(ctx context.Context, c CartSource) (*Order, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "service"),
		zap.String("method", "Checkout"),
	)

	state := c.State()
	if state.IsEmpty() {
		log.Warn("checkout rejected: empty cart")
		return nil, ErrEmptyCart
	}

	o := &Order{
		ID:        uuid.New(),
		Lines:     SnapshotLines(state),
		Amount:    state.Total,
		Status:    StatusPending,
		CreatedAt: s.now(),
	}

	err := s.repo.Create(ctx, o)
	metrics.OrderOperations.WithLabelValues("checkout", metrics.Outcome(err)).Inc()
	if err != nil {
		log.Error("failed to create order", zap.Error(err))
		return nil, err
	}

	// The order exists now; a failed clear is logged, not returned.
	if err := c.Clear(ctx); err != nil {
		log.Error("order created but cart not cleared",
			zap.String("order_id", o.ID.String()),
			zap.Error(err),
		)
	}

	log.Info("order created",
		zap.String("order_id", o.ID.String()),
		zap.String("amount", o.Amount.String()),
		zap.Int("lines", len(o.Lines)),
	)

	s.publish(ctx, broker.Event{
		Type:    broker.TypeOrderCreated,
		OrderID: o.ID.String(),
		Status:  string(o.Status),
		Amount:  o.Amount.String(),
	})
	return o, nil
}

func (s *service) Get(ctx context.Context, id string) (*Order, error) {
	oid, err := parseID(id)
	if err != nil {
		return nil, err
	}
	return s.repo.Get(ctx, oid)
}

func (s *service) List(ctx context.Context, filter Filter) ([]*Order, error) {
	if filter.Status != nil && !filter.Status.Valid() {
		return nil, ErrInvalidStatus
	}
	if filter.Limit < 0 || filter.Offset < 0 {
		filter.Limit, filter.Offset = 0, 0
	}
	return s.repo.List(ctx, filter)
}

func (s *service) MarkPaid(ctx context.Context, id, txHash string) (bool, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "service"),
		zap.String("method", "MarkPaid"),
		zap.String("order_id", id),
	)

	oid, err := parseID(id)
	if err != nil {
		return false, err
	}

	ok, err := s.repo.MarkPaid(ctx, oid, txHash, s.now())
	metrics.OrderOperations.WithLabelValues("mark_paid", metrics.Outcome(err)).Inc()
	if err != nil {
		log.Error("failed to mark order paid", zap.Error(err))
		return false, err
	}
	if !ok {
		log.Info("order already past pending, payment not re-applied")
		return false, nil
	}

	log.Info("order paid", zap.String("tx_hash", txHash))
	s.publish(ctx, broker.Event{
		Type:    broker.TypeOrderPaid,
		OrderID: id,
		Status:  string(StatusPaid),
		TxHash:  txHash,
	})
	return true, nil
}

func (s *service) MarkDriverNotified(ctx context.Context, id string) (bool, error) {
	oid, err := parseID(id)
	if err != nil {
		return false, err
	}
	return s.repo.MarkDriverNotified(ctx, oid, s.now())
}

func (s *service) ReleaseDriverNotified(ctx context.Context, id string, prev Status) (bool, error) {
	oid, err := parseID(id)
	if err != nil {
		return false, err
	}
	return s.repo.ReleaseDriverNotified(ctx, oid, prev)
}

func (s *service) Advance(ctx context.Context, id string, status Status) (bool, error) {
	if !status.Valid() {
		return false, ErrInvalidStatus
	}
	oid, err := parseID(id)
	if err != nil {
		return false, err
	}

	ok, err := s.repo.Advance(ctx, oid, status)
	metrics.OrderOperations.WithLabelValues("advance", metrics.Outcome(err)).Inc()
	if err != nil {
		logger.FromCtx(ctx).Error("failed to advance order",
			zap.String("layer", "service"),
			zap.String("order_id", id),
			zap.String("status", string(status)),
			zap.Error(err),
		)
		return false, err
	}
	if ok {
		s.publish(ctx, broker.Event{
			Type:    broker.TypeOrderStatusChanged,
			OrderID: id,
			Status:  string(status),
		})
	}
	return ok, nil
}

func (s *service) SetStatus(ctx context.Context, id string, status Status) error {
	if !status.Valid() {
		return ErrInvalidStatus
	}
	oid, err := parseID(id)
	if err != nil {
		return err
	}

	err = s.repo.SetStatus(ctx, oid, status)
	metrics.OrderOperations.WithLabelValues("set_status", metrics.Outcome(err)).Inc()
	if err != nil {
		return err
	}

	logger.FromCtx(ctx).Warn("order status overridden",
		zap.String("layer", "service"),
		zap.String("order_id", id),
		zap.String("status", string(status)),
	)
	s.publish(ctx, broker.Event{
		Type:    broker.TypeOrderStatusChanged,
		OrderID: id,
		Status:  string(status),
	})
	return nil
}

func (s *service) publish(ctx context.Context, event broker.Event) {
	event.OccurredAt = s.now()
	if err := s.publisher.Publish(ctx, event); err != nil {
		logger.FromCtx(ctx).Warn("failed to publish order event",
			zap.String("type", event.Type),
			zap.String("order_id", event.OrderID),
			zap.Error(err),
		)
	}
}

func parseID(id string) (uuid.UUID, error) {
	oid, err := uuid.Parse(id)
	if err != nil {
		return uuid.Nil, errors.Join(ErrInvalidOrderID, err)
	}
	return oid, nil
}
