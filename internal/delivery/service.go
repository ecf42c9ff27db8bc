package delivery

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"zazoom-be/internal/broker"
	"zazoom-be/internal/logger"
	"zazoom-be/internal/order"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultETA is added to the assignment time when no estimate is given.
const DefaultETA = 45 * time.Minute

type OrderStore interface {
	Get(ctx context.Context, id string) (*order.Order, error)
	Advance(ctx context.Context, id string, status order.Status) (bool, error)
}

// Tracking is the delivery view the tracking page renders.
type Tracking struct {
	Record
	OrderStatus order.Status `json:"order_status"`
	Steps       []Step       `json:"steps"`
}

type Service interface {
	Track(ctx context.Context, orderID string) (*Tracking, error)
	AssignDriver(ctx context.Context, orderID, driverID string) (*Record, error)
	Advance(ctx context.Context, orderID string, status Status, zone string) (*Record, error)
	HandleCommand(ctx context.Context, driverID, text string) (string, error)
	Drivers(ctx context.Context) ([]*Driver, error)
	RegisterDriver(ctx context.Context, d *Driver) error
}

type service struct {
	repo      Repository
	orders    OrderStore
	publisher broker.Publisher
	now       func() time.Time
}

func NewService(repo Repository, orders OrderStore, publisher broker.Publisher) Service {
	if publisher == nil {
		publisher = broker.NoopPublisher{}
	}
	return &service{
		repo:      repo,
		orders:    orders,
		publisher: publisher,
		now:       time.Now,
	}
}

// Track returns the current delivery view. A paid order without a delivery
// row yet renders as pending.
func (s *service) Track(ctx context.Context, orderID string) (*Tracking, error) {
	o, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}

	rec, err := s.repo.Get(ctx, o.ID)
	if errors.Is(err, ErrNotFound) {
		rec = &Record{OrderID: o.ID, Status: StatusPending, UpdatedAt: o.UpdatedAt}
	} else if err != nil {
		logger.FromCtx(ctx).Error("failed to load delivery status",
			zap.String("layer", "service"),
			zap.String("order_id", orderID),
			zap.Error(err),
		)
		return nil, err
	}

	return &Tracking{
		Record:      *rec,
		OrderStatus: o.Status,
		Steps:       Timeline(rec.Status, rec.CurrentZone),
	}, nil
}

func (s *service) AssignDriver(ctx context.Context, orderID, driverID string) (*Record, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "service"),
		zap.String("method", "AssignDriver"),
		zap.String("order_id", orderID),
		zap.String("driver_id", driverID),
	)

	o, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.Status != order.StatusPaid && o.Status != order.StatusProcessing {
		log.Warn("assignment rejected", zap.String("order_status", string(o.Status)))
		return nil, ErrOrderNotReady
	}

	eta := s.now().Add(DefaultETA)
	rec, err := s.repo.Assign(ctx, o.ID, driverID, &eta)
	if err != nil {
		return nil, err
	}

	log.Info("driver assigned")
	s.publish(ctx, rec)
	return rec, nil
}

// Advance moves the delivery forward and carries the order along: pickup
// and transit ship it, delivery completes it.
func (s *service) Advance(ctx context.Context, orderID string, status Status, zone string) (*Record, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "service"),
		zap.String("method", "Advance"),
		zap.String("order_id", orderID),
		zap.String("status", string(status)),
	)

	if status.Rank() <= StatusAssigned.Rank() {
		return nil, ErrInvalidTransition
	}
	oid, err := uuid.Parse(orderID)
	if err != nil {
		return nil, errors.Join(order.ErrInvalidOrderID, err)
	}

	rec, err := s.repo.Advance(ctx, oid, status, zone)
	if err != nil {
		log.Warn("delivery not advanced", zap.Error(err))
		return nil, err
	}

	target := order.StatusShipped
	if status == StatusDelivered {
		target = order.StatusDelivered
	}
	if _, err := s.orders.Advance(ctx, orderID, target); err != nil {
		log.Error("delivery advanced but order status not updated", zap.Error(err))
	}

	log.Info("delivery advanced")
	s.publish(ctx, rec)
	return rec, nil
}

// HandleCommand runs a driver chat command and returns the reply text.
func (s *service) HandleCommand(ctx context.Context, driverID, text string) (string, error) {
	action, orderID, err := ParseCommand(text)
	if err != nil {
		return "", err
	}

	switch action {
	case "accept":
		if _, err := s.AssignDriver(ctx, orderID, driverID); err != nil {
			return "", err
		}
		return fmt.Sprintf("Order %s is yours. Reply /pickup_%s when picked up.", orderID, orderID), nil
	case "pickup":
		if _, err := s.Advance(ctx, orderID, StatusPickedUp, ""); err != nil {
			return "", err
		}
		return fmt.Sprintf("Order %s picked up. Reply /delivered_%s when completed.", orderID, orderID), nil
	case "delivered":
		if _, err := s.Advance(ctx, orderID, StatusDelivered, ""); err != nil {
			return "", err
		}
		return fmt.Sprintf("Order %s delivered. Thanks!", orderID), nil
	}
	return "", ErrUnknownCommand
}

func (s *service) Drivers(ctx context.Context) ([]*Driver, error) {
	return s.repo.ListDrivers(ctx)
}

func (s *service) RegisterDriver(ctx context.Context, d *Driver) error {
	if strings.TrimSpace(d.ID) == "" || strings.TrimSpace(d.Name) == "" {
		return ErrInvalidDriver
	}
	if d.Status == "" {
		d.Status = DriverOffline
	}
	return s.repo.UpsertDriver(ctx, d)
}

func (s *service) publish(ctx context.Context, rec *Record) {
	err := s.publisher.Publish(ctx, broker.Event{
		Type:       broker.TypeDeliveryUpdated,
		OrderID:    rec.OrderID.String(),
		Status:     string(rec.Status),
		DriverID:   rec.DriverID,
		OccurredAt: s.now().UTC(),
	})
	if err != nil {
		logger.FromCtx(ctx).Warn("failed to publish delivery event", zap.Error(err))
	}
}

// ParseCommand splits "/pickup_<order id>" into its action and order id.
// A "@botname" suffix is ignored.
func ParseCommand(text string) (action, orderID string, err error) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return "", "", ErrUnknownCommand
	}
	text = strings.Fields(text)[0]
	if i := strings.IndexByte(text, '@'); i != -1 {
		text = text[:i]
	}

	action, orderID, ok := strings.Cut(text[1:], "_")
	if !ok || orderID == "" {
		return "", "", ErrUnknownCommand
	}
	switch action {
	case "accept", "pickup", "delivered":
		return action, orderID, nil
	}
	return "", "", ErrUnknownCommand
}
