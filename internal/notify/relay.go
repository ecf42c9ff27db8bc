package notify

import (
	"context"
	"strings"

	"zazoom-be/internal/broker"
	"zazoom-be/internal/logger"

	"go.uber.org/zap"
)

// Relay is a broker.Publisher that also echoes delivery events into the
// driver chat before handing every event to the next publisher.
type Relay struct {
	next       broker.Publisher
	dispatcher *Dispatcher
}

func NewRelay(next broker.Publisher, dispatcher *Dispatcher) *Relay {
	if next == nil {
		next = broker.NoopPublisher{}
	}
	return &Relay{next: next, dispatcher: dispatcher}
}

func (r *Relay) Publish(ctx context.Context, e broker.Event) error {
	if e.Type == broker.TypeDeliveryUpdated && r.dispatcher.driver.Configured() {
		label := strings.ReplaceAll(e.Status, "_", " ")
		var msg string
		if e.DriverID != "" {
			msg = "Driver: " + e.DriverID
		}
		if err := r.dispatcher.DeliveryUpdate(ctx, e.OrderID, label, msg); err != nil {
			logger.FromCtx(ctx).Warn("failed to relay delivery update",
				zap.String("layer", "notify"),
				zap.String("order_id", e.OrderID),
				zap.Error(err),
			)
		}
	}
	return r.next.Publish(ctx, e)
}

func (r *Relay) Close() error {
	return r.next.Close()
}
