package notify

import (
	"context"
	"errors"
	"sync"
	"time"

	"zazoom-be/internal/logger"
	"zazoom-be/internal/metrics"
	"zazoom-be/internal/order"

	"go.uber.org/zap"
)

type OrderSource interface {
	Get(ctx context.Context, id string) (*order.Order, error)
	MarkDriverNotified(ctx context.Context, id string) (bool, error)
	ReleaseDriverNotified(ctx context.Context, id string, prev order.Status) (bool, error)
}

type DriverChat interface {
	Configured() bool
	SendDriverMessage(ctx context.Context, text string) error
}

type SMSSender interface {
	SendSMS(ctx context.Context, to, body string) error
}

type DirectMessenger interface {
	SendDirectMessage(ctx context.Context, userID, text string) error
}

// Recipient is where a customer wants to hear about an order. Either
// field may be empty.
type Recipient struct {
	Phone       string `json:"phone,omitempty"`
	InstagramID string `json:"instagramId,omitempty"`
}

// Dispatcher fans order events out to drivers and customers.
type Dispatcher struct {
	orders OrderSource
	driver DriverChat
	sms    SMSSender
	dm     DirectMessenger
	now    func() time.Time
}

func NewDispatcher(orders OrderSource, driver DriverChat, sms SMSSender, dm DirectMessenger) *Dispatcher {
	return &Dispatcher{
		orders: orders,
		driver: driver,
		sms:    sms,
		dm:     dm,
		now:    time.Now,
	}
}

// NotifyDriver tells the dispatch chat a paid order is ready. The order is
// claimed before sending, so concurrent callers announce it once, and the
// claim is released again when the send fails.
func (d *Dispatcher) NotifyDriver(ctx context.Context, orderID string) error {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "notify"),
		zap.String("method", "NotifyDriver"),
		zap.String("order_id", orderID),
	)

	o, err := d.orders.Get(ctx, orderID)
	if err != nil {
		return err
	}
	if o.DriverNotifiedAt != nil {
		log.Info("driver already notified", zap.Time("notified_at", *o.DriverNotifiedAt))
		return nil
	}
	if !d.driver.Configured() {
		log.Warn("Telegram configuration missing")
		metrics.Notifications.WithLabelValues("telegram", "skipped").Inc()
		return ErrNotConfigured
	}

	claimed, err := d.orders.MarkDriverNotified(ctx, orderID)
	if err != nil {
		return err
	}
	if !claimed {
		log.Info("driver notification already claimed")
		return nil
	}

	err = d.driver.SendDriverMessage(ctx, DriverRequest(o))
	metrics.Notifications.WithLabelValues("telegram", metrics.Outcome(err)).Inc()
	if err != nil {
		if _, rerr := d.orders.ReleaseDriverNotified(ctx, orderID, o.Status); rerr != nil {
			log.Error("driver not notified and claim not released", zap.Error(rerr))
		}
		return err
	}
	return nil
}

// DeliveryUpdate posts a status change to the driver chat.
func (d *Dispatcher) DeliveryUpdate(ctx context.Context, orderID, status, message string) error {
	if !d.driver.Configured() {
		return ErrNotConfigured
	}
	err := d.driver.SendDriverMessage(ctx, DeliveryUpdate(orderID, status, message, d.now()))
	metrics.Notifications.WithLabelValues("telegram", metrics.Outcome(err)).Inc()
	return err
}

// OrderUpdate tells the customer about a status change on every channel
// they gave.
func (d *Dispatcher) OrderUpdate(ctx context.Context, to Recipient, orderID, status string) error {
	at := d.now()
	return d.fanOut(ctx, to,
		OrderUpdateSMS(orderID, status, at),
		OrderUpdateDM(orderID, status, at),
	)
}

// OrderConfirmation sends the customer the order total and tracking link
// right after checkout.
func (d *Dispatcher) OrderConfirmation(ctx context.Context, to Recipient, orderID string) error {
	o, err := d.orders.Get(ctx, orderID)
	if err != nil {
		return err
	}
	amount := o.Amount.StringFixed(2)
	return d.fanOut(ctx, to,
		OrderConfirmationSMS(orderID, amount),
		OrderConfirmationDM(orderID, amount),
	)
}

func (d *Dispatcher) DeliveryConfirmation(ctx context.Context, to Recipient, orderID string) error {
	return d.fanOut(ctx, to,
		DeliveryConfirmationSMS(orderID),
		DeliveryConfirmationDM(orderID),
	)
}

// fanOut sends to both channels concurrently and joins their errors.
func (d *Dispatcher) fanOut(ctx context.Context, to Recipient, smsText, dmText string) error {
	if to.Phone == "" && to.InstagramID == "" {
		return ErrNoRecipient
	}

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	send := func(channel string, fn func() error) {
		defer wg.Done()
		err := fn()
		metrics.Notifications.WithLabelValues(channel, metrics.Outcome(err)).Inc()
		if err != nil {
			mu.Lock()
			errs = append(errs, err)
			mu.Unlock()
		}
	}

	if to.Phone != "" {
		wg.Add(1)
		go send("sms", func() error { return d.sms.SendSMS(ctx, to.Phone, smsText) })
	}
	if to.InstagramID != "" {
		wg.Add(1)
		go send("instagram", func() error { return d.dm.SendDirectMessage(ctx, to.InstagramID, dmText) })
	}
	wg.Wait()

	if err := errors.Join(errs...); err != nil {
		logger.FromCtx(ctx).Error("failed to send customer notification",
			zap.String("layer", "notify"),
			zap.Error(err),
		)
		return err
	}
	return nil
}
