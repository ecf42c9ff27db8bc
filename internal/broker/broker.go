package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"zazoom-be/internal/logger"

	"go.uber.org/zap"
)

const (
	KindNoop   = "noop"
	KindRabbit = "rabbitmq"
	KindKafka  = "kafka"
)

const (
	TypeOrderCreated       = "order.created"
	TypeOrderPaid          = "order.paid"
	TypeOrderStatusChanged = "order.status_changed"
	TypeDeliveryUpdated    = "delivery.updated"
)

// Event is the lifecycle message published for downstream consumers.
type Event struct {
	Type       string    `json:"type"`
	OrderID    string    `json:"order_id"`
	Status     string    `json:"status,omitempty"`
	Amount     string    `json:"amount,omitempty"`
	TxHash     string    `json:"tx_hash,omitempty"`
	DriverID   string    `json:"driver_id,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

func (e Event) encode() ([]byte, error) {
	if e.Type == "" || e.OrderID == "" {
		return nil, ErrInvalidEvent
	}
	if e.OccurredAt.IsZero() {
		e.OccurredAt = time.Now().UTC()
	}
	return json.Marshal(e)
}

type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

type Config struct {
	Kind           string
	RabbitMQURL    string
	RabbitExchange string
	KafkaBrokers   []string
	KafkaTopic     string
}

// New connects the publisher selected by cfg.Kind. An empty kind is noop.
func New(cfg Config) (Publisher, error) {
	log := logger.L().With(
		zap.String("layer", "broker"),
		zap.String("kind", cfg.Kind),
	)

	switch cfg.Kind {
	case "", KindNoop:
		return NoopPublisher{}, nil
	case KindRabbit:
		p, err := NewRabbitPublisher(cfg.RabbitMQURL, cfg.RabbitExchange)
		if err != nil {
			log.Error("failed to connect rabbitmq", zap.Error(err))
			return nil, err
		}
		log.Info("rabbitmq publisher ready", zap.String("exchange", cfg.RabbitExchange))
		return p, nil
	case KindKafka:
		p, err := NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		if err != nil {
			return nil, err
		}
		log.Info("kafka publisher ready", zap.String("topic", cfg.KafkaTopic))
		return p, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, cfg.Kind)
	}
}

// NoopPublisher drops every event.
type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, Event) error { return nil }
func (NoopPublisher) Close() error                        { return nil }
