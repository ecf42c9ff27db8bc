package events

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type Kind string

const (
	KindOrderUpdate     Kind = "order_update"
	KindDeliveryUpdate  Kind = "delivery_update"
	KindChatMessage     Kind = "chat_message"
	KindInventoryUpdate Kind = "inventory_update"
)

var (
	ErrUnknownTable = errors.New("change for unknown table")
	ErrEmptyChange  = errors.New("change carries no row")
)

// Event is implemented only by the types in this package.
type Event interface {
	Kind() Kind
	event()
}

type OrderUpdate struct {
	OrderID   string          `json:"order_id"`
	Status    string          `json:"status"`
	Amount    decimal.Decimal `json:"amount"`
	TxHash    string          `json:"tx_hash,omitempty"`
	Deleted   bool            `json:"deleted,omitempty"`
	UpdatedAt time.Time       `json:"updated_at"`
}

type DeliveryUpdate struct {
	OrderID       string     `json:"order_id"`
	DriverID      string     `json:"driver_id,omitempty"`
	Status        string     `json:"status"`
	CurrentZone   string     `json:"current_zone"`
	EstimatedTime *time.Time `json:"estimated_time,omitempty"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

type ChatMessage struct {
	ID        int64     `json:"id"`
	Sender    string    `json:"sender"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

type InventoryUpdate struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Stock     int             `json:"stock"`
	Deleted   bool            `json:"deleted,omitempty"`
}

func (OrderUpdate) Kind() Kind     { return KindOrderUpdate }
func (DeliveryUpdate) Kind() Kind  { return KindDeliveryUpdate }
func (ChatMessage) Kind() Kind     { return KindChatMessage }
func (InventoryUpdate) Kind() Kind { return KindInventoryUpdate }

func (OrderUpdate) event()     {}
func (DeliveryUpdate) event()  {}
func (ChatMessage) event()     {}
func (InventoryUpdate) event() {}

// Change is one row change from the database feed.
type Change struct {
	Table string          `json:"table"`
	Op    string          `json:"op"`
	Old   json.RawMessage `json:"old"`
	New   json.RawMessage `json:"new"`
}

// row returns the row image the event is built from: the new row, or the
// old one for deletes.
func (c Change) row() (json.RawMessage, bool) {
	if c.Op == "DELETE" {
		return c.Old, isRow(c.Old)
	}
	return c.New, isRow(c.New)
}

func isRow(raw json.RawMessage) bool {
	return len(raw) > 0 && string(raw) != "null"
}

type orderRow struct {
	ID        string          `json:"id"`
	Status    string          `json:"status"`
	Amount    decimal.Decimal `json:"amount"`
	TxHash    *string         `json:"tx_hash"`
	UpdatedAt time.Time       `json:"updated_at"`
}

type deliveryRow struct {
	OrderID       string     `json:"order_id"`
	DriverID      *string    `json:"driver_id"`
	Status        string     `json:"status"`
	CurrentZone   string     `json:"current_zone"`
	EstimatedTime *time.Time `json:"estimated_time"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

type productRow struct {
	ID    string          `json:"id"`
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
	Stock int             `json:"stock"`
}

// Decode turns a row change into its typed event.
func Decode(c Change) (Event, error) {
	raw, ok := c.row()
	if !ok {
		return nil, ErrEmptyChange
	}
	deleted := c.Op == "DELETE"

	switch c.Table {
	case "orders":
		var r orderRow
		if err := json.Unmarshal(raw, &r); err != nil {
			return nil, fmt.Errorf("decode orders row: %w", err)
		}
		ev := OrderUpdate{OrderID: r.ID, Status: r.Status, Amount: r.Amount, Deleted: deleted, UpdatedAt: r.UpdatedAt}
		if r.TxHash != nil {
			ev.TxHash = *r.TxHash
		}
		return ev, nil

	case "delivery_status":
		var r deliveryRow
		if err := json.Unmarshal(raw, &r); err != nil {
			return nil, fmt.Errorf("decode delivery_status row: %w", err)
		}
		ev := DeliveryUpdate{
			OrderID:       r.OrderID,
			Status:        r.Status,
			CurrentZone:   r.CurrentZone,
			EstimatedTime: r.EstimatedTime,
			UpdatedAt:     r.UpdatedAt,
		}
		if r.DriverID != nil {
			ev.DriverID = *r.DriverID
		}
		return ev, nil

	case "chat_messages":
		var ev ChatMessage
		if err := json.Unmarshal(raw, &ev); err != nil {
			return nil, fmt.Errorf("decode chat_messages row: %w", err)
		}
		return ev, nil

	case "products":
		var r productRow
		if err := json.Unmarshal(raw, &r); err != nil {
			return nil, fmt.Errorf("decode products row: %w", err)
		}
		return InventoryUpdate{ProductID: r.ID, Name: r.Name, Price: r.Price, Stock: r.Stock, Deleted: deleted}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownTable, c.Table)
}
