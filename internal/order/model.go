package order

import (
	"strings"
	"time"

	"zazoom-be/internal/cart"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusPaid       Status = "paid"
	StatusProcessing Status = "processing"
	StatusShipped    Status = "shipped"
	StatusDelivered  Status = "delivered"
)

// lifecycle is the forward-only order of statuses.
var lifecycle = []Status{
	StatusPending,
	StatusPaid,
	StatusProcessing,
	StatusShipped,
	StatusDelivered,
}

// Rank is the position of s in the lifecycle, or -1 if s is unknown.
func (s Status) Rank() int {
	for i, st := range lifecycle {
		if st == s {
			return i
		}
	}
	return -1
}

func (s Status) Valid() bool {
	return s.Rank() != -1
}

// Before returns every status strictly earlier than s.
func (s Status) Before() []string {
	rank := s.Rank()
	if rank <= 0 {
		return nil
	}
	out := make([]string, 0, rank)
	for _, st := range lifecycle[:rank] {
		out = append(out, string(st))
	}
	return out
}

// ParseStatus accepts any case and treats in_transit as shipped.
func ParseStatus(raw string) (Status, error) {
	s := Status(strings.ToLower(strings.TrimSpace(raw)))
	if s == "in_transit" || s == "in-transit" {
		return StatusShipped, nil
	}
	if !s.Valid() {
		return "", ErrInvalidStatus
	}
	return s, nil
}

// Line is the immutable snapshot of a cart line taken at checkout.
type Line struct {
	ProductID string          `json:"id"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"price"`
	Quantity  int             `json:"quantity"`
	Image     string          `json:"image,omitempty"`
}

func SnapshotLines(state cart.State) []Line {
	lines := make([]Line, 0, len(state.Lines))
	for _, l := range state.Lines {
		lines = append(lines, Line{
			ProductID: l.ProductID,
			Name:      l.Name,
			UnitPrice: l.UnitPrice,
			Quantity:  l.Quantity,
			Image:     l.Image,
		})
	}
	return lines
}

type Order struct {
	ID               uuid.UUID       `json:"id"`
	Lines            []Line          `json:"items"`
	Amount           decimal.Decimal `json:"amount"`
	Status           Status          `json:"status"`
	TxHash           string          `json:"tx_hash,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
	PaidAt           *time.Time      `json:"paid_at,omitempty"`
	DriverNotifiedAt *time.Time      `json:"driver_notified_at,omitempty"`
}

// Filter narrows admin listings. A zero Limit returns every row.
type Filter struct {
	Status *Status
	Limit  int
	Offset int
}
