package delivery

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusAssigned  Status = "assigned"
	StatusPickedUp  Status = "picked_up"
	StatusInTransit Status = "in_transit"
	StatusDelivered Status = "delivered"
)

// Steps is the fixed order every delivery moves through.
var Steps = []Status{
	StatusPending,
	StatusAssigned,
	StatusPickedUp,
	StatusInTransit,
	StatusDelivered,
}

func (s Status) Rank() int {
	for i, st := range Steps {
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
	for _, st := range Steps[:rank] {
		out = append(out, string(st))
	}
	return out
}

// Label is the human form shown on the tracking page.
func (s Status) Label() string {
	r := strings.ReplaceAll(string(s), "_", " ")
	if r == "" {
		return r
	}
	return strings.ToUpper(r[:1]) + r[1:]
}

func ParseStatus(raw string) (Status, error) {
	s := Status(strings.ToLower(strings.TrimSpace(raw)))
	if !s.Valid() {
		return "", ErrInvalidStatus
	}
	return s, nil
}

type Record struct {
	OrderID       uuid.UUID  `json:"order_id"`
	DriverID      string     `json:"driver_id,omitempty"`
	Status        Status     `json:"status"`
	CurrentZone   string     `json:"current_zone"`
	EstimatedTime *time.Time `json:"estimated_time,omitempty"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

type DriverStatus string

const (
	DriverAvailable DriverStatus = "available"
	DriverBusy      DriverStatus = "busy"
	DriverOffline   DriverStatus = "offline"
)

func ParseDriverStatus(raw string) (DriverStatus, error) {
	switch s := DriverStatus(strings.ToLower(strings.TrimSpace(raw))); s {
	case DriverAvailable, DriverBusy, DriverOffline:
		return s, nil
	default:
		return "", ErrInvalidDriverStatus
	}
}

type Driver struct {
	ID              string          `json:"id"`
	Name            string          `json:"name"`
	Status          DriverStatus    `json:"status"`
	CurrentZone     string          `json:"current_zone"`
	TotalDeliveries int             `json:"total_deliveries"`
	Rating          decimal.Decimal `json:"rating"`
	UpdatedAt       time.Time       `json:"updated_at"`
}
