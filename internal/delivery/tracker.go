package delivery

import (
	"context"
	"sync"
	"time"

	"zazoom-be/internal/logger"

	"go.uber.org/zap"
)

// DefaultPollInterval matches how often the tracking page refreshes.
const DefaultPollInterval = 30 * time.Second

type Fetcher interface {
	Track(ctx context.Context, orderID string) (*Tracking, error)
}

// View is what a tracking client shows. A failed poll sets Error but keeps
// the last good Tracking.
type View struct {
	Tracking    *Tracking `json:"tracking,omitempty"`
	Error       string    `json:"error,omitempty"`
	PolledAt    time.Time `json:"polled_at"`
	RefreshedAt time.Time `json:"refreshed_at,omitempty"`
}

// Tracker polls one order's delivery view on a fixed interval.
type Tracker struct {
	fetch    Fetcher
	orderID  string
	interval time.Duration
	updates  chan View

	mu   sync.Mutex
	view View
}

func NewTracker(fetch Fetcher, orderID string, interval time.Duration) *Tracker {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Tracker{
		fetch:    fetch,
		orderID:  orderID,
		interval: interval,
		updates:  make(chan View, 1),
	}
}

// Updates yields the view after every poll. Slow readers only see the
// latest one.
func (t *Tracker) Updates() <-chan View { return t.updates }

func (t *Tracker) View() View {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.view
}

// Run polls immediately and then every interval until ctx ends.
func (t *Tracker) Run(ctx context.Context) {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	t.Poll(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.Poll(ctx)
		}
	}
}

func (t *Tracker) Poll(ctx context.Context) View {
	tracking, err := t.fetch.Track(ctx, t.orderID)

	t.mu.Lock()
	t.view.PolledAt = time.Now()
	if err != nil {
		logger.FromCtx(ctx).Warn("could not fetch delivery status",
			zap.String("layer", "tracker"),
			zap.String("order_id", t.orderID),
			zap.Error(err),
		)
		t.view.Error = "Could not fetch delivery status"
	} else {
		t.view.Tracking = tracking
		t.view.Error = ""
		t.view.RefreshedAt = t.view.PolledAt
	}
	view := t.view
	t.mu.Unlock()

	select {
	case <-t.updates:
	default:
	}
	select {
	case t.updates <- view:
	default:
	}
	return view
}
