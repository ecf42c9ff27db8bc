package events

import (
	"context"
	"errors"
	"sync"

	"zazoom-be/internal/logger"
	"zazoom-be/internal/metrics"

	"go.uber.org/zap"
)

var ErrHubClosed = errors.New("event hub closed")

// Listener receives events on the hub's dispatch goroutine and must not
// block.
type Listener func(Event)

type subscription struct {
	kinds map[Kind]bool
	fn    Listener
}

func (s subscription) wants(k Kind) bool {
	return len(s.kinds) == 0 || s.kinds[k]
}

// Hub fans change-feed events out to listeners. The upstream feed runs only
// while at least one listener is registered.
type Hub struct {
	src Source

	// startMu orders feed restarts. Listen runs under it, never under mu.
	startMu sync.Mutex

	mu        sync.Mutex
	listeners map[uint64]subscription
	nextID    uint64
	cancel    context.CancelFunc
	done      chan struct{}
	closed    bool
}

func NewHub(src Source) *Hub {
	return &Hub{
		src:       src,
		listeners: make(map[uint64]subscription),
	}
}

// Subscribe registers fn for the given kinds, or every kind when none are
// given. The returned func unregisters it and is safe to call twice.
func (h *Hub) Subscribe(fn Listener, kinds ...Kind) (func(), error) {
	sub := subscription{fn: fn}
	if len(kinds) > 0 {
		sub.kinds = make(map[Kind]bool, len(kinds))
		for _, k := range kinds {
			sub.kinds[k] = true
		}
	}

	h.startMu.Lock()
	defer h.startMu.Unlock()

	h.mu.Lock()
	closed := h.closed
	idle := h.src != nil && h.cancel == nil
	prev := h.done
	h.mu.Unlock()
	if closed {
		return nil, ErrHubClosed
	}

	var f *feed
	if idle {
		// The previous pump may still be draining after its cancel.
		if prev != nil {
			<-prev
		}
		var err error
		if f, err = h.listen(); err != nil {
			return nil, err
		}
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		if f != nil {
			f.cancel()
		}
		return nil, ErrHubClosed
	}
	if f != nil {
		h.cancel = f.cancel
		h.done = f.done
		go h.pump(f.changes, f.done)
	}

	id := h.nextID
	h.nextID++
	h.listeners[id] = sub
	metrics.EventListeners.Inc()

	var once sync.Once
	return func() {
		once.Do(func() { h.unsubscribe(id) })
	}, nil
}

func (h *Hub) unsubscribe(id uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.listeners[id]; !ok {
		return
	}
	delete(h.listeners, id)
	metrics.EventListeners.Dec()

	if len(h.listeners) == 0 {
		h.stop()
	}
}

type feed struct {
	changes <-chan Change
	cancel  context.CancelFunc
	done    chan struct{}
}

// listen opens the upstream. The caller holds startMu.
func (h *Hub) listen() (*feed, error) {
	ctx, cancel := context.WithCancel(context.Background())
	changes, err := h.src.Listen(ctx)
	if err != nil {
		cancel()
		logger.Component("events").Error("failed to start change feed", zap.Error(err))
		return nil, err
	}
	return &feed{changes: changes, cancel: cancel, done: make(chan struct{})}, nil
}

// stop runs with h.mu held. The pump exits once the source closes its
// channel; h.done stays set so the next start can wait for it.
func (h *Hub) stop() {
	if h.cancel != nil {
		h.cancel()
		h.cancel = nil
	}
}

func (h *Hub) pump(changes <-chan Change, done chan struct{}) {
	defer close(done)
	log := logger.Component("events")

	for c := range changes {
		ev, err := Decode(c)
		if err != nil {
			log.Debug("skipping change", zap.String("table", c.Table), zap.Error(err))
			continue
		}
		h.Publish(ev)
	}
}

// Publish delivers ev to every interested listener.
func (h *Hub) Publish(ev Event) {
	h.mu.Lock()
	targets := make([]Listener, 0, len(h.listeners))
	for _, sub := range h.listeners {
		if sub.wants(ev.Kind()) {
			targets = append(targets, sub.fn)
		}
	}
	h.mu.Unlock()

	for _, fn := range targets {
		fn(ev)
	}
}

func (h *Hub) Listeners() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.listeners)
}

// Close drops every listener, stops the upstream feed and waits for the
// dispatch goroutine to finish.
func (h *Hub) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	metrics.EventListeners.Sub(float64(len(h.listeners)))
	h.listeners = make(map[uint64]subscription)
	h.stop()
	done := h.done
	h.mu.Unlock()

	if done != nil {
		<-done
	}
}
