package events

import (
	"context"
	"encoding/json"
	"time"

	"zazoom-be/internal/logger"

	"github.com/lib/pq"
	"go.uber.org/zap"
)

// Channel is the NOTIFY channel the table triggers publish on.
const Channel = "table_changes"

// Source starts the upstream change feed. The returned channel closes once
// ctx ends or the feed gives up.
type Source interface {
	Listen(ctx context.Context) (<-chan Change, error)
}

// PQSource reads trigger notifications through a dedicated pq listener
// connection.
type PQSource struct {
	dsn          string
	minReconnect time.Duration
	maxReconnect time.Duration
	pingInterval time.Duration
}

func NewPQSource(dsn string) *PQSource {
	return &PQSource{
		dsn:          dsn,
		minReconnect: 10 * time.Second,
		maxReconnect: time.Minute,
		pingInterval: 90 * time.Second,
	}
}

func (s *PQSource) Listen(ctx context.Context) (<-chan Change, error) {
	log := logger.Component("change-feed")

	listener := pq.NewListener(s.dsn, s.minReconnect, s.maxReconnect, func(ev pq.ListenerEventType, err error) {
		if err != nil {
			log.Warn("listener event", zap.Int("event", int(ev)), zap.Error(err))
		}
	})
	if err := listener.Listen(Channel); err != nil {
		listener.Close()
		return nil, err
	}
	log.Info("listening for table changes", zap.String("channel", Channel))

	out := make(chan Change, 64)
	go func() {
		defer close(out)
		defer listener.Close()

		ping := time.NewTicker(s.pingInterval)
		defer ping.Stop()

		for {
			select {
			case <-ctx.Done():
				log.Info("change feed stopped")
				return
			case n := <-listener.Notify:
				// nil after a reconnect; changes made meanwhile are lost.
				if n == nil {
					log.Warn("listener reconnected")
					continue
				}
				c, err := ParseNotification(n.Extra)
				if err != nil {
					log.Warn("dropping malformed change", zap.Error(err))
					continue
				}
				select {
				case out <- c:
				case <-ctx.Done():
					return
				}
			case <-ping.C:
				go listener.Ping()
			}
		}
	}()
	return out, nil
}

func ParseNotification(payload string) (Change, error) {
	var c Change
	err := json.Unmarshal([]byte(payload), &c)
	return c, err
}
