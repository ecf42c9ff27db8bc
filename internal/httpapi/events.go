package httpapi

import (
	"net/http"
	"strings"
	"time"

	"zazoom-be/internal/events"
	"zazoom-be/internal/logger"
	"zazoom-be/internal/utils"

	"go.uber.org/zap"
)

const eventBuffer = 32

var knownKinds = map[events.Kind]bool{
	events.KindOrderUpdate:     true,
	events.KindDeliveryUpdate:  true,
	events.KindChatMessage:     true,
	events.KindInventoryUpdate: true,
}

// parseKinds reads ?kinds=a,b. An empty list subscribes to everything.
func parseKinds(raw string) ([]events.Kind, bool) {
	var kinds []events.Kind
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		k := events.Kind(part)
		if !knownKinds[k] {
			return nil, false
		}
		kinds = append(kinds, k)
	}
	return kinds, true
}

// events streams change-feed events to the client. Events arriving faster
// than the client reads are dropped.
func (s *Server) events(w http.ResponseWriter, r *http.Request) {
	if s.Hub == nil {
		writeError(w, r, errUnavailable)
		return
	}
	kinds, ok := parseKinds(r.URL.Query().Get("kinds"))
	if !ok {
		utils.WriteJSONError(w, "unknown event kind", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "handler"),
		zap.String("method", "events"),
	)

	ch := make(chan events.Event, eventBuffer)
	unsubscribe, err := s.Hub.Subscribe(func(ev events.Event) {
		select {
		case ch <- ev:
		default:
			log.Warn("dropping event for slow client", zap.String("kind", string(ev.Kind())))
		}
	}, kinds...)
	if err != nil {
		writeError(w, r, err)
		return
	}
	defer unsubscribe()

	stream, ok := newSSE(w)
	if !ok {
		utils.WriteJSONError(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-heartbeat.C:
			if err := stream.ping(); err != nil {
				return
			}
		case ev := <-ch:
			if err := stream.send(string(ev.Kind()), ev); err != nil {
				log.Debug("event stream closed", zap.Error(err))
				return
			}
		}
	}
}
