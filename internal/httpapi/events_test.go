package httpapi

import (
	"bufio"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"zazoom-be/internal/events"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseKinds(t *testing.T) {
	kinds, ok := parseKinds("order_update, delivery_update")
	require.True(t, ok)
	assert.Equal(t, []events.Kind{events.KindOrderUpdate, events.KindDeliveryUpdate}, kinds)

	kinds, ok = parseKinds("")
	assert.True(t, ok)
	assert.Empty(t, kinds)

	_, ok = parseKinds("order_update,weather")
	assert.False(t, ok)
}

func TestEventsStream(t *testing.T) {
	hub := events.NewHub(nil)
	defer hub.Close()

	d := newDeps()
	d.Hub = hub
	srv := httptest.NewServer(NewRouter(d))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/events?kinds=order_update")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	require.Eventually(t, func() bool { return hub.Listeners() == 1 }, time.Second, 5*time.Millisecond)

	hub.Publish(events.DeliveryUpdate{OrderID: "skip-me", Status: "assigned"})
	hub.Publish(events.OrderUpdate{OrderID: "o-1", Status: "paid", Amount: decimal.NewFromInt(10)})

	lines := make(chan string, 64)
	go func() {
		sc := bufio.NewScanner(resp.Body)
		for sc.Scan() {
			lines <- sc.Text()
		}
		close(lines)
	}()

	var got []string
	timeout := time.After(2 * time.Second)
	for len(got) < 2 {
		select {
		case line, ok := <-lines:
			require.True(t, ok, "stream ended early")
			if strings.HasPrefix(line, "event:") || strings.HasPrefix(line, "data:") {
				got = append(got, line)
			}
		case <-timeout:
			t.Fatal("no event received")
		}
	}

	assert.Equal(t, "event: order_update", got[0])
	assert.Contains(t, got[1], `"order_id":"o-1"`)
	assert.NotContains(t, got[1], "skip-me")
}

func TestEventsRejectsUnknownKind(t *testing.T) {
	d := newDeps()
	d.Hub = events.NewHub(nil)
	w := do(t, NewRouter(d), http.MethodGet, "/api/events?kinds=weather", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestEventsHubClosed(t *testing.T) {
	hub := events.NewHub(nil)
	hub.Close()
	d := newDeps()
	d.Hub = hub
	w := do(t, NewRouter(d), http.MethodGet, "/api/events", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
