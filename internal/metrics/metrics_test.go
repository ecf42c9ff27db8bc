package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestOutcome(t *testing.T) {
	assert.Equal(t, "success", Outcome(nil))
	assert.Equal(t, "error", Outcome(errors.New("x")))
}

func TestObserveHTTP(t *testing.T) {
	before := testutil.ToFloat64(HTTPRequests.WithLabelValues("GET", "/api/health", "200"))

	timer := StartTimer()
	time.Sleep(time.Millisecond)
	ObserveHTTP("GET", "/api/health", "200", timer)

	after := testutil.ToFloat64(HTTPRequests.WithLabelValues("GET", "/api/health", "200"))
	assert.Equal(t, before+1, after)
	assert.Greater(t, timer.Duration(), time.Duration(0))
}
