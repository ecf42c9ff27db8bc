package retry

import (
	"context"
	"errors"
	"time"
)

var ErrExhausted = errors.New("retry attempts exhausted")

// Policy is capped exponential backoff: Base, 2×Base, 4×Base, ... up to Max.
type Policy struct {
	Base     time.Duration
	Max      time.Duration
	Attempts int
}

// Default is the reconnection policy of the payment feed.
var Default = Policy{Base: time.Second, Max: 30 * time.Second, Attempts: 3}

// Delay is the wait before retry number attempt (0-based).
func (p Policy) Delay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	d := p.Base
	for i := 0; i < attempt; i++ {
		d *= 2
		if p.Max > 0 && d >= p.Max {
			return p.Max
		}
	}
	if p.Max > 0 && d > p.Max {
		return p.Max
	}
	return d
}

// Do runs op until it succeeds, retryable reports false, the attempts run
// out or ctx ends. The last op error is returned joined with ErrExhausted.
func (p Policy) Do(ctx context.Context, op func(ctx context.Context) error, retryable func(error) bool) error {
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}

	var last error
	for attempt := 0; attempt < attempts; attempt++ {
		last = op(ctx)
		if last == nil {
			return nil
		}
		if retryable != nil && !retryable(last) {
			return last
		}
		if attempt == attempts-1 {
			break
		}
		if err := Sleep(ctx, p.Delay(attempt)); err != nil {
			return errors.Join(err, last)
		}
	}
	return errors.Join(ErrExhausted, last)
}

// Sleep waits for d or until ctx ends.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
