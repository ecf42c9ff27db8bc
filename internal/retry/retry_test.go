package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPolicy_Delay(t *testing.T) {
	p := Policy{Base: time.Second, Max: 30 * time.Second}

	assert.Equal(t, time.Second, p.Delay(0))
	assert.Equal(t, 2*time.Second, p.Delay(1))
	assert.Equal(t, 4*time.Second, p.Delay(2))
	assert.Equal(t, 16*time.Second, p.Delay(4))
	assert.Equal(t, 30*time.Second, p.Delay(5))
	assert.Equal(t, 30*time.Second, p.Delay(40))
}

func TestPolicy_Do(t *testing.T) {
	p := Policy{Base: time.Millisecond, Max: 5 * time.Millisecond, Attempts: 3}
	boom := errors.New("boom")

	t.Run("SucceedsAfterRetry", func(t *testing.T) {
		calls := 0
		err := p.Do(context.Background(), func(context.Context) error {
			calls++
			if calls < 2 {
				return boom
			}
			return nil
		}, nil)

		assert.NoError(t, err)
		assert.Equal(t, 2, calls)
	})

	t.Run("Exhausted", func(t *testing.T) {
		calls := 0
		err := p.Do(context.Background(), func(context.Context) error {
			calls++
			return boom
		}, nil)

		assert.ErrorIs(t, err, ErrExhausted)
		assert.ErrorIs(t, err, boom)
		assert.Equal(t, 3, calls)
	})

	t.Run("NotRetryable", func(t *testing.T) {
		calls := 0
		err := p.Do(context.Background(), func(context.Context) error {
			calls++
			return boom
		}, func(error) bool { return false })

		assert.Equal(t, boom, err)
		assert.Equal(t, 1, calls)
	})

	t.Run("ContextCancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		slow := Policy{Base: time.Hour, Attempts: 3}

		err := slow.Do(ctx, func(context.Context) error { return boom }, nil)

		assert.ErrorIs(t, err, context.Canceled)
		assert.ErrorIs(t, err, boom)
	})
}
