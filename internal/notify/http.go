package notify

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"zazoom-be/internal/logger"
	"zazoom-be/internal/retry"

	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
)

// SendPolicy retries transient provider failures a few times before the
// breaker sees the error.
var SendPolicy = retry.Policy{Base: 500 * time.Millisecond, Max: 5 * time.Second, Attempts: 3}

type sender struct {
	provider   string
	httpClient *http.Client
	cb         *gobreaker.CircuitBreaker[[]byte]
	policy     retry.Policy
}

func newSender(provider string) sender {
	return sender{
		provider: provider,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
		cb: gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
			Name:        provider,
			MaxRequests: 1,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
			IsSuccessful: func(err error) bool {
				var apiErr *APIError
				return err == nil || (errors.As(err, &apiErr) && !apiErr.Temporary())
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				logger.L().Warn("circuit breaker state changed",
					zap.String("breaker", name),
					zap.String("from", from.String()),
					zap.String("to", to.String()),
				)
			},
		}),
		policy: SendPolicy,
	}
}

// do sends the request built by build, retrying transient failures, and
// returns the 2xx response body. A request is rebuilt for every attempt so
// its body can be read again.
func (s *sender) do(ctx context.Context, build func(ctx context.Context) (*http.Request, error), decodeErr func(status int, body []byte) string) ([]byte, error) {
	var body []byte
	err := s.policy.Do(ctx, func(ctx context.Context) error {
		var err error
		body, err = s.cb.Execute(func() ([]byte, error) {
			return s.roundTrip(ctx, build, decodeErr)
		})
		return err
	}, retryable)
	return body, err
}

func (s *sender) roundTrip(ctx context.Context, build func(ctx context.Context) (*http.Request, error), decodeErr func(status int, body []byte) string) ([]byte, error) {
	req, err := build(ctx)
	if err != nil {
		return nil, err
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s response: %w", s.provider, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &APIError{
			Provider:    s.provider,
			StatusCode:  resp.StatusCode,
			Description: decodeErr(resp.StatusCode, body),
		}
	}
	return body, nil
}

func retryable(err error) bool {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Temporary()
	}
	return true
}
