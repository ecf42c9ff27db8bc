package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"zazoom-be/internal/logger"

	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
)

const DefaultPriceURL = "https://api.coindesk.com/v1/bpi/currentprice/USD.json"

type coinDeskResponse struct {
	BPI struct {
		USD struct {
			RateFloat decimal.Decimal `json:"rate_float"`
		} `json:"USD"`
	} `json:"bpi"`
}

// CoinDeskFeed fetches the USD price of one bitcoin. Calls go through a
// circuit breaker so an outage fails fast instead of stacking requests.
type CoinDeskFeed struct {
	url        string
	httpClient *http.Client
	cb         *gobreaker.CircuitBreaker[decimal.Decimal]
}

func NewCoinDeskFeed(url string) *CoinDeskFeed {
	if url == "" {
		url = DefaultPriceURL
	}
	return &CoinDeskFeed{
		url: url,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		cb: gobreaker.NewCircuitBreaker[decimal.Decimal](gobreaker.Settings{
			Name:        "coindesk",
			MaxRequests: 1,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 3
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				logger.L().Warn("circuit breaker state changed",
					zap.String("breaker", name),
					zap.String("from", from.String()),
					zap.String("to", to.String()),
				)
			},
		}),
	}
}

func (c *CoinDeskFeed) BTCPrice(ctx context.Context) (decimal.Decimal, error) {
	rate, err := c.cb.Execute(func() (decimal.Decimal, error) {
		return c.fetch(ctx)
	})
	if err != nil {
		logger.FromCtx(ctx).Error("error fetching BTC price",
			zap.String("layer", "payment"),
			zap.Error(err),
		)
		return decimal.Zero, fmt.Errorf("%w: %v", ErrPriceUnavailable, err)
	}
	return rate, nil
}

func (c *CoinDeskFeed) fetch(ctx context.Context) (decimal.Decimal, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return decimal.Zero, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return decimal.Zero, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to read price response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return decimal.Zero, fmt.Errorf("price feed returned %d: %s", resp.StatusCode, string(body))
	}

	var parsed coinDeskResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return decimal.Zero, err
	}
	if !parsed.BPI.USD.RateFloat.IsPositive() {
		return decimal.Zero, fmt.Errorf("price feed returned non-positive rate %s", parsed.BPI.USD.RateFloat)
	}
	return parsed.BPI.USD.RateFloat, nil
}
