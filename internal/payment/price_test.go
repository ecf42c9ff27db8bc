package payment

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"testing"

	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// MockRoundTripper allows us to mock the HTTP response
type MockRoundTripper func(req *http.Request) (*http.Response, error)

func (f MockRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(bytes.NewBufferString(body)),
		Header:     make(http.Header),
	}
}

func TestCoinDeskFeed_BTCPrice(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		feed := NewCoinDeskFeed("")
		feed.httpClient.Transport = MockRoundTripper(func(req *http.Request) (*http.Response, error) {
			assert.Equal(t, DefaultPriceURL, req.URL.String())
			return jsonResponse(http.StatusOK, `{"bpi":{"USD":{"code":"USD","rate":"43,000.12","rate_float":43000.12}}}`), nil
		})

		rate, err := feed.BTCPrice(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "43000.12", rate.String())
	})

	t.Run("Non200", func(t *testing.T) {
		feed := NewCoinDeskFeed("http://price.local")
		feed.httpClient.Transport = MockRoundTripper(func(*http.Request) (*http.Response, error) {
			return jsonResponse(http.StatusServiceUnavailable, `down`), nil
		})

		_, err := feed.BTCPrice(context.Background())
		assert.ErrorIs(t, err, ErrPriceUnavailable)
	})

	t.Run("ZeroRate", func(t *testing.T) {
		feed := NewCoinDeskFeed("http://price.local")
		feed.httpClient.Transport = MockRoundTripper(func(*http.Request) (*http.Response, error) {
			return jsonResponse(http.StatusOK, `{"bpi":{"USD":{"rate_float":0}}}`), nil
		})

		_, err := feed.BTCPrice(context.Background())
		assert.ErrorIs(t, err, ErrPriceUnavailable)
	})

	t.Run("BreakerOpensAfterRepeatedFailures", func(t *testing.T) {
		feed := NewCoinDeskFeed("http://price.local")
		calls := 0
		feed.httpClient.Transport = MockRoundTripper(func(*http.Request) (*http.Response, error) {
			calls++
			return nil, errors.New("connection refused")
		})

		for i := 0; i < 3; i++ {
			_, err := feed.BTCPrice(context.Background())
			assert.ErrorIs(t, err, ErrPriceUnavailable)
		}
		_, err := feed.BTCPrice(context.Background())

		assert.ErrorIs(t, err, ErrPriceUnavailable)
		assert.ErrorContains(t, err, gobreaker.ErrOpenState.Error())
		assert.Equal(t, 3, calls)
	})
}
