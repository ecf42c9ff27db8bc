package payment

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransaction_PaidTo(t *testing.T) {
	tx := Transaction{
		Hash: "h",
		Outputs: []Output{
			{Address: "wallet", Value: 150000},
			{Address: "change", Value: 999},
			{Address: "wallet", Value: 50000},
		},
	}

	assert.Equal(t, int64(200000), tx.PaidTo("wallet"))
	assert.Equal(t, int64(0), tx.PaidTo("nobody"))
}

func TestNewQuote(t *testing.T) {
	at := time.Now()

	t.Run("RoundsToSatoshi", func(t *testing.T) {
		q, err := NewQuote("bc1q", decimal.RequireFromString("95.97"), decimal.RequireFromString("43000"), at)
		require.NoError(t, err)

		// 95.97 / 43000 = 0.002231860465... BTC
		assert.Equal(t, int64(223186), q.Satoshis)
		assert.Equal(t, "0.00223186", q.BTC)
		assert.Equal(t, "bitcoin:bc1q?amount=0.00223186", q.URI)
	})

	t.Run("Exact", func(t *testing.T) {
		q, err := NewQuote("w", decimal.NewFromInt(100), decimal.NewFromInt(50000), at)
		require.NoError(t, err)
		assert.Equal(t, int64(200000), q.Satoshis)
		assert.Equal(t, "0.00200000", q.BTC)
	})

	t.Run("InvalidInputs", func(t *testing.T) {
		_, err := NewQuote("w", decimal.Zero, decimal.NewFromInt(1), at)
		assert.ErrorIs(t, err, ErrInvalidAmount)

		_, err = NewQuote("w", decimal.NewFromInt(1), decimal.Zero, at)
		assert.ErrorIs(t, err, ErrPriceUnavailable)
	})
}

func TestFormatBTC(t *testing.T) {
	assert.Equal(t, "1.00000000", FormatBTC(SatoshisPerBTC))
	assert.Equal(t, "0.00000001", FormatBTC(1))
}
