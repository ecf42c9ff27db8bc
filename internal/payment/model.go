package payment

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// SatoshisPerBTC is the monitor's comparison unit.
const SatoshisPerBTC = 100_000_000

var satoshisPerBTC = decimal.NewFromInt(SatoshisPerBTC)

type Output struct {
	Address string `json:"addr"`
	Value   int64  `json:"value"`
}

type Transaction struct {
	Hash    string   `json:"hash"`
	Outputs []Output `json:"out"`
}

// PaidTo sums every output of tx addressed to wallet, in satoshis.
func (tx Transaction) PaidTo(wallet string) int64 {
	var sum int64
	for _, o := range tx.Outputs {
		if o.Address == wallet {
			sum += o.Value
		}
	}
	return sum
}

// Quote is the BTC amount owed for a fiat total at one exchange rate.
type Quote struct {
	Fiat     decimal.Decimal `json:"fiat"`
	Rate     decimal.Decimal `json:"rate"`
	Satoshis int64           `json:"satoshis"`
	BTC      string          `json:"btc"`
	URI      string          `json:"uri"`
	QuotedAt time.Time       `json:"quoted_at"`
}

func NewQuote(wallet string, fiat, rate decimal.Decimal, at time.Time) (Quote, error) {
	if !fiat.IsPositive() {
		return Quote{}, ErrInvalidAmount
	}
	if !rate.IsPositive() {
		return Quote{}, ErrPriceUnavailable
	}

	sats := fiat.Div(rate).Mul(satoshisPerBTC).Round(0).IntPart()
	btc := FormatBTC(sats)
	return Quote{
		Fiat:     fiat,
		Rate:     rate,
		Satoshis: sats,
		BTC:      btc,
		URI:      fmt.Sprintf("bitcoin:%s?amount=%s", wallet, btc),
		QuotedAt: at,
	}, nil
}

// FormatBTC renders satoshis with the eight decimals wallets expect.
func FormatBTC(sats int64) string {
	return decimal.New(sats, -8).StringFixed(8)
}

type State string

const (
	StatePending    State = "pending"
	StateProcessing State = "processing"
	StateCompleted  State = "completed"
	StateFailed     State = "failed"
)

// Status is a point-in-time view of one monitoring session.
type Status struct {
	OrderID    string    `json:"order_id"`
	State      State     `json:"state"`
	Quote      Quote     `json:"quote"`
	TxHash     string    `json:"tx_hash,omitempty"`
	Error      string    `json:"error,omitempty"`
	PriceError string    `json:"price_error,omitempty"`
	StartedAt  time.Time `json:"started_at"`
}
