package payment

import (
	"context"

	"github.com/shopspring/decimal"
)

// Feed streams unconfirmed transactions touching one address.
type Feed interface {
	Subscribe(ctx context.Context, address string) (Subscription, error)
}

// Subscription delivers transactions until Done is closed. Err reports why
// it ended; nil means it was closed by its owner.
type Subscription interface {
	Transactions() <-chan Transaction
	Done() <-chan struct{}
	Err() error
	Close()
}

type PriceFeed interface {
	BTCPrice(ctx context.Context) (decimal.Decimal, error)
}
