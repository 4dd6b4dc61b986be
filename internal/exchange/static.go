package exchange

import (
	"context"

	"github.com/shopspring/decimal"
)

// Static reports fixed prices. It backs the simulate command and tests.
type Static struct {
	book
	ask decimal.Decimal
	bid decimal.Decimal
	err error
}

// NewStatic returns a source that always quotes ask/bid.
func NewStatic(name string, pair CurrencyPair, ask, bid decimal.Decimal) *Static {
	return &Static{book: newBook(name, pair), ask: ask, bid: bid}
}

// SetPrices changes the prices returned by the next update.
func (s *Static) SetPrices(ask, bid decimal.Decimal) {
	s.ask = ask
	s.bid = bid
}

// FailWith makes subsequent updates fail with err; nil restores normal behaviour.
func (s *Static) FailWith(err error) {
	s.err = err
}

func (s *Static) UpdatePrices(ctx context.Context) error {
	if s.err != nil {
		return s.fail(s.err)
	}
	s.set(s.ask, s.bid)
	return nil
}

var _ Source = (*Static)(nil)
