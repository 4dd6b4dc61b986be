// Package spread computes directional price spreads between exchange quotes.
package spread

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"spreadwatch/internal/exchange"
)

var (
	// ErrMissingPrice means a quote has not been populated by a successful update.
	ErrMissingPrice = errors.New("spread: quote has no ask or bid")
	// ErrZeroAsk means the buy side asks zero, which would divide by zero.
	ErrZeroAsk = errors.New("spread: buy ask price is zero")
)

var hundred = decimal.NewFromInt(100)

// Spread is the profit ratio of buying at Buy's ask and selling at Sell's bid.
type Spread struct {
	Buy   exchange.Quote
	Sell  exchange.Quote
	Ratio decimal.Decimal
	Pair  exchange.CurrencyPair
}

// BuyPrice is the ask paid on the buy side.
func (s Spread) BuyPrice() decimal.Decimal { return s.Buy.Ask.Decimal }

// SellPrice is the bid received on the sell side.
func (s Spread) SellPrice() decimal.Decimal { return s.Sell.Bid.Decimal }

// Profitable reports a strictly positive ratio.
func (s Spread) Profitable() bool { return s.Ratio.IsPositive() }

// Percent returns the ratio scaled to percent.
func (s Spread) Percent() decimal.Decimal { return s.Ratio.Mul(hundred) }

// Calculate builds the spread for two quotes of the same pair. The buy side is the
// lower ask and the sell side the higher bid; ties go to the lexically smaller name
// so argument order never changes the result.
func Calculate(a, b exchange.Quote) (Spread, error) {
	if a.Pair != b.Pair {
		return Spread{}, fmt.Errorf("%w: %s quotes %s but %s quotes %s", exchange.ErrConfiguration, a.Name, a.Pair, b.Name, b.Pair)
	}
	if !a.HasPrices() {
		return Spread{}, fmt.Errorf("%w: %s", ErrMissingPrice, a.Name)
	}
	if !b.HasPrices() {
		return Spread{}, fmt.Errorf("%w: %s", ErrMissingPrice, b.Name)
	}

	buy := pick(a, b, a.Ask.Decimal.Cmp(b.Ask.Decimal) < 0, a.Ask.Decimal.Equal(b.Ask.Decimal))
	sell := pick(a, b, a.Bid.Decimal.Cmp(b.Bid.Decimal) > 0, a.Bid.Decimal.Equal(b.Bid.Decimal))

	ask := buy.Ask.Decimal
	if ask.IsZero() {
		return Spread{}, fmt.Errorf("%w: %s", ErrZeroAsk, buy.Name)
	}

	return Spread{
		Buy:   buy,
		Sell:  sell,
		Ratio: sell.Bid.Decimal.Sub(ask).Div(ask),
		Pair:  a.Pair,
	}, nil
}

func pick(a, b exchange.Quote, aWins, tie bool) exchange.Quote {
	if tie {
		if a.Name <= b.Name {
			return a
		}
		return b
	}
	if aWins {
		return a
	}
	return b
}

// Pairwise returns one spread per unordered pair of quotes, enumerated in input
// order: (0,1), (0,2), ..., (1,2), ... Self pairs are never produced.
func Pairwise(quotes []exchange.Quote) ([]Spread, error) {
	if len(quotes) < 2 {
		return nil, nil
	}
	spreads := make([]Spread, 0, len(quotes)*(len(quotes)-1)/2)
	for i := 0; i < len(quotes)-1; i++ {
		for j := i + 1; j < len(quotes); j++ {
			s, err := Calculate(quotes[i], quotes[j])
			if err != nil {
				return nil, err
			}
			spreads = append(spreads, s)
		}
	}
	return spreads, nil
}
