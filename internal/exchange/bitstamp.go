package exchange

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Bitstamp polls the public Bitstamp v2 ticker.
type Bitstamp struct {
	book
	rest   restClient
	symbol string
}

// NewBitstamp constructs a Bitstamp source.
func NewBitstamp(opts RESTOptions) *Bitstamp {
	name := opts.Name
	if name == "" {
		name = "bitstamp"
	}
	symbol := opts.Symbol
	if symbol == "" {
		symbol = strings.ToLower(opts.Pair.Base() + opts.Pair.Quote())
	}
	return &Bitstamp{
		book:   newBook(name, opts.Pair),
		rest:   newRESTClient(opts, "https://www.bitstamp.net"),
		symbol: symbol,
	}
}

type bitstampTicker struct {
	Ask string `json:"ask"`
	Bid string `json:"bid"`
}

// UpdatePrices fetches the ticker and stores the best ask and bid.
func (b *Bitstamp) UpdatePrices(ctx context.Context) error {
	var ticker bitstampTicker
	if err := b.rest.getJSON(ctx, fmt.Sprintf("/api/v2/ticker/%s/", b.symbol), &ticker); err != nil {
		return b.fail(err)
	}
	if ticker.Ask == "" || ticker.Bid == "" {
		return b.fail(errors.New("ticker missing ask or bid"))
	}

	ask, err := decimal.NewFromString(ticker.Ask)
	if err != nil {
		return b.fail(fmt.Errorf("parse ask: %w", err))
	}
	bid, err := decimal.NewFromString(ticker.Bid)
	if err != nil {
		return b.fail(fmt.Errorf("parse bid: %w", err))
	}

	b.set(ask, bid)
	return nil
}

var _ Source = (*Bitstamp)(nil)
