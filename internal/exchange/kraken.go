package exchange

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/shopspring/decimal"
)

// Kraken polls the public Kraken ticker endpoint.
type Kraken struct {
	book
	rest   restClient
	symbol string
}

// NewKraken constructs a Kraken source. Kraken spells bitcoin as XBT.
func NewKraken(opts RESTOptions) *Kraken {
	name := opts.Name
	if name == "" {
		name = "kraken"
	}
	symbol := opts.Symbol
	if symbol == "" {
		base := opts.Pair.Base()
		if base == "BTC" {
			base = "XBT"
		}
		quote := opts.Pair.Quote()
		if quote == "BTC" {
			quote = "XBT"
		}
		symbol = base + quote
	}
	return &Kraken{
		book:   newBook(name, opts.Pair),
		rest:   newRESTClient(opts, "https://api.kraken.com"),
		symbol: symbol,
	}
}

type krakenTickerResponse struct {
	Error  []string                `json:"error"`
	Result map[string]krakenTicker `json:"result"`
}

// a and b are [price, whole lot volume, lot volume].
type krakenTicker struct {
	Ask []string `json:"a"`
	Bid []string `json:"b"`
}

// UpdatePrices fetches the ticker and stores the best ask and bid.
func (k *Kraken) UpdatePrices(ctx context.Context) error {
	var res krakenTickerResponse
	path := "/0/public/Ticker?pair=" + url.QueryEscape(k.symbol)
	if err := k.rest.getJSON(ctx, path, &res); err != nil {
		return k.fail(err)
	}
	if len(res.Error) > 0 {
		return k.fail(fmt.Errorf("kraken api error: %s", strings.Join(res.Error, "; ")))
	}

	var ticker krakenTicker
	found := false
	for _, t := range res.Result {
		ticker = t
		found = true
		break
	}
	if !found {
		return k.fail(errors.New("empty ticker result"))
	}
	if len(ticker.Ask) == 0 || len(ticker.Bid) == 0 {
		return k.fail(errors.New("ticker missing ask or bid"))
	}

	ask, err := decimal.NewFromString(ticker.Ask[0])
	if err != nil {
		return k.fail(fmt.Errorf("parse ask: %w", err))
	}
	bid, err := decimal.NewFromString(ticker.Bid[0])
	if err != nil {
		return k.fail(fmt.Errorf("parse bid: %w", err))
	}

	k.set(ask, bid)
	return nil
}

var _ Source = (*Kraken)(nil)
