package exchange

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ErrConfiguration marks invalid static setup: bad intervals, mismatched pairs, unknown kinds.
var ErrConfiguration = errors.New("configuration error")

// CurrencyPair is the tradable pair every configured exchange quotes against.
type CurrencyPair string

const (
	BTCUSD CurrencyPair = "BTC/USD"
	BTCEUR CurrencyPair = "BTC/EUR"
	ETHUSD CurrencyPair = "ETH/USD"
	ETHEUR CurrencyPair = "ETH/EUR"
	ETHBTC CurrencyPair = "ETH/BTC"
)

var knownPairs = []CurrencyPair{BTCUSD, BTCEUR, ETHUSD, ETHEUR, ETHBTC}

// ParseCurrencyPair accepts "BTC/USD", "btc-usd" and "BTCUSD" spellings.
func ParseCurrencyPair(raw string) (CurrencyPair, error) {
	norm := strings.ToUpper(strings.TrimSpace(raw))
	norm = strings.NewReplacer("/", "", "-", "", "_", "").Replace(norm)
	for _, p := range knownPairs {
		if strings.ReplaceAll(string(p), "/", "") == norm {
			return p, nil
		}
	}
	return "", fmt.Errorf("%w: unknown currency pair %q", ErrConfiguration, raw)
}

// Base returns the asset being priced, e.g. BTC.
func (p CurrencyPair) Base() string {
	base, _, _ := strings.Cut(string(p), "/")
	return base
}

// Quote returns the asset prices are denominated in, e.g. USD.
func (p CurrencyPair) Quote() string {
	_, quote, _ := strings.Cut(string(p), "/")
	return quote
}

func (p CurrencyPair) String() string { return string(p) }

// Quote is a value snapshot of an exchange's latest prices.
type Quote struct {
	Name      string
	Pair      CurrencyPair
	Ask       decimal.NullDecimal
	Bid       decimal.NullDecimal
	UpdatedAt time.Time
}

// HasPrices reports whether both sides were populated by a successful update.
func (q Quote) HasPrices() bool {
	return q.Ask.Valid && q.Bid.Valid
}

// Source is a polled exchange price feed.
type Source interface {
	Name() string
	CurrencyPair() CurrencyPair
	// UpdatePrices refreshes the latest ask/bid. Failures are reported as *FetchError.
	UpdatePrices(ctx context.Context) error
	// Quote returns the prices stored by the last successful update.
	Quote() Quote
}

// FetchError wraps a network or parse failure from a single exchange.
type FetchError struct {
	Exchange string
	Err      error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s prices: %v", e.Exchange, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// book holds the mutable quote shared by the concrete sources.
type book struct {
	name  string
	pair  CurrencyPair
	quote Quote
	now   func() time.Time
}

func newBook(name string, pair CurrencyPair) book {
	return book{
		name:  name,
		pair:  pair,
		quote: Quote{Name: name, Pair: pair},
		now:   time.Now,
	}
}

func (b *book) Name() string               { return b.name }
func (b *book) CurrencyPair() CurrencyPair { return b.pair }
func (b *book) Quote() Quote               { return b.quote }

func (b *book) set(ask, bid decimal.Decimal) {
	b.quote.Ask = decimal.NewNullDecimal(ask)
	b.quote.Bid = decimal.NewNullDecimal(bid)
	b.quote.UpdatedAt = b.now().UTC()
}

func (b *book) fail(err error) error {
	return &FetchError{Exchange: b.name, Err: err}
}
