package history

import (
	"context"

	"spreadwatch/internal/spread"
)

var (
	// PriceHeader is the first line of the price history file.
	PriceHeader = []string{"name", "time_pretty", "ask_price", "bid_price", "currency_pair", "timestamp"}
	// SpreadHeader is the first line of the spread history file.
	SpreadHeader = []string{"buy_exchange", "sell_exchange", "spread", "time_pretty", "buy_price", "sell_price", "currency_pair", "timestamp"}
)

// PriceLog records every exchange quote of a cycle.
type PriceLog struct {
	w *Writer
}

// NewPriceLog returns the price history action writing to path.
func NewPriceLog(path string) *PriceLog {
	return &PriceLog{w: NewWriter(path, PriceHeader)}
}

func (p *PriceLog) Name() string { return "price_history" }

// Run appends one row per quote.
func (p *PriceLog) Run(ctx context.Context, snap spread.Snapshot) error {
	pretty := formatPretty(snap.Time)
	ts := formatTimestamp(snap.Timestamp())

	rows := make([][]string, 0, len(snap.Quotes))
	for _, q := range snap.Quotes {
		rows = append(rows, []string{
			q.Name,
			pretty,
			q.Ask.Decimal.String(),
			q.Bid.Decimal.String(),
			q.Pair.String(),
			ts,
		})
	}
	if len(rows) == 0 {
		return nil
	}
	return p.w.WriteAll(rows)
}

// SpreadLog records every spread of a cycle.
type SpreadLog struct {
	w *Writer
}

// NewSpreadLog returns the spread history action writing to path.
func NewSpreadLog(path string) *SpreadLog {
	return &SpreadLog{w: NewWriter(path, SpreadHeader)}
}

func (s *SpreadLog) Name() string { return "spread_history" }

// Run appends one row per spread.
func (s *SpreadLog) Run(ctx context.Context, snap spread.Snapshot) error {
	pretty := formatPretty(snap.Time)
	ts := formatTimestamp(snap.Timestamp())

	rows := make([][]string, 0, len(snap.Spreads))
	for _, sp := range snap.Spreads {
		rows = append(rows, []string{
			sp.Buy.Name,
			sp.Sell.Name,
			sp.Ratio.String(),
			pretty,
			sp.BuyPrice().String(),
			sp.SellPrice().String(),
			sp.Pair.String(),
			ts,
		})
	}
	if len(rows) == 0 {
		return nil
	}
	return s.w.WriteAll(rows)
}
