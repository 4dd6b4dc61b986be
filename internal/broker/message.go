// Package broker publishes cycle results to Kafka and Redis.
package broker

import (
	"time"

	"spreadwatch/internal/spread"
)

// SpreadMessage is the JSON form of a spread shared by the publishers.
type SpreadMessage struct {
	CycleID      string    `json:"cycle_id"`
	Time         time.Time `json:"time"`
	Timestamp    float64   `json:"timestamp"`
	CurrencyPair string    `json:"currency_pair"`
	BuyExchange  string    `json:"buy_exchange"`
	SellExchange string    `json:"sell_exchange"`
	BuyPrice     string    `json:"buy_price"`
	SellPrice    string    `json:"sell_price"`
	Spread       string    `json:"spread"`
	Profitable   bool      `json:"profitable"`
}

// QuoteMessage is the JSON form of an exchange quote.
type QuoteMessage struct {
	Exchange     string `json:"exchange"`
	CurrencyPair string `json:"currency_pair"`
	AskPrice     string `json:"ask_price"`
	BidPrice     string `json:"bid_price"`
}

// SnapshotMessage is the JSON form of a whole cycle.
type SnapshotMessage struct {
	CycleID   string          `json:"cycle_id"`
	Time      time.Time       `json:"time"`
	Timestamp float64         `json:"timestamp"`
	Quotes    []QuoteMessage  `json:"quotes"`
	Spreads   []SpreadMessage `json:"spreads"`
}

func newSpreadMessages(snap spread.Snapshot) []SpreadMessage {
	out := make([]SpreadMessage, 0, len(snap.Spreads))
	for _, s := range snap.Spreads {
		out = append(out, SpreadMessage{
			CycleID:      snap.ID.String(),
			Time:         snap.Time,
			Timestamp:    snap.Timestamp(),
			CurrencyPair: s.Pair.String(),
			BuyExchange:  s.Buy.Name,
			SellExchange: s.Sell.Name,
			BuyPrice:     s.BuyPrice().String(),
			SellPrice:    s.SellPrice().String(),
			Spread:       s.Ratio.String(),
			Profitable:   s.Profitable(),
		})
	}
	return out
}

func newSnapshotMessage(snap spread.Snapshot) SnapshotMessage {
	quotes := make([]QuoteMessage, 0, len(snap.Quotes))
	for _, q := range snap.Quotes {
		quotes = append(quotes, QuoteMessage{
			Exchange:     q.Name,
			CurrencyPair: q.Pair.String(),
			AskPrice:     q.Ask.Decimal.String(),
			BidPrice:     q.Bid.Decimal.String(),
		})
	}
	return SnapshotMessage{
		CycleID:   snap.ID.String(),
		Time:      snap.Time,
		Timestamp: snap.Timestamp(),
		Quotes:    quotes,
		Spreads:   newSpreadMessages(snap),
	}
}
