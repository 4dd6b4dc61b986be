package storage

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PriceSample is one exchange quote captured by a cycle.
type PriceSample struct {
	CycleID      uuid.UUID
	SampledAt    time.Time
	Exchange     string
	CurrencyPair string
	AskPrice     decimal.Decimal
	BidPrice     decimal.Decimal
}

// SpreadSample is one pairwise spread captured by a cycle.
type SpreadSample struct {
	ID           int64
	CycleID      uuid.UUID
	SampledAt    time.Time
	BuyExchange  string
	SellExchange string
	CurrencyPair string
	Spread       decimal.Decimal
	BuyPrice     decimal.Decimal
	SellPrice    decimal.Decimal
	CreatedAt    time.Time
}
