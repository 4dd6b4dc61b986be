package spread

import (
	"time"

	"github.com/google/uuid"

	"spreadwatch/internal/exchange"
)

// Snapshot is everything one update cycle produced. All records derived from it
// share Time.
type Snapshot struct {
	ID      uuid.UUID
	Time    time.Time
	Pair    exchange.CurrencyPair
	Quotes  []exchange.Quote
	Spreads []Spread
}

// Timestamp returns Time as fractional Unix seconds.
func (s Snapshot) Timestamp() float64 {
	return float64(s.Time.UnixMicro()) / 1e6
}
