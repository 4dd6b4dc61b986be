package alerting

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"spreadwatch/internal/spread"
)

// Alerter is the cycle action that notifies when a spread reaches the threshold.
// Each buy/sell direction is silenced for the cooldown after it fires.
type Alerter struct {
	notifier  Notifier
	threshold decimal.Decimal
	cooldown  time.Duration
	lastSent  map[string]time.Time
	logger    zerolog.Logger
}

// NewAlerter builds an alert action. thresholdPct is in percent.
func NewAlerter(notifier Notifier, thresholdPct float64, cooldown time.Duration, logger zerolog.Logger) *Alerter {
	return &Alerter{
		notifier:  notifier,
		threshold: decimal.NewFromFloat(thresholdPct),
		cooldown:  cooldown,
		lastSent:  make(map[string]time.Time),
		logger:    logger.With().Str("component", "alerter").Logger(),
	}
}

func (a *Alerter) Name() string { return "alert" }

// Run notifies for every spread at or above the threshold.
func (a *Alerter) Run(ctx context.Context, snap spread.Snapshot) error {
	for _, s := range snap.Spreads {
		pct := s.Percent()
		if !s.Profitable() || pct.LessThan(a.threshold) {
			continue
		}

		key := s.Buy.Name + "->" + s.Sell.Name
		if last, ok := a.lastSent[key]; ok && snap.Time.Sub(last) < a.cooldown {
			a.logger.Debug().Str("direction", key).Msg("alert suppressed by cooldown")
			continue
		}

		note := Notification{
			Time:         snap.Time,
			CycleID:      snap.ID.String(),
			CurrencyPair: s.Pair.String(),
			BuyExchange:  s.Buy.Name,
			SellExchange: s.Sell.Name,
			BuyPrice:     s.BuyPrice(),
			SellPrice:    s.SellPrice(),
			SpreadPct:    pct,
			ThresholdPct: a.threshold,
		}
		if err := a.notifier.Notify(ctx, note); err != nil {
			return fmt.Errorf("notify %s: %w", key, err)
		}
		a.lastSent[key] = snap.Time
	}
	return nil
}
