package exchange

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
)

// Tolerant keeps the previous quote when the wrapped source fails to refresh.
// The error is logged instead of aborting the cycle.
type Tolerant struct {
	Source
	logger zerolog.Logger
}

// NewTolerant wraps src.
func NewTolerant(src Source, logger zerolog.Logger) *Tolerant {
	return &Tolerant{
		Source: src,
		logger: logger.With().Str("component", "exchange").Str("exchange", src.Name()).Logger(),
	}
}

func (t *Tolerant) UpdatePrices(ctx context.Context) error {
	err := t.Source.UpdatePrices(ctx)
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	q := t.Source.Quote()
	t.logger.Warn().Err(err).Bool("stale", q.HasPrices()).Msg("price refresh failed; keeping last quote")
	return nil
}

var _ Source = (*Tolerant)(nil)
