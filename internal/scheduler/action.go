package scheduler

import (
	"context"

	"github.com/rs/zerolog"

	"spreadwatch/internal/spread"
)

// Action consumes the snapshot produced by every cycle.
type Action interface {
	Name() string
	Run(ctx context.Context, snap spread.Snapshot) error
}

// ActionFunc adapts a function to Action.
type ActionFunc struct {
	ActionName string
	Fn         func(ctx context.Context, snap spread.Snapshot) error
}

func (f ActionFunc) Name() string { return f.ActionName }

func (f ActionFunc) Run(ctx context.Context, snap spread.Snapshot) error {
	return f.Fn(ctx, snap)
}

// BestEffort logs failures of the wrapped action instead of ending the run.
type BestEffort struct {
	Action
	logger zerolog.Logger
}

// NewBestEffort wraps action.
func NewBestEffort(action Action, logger zerolog.Logger) *BestEffort {
	return &BestEffort{
		Action: action,
		logger: logger.With().Str("component", "action").Str("action", action.Name()).Logger(),
	}
}

func (b *BestEffort) Run(ctx context.Context, snap spread.Snapshot) error {
	if err := b.Action.Run(ctx, snap); err != nil {
		b.logger.Error().Err(err).Str("cycle_id", snap.ID.String()).Msg("action failed")
	}
	return nil
}

// LogAction writes one log line per spread.
type LogAction struct {
	logger zerolog.Logger
}

// NewLogAction constructs the logging action.
func NewLogAction(logger zerolog.Logger) *LogAction {
	return &LogAction{logger: logger.With().Str("component", "spreads").Logger()}
}

func (l *LogAction) Name() string { return "log" }

func (l *LogAction) Run(ctx context.Context, snap spread.Snapshot) error {
	for _, s := range snap.Spreads {
		l.logger.Info().
			Str("cycle_id", snap.ID.String()).
			Time("time", snap.Time).
			Str("buy_exchange", s.Buy.Name).
			Str("sell_exchange", s.Sell.Name).
			Str("buy_price", s.BuyPrice().String()).
			Str("sell_price", s.SellPrice().String()).
			Str("spread_pct", s.Percent().StringFixed(4)).
			Bool("profitable", s.Profitable()).
			Msg("spread")
	}
	return nil
}

var (
	_ Action = ActionFunc{}
	_ Action = (*BestEffort)(nil)
	_ Action = (*LogAction)(nil)
)
