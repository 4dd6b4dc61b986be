package storage

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"spreadwatch/internal/spread"
)

const pruneEvery = time.Hour

// RecorderStore is what the Recorder needs from persistence.
type RecorderStore interface {
	SnapshotStore
	DeleteSamplesBefore(ctx context.Context, olderThan time.Time) error
}

// Recorder is the cycle action that persists snapshots to PostgreSQL. With a
// positive retention it prunes older samples at most once an hour.
type Recorder struct {
	store     RecorderStore
	retention time.Duration
	lastPrune time.Time
	logger    zerolog.Logger
}

// NewRecorder wraps store as an action.
func NewRecorder(store RecorderStore, retention time.Duration, logger zerolog.Logger) *Recorder {
	return &Recorder{
		store:     store,
		retention: retention,
		logger:    logger.With().Str("component", "recorder").Logger(),
	}
}

func (r *Recorder) Name() string { return "database" }

// Run inserts the snapshot and applies retention.
func (r *Recorder) Run(ctx context.Context, snap spread.Snapshot) error {
	if err := r.store.InsertSnapshot(ctx, snap); err != nil {
		return err
	}
	r.logger.Debug().
		Str("cycle_id", snap.ID.String()).
		Int("quotes", len(snap.Quotes)).
		Int("spreads", len(snap.Spreads)).
		Msg("snapshot recorded")

	if r.retention <= 0 || snap.Time.Sub(r.lastPrune) < pruneEvery {
		return nil
	}
	cutoff := snap.Time.Add(-r.retention)
	if err := r.store.DeleteSamplesBefore(ctx, cutoff); err != nil {
		return err
	}
	r.lastPrune = snap.Time
	r.logger.Info().Time("cutoff", cutoff).Msg("pruned old samples")
	return nil
}
