package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"spreadwatch/internal/spread"
)

type fakeStore struct {
	inserted []spread.Snapshot
	cutoffs  []time.Time
	err      error
}

func (f *fakeStore) InsertSnapshot(ctx context.Context, snap spread.Snapshot) error {
	if f.err != nil {
		return f.err
	}
	f.inserted = append(f.inserted, snap)
	return nil
}

func (f *fakeStore) DeleteSamplesBefore(ctx context.Context, olderThan time.Time) error {
	f.cutoffs = append(f.cutoffs, olderThan)
	return nil
}

func TestRecorderInsertsAndPrunes(t *testing.T) {
	store := &fakeStore{}
	rec := NewRecorder(store, 24*time.Hour, zerolog.Nop())

	base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 4; i++ {
		snap := spread.Snapshot{ID: uuid.New(), Time: base.Add(time.Duration(i) * 30 * time.Minute)}
		if err := rec.Run(context.Background(), snap); err != nil {
			t.Fatalf("run %d: %v", i, err)
		}
	}

	if len(store.inserted) != 4 {
		t.Fatalf("expected 4 inserts, got %d", len(store.inserted))
	}
	// prunes at 00:00 and again once an hour has passed at 01:00
	if len(store.cutoffs) != 2 {
		t.Fatalf("expected 2 prunes, got %d", len(store.cutoffs))
	}
	if !store.cutoffs[0].Equal(base.Add(-24 * time.Hour)) {
		t.Fatalf("unexpected cutoff %s", store.cutoffs[0])
	}
}

func TestRecorderWithoutRetention(t *testing.T) {
	store := &fakeStore{}
	rec := NewRecorder(store, 0, zerolog.Nop())
	if err := rec.Run(context.Background(), spread.Snapshot{ID: uuid.New(), Time: time.Now()}); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(store.cutoffs) != 0 {
		t.Fatal("no pruning expected without retention")
	}
}

func TestRecorderPropagatesInsertError(t *testing.T) {
	boom := errors.New("connection refused")
	rec := NewRecorder(&fakeStore{err: boom}, 0, zerolog.Nop())
	if err := rec.Run(context.Background(), spread.Snapshot{}); !errors.Is(err, boom) {
		t.Fatalf("expected insert error, got %v", err)
	}
}

func TestNilStoreNotConfigured(t *testing.T) {
	var s *Store
	if _, err := s.ListRecentSpreads(context.Background(), 5); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}
