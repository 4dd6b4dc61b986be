package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"spreadwatch/internal/spread"
)

var (
	// ErrNotConfigured indicates the storage pool was not initialised.
	ErrNotConfigured = errors.New("storage: pool not configured")
	// ErrLockHeld means another instance owns the advisory lock.
	ErrLockHeld = errors.New("storage: advisory lock held by another instance")
)

const (
	schemaSQL = `
CREATE TABLE IF NOT EXISTS price_samples (
    cycle_id      UUID        NOT NULL,
    sampled_at    TIMESTAMPTZ NOT NULL,
    exchange      TEXT        NOT NULL,
    currency_pair TEXT        NOT NULL,
    ask_price     NUMERIC     NOT NULL,
    bid_price     NUMERIC     NOT NULL,
    PRIMARY KEY (cycle_id, exchange)
);
CREATE TABLE IF NOT EXISTS spread_samples (
    id            BIGSERIAL   PRIMARY KEY,
    cycle_id      UUID        NOT NULL,
    sampled_at    TIMESTAMPTZ NOT NULL,
    buy_exchange  TEXT        NOT NULL,
    sell_exchange TEXT        NOT NULL,
    currency_pair TEXT        NOT NULL,
    spread        NUMERIC     NOT NULL,
    buy_price     NUMERIC     NOT NULL,
    sell_price    NUMERIC     NOT NULL,
    created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS spread_samples_sampled_at_idx ON spread_samples (sampled_at);`

	insertPriceSampleSQL = `INSERT INTO price_samples (
        cycle_id, sampled_at, exchange, currency_pair, ask_price, bid_price
    ) VALUES ($1,$2,$3,$4,$5,$6)
    ON CONFLICT (cycle_id, exchange) DO NOTHING;`

	insertSpreadSampleSQL = `INSERT INTO spread_samples (
        cycle_id, sampled_at, buy_exchange, sell_exchange, currency_pair, spread, buy_price, sell_price
    ) VALUES ($1,$2,$3,$4,$5,$6,$7,$8);`

	spreadColumns = `id, cycle_id, sampled_at, buy_exchange, sell_exchange, currency_pair,
        spread::text, buy_price::text, sell_price::text, created_at`

	listRecentSpreadsSQL = `SELECT ` + spreadColumns + `
    FROM spread_samples
    ORDER BY sampled_at DESC, id DESC
    LIMIT $1;`

	listSpreadsBetweenSQL = `SELECT ` + spreadColumns + `
    FROM spread_samples
    WHERE sampled_at >= $1
      AND sampled_at < $2
    ORDER BY sampled_at, id;`

	deleteSpreadsBeforeSQL = `DELETE FROM spread_samples WHERE sampled_at < $1;`
	deletePricesBeforeSQL  = `DELETE FROM price_samples WHERE sampled_at < $1;`

	tryAdvisoryLockSQL = `SELECT pg_try_advisory_lock($1);`
	advisoryUnlockSQL  = `SELECT pg_advisory_unlock($1);`
)

// SnapshotStore persists cycle snapshots.
type SnapshotStore interface {
	InsertSnapshot(ctx context.Context, snap spread.Snapshot) error
}

// SpreadReader reads back recorded spreads.
type SpreadReader interface {
	ListRecentSpreads(ctx context.Context, limit int) ([]SpreadSample, error)
	ListSpreadsBetween(ctx context.Context, from, to time.Time) ([]SpreadSample, error)
}

// AdvisoryLocker exposes advisory lock helpers.
type AdvisoryLocker interface {
	TryAdvisoryLock(ctx context.Context, key int64) (unlock func(), acquired bool, err error)
}

// Store aggregates access to price and spread samples.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore wires a pgx pool into a Store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

func (s *Store) getPool() (*pgxpool.Pool, error) {
	if s == nil || s.pool == nil {
		return nil, ErrNotConfigured
	}
	return s.pool, nil
}

// EnsureSchema creates the sample tables when missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	if _, err := pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// TryAdvisoryLock attempts to acquire a postgres advisory lock and returns a release func.
// The lock lives on a dedicated connection held until unlock.
func (s *Store) TryAdvisoryLock(ctx context.Context, key int64) (func(), bool, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, false, err
	}

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("acquire connection: %w", err)
	}

	var acquired bool
	if err := conn.QueryRow(ctx, tryAdvisoryLockSQL, key).Scan(&acquired); err != nil {
		conn.Release()
		return nil, false, fmt.Errorf("try advisory lock: %w", err)
	}
	if !acquired {
		conn.Release()
		return nil, false, nil
	}

	unlock := func() {
		ctxUnlock, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_, _ = conn.Exec(ctxUnlock, advisoryUnlockSQL, key)
		conn.Release()
	}
	return unlock, true, nil
}

// InsertSnapshot writes every quote and spread of a cycle in one transaction.
func (s *Store) InsertSnapshot(ctx context.Context, snap spread.Snapshot) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	batch := &pgx.Batch{}
	for _, q := range snap.Quotes {
		batch.Queue(insertPriceSampleSQL,
			snap.ID,
			snap.Time,
			q.Name,
			q.Pair.String(),
			q.Ask.Decimal.String(),
			q.Bid.Decimal.String(),
		)
	}
	for _, sp := range snap.Spreads {
		batch.Queue(insertSpreadSampleSQL,
			snap.ID,
			snap.Time,
			sp.Buy.Name,
			sp.Sell.Name,
			sp.Pair.String(),
			sp.Ratio.String(),
			sp.BuyPrice().String(),
			sp.SellPrice().String(),
		)
	}
	if batch.Len() == 0 {
		return nil
	}

	err = pgx.BeginFunc(ctx, pool, func(tx pgx.Tx) error {
		return tx.SendBatch(ctx, batch).Close()
	})
	if err != nil {
		return fmt.Errorf("insert snapshot: %w", err)
	}
	return nil
}

// ListRecentSpreads lists the most recent spreads, newest first.
func (s *Store) ListRecentSpreads(ctx context.Context, limit int) ([]SpreadSample, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listRecentSpreadsSQL, limit)
	if queryErr != nil {
		return nil, fmt.Errorf("list recent spreads: %w", queryErr)
	}
	return collectSpreads(rows, limit)
}

// ListSpreadsBetween lists spreads sampled within [from, to).
func (s *Store) ListSpreadsBetween(ctx context.Context, from, to time.Time) ([]SpreadSample, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listSpreadsBetweenSQL, from, to)
	if queryErr != nil {
		return nil, fmt.Errorf("list spreads between: %w", queryErr)
	}
	return collectSpreads(rows, 0)
}

// DeleteSamplesBefore prunes samples older than the cutoff.
func (s *Store) DeleteSamplesBefore(ctx context.Context, olderThan time.Time) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	for _, stmt := range []string{deleteSpreadsBeforeSQL, deletePricesBeforeSQL} {
		if _, execErr := pool.Exec(ctx, stmt, olderThan); execErr != nil {
			return fmt.Errorf("delete samples before: %w", execErr)
		}
	}
	return nil
}

func collectSpreads(rows pgx.Rows, capacity int) ([]SpreadSample, error) {
	defer rows.Close()

	samples := make([]SpreadSample, 0, capacity)
	for rows.Next() {
		sample, scanErr := scanSpreadSample(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		samples = append(samples, sample)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return samples, nil
}

func scanSpreadSample(rows pgx.Rows) (SpreadSample, error) {
	var (
		sample                     SpreadSample
		spreadStr, buyStr, sellStr string
	)

	if err := rows.Scan(
		&sample.ID,
		&sample.CycleID,
		&sample.SampledAt,
		&sample.BuyExchange,
		&sample.SellExchange,
		&sample.CurrencyPair,
		&spreadStr,
		&buyStr,
		&sellStr,
		&sample.CreatedAt,
	); err != nil {
		return SpreadSample{}, err
	}

	var err error
	if sample.Spread, err = decimal.NewFromString(spreadStr); err != nil {
		return SpreadSample{}, fmt.Errorf("parse spread: %w", err)
	}
	if sample.BuyPrice, err = decimal.NewFromString(buyStr); err != nil {
		return SpreadSample{}, fmt.Errorf("parse buy price: %w", err)
	}
	if sample.SellPrice, err = decimal.NewFromString(sellStr); err != nil {
		return SpreadSample{}, fmt.Errorf("parse sell price: %w", err)
	}
	return sample, nil
}
