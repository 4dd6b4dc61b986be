package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	redis "github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"

	"spreadwatch/internal/spread"
)

// RedisOptions parameterise the Redis publisher.
type RedisOptions struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
	Channel   string
	TTL       time.Duration
}

// Redis keeps the latest quote and spread per exchange in hashes and publishes
// every snapshot on a channel.
type Redis struct {
	client redis.UniversalClient
	opts   RedisOptions
	logger zerolog.Logger
}

// NewRedis connects lazily to addr.
func NewRedis(opts RedisOptions, logger zerolog.Logger) *Redis {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	return newRedis(client, opts, logger)
}

func newRedis(client redis.UniversalClient, opts RedisOptions, logger zerolog.Logger) *Redis {
	if opts.KeyPrefix == "" {
		opts.KeyPrefix = "spreadwatch"
	}
	return &Redis{
		client: client,
		opts:   opts,
		logger: logger.With().Str("component", "redis").Logger(),
	}
}

func (r *Redis) Name() string { return "redis" }

// PriceKey is the hash holding an exchange's latest quote.
func (r *Redis) PriceKey(pair, exchange string) string {
	return fmt.Sprintf("%s:price:%s:%s", r.opts.KeyPrefix, pair, exchange)
}

// SpreadKey is the hash holding the latest spread for a buy/sell direction.
func (r *Redis) SpreadKey(pair, buy, sell string) string {
	return fmt.Sprintf("%s:spread:%s:%s:%s", r.opts.KeyPrefix, pair, buy, sell)
}

// Run writes the snapshot through one pipeline.
func (r *Redis) Run(ctx context.Context, snap spread.Snapshot) error {
	msg := newSnapshotMessage(snap)
	ts := fmt.Sprintf("%.6f", msg.Timestamp)

	pipe := r.client.Pipeline()
	for _, q := range msg.Quotes {
		key := r.PriceKey(q.CurrencyPair, q.Exchange)
		pipe.HSet(ctx, key,
			"ask_price", q.AskPrice,
			"bid_price", q.BidPrice,
			"timestamp", ts,
			"cycle_id", msg.CycleID,
		)
		if r.opts.TTL > 0 {
			pipe.Expire(ctx, key, r.opts.TTL)
		}
	}
	for _, s := range msg.Spreads {
		key := r.SpreadKey(s.CurrencyPair, s.BuyExchange, s.SellExchange)
		pipe.HSet(ctx, key,
			"spread", s.Spread,
			"buy_price", s.BuyPrice,
			"sell_price", s.SellPrice,
			"timestamp", ts,
			"cycle_id", msg.CycleID,
		)
		if r.opts.TTL > 0 {
			pipe.Expire(ctx, key, r.opts.TTL)
		}
	}
	if r.opts.Channel != "" {
		body, err := json.Marshal(msg)
		if err != nil {
			return fmt.Errorf("marshal snapshot message: %w", err)
		}
		pipe.Publish(ctx, r.opts.Channel, body)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis pipeline: %w", err)
	}
	r.logger.Debug().Str("cycle_id", msg.CycleID).Msg("snapshot published")
	return nil
}

// Close releases the client connection pool.
func (r *Redis) Close() error {
	return r.client.Close()
}
