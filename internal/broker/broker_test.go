package broker

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"

	"spreadwatch/internal/exchange"
	"spreadwatch/internal/spread"
)

type fakeWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (f *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error {
	f.closed = true
	return nil
}

func quote(name, ask, bid string) exchange.Quote {
	return exchange.Quote{
		Name: name,
		Pair: exchange.BTCEUR,
		Ask:  decimal.NewNullDecimal(decimal.RequireFromString(ask)),
		Bid:  decimal.NewNullDecimal(decimal.RequireFromString(bid)),
	}
}

func testSnapshot(t *testing.T) spread.Snapshot {
	t.Helper()
	quotes := []exchange.Quote{quote("A", "100", "99"), quote("B", "98", "97"), quote("C", "99", "98.5")}
	spreads, err := spread.Pairwise(quotes)
	if err != nil {
		t.Fatalf("pairwise: %v", err)
	}
	return spread.Snapshot{
		ID:      uuid.New(),
		Time:    time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
		Pair:    exchange.BTCEUR,
		Quotes:  quotes,
		Spreads: spreads,
	}
}

func TestKafkaPublishesOneMessagePerSpread(t *testing.T) {
	w := &fakeWriter{}
	k := newKafka(w, "spreads", zerolog.Nop())
	snap := testSnapshot(t)

	if err := k.Run(context.Background(), snap); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(w.msgs) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(w.msgs))
	}

	first := w.msgs[0]
	if string(first.Key) != "B|A" {
		t.Fatalf("unexpected key %q", first.Key)
	}
	if !first.Time.Equal(snap.Time) {
		t.Fatalf("message time should be the cycle time, got %s", first.Time)
	}

	var payload SpreadMessage
	if err := json.Unmarshal(first.Value, &payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if payload.CycleID != snap.ID.String() || payload.BuyPrice != "98" || payload.SellPrice != "99" {
		t.Fatalf("unexpected payload %+v", payload)
	}
	for _, m := range w.msgs {
		var p SpreadMessage
		if err := json.Unmarshal(m.Value, &p); err != nil {
			t.Fatalf("decode payload: %v", err)
		}
		if p.Timestamp != snap.Timestamp() {
			t.Fatalf("all messages share the cycle timestamp, got %v", p.Timestamp)
		}
	}

	if err := k.Close(); err != nil || !w.closed {
		t.Fatal("close should close the writer")
	}
}

func TestKafkaWriteError(t *testing.T) {
	boom := errors.New("broker unavailable")
	k := newKafka(&fakeWriter{err: boom}, "spreads", zerolog.Nop())
	if err := k.Run(context.Background(), testSnapshot(t)); !errors.Is(err, boom) {
		t.Fatalf("expected write error, got %v", err)
	}
}

func TestKafkaSkipsEmptySnapshot(t *testing.T) {
	w := &fakeWriter{}
	k := newKafka(w, "spreads", zerolog.Nop())
	if err := k.Run(context.Background(), spread.Snapshot{ID: uuid.New(), Time: time.Now()}); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(w.msgs) != 0 {
		t.Fatal("no spreads means no messages")
	}
}

func TestRedisKeys(t *testing.T) {
	r := newRedis(nil, RedisOptions{}, zerolog.Nop())
	if got := r.PriceKey("BTC/EUR", "kraken"); got != "spreadwatch:price:BTC/EUR:kraken" {
		t.Fatalf("unexpected price key %q", got)
	}
	r = newRedis(nil, RedisOptions{KeyPrefix: "sw"}, zerolog.Nop())
	if got := r.SpreadKey("BTC/EUR", "kraken", "bitstamp"); got != "sw:spread:BTC/EUR:kraken:bitstamp" {
		t.Fatalf("unexpected spread key %q", got)
	}
}

func TestSnapshotMessage(t *testing.T) {
	snap := testSnapshot(t)
	msg := newSnapshotMessage(snap)
	if len(msg.Quotes) != 3 || len(msg.Spreads) != 3 {
		t.Fatalf("unexpected message sizes %d/%d", len(msg.Quotes), len(msg.Spreads))
	}
	if msg.Quotes[2].AskPrice != "99" || msg.Quotes[2].BidPrice != "98.5" {
		t.Fatalf("unexpected quote %+v", msg.Quotes[2])
	}
	if !msg.Spreads[0].Profitable {
		t.Fatal("B->A spread should be profitable")
	}
}
