package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"spreadwatch/internal/spread"
)

// KafkaOptions parameterise the Kafka publisher.
type KafkaOptions struct {
	Brokers      []string
	Topic        string
	BatchTimeout time.Duration
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Kafka publishes one JSON message per spread, keyed "buy|sell".
type Kafka struct {
	writer messageWriter
	topic  string
	logger zerolog.Logger
}

// NewKafka constructs the publisher around a kafka-go writer.
func NewKafka(opts KafkaOptions, logger zerolog.Logger) *Kafka {
	batchTimeout := opts.BatchTimeout
	if batchTimeout <= 0 {
		batchTimeout = 200 * time.Millisecond
	}
	dialer := &kafka.Dialer{
		Timeout:   10 * time.Second,
		DualStack: true,
	}
	w := kafka.NewWriter(kafka.WriterConfig{
		Brokers:      opts.Brokers,
		Topic:        opts.Topic,
		Balancer:     &kafka.LeastBytes{},
		Dialer:       dialer,
		BatchTimeout: batchTimeout,
		RequiredAcks: int(kafka.RequireOne),
	})
	return newKafka(w, opts.Topic, logger)
}

func newKafka(w messageWriter, topic string, logger zerolog.Logger) *Kafka {
	return &Kafka{
		writer: w,
		topic:  topic,
		logger: logger.With().Str("component", "kafka").Str("topic", topic).Logger(),
	}
}

// EnsureTopic attempts to create the topic. Errors are logged; the topic may already exist.
func EnsureTopic(ctx context.Context, broker, topic string, logger zerolog.Logger) {
	conn, err := kafka.DialContext(ctx, "tcp", broker)
	if err != nil {
		logger.Warn().Err(err).Str("broker", broker).Msg("ensure topic: dial failed")
		return
	}
	defer conn.Close()

	err = conn.CreateTopics(kafka.TopicConfig{
		Topic:             topic,
		NumPartitions:     1,
		ReplicationFactor: 1,
	})
	if err != nil {
		logger.Warn().Err(err).Str("topic", topic).Msg("ensure topic: create failed (ok if exists)")
	}
}

func (k *Kafka) Name() string { return "kafka" }

// Run writes the cycle's spreads as a single batch.
func (k *Kafka) Run(ctx context.Context, snap spread.Snapshot) error {
	payloads := newSpreadMessages(snap)
	if len(payloads) == 0 {
		return nil
	}

	msgs := make([]kafka.Message, 0, len(payloads))
	for _, p := range payloads {
		body, err := json.Marshal(p)
		if err != nil {
			return fmt.Errorf("marshal spread message: %w", err)
		}
		msgs = append(msgs, kafka.Message{
			Key:   []byte(p.BuyExchange + "|" + p.SellExchange),
			Value: body,
			Time:  snap.Time,
			Headers: []kafka.Header{
				{Key: "cycle_id", Value: []byte(p.CycleID)},
			},
		})
	}

	if err := k.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("write kafka messages: %w", err)
	}
	k.logger.Debug().Str("cycle_id", snap.ID.String()).Int("messages", len(msgs)).Msg("spreads published")
	return nil
}

// Close flushes and closes the writer.
func (k *Kafka) Close() error {
	return k.writer.Close()
}
