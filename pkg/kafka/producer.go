package kafka

import (
	"context"
	"encoding/json"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/segmentio/kafka-go"

	"github.com/Ramsey-B/clover/pkg/metrics"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

// Producer handles Kafka event emission
type Producer struct {
	writer *kafka.Writer
	logger ectologger.Logger
	topic  string
}

// ProducerConfig holds Kafka producer configuration
type ProducerConfig struct {
	Brokers      []string
	Topic        string
	BatchSize    int
	BatchTimeout time.Duration
	RequiredAcks int
	Compression  string
}

// NewProducer creates a new Kafka producer
func NewProducer(cfg ProducerConfig, logger ectologger.Logger) *Producer {
	compression := kafka.Snappy
	switch cfg.Compression {
	case "gzip":
		compression = kafka.Gzip
	case "lz4":
		compression = kafka.Lz4
	case "zstd":
		compression = kafka.Zstd
	case "none":
		compression = 0
	}

	writer := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Balancer:               &kafka.LeastBytes{},
		BatchSize:              cfg.BatchSize,
		BatchTimeout:           cfg.BatchTimeout,
		RequiredAcks:           kafka.RequiredAcks(cfg.RequiredAcks),
		Compression:            compression,
		AllowAutoTopicCreation: true,
	}

	return &Producer{
		writer: writer,
		logger: logger,
		topic:  cfg.Topic,
	}
}

// Close closes the producer
func (p *Producer) Close() error {
	return p.writer.Close()
}

// CrossedPathEvent is an event about a pair crossing or unlocking. The
// platform notifier consumes these to deliver pushes to both users.
type CrossedPathEvent struct {
	EventType       string     `json:"event_type"` // crossed, unlocked
	PairID          string     `json:"pair_id"`
	UserAID         string     `json:"user_a_id"`
	UserBID         string     `json:"user_b_id"`
	Count           int        `json:"count"`
	UnlockExpiresAt *time.Time `json:"unlock_expires_at,omitempty"`
	Timestamp       time.Time  `json:"timestamp"`
}

// PublishCrossedPathEvent publishes a crossing event to Kafka
func (p *Producer) PublishCrossedPathEvent(ctx context.Context, event *CrossedPathEvent) error {
	ctx, span := tracing.StartSpan(ctx, "kafka.Producer.PublishCrossedPathEvent")
	defer span.End()

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	msg := kafka.Message{
		Topic: p.topic,
		Key:   []byte(event.PairID),
		Value: data,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.EventType)},
		},
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		metrics.KafkaMessagesPublished.WithLabelValues(p.topic, "error").Inc()
		p.logger.WithContext(ctx).WithError(err).Error("Failed to publish crossed path event")
		return err
	}

	metrics.KafkaMessagesPublished.WithLabelValues(p.topic, "ok").Inc()

	p.logger.WithContext(ctx).WithFields(map[string]any{
		"event_type": event.EventType,
		"pair_id":    event.PairID,
	}).Debug("Published crossed path event")

	return nil
}
