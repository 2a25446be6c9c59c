// Package broker wraps the Kafka client used by every pipeline service.
// Producers hash-partition by message key so per-SKU ordering holds
// end-to-end; consumers use explicit fetch/commit so failed messages are
// redelivered.
package broker

import (
	"context"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Producer publishes messages to a single topic.
type Producer struct {
	writer *kafka.Writer
	topic  string
	logger *zap.Logger
}

// ProducerConfig holds producer configuration.
type ProducerConfig struct {
	Brokers []string
	Topic   string
	// MaxAttempts bounds delivery retries. After exhaustion the error is
	// returned to the caller, which treats the pipeline as broken.
	MaxAttempts int
	Logger      *zap.Logger
}

// NewProducer creates a producer for the given topic.
func NewProducer(cfg *ProducerConfig) *Producer {
	maxAttempts := cfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 3
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		MaxAttempts:  maxAttempts,
		BatchTimeout: 10 * time.Millisecond,
	}

	return &Producer{
		writer: writer,
		topic:  cfg.Topic,
		logger: cfg.Logger,
	}
}

// Publish sends one message. An empty key is allowed (DLQ records need no
// partition affinity); otherwise messages with equal keys land on the same
// partition.
func (p *Producer) Publish(ctx context.Context, key []byte, value []byte) error {
	start := time.Now()

	err := p.writer.WriteMessages(ctx, kafka.Message{
		Key:   key,
		Value: value,
	})

	PublishDurationSeconds.WithLabelValues(p.topic).Observe(time.Since(start).Seconds())

	if err != nil {
		PublishErrorsTotal.WithLabelValues(p.topic).Inc()
		return fmt.Errorf("publish to %s: %w", p.topic, err)
	}

	MessagesPublishedTotal.WithLabelValues(p.topic).Inc()
	p.logger.Debug("message-published",
		zap.String("topic", p.topic),
		zap.ByteString("key", key),
		zap.Int("bytes", len(value)))

	return nil
}

// Close flushes pending batches and closes the writer.
func (p *Producer) Close() error {
	p.logger.Info("producer-closing", zap.String("topic", p.topic))
	return p.writer.Close()
}
