package broker

import (
	"context"
	"fmt"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Consumer reads messages from a topic as part of a consumer group. Fetch
// and Commit are separate so a worker can decline to commit a message it
// failed to persist, leaving it for redelivery.
type Consumer struct {
	reader *kafka.Reader
	topic  string
	logger *zap.Logger
}

// ConsumerConfig holds consumer configuration.
type ConsumerConfig struct {
	Brokers []string
	Topic   string
	GroupID string
	Logger  *zap.Logger
}

// NewConsumer creates a group consumer for the given topic.
func NewConsumer(cfg *ConsumerConfig) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     cfg.Brokers,
		Topic:       cfg.Topic,
		GroupID:     cfg.GroupID,
		StartOffset: kafka.FirstOffset,
		MinBytes:    1,
		MaxBytes:    10e6,
	})

	return &Consumer{
		reader: reader,
		topic:  cfg.Topic,
		logger: cfg.Logger,
	}
}

// Fetch blocks until a message is available or the context is cancelled.
// The message is not considered processed until Commit is called.
func (c *Consumer) Fetch(ctx context.Context) (kafka.Message, error) {
	msg, err := c.reader.FetchMessage(ctx)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("fetch from %s: %w", c.topic, err)
	}

	MessagesConsumedTotal.WithLabelValues(c.topic).Inc()
	c.logger.Debug("message-fetched",
		zap.String("topic", c.topic),
		zap.Int("partition", msg.Partition),
		zap.Int64("offset", msg.Offset))

	return msg, nil
}

// Commit acknowledges a message, marking it consumed for the group.
func (c *Consumer) Commit(ctx context.Context, msg kafka.Message) error {
	err := c.reader.CommitMessages(ctx, msg)
	if err != nil {
		CommitErrorsTotal.WithLabelValues(c.topic).Inc()
		return fmt.Errorf("commit offset %d on %s: %w", msg.Offset, c.topic, err)
	}

	return nil
}

// Close closes the reader and leaves the consumer group.
func (c *Consumer) Close() error {
	c.logger.Info("consumer-closing", zap.String("topic", c.topic))
	return c.reader.Close()
}
