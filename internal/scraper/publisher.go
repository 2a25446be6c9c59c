package scraper

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/skuwise/pricing-pipeline/pkg/event"
	"go.uber.org/zap"
)

// Producer is the broker surface the publisher needs.
type Producer interface {
	Publish(ctx context.Context, key []byte, value []byte) error
}

// Publisher turns scrape results into raw price events on the ingestion
// topic, keyed by SKU so every observation for a product lands on the same
// partition.
type Publisher struct {
	producer Producer
	logger   *zap.Logger
}

// NewPublisher creates a raw price publisher.
func NewPublisher(producer Producer, logger *zap.Logger) *Publisher {
	return &Publisher{
		producer: producer,
		logger:   logger,
	}
}

// PublishRawPrices emits one raw price event for the SKU. Only in-stock
// observations contribute prices; a scrape where every competitor was out
// of stock still publishes, with an empty price list, so the rules engine
// can fall back to its default anchor.
func (p *Publisher) PublishRawPrices(ctx context.Context, sku string, observed []CompetitorPrice) error {
	prices := make([]float64, 0, len(observed))
	for _, o := range observed {
		if o.Availability {
			prices = append(prices, o.Price)
		}
	}

	env, err := event.New(event.TypeRawPrices, map[string]interface{}{
		"sku":               sku,
		"competitor_prices": prices,
	})
	if err != nil {
		return fmt.Errorf("build raw price event: %w", err)
	}
	env.Metadata["request_id"] = uuid.NewString()
	env.Metadata["source"] = "scraper"

	value, err := env.Marshal()
	if err != nil {
		return fmt.Errorf("marshal raw price event: %w", err)
	}

	err = p.producer.Publish(ctx, []byte(sku), value)
	if err != nil {
		return err
	}

	RawPricesPublishedTotal.Inc()
	p.logger.Info("raw-prices-published",
		zap.String("sku", sku),
		zap.Int("observations", len(observed)),
		zap.Int("prices", len(prices)))

	return nil
}
