// Package scraper implements the competitor price ingestion service: a
// bounded-concurrency dispatcher over pluggable per-competitor fetchers,
// the HTTP surface that triggers scrapes, and the RawPrice publisher that
// feeds the rules pipeline.
package scraper

import (
	"context"
	"sync"
	"time"

	"github.com/skuwise/pricing-pipeline/internal/circuitbreaker"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// CompetitorPrice is one observed price for a SKU at one competitor.
type CompetitorPrice struct {
	ProductSKU   string    `json:"product_sku"`
	CompetitorID string    `json:"competitor_id"`
	Price        float64   `json:"price"`
	Timestamp    time.Time `json:"timestamp"`
	Availability bool      `json:"availability"`
	SourceURL    string    `json:"source_url,omitempty"`
}

// Competitor is one entry in the static registry.
type Competitor struct {
	ID        string
	URL       string
	AuthToken string
}

// FetchFunc retrieves one (sku, competitor) observation. Implementations
// must honor the context deadline; errors are swallowed by the dispatcher
// and surface only as an absent observation.
type FetchFunc func(ctx context.Context, sku string, competitor Competitor) (*CompetitorPrice, error)

// Fetcher fans scrape requests out across the competitor registry. One
// global semaphore caps total in-flight fetches regardless of batch width.
type Fetcher struct {
	registry []Competitor
	byID     map[string]Competitor
	fetch    FetchFunc
	breaker  *circuitbreaker.Breaker
	sem      chan struct{}
	timeout  time.Duration
	logger   *zap.Logger
}

// FetcherConfig holds fetcher configuration.
type FetcherConfig struct {
	Registry      []Competitor
	Fetch         FetchFunc
	MaxConcurrent int
	FetchTimeout  time.Duration
	Logger        *zap.Logger
}

// NewFetcher creates a fetcher over the given registry. A per-competitor
// circuit breaker sheds load from competitors that keep failing.
func NewFetcher(cfg *FetcherConfig) *Fetcher {
	byID := make(map[string]Competitor, len(cfg.Registry))
	for _, c := range cfg.Registry {
		byID[c.ID] = c
	}

	return &Fetcher{
		registry: cfg.Registry,
		byID:     byID,
		fetch:    cfg.Fetch,
		breaker:  circuitbreaker.New(&circuitbreaker.Config{Logger: cfg.Logger}),
		sem:      make(chan struct{}, cfg.MaxConcurrent),
		timeout:  cfg.FetchTimeout,
		logger:   cfg.Logger,
	}
}

// Competitors lists the registry's competitor ids in registration order.
func (f *Fetcher) Competitors() []string {
	ids := make([]string, 0, len(f.registry))
	for _, c := range f.registry {
		ids = append(ids, c.ID)
	}
	return ids
}

// Scrape fetches the SKU's price from each requested competitor in
// parallel. Nil competitorIDs means the whole registry; unknown ids are
// silently skipped. Failed fetches are logged and omitted from the result.
func (f *Fetcher) Scrape(ctx context.Context, sku string, competitorIDs []string) []CompetitorPrice {
	if competitorIDs == nil {
		competitorIDs = f.Competitors()
	}

	var (
		mu      sync.Mutex
		results []CompetitorPrice
	)

	g, gctx := errgroup.WithContext(ctx)

	for _, id := range competitorIDs {
		competitor, known := f.byID[id]
		if !known {
			continue
		}

		g.Go(func() error {
			price, ok := f.fetchOne(gctx, sku, competitor)
			if !ok {
				return nil
			}

			mu.Lock()
			results = append(results, *price)
			mu.Unlock()
			return nil
		})
	}

	// Individual fetch failures never propagate.
	_ = g.Wait()

	return results
}

// ScrapeBatch fans out across SKUs with full parallelism; only the global
// semaphore bounds total outstanding fetches. SKUs that yielded nothing are
// absent from the map.
func (f *Fetcher) ScrapeBatch(ctx context.Context, skus []string, competitorIDs []string) map[string][]CompetitorPrice {
	var (
		mu      sync.Mutex
		results = make(map[string][]CompetitorPrice, len(skus))
	)

	g, gctx := errgroup.WithContext(ctx)

	for _, sku := range skus {
		g.Go(func() error {
			prices := f.Scrape(gctx, sku, competitorIDs)
			if len(prices) == 0 {
				return nil
			}

			mu.Lock()
			results[sku] = prices
			mu.Unlock()
			return nil
		})
	}

	_ = g.Wait()

	return results
}

// fetchOne acquires the global semaphore, applies the per-request timeout
// and runs the fetch. Any failure resolves to (nil, false).
func (f *Fetcher) fetchOne(ctx context.Context, sku string, competitor Competitor) (*CompetitorPrice, bool) {
	if !f.breaker.Allow(competitor.ID) {
		FetchesTotal.WithLabelValues(competitor.ID, "shed").Inc()
		return nil, false
	}

	select {
	case f.sem <- struct{}{}:
		defer func() { <-f.sem }()
	case <-ctx.Done():
		return nil, false
	}

	InFlightFetches.Inc()
	defer InFlightFetches.Dec()

	fetchCtx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	start := time.Now()
	price, err := f.fetch(fetchCtx, sku, competitor)
	FetchDurationSeconds.Observe(time.Since(start).Seconds())

	if err != nil {
		f.breaker.Failure(competitor.ID)
		FetchesTotal.WithLabelValues(competitor.ID, "error").Inc()
		f.logger.Warn("competitor-fetch-failed",
			zap.String("sku", sku),
			zap.String("competitor", competitor.ID),
			zap.Error(err))
		return nil, false
	}

	f.breaker.Success(competitor.ID)
	FetchesTotal.WithLabelValues(competitor.ID, "ok").Inc()

	return price, true
}
