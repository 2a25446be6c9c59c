package pricing

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/skuwise/pricing-pipeline/pkg/cache"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Decision sources reported to clients.
const (
	SourceCache    = "cache"
	SourceFallback = "fallback"
)

// l1TTLCap bounds in-process staleness: L1 entries never outlive a fraction
// of the distributed tier's TTL, and never more than this cap.
const l1TTLCap = 5 * time.Second

// Backend is the distributed cache tier behind the in-process one.
type Backend interface {
	GetPrice(ctx context.Context, sku string) (Payload, error)
	SetPrice(ctx context.Context, sku string, payload Payload) error
	DeletePrice(ctx context.Context, sku string) error
	Clear(ctx context.Context) error
	Healthy() bool
}

// Service is the tiered price retrieval service: L1 in-process cache, L2
// redis, then the static fallback table. The read path never touches the
// broker and never returns an error for a plain miss.
type Service struct {
	l1       cache.Cache
	backend  Backend
	fallback map[string]float64
	l1TTL    time.Duration
	logger   *zap.Logger

	cacheHits    atomic.Uint64
	cacheMisses  atomic.Uint64
	fallbackUses atomic.Uint64
}

// ServiceConfig holds pricing service configuration.
type ServiceConfig struct {
	L1             cache.Cache
	Backend        Backend
	FallbackPrices map[string]float64
	BackendTTL     time.Duration
	Logger         *zap.Logger
}

// NewService creates the pricing read service.
func NewService(cfg *ServiceConfig) *Service {
	l1TTL := cfg.BackendTTL / 10
	if l1TTL > l1TTLCap || l1TTL <= 0 {
		l1TTL = l1TTLCap
	}

	return &Service{
		l1:       cfg.L1,
		backend:  cfg.Backend,
		fallback: cfg.FallbackPrices,
		l1TTL:    l1TTL,
		logger:   cfg.Logger,
	}
}

// GetPrice resolves a price for the SKU. Returns nil when no tier has an
// answer; the handler maps that to 404.
func (s *Service) GetPrice(ctx context.Context, sku string) Payload {
	if payload, ok := s.fromL1(sku); ok {
		s.cacheHits.Add(1)
		CacheHitsTotal.Inc()
		return s.withSource(payload, SourceCache)
	}

	if s.backend.Healthy() {
		payload, err := s.backend.GetPrice(ctx, sku)
		if err != nil {
			s.logger.Warn("cache-lookup-failed", zap.String("sku", sku), zap.Error(err))
		} else if payload != nil {
			s.cacheHits.Add(1)
			CacheHitsTotal.Inc()
			s.l1.Set(keyPrefix+sku, payload, s.l1TTL)
			return s.withSource(payload, SourceCache)
		}

		s.cacheMisses.Add(1)
		CacheMissesTotal.Inc()
	}

	if fallbackPrice, ok := s.fallback[sku]; ok {
		s.fallbackUses.Add(1)
		FallbackUsesTotal.Inc()
		s.logger.Warn("serving-fallback-price",
			zap.String("sku", sku),
			zap.Float64("price", fallbackPrice))

		return s.withSource(Payload{
			"sku":               sku,
			"recommended_price": fallbackPrice,
			"current_price":     fallbackPrice,
			"margin_pct":        0.20,
			"confidence":        0.3,
			"reason":            "Fallback pricing",
		}, SourceFallback)
	}

	return nil
}

// GetBatch resolves many SKUs concurrently. SKUs with no answer are absent
// from the result map.
func (s *Service) GetBatch(ctx context.Context, skus []string) map[string]Payload {
	var (
		mu      sync.Mutex
		results = make(map[string]Payload, len(skus))
	)

	g, gctx := errgroup.WithContext(ctx)

	for _, sku := range skus {
		g.Go(func() error {
			payload := s.GetPrice(gctx, sku)
			if payload == nil {
				return nil
			}

			mu.Lock()
			results[sku] = payload
			mu.Unlock()
			return nil
		})
	}

	// Lookups only report misses, never errors.
	_ = g.Wait()

	return results
}

// UpdatePrice writes a decision payload through both cache tiers.
func (s *Service) UpdatePrice(ctx context.Context, sku string, payload Payload) error {
	err := s.backend.SetPrice(ctx, sku, payload)
	if err != nil {
		return err
	}

	s.l1.Set(keyPrefix+sku, payload, s.l1TTL)
	return nil
}

// ClearCache empties both tiers.
func (s *Service) ClearCache(ctx context.Context) error {
	s.l1.Clear()
	return s.backend.Clear(ctx)
}

// Warm pre-loads the L1 tier from the backend for the given SKUs. Used at
// startup with the fallback table's SKUs.
func (s *Service) Warm(ctx context.Context, skus []string) {
	if !s.backend.Healthy() {
		return
	}

	warmed := 0
	for _, sku := range skus {
		payload, err := s.backend.GetPrice(ctx, sku)
		if err != nil || payload == nil {
			continue
		}
		s.l1.Set(keyPrefix+sku, payload, s.l1TTL)
		warmed++
	}

	s.logger.Info("cache-warmed", zap.Int("requested", len(skus)), zap.Int("loaded", warmed))
}

// FallbackSKUs lists the SKUs with a static fallback price.
func (s *Service) FallbackSKUs() []string {
	skus := make([]string, 0, len(s.fallback))
	for sku := range s.fallback {
		skus = append(skus, sku)
	}
	return skus
}

// Metrics is a point-in-time snapshot of the service counters.
type Metrics struct {
	CacheHits    uint64 `json:"cache_hits"`
	CacheMisses  uint64 `json:"cache_misses"`
	FallbackUses uint64 `json:"fallback_uses"`
}

// Snapshot returns the current counter values.
func (s *Service) Snapshot() Metrics {
	return Metrics{
		CacheHits:    s.cacheHits.Load(),
		CacheMisses:  s.cacheMisses.Load(),
		FallbackUses: s.fallbackUses.Load(),
	}
}

func (s *Service) fromL1(sku string) (Payload, bool) {
	value, found := s.l1.Get(keyPrefix + sku)
	if !found {
		return nil, false
	}

	payload, ok := value.(Payload)
	return payload, ok
}

// withSource copies the payload and attaches source and retrieved_at, so
// cached entries are never mutated in place.
func (s *Service) withSource(payload Payload, source string) Payload {
	out := make(Payload, len(payload)+2)
	for k, v := range payload {
		out[k] = v
	}
	out["source"] = source
	out["retrieved_at"] = time.Now().UTC().Format(time.RFC3339Nano)

	return out
}
