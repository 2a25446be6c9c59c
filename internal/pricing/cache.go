// Package pricing implements the low-latency price decision API: a tiered
// cache read path (in-process L1, redis L2, static fallback) plus the cache
// write surface used by the rules worker.
package pricing

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
	"github.com/skuwise/pricing-pipeline/pkg/event"
	"go.uber.org/zap"
)

// Payload is a cached decision blob. The write endpoint accepts arbitrary
// JSON, so the cache stores dynamic objects rather than a fixed struct.
type Payload map[string]interface{}

// keyPrefix namespaces decision entries in redis.
const keyPrefix = "price:"

// RedisCache is the distributed decision cache. A background keepalive loop
// maintains the health flag; while unhealthy the read path bypasses redis
// entirely instead of eating connection timeouts.
type RedisCache struct {
	client  *redis.Client
	ttl     time.Duration
	pingInt time.Duration
	healthy atomic.Bool
	logger  *zap.Logger
}

// RedisConfig holds redis cache configuration.
type RedisConfig struct {
	Addr         string
	DB           int
	TTL          time.Duration
	PingInterval time.Duration
	Logger       *zap.Logger
}

// NewRedisCache connects to redis. A failed initial ping is not fatal: the
// cache starts unhealthy and the keepalive loop promotes it on recovery.
func NewRedisCache(cfg *RedisConfig) *RedisCache {
	client := redis.NewClient(&redis.Options{
		Addr:        cfg.Addr,
		DB:          cfg.DB,
		DialTimeout: 5 * time.Second,
	})

	c := &RedisCache{
		client:  client,
		ttl:     cfg.TTL,
		pingInt: cfg.PingInterval,
		logger:  cfg.Logger,
	}

	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := client.Ping(pingCtx).Err()
	if err != nil {
		cfg.Logger.Warn("redis-unreachable-at-startup",
			zap.String("addr", cfg.Addr),
			zap.Error(err))
	} else {
		c.healthy.Store(true)
		cfg.Logger.Info("redis-connected", zap.String("addr", cfg.Addr))
	}

	return c
}

// Name identifies the keepalive loop in process lifecycle logs.
func (c *RedisCache) Name() string { return "cache-health" }

// Run is the keepalive loop: ping every interval, flip the health flag on
// transitions. Exits when the context is cancelled.
func (c *RedisCache) Run(ctx context.Context) error {
	ticker := time.NewTicker(c.pingInt)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			err := c.client.Ping(ctx).Err()
			healthy := err == nil
			was := c.healthy.Swap(healthy)

			if was && !healthy {
				CacheHealthy.Set(0)
				c.logger.Warn("cache-marked-unhealthy", zap.Error(err))
			} else if !was && healthy {
				CacheHealthy.Set(1)
				c.logger.Info("cache-recovered")
			}
		}
	}
}

// Healthy reports whether the last keepalive succeeded.
func (c *RedisCache) Healthy() bool {
	return c.healthy.Load()
}

// GetPrice retrieves a cached decision. A miss returns (nil, nil).
func (c *RedisCache) GetPrice(ctx context.Context, sku string) (Payload, error) {
	data, err := c.client.Get(ctx, keyPrefix+sku).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cache get %s: %w", sku, err)
	}

	var payload Payload
	err = json.Unmarshal(data, &payload)
	if err != nil {
		return nil, fmt.Errorf("decode cached price %s: %w", sku, err)
	}

	return payload, nil
}

// SetPrice stores a decision under price:<sku> with the configured TTL,
// stamping cached_at.
func (c *RedisCache) SetPrice(ctx context.Context, sku string, payload Payload) error {
	payload["cached_at"] = time.Now().UTC().Format(time.RFC3339Nano)

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode price %s: %w", sku, err)
	}

	err = c.client.Set(ctx, keyPrefix+sku, data, c.ttl).Err()
	if err != nil {
		return fmt.Errorf("cache set %s: %w", sku, err)
	}

	return nil
}

// DeletePrice removes a decision from the cache.
func (c *RedisCache) DeletePrice(ctx context.Context, sku string) error {
	err := c.client.Del(ctx, keyPrefix+sku).Err()
	if err != nil {
		return fmt.Errorf("cache delete %s: %w", sku, err)
	}
	return nil
}

// Clear flushes the cache database. Admin surface only.
func (c *RedisCache) Clear(ctx context.Context) error {
	err := c.client.FlushDB(ctx).Err()
	if err != nil {
		return fmt.Errorf("cache clear: %w", err)
	}
	return nil
}

// WritePrice adapts a RecommendedPrice event to a cache entry. This is the
// companion writer used by the rules worker.
func (c *RedisCache) WritePrice(ctx context.Context, sku string, decision *event.RecommendedPrice) error {
	return c.SetPrice(ctx, sku, Payload{
		"sku":               decision.SKU,
		"current_price":     decision.CurrentPrice,
		"recommended_price": decision.RecommendedPrice,
		"margin_pct":        decision.MarginPct,
		"confidence":        decision.Confidence,
		"reason":            decision.Reason,
		"competitor_prices": decision.CompetitorPrices,
		"created_at":        decision.CreatedAt.Format(time.RFC3339Nano),
	})
}

// Close closes the redis connection.
func (c *RedisCache) Close() error {
	c.logger.Info("redis-cache-closing")
	return c.client.Close()
}
