package cache

import (
	"time"

	"github.com/dgraph-io/ristretto"
	"go.uber.org/zap"
)

// RistrettoCache is a Cache backed by Ristretto.
type RistrettoCache struct {
	cache  *ristretto.Cache
	logger *zap.Logger
}

// RistrettoConfig holds configuration for the Ristretto tier.
type RistrettoConfig struct {
	NumCounters int64 // keys tracked for frequency, ~10x max items
	MaxItems    int64 // maximum cached items (cost 1 per entry)
	BufferItems int64 // keys per Get buffer
	Logger      *zap.Logger
}

// NewRistrettoCache creates the L1 cache tier.
func NewRistrettoCache(cfg *RistrettoConfig) (*RistrettoCache, error) {
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: cfg.NumCounters,
		MaxCost:     cfg.MaxItems,
		BufferItems: cfg.BufferItems,
		Metrics:     true,
	})
	if err != nil {
		return nil, err
	}

	return &RistrettoCache{
		cache:  cache,
		logger: cfg.Logger,
	}, nil
}

// Get retrieves a value from the cache.
func (r *RistrettoCache) Get(key string) (interface{}, bool) {
	value, found := r.cache.Get(key)
	if found {
		L1HitsTotal.Inc()
	} else {
		L1MissesTotal.Inc()
	}
	return value, found
}

// Set stores a value with a TTL. Each entry costs 1.
func (r *RistrettoCache) Set(key string, value interface{}, ttl time.Duration) bool {
	ok := r.cache.SetWithTTL(key, value, 1, ttl)
	if ok {
		L1SetsTotal.Inc()
	}
	return ok
}

// Delete removes a value from the cache.
func (r *RistrettoCache) Delete(key string) {
	r.cache.Del(key)
}

// Clear removes all values from the cache.
func (r *RistrettoCache) Clear() {
	r.cache.Clear()
	r.logger.Info("l1-cache-cleared")
}

// Close closes the cache and releases resources.
func (r *RistrettoCache) Close() {
	r.cache.Close()
}

// Wait blocks until pending writes are applied. Ristretto admits entries
// asynchronously, so tests (and cache warming) need this barrier.
func (r *RistrettoCache) Wait() {
	r.cache.Wait()
}
