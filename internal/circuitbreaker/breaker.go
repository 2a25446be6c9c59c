// Package circuitbreaker stops the scraper from hammering a competitor API
// that is failing. Each key (competitor) gets its own breaker: consecutive
// failures open it, a cooldown admits a single probe, and one success
// closes it again.
package circuitbreaker

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// Defaults applied when Config fields are zero.
const (
	DefaultFailureThreshold = 5
	DefaultCooldown         = 30 * time.Second
)

// Config holds breaker configuration shared by all keys.
type Config struct {
	// FailureThreshold is the consecutive failure count that opens a key.
	FailureThreshold int
	// Cooldown is how long an open key rejects calls before admitting a
	// probe.
	Cooldown time.Duration
	Logger   *zap.Logger
}

// state is the per-key breaker state.
type state struct {
	failures int
	openedAt time.Time
	open     bool
	probing  bool
}

// Breaker is a keyed circuit breaker.
type Breaker struct {
	threshold int
	cooldown  time.Duration
	logger    *zap.Logger

	mu   sync.Mutex
	keys map[string]*state
}

// New creates a keyed breaker.
func New(cfg *Config) *Breaker {
	threshold := cfg.FailureThreshold
	if threshold <= 0 {
		threshold = DefaultFailureThreshold
	}

	cooldown := cfg.Cooldown
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}

	return &Breaker{
		threshold: threshold,
		cooldown:  cooldown,
		logger:    cfg.Logger,
		keys:      make(map[string]*state),
	}
}

// Allow reports whether a call for the key may proceed. An open key rejects
// calls until the cooldown elapses, then admits exactly one probe; further
// calls stay rejected until that probe resolves.
func (b *Breaker) Allow(key string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	s := b.keys[key]
	if s == nil || !s.open {
		return true
	}

	if s.probing {
		return false
	}

	if time.Since(s.openedAt) >= b.cooldown {
		s.probing = true
		b.logger.Info("breaker-probing", zap.String("key", key))
		return true
	}

	return false
}

// Success records a successful call, closing the key if it was open.
func (b *Breaker) Success(key string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	s := b.keys[key]
	if s == nil {
		return
	}

	if s.open {
		StateChangesTotal.WithLabelValues(key).Inc()
		OpenBreakers.WithLabelValues(key).Set(0)
		b.logger.Info("breaker-closed", zap.String("key", key))
	}

	s.failures = 0
	s.open = false
	s.probing = false
}

// Failure records a failed call. Reaching the threshold, or failing a
// probe, opens the key and restarts the cooldown.
func (b *Breaker) Failure(key string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	s := b.keys[key]
	if s == nil {
		s = &state{}
		b.keys[key] = s
	}

	s.failures++

	if s.probing || (!s.open && s.failures >= b.threshold) {
		if !s.open {
			StateChangesTotal.WithLabelValues(key).Inc()
			OpenBreakers.WithLabelValues(key).Set(1)
			b.logger.Warn("breaker-opened",
				zap.String("key", key),
				zap.Int("failures", s.failures))
		}
		s.open = true
		s.probing = false
		s.openedAt = time.Now()
	}
}

// Open reports whether the key is currently open.
func (b *Breaker) Open(key string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	s := b.keys[key]
	return s != nil && s.open
}
