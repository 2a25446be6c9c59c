package pricing

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

//nolint:gochecknoglobals // Prometheus metrics
var (
	CacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pricing_api_cache_hits_total",
		Help: "Total price lookups answered from a cache tier",
	})

	CacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pricing_api_cache_misses_total",
		Help: "Total price lookups that missed every cache tier",
	})

	FallbackUsesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pricing_api_fallback_uses_total",
		Help: "Total price lookups answered from the static fallback table",
	})

	CacheHealthy = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "pricing_api_cache_healthy",
		Help: "1 when the distributed cache keepalive succeeds, 0 otherwise",
	})

	RequestDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pricing_api_request_duration_seconds",
			Help:    "Duration of pricing API requests",
			Buckets: []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
		},
		[]string{"endpoint"},
	)
)
