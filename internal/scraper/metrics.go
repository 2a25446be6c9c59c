package scraper

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

//nolint:gochecknoglobals // Prometheus metrics
var (
	FetchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pricing_scraper_fetches_total",
			Help: "Total competitor fetch attempts by competitor and outcome",
		},
		[]string{"competitor", "outcome"},
	)

	FetchDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "pricing_scraper_fetch_duration_seconds",
		Help:    "Duration of individual competitor fetches",
		Buckets: []float64{0.05, 0.1, 0.15, 0.2, 0.3, 0.5, 1, 2.5, 5},
	})

	InFlightFetches = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "pricing_scraper_in_flight_fetches",
		Help: "Competitor fetches currently holding a concurrency slot",
	})

	RawPricesPublishedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pricing_scraper_raw_prices_published_total",
		Help: "Total raw price events published to the broker",
	})
)
