package circuitbreaker

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

//nolint:gochecknoglobals // Prometheus metrics
var (
	OpenBreakers = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "pricing_breaker_open",
			Help: "1 while the key's breaker is open, 0 otherwise",
		},
		[]string{"key"},
	)

	StateChangesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pricing_breaker_state_changes_total",
			Help: "Total breaker open/close transitions by key",
		},
		[]string{"key"},
	)
)
