package audit

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

//nolint:gochecknoglobals // Prometheus metrics
var (
	RecordsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pricing_audit_records_total",
			Help: "Total consumed audit messages by stream and outcome",
		},
		[]string{"stream", "outcome"},
	)

	DBHealthy = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "pricing_audit_db_healthy",
		Help: "1 when the database keepalive succeeds, 0 otherwise",
	})

	QueryDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pricing_audit_query_duration_seconds",
			Help:    "Duration of audit API database queries",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)
)
