package broker

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

//nolint:gochecknoglobals // Prometheus metrics
var (
	MessagesPublishedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pricing_broker_messages_published_total",
			Help: "Total number of messages published per topic",
		},
		[]string{"topic"},
	)

	PublishErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pricing_broker_publish_errors_total",
			Help: "Total number of publish failures per topic",
		},
		[]string{"topic"},
	)

	PublishDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pricing_broker_publish_duration_seconds",
			Help:    "Duration of broker publish calls",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"topic"},
	)

	MessagesConsumedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pricing_broker_messages_consumed_total",
			Help: "Total number of messages fetched per topic",
		},
		[]string{"topic"},
	)

	CommitErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pricing_broker_commit_errors_total",
			Help: "Total number of offset commit failures per topic",
		},
		[]string{"topic"},
	)
)
