package rules

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

//nolint:gochecknoglobals // Prometheus metrics
var (
	// MessagesTotal tracks consumed messages by outcome:
	// processed, dead_lettered, malformed, skipped.
	MessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pricing_rules_messages_total",
			Help: "Total messages consumed by the rules worker, by outcome",
		},
		[]string{"outcome"},
	)

	EvaluationDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "pricing_rules_evaluation_duration_seconds",
		Help:    "End-to-end duration of one message evaluation",
		Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
	})

	DecisionConfidence = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "pricing_rules_decision_confidence",
		Help:    "Confidence scores of published decisions",
		Buckets: []float64{0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1.0},
	})
)
