package audit

import (
	"context"
	"errors"

	"github.com/segmentio/kafka-go"
	"github.com/skuwise/pricing-pipeline/pkg/event"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Consumer fetches messages from one topic. Fetch and Commit are split so
// the worker only acknowledges what it persisted.
type Consumer interface {
	Fetch(ctx context.Context) (kafka.Message, error)
	Commit(ctx context.Context, msg kafka.Message) error
}

// Recorder is the store surface the worker writes through.
type Recorder interface {
	InsertDecision(ctx context.Context, d *Decision) error
	InsertFailure(ctx context.Context, f *Failure) error
}

// Worker runs two consume loops in parallel: decisions from the
// recommendation topic and failure records from the dead letter topic, each
// under its own consumer group so the two streams commit independently.
type Worker struct {
	store     Recorder
	decisions Consumer
	failures  Consumer
	logger    *zap.Logger
}

// WorkerConfig holds worker dependencies.
type WorkerConfig struct {
	Store     Recorder
	Decisions Consumer
	Failures  Consumer
	Logger    *zap.Logger
}

// NewWorker creates an audit worker.
func NewWorker(cfg *WorkerConfig) *Worker {
	return &Worker{
		store:     cfg.Store,
		decisions: cfg.Decisions,
		failures:  cfg.Failures,
		logger:    cfg.Logger,
	}
}

// Name identifies the worker in process lifecycle logs.
func (w *Worker) Name() string { return "audit-worker" }

// Run drives both consume loops until the context is cancelled or one loop
// hits an unrecoverable error.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.Info("audit-worker-starting")

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return w.consumeLoop(gctx, w.decisions, "decisions", w.recordDecision)
	})
	g.Go(func() error {
		return w.consumeLoop(gctx, w.failures, "failures", w.recordFailure)
	})

	return g.Wait()
}

// consumeLoop fetches, persists and commits one stream. A persist error on
// a transient store failure leaves the message uncommitted so the broker
// redelivers it; a permanent error (bad data) commits and drops.
func (w *Worker) consumeLoop(ctx context.Context, consumer Consumer, stream string, record func(context.Context, []byte) error) error {
	for {
		msg, err := consumer.Fetch(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				w.logger.Info("audit-stream-stopping", zap.String("stream", stream))
				return ctx.Err()
			}
			return err
		}

		err = record(ctx, msg.Value)
		if err != nil {
			if IsPermanent(err) {
				RecordsTotal.WithLabelValues(stream, "dropped").Inc()
				w.logger.Error("audit-record-dropped",
					zap.String("stream", stream),
					zap.Error(err))
			} else {
				RecordsTotal.WithLabelValues(stream, "retried").Inc()
				w.logger.Warn("audit-record-deferred",
					zap.String("stream", stream),
					zap.Int64("offset", msg.Offset),
					zap.Error(err))
				continue
			}
		} else {
			RecordsTotal.WithLabelValues(stream, "recorded").Inc()
		}

		err = consumer.Commit(ctx, msg)
		if err != nil {
			w.logger.Error("audit-commit-failed",
				zap.String("stream", stream),
				zap.Int64("offset", msg.Offset),
				zap.Error(err))
		}
	}
}

// recordDecision persists one RecommendedPrice event. Unparseable messages
// are permanent failures: log, count and let the caller commit past them.
func (w *Worker) recordDecision(ctx context.Context, raw []byte) error {
	env, err := event.Parse(raw)
	if err != nil {
		RecordsTotal.WithLabelValues("decisions", "malformed").Inc()
		w.logger.Error("malformed-decision-dropped", zap.Error(err))
		return nil
	}

	decision, err := event.ParseRecommendedPrice(env.Data)
	if err != nil {
		RecordsTotal.WithLabelValues("decisions", "malformed").Inc()
		w.logger.Error("invalid-decision-dropped", zap.Error(err))
		return nil
	}

	return w.store.InsertDecision(ctx, &Decision{
		SKU:              decision.SKU,
		CurrentPrice:     decision.CurrentPrice,
		RecommendedPrice: decision.RecommendedPrice,
		MarginPct:        decision.MarginPct,
		Confidence:       decision.Confidence,
		Reason:           decision.Reason,
		CompetitorPrices: decision.CompetitorPrices,
	})
}

// recordFailure persists one DLQ record. DLQ messages are bare JSON, not
// enveloped.
func (w *Worker) recordFailure(ctx context.Context, raw []byte) error {
	record, err := event.ParseDLQRecord(raw)
	if err != nil {
		RecordsTotal.WithLabelValues("failures", "malformed").Inc()
		w.logger.Error("malformed-failure-dropped", zap.Error(err))
		return nil
	}

	return w.store.InsertFailure(ctx, &Failure{
		ErrorMessage:      record.Error,
		OriginalMessage:   record.OriginalMessage,
		ProcessingService: record.ProcessingService,
	})
}
