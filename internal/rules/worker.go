package rules

import (
	"context"
	"errors"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/skuwise/pricing-pipeline/pkg/event"
	"go.uber.org/zap"
)

// ServiceName tags DLQ records produced by this worker.
const ServiceName = "rules_engine"

// Consumer fetches messages from the raw_prices topic. Fetch and Commit are
// split so the worker controls acknowledgement.
type Consumer interface {
	Fetch(ctx context.Context) (kafka.Message, error)
	Commit(ctx context.Context, msg kafka.Message) error
}

// Publisher publishes a message to a topic.
type Publisher interface {
	Publish(ctx context.Context, key []byte, value []byte) error
}

// CacheWriter pushes a decision into the pricing cache so the read API is
// warm without an extra hop. Write failures are logged, never fatal.
type CacheWriter interface {
	WritePrice(ctx context.Context, sku string, decision *event.RecommendedPrice) error
}

// Worker consumes RawPrice events, evaluates the engine and publishes a
// RecommendedPrice or a DLQ record. Messages are processed sequentially;
// horizontal scale comes from broker partitions and more workers.
type Worker struct {
	engine      *Engine
	consumer    Consumer
	decisions   Publisher
	deadLetters Publisher
	cacheWriter CacheWriter
	minMargin   float64
	maxMargin   float64
	logger      *zap.Logger
}

// WorkerConfig holds worker dependencies.
type WorkerConfig struct {
	Engine      *Engine
	Consumer    Consumer
	Decisions   Publisher
	DeadLetters Publisher
	CacheWriter CacheWriter // optional
	MinMargin   float64
	MaxMargin   float64
	Logger      *zap.Logger
}

// NewWorker creates a rules worker.
func NewWorker(cfg *WorkerConfig) *Worker {
	return &Worker{
		engine:      cfg.Engine,
		consumer:    cfg.Consumer,
		decisions:   cfg.Decisions,
		deadLetters: cfg.DeadLetters,
		cacheWriter: cfg.CacheWriter,
		minMargin:   cfg.MinMargin,
		maxMargin:   cfg.MaxMargin,
		logger:      cfg.Logger,
	}
}

// Name identifies the worker in process lifecycle logs.
func (w *Worker) Name() string { return "rules-worker" }

// Run is the consume loop. Every fetched message is acknowledged exactly
// once, after it has produced either a decision or a DLQ record. A
// downstream produce failure (after the producer's own retries) is fatal:
// the pipeline is broken and the process must crash loudly.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.Info("rules-worker-starting",
		zap.Float64("min-margin", w.minMargin),
		zap.Float64("max-margin", w.maxMargin))

	for {
		msg, err := w.consumer.Fetch(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				w.logger.Info("rules-worker-stopping")
				return ctx.Err()
			}
			return err
		}

		start := time.Now()
		err = w.process(ctx, msg.Value)
		EvaluationDurationSeconds.Observe(time.Since(start).Seconds())
		if err != nil {
			return err
		}

		err = w.consumer.Commit(ctx, msg)
		if err != nil {
			w.logger.Error("commit-failed",
				zap.Int64("offset", msg.Offset),
				zap.Error(err))
		}
	}
}

// process handles one raw message. Returns an error only when a downstream
// produce fails; every other failure mode resolves to a DLQ record or a
// counted drop.
func (w *Worker) process(ctx context.Context, raw []byte) error {
	env, err := event.Parse(raw)
	if err != nil {
		// An unparseable envelope cannot be reprocessed: drop and count.
		MessagesTotal.WithLabelValues("malformed").Inc()
		w.logger.Error("malformed-envelope-dropped", zap.Error(err))
		return nil
	}

	if env.EventType != event.TypeRawPrices {
		MessagesTotal.WithLabelValues("skipped").Inc()
		w.logger.Warn("unknown-event-type-skipped", zap.String("event-type", env.EventType))
		return nil
	}

	rawPrice, err := event.ParseRawPrice(env.Data)
	if err != nil {
		return w.sendToDLQ(ctx, raw, err)
	}

	decision := w.evaluate(rawPrice)

	err = w.publishDecision(ctx, decision)
	if err != nil {
		return err
	}

	if w.cacheWriter != nil {
		cacheErr := w.cacheWriter.WritePrice(ctx, decision.SKU, decision)
		if cacheErr != nil {
			w.logger.Warn("cache-write-failed",
				zap.String("sku", decision.SKU),
				zap.Error(cacheErr))
		}
	}

	MessagesTotal.WithLabelValues("processed").Inc()
	w.logger.Info("decision-published",
		zap.String("sku", decision.SKU),
		zap.Float64("recommended-price", decision.RecommendedPrice),
		zap.Float64("confidence", decision.Confidence))

	return nil
}

// evaluate maps the payload to a PriceContext and runs the engine.
func (w *Worker) evaluate(rawPrice *event.RawPrice) *event.RecommendedPrice {
	rec := w.engine.Calculate(PriceContext{
		SKU:              rawPrice.SKU,
		CurrentPrice:     rawPrice.CurrentPrice,
		Cost:             rawPrice.Cost,
		CompetitorPrices: rawPrice.CompetitorPrices,
		InventoryLevel:   rawPrice.InventoryLevel,
		DaysInStock:      rawPrice.DaysInStock,
		DemandForecast:   rawPrice.DemandForecast,
		MarginMin:        w.minMargin,
		MarginMax:        w.maxMargin,
	})

	DecisionConfidence.Observe(rec.Confidence)

	w.engine.RecordDecision(HistoryEntry{
		SKU:              rawPrice.SKU,
		CurrentPrice:     rawPrice.CurrentPrice,
		RecommendedPrice: rec.Price,
		MarginPct:        MarginPct(rec.Price, rawPrice.Cost),
		Confidence:       rec.Confidence,
		CreatedAt:        time.Now().UTC(),
	})

	return &event.RecommendedPrice{
		SKU:              rawPrice.SKU,
		CurrentPrice:     rawPrice.CurrentPrice,
		RecommendedPrice: rec.Price,
		MarginPct:        MarginPct(rec.Price, rawPrice.Cost),
		Confidence:       rec.Confidence,
		Reason:           rec.Reason,
		CompetitorPrices: rawPrice.CompetitorPrices,
		CreatedAt:        time.Now().UTC(),
	}
}

func (w *Worker) publishDecision(ctx context.Context, decision *event.RecommendedPrice) error {
	env, err := event.New(event.TypeRecommendedPrice, decision)
	if err != nil {
		return err
	}

	payload, err := env.Marshal()
	if err != nil {
		return err
	}

	return w.decisions.Publish(ctx, []byte(decision.SKU), payload)
}

// sendToDLQ routes the original bytes to the dead letter topic and counts
// the message as handled. A DLQ produce failure is fatal.
func (w *Worker) sendToDLQ(ctx context.Context, raw []byte, cause error) error {
	record := event.NewDLQRecord(raw, cause, ServiceName)

	payload, err := record.Marshal()
	if err != nil {
		return err
	}

	err = w.deadLetters.Publish(ctx, nil, payload)
	if err != nil {
		return err
	}

	MessagesTotal.WithLabelValues("dead_lettered").Inc()
	w.logger.Warn("message-dead-lettered", zap.String("error", cause.Error()))

	return nil
}
