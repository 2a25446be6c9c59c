package cmd

import (
	"fmt"

	"github.com/go-chi/chi/v5"
	"github.com/skuwise/pricing-pipeline/internal/app"
	"github.com/skuwise/pricing-pipeline/internal/pricing"
	"github.com/skuwise/pricing-pipeline/internal/rules"
	"github.com/skuwise/pricing-pipeline/pkg/broker"
	"github.com/skuwise/pricing-pipeline/pkg/config"
	"github.com/skuwise/pricing-pipeline/pkg/healthprobe"
	"github.com/skuwise/pricing-pipeline/pkg/httpserver"
	"github.com/spf13/cobra"
)

// rulesConsumerGroup makes the worker fleet share one offset cursor, so
// adding workers scales horizontally instead of reprocessing.
const rulesConsumerGroup = "rules_engine_group"

//nolint:gochecknoglobals // Cobra boilerplate
var rulesWorkerCmd = &cobra.Command{
	Use:   "rules-worker",
	Short: "Start the pricing rules worker",
	Long: `Starts the rules engine worker: consumes raw competitor prices,
evaluates the pricing rules and publishes a recommendation for every
message, routing unprocessable payloads to the dead letter topic. Each
decision is also written through to the price cache so the API serves it
immediately.`,
	RunE: runRulesWorker,
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(rulesWorkerCmd)
}

func runRulesWorker(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := config.NewLogger("rules_engine")
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	consumer := broker.NewConsumer(&broker.ConsumerConfig{
		Brokers: cfg.KafkaBrokers,
		Topic:   cfg.RawPricesTopic,
		GroupID: rulesConsumerGroup,
		Logger:  logger,
	})

	decisions := broker.NewProducer(&broker.ProducerConfig{
		Brokers: cfg.KafkaBrokers,
		Topic:   cfg.DecisionsTopic,
		Logger:  logger,
	})

	deadLetters := broker.NewProducer(&broker.ProducerConfig{
		Brokers: cfg.KafkaBrokers,
		Topic:   cfg.DeadLetterTopic,
		Logger:  logger,
	})

	cache := pricing.NewRedisCache(&pricing.RedisConfig{
		Addr:         cfg.RedisAddr(),
		DB:           cfg.RedisDB,
		TTL:          cfg.RedisTTL,
		PingInterval: cfg.CachePingInterval,
		Logger:       logger,
	})

	engine := rules.New(rules.DefaultConfig(cfg.MinMargin, cfg.MaxMargin, cfg.ElasticityFactor))

	worker := rules.NewWorker(&rules.WorkerConfig{
		Engine:      engine,
		Consumer:    consumer,
		Decisions:   decisions,
		DeadLetters: deadLetters,
		CacheWriter: cache,
		MinMargin:   cfg.MinMargin,
		MaxMargin:   cfg.MaxMargin,
		Logger:      logger,
	})

	healthChecker := healthprobe.New("rules_engine",
		healthprobe.NamedCheck{Name: "cache", Check: cache.Healthy})

	trends := rules.NewHandler(engine)

	server := httpserver.New(&httpserver.Config{
		Port:          cfg.RulesWorkerPort,
		Logger:        logger,
		HealthChecker: healthChecker,
		Mount: func(r chi.Router) {
			r.Route("/api/v1", trends.Mount)
		},
	})

	application := app.New(&app.Options{
		Name:          "rules-worker",
		Logger:        logger,
		HealthChecker: healthChecker,
		HTTPServer:    server,
		Runners:       []app.Runner{worker, cache},
		Closers: []app.Closer{
			{Name: "consumer", Close: consumer.Close},
			{Name: "decisions-producer", Close: decisions.Close},
			{Name: "dlq-producer", Close: deadLetters.Close},
			{Name: "cache", Close: cache.Close},
		},
	})

	return application.Run()
}
