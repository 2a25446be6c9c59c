package cmd

import (
	"fmt"

	"github.com/go-chi/chi/v5"
	"github.com/skuwise/pricing-pipeline/internal/app"
	"github.com/skuwise/pricing-pipeline/internal/scraper"
	"github.com/skuwise/pricing-pipeline/pkg/broker"
	"github.com/skuwise/pricing-pipeline/pkg/config"
	"github.com/skuwise/pricing-pipeline/pkg/healthprobe"
	"github.com/skuwise/pricing-pipeline/pkg/httpserver"
	"github.com/spf13/cobra"
)

//nolint:gochecknoglobals // Cobra boilerplate
var scraperCmd = &cobra.Command{
	Use:   "scraper",
	Short: "Start the competitor price scraper API",
	Long: `Starts the scraper service: an HTTP API that fans price lookups out
across the competitor registry with bounded concurrency and feeds every
observation into the raw prices topic.`,
	RunE: runScraper,
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(scraperCmd)
}

func runScraper(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := config.NewLogger("scraper")
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	producer := broker.NewProducer(&broker.ProducerConfig{
		Brokers: cfg.KafkaBrokers,
		Topic:   cfg.RawPricesTopic,
		Logger:  logger,
	})

	fetcher := scraper.NewFetcher(&scraper.FetcherConfig{
		Registry:      scraper.DefaultRegistry(),
		Fetch:         scraper.NewSimulator().Fetch,
		MaxConcurrent: cfg.ScraperMaxConcurrent,
		FetchTimeout:  cfg.ScraperFetchTimeout,
		Logger:        logger,
	})

	publisher := scraper.NewPublisher(producer, logger)
	handler := scraper.NewHandler(fetcher, publisher, logger)

	healthChecker := healthprobe.New("scraper")
	server := httpserver.New(&httpserver.Config{
		Port:          cfg.ScraperPort,
		Logger:        logger,
		HealthChecker: healthChecker,
		Mount: func(r chi.Router) {
			r.Route("/api/v1", handler.Mount)
		},
	})

	application := app.New(&app.Options{
		Name:          "scraper",
		Logger:        logger,
		HealthChecker: healthChecker,
		HTTPServer:    server,
		Closers: []app.Closer{
			{Name: "producer", Close: producer.Close},
		},
	})

	return application.Run()
}
