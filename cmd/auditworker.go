package cmd

import (
	"fmt"

	"github.com/skuwise/pricing-pipeline/internal/app"
	"github.com/skuwise/pricing-pipeline/internal/audit"
	"github.com/skuwise/pricing-pipeline/pkg/broker"
	"github.com/skuwise/pricing-pipeline/pkg/config"
	"github.com/skuwise/pricing-pipeline/pkg/healthprobe"
	"github.com/skuwise/pricing-pipeline/pkg/httpserver"
	"github.com/spf13/cobra"
)

// Separate groups per stream so decision and failure offsets commit
// independently.
const (
	auditPricesGroup   = "audit_service_prices"
	auditFailuresGroup = "audit_service_failures"
)

//nolint:gochecknoglobals // Cobra boilerplate
var auditWorkerCmd = &cobra.Command{
	Use:   "audit-worker",
	Short: "Start the audit trail worker",
	Long: `Starts the audit worker: consumes price recommendations and dead
letter records in parallel and persists both to PostgreSQL for compliance
and troubleshooting.`,
	RunE: runAuditWorker,
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(auditWorkerCmd)
}

func runAuditWorker(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := config.NewLogger("audit_worker")
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	store, err := audit.NewStore(&audit.StoreConfig{
		Host:     cfg.PostgresHost,
		Port:     cfg.PostgresPort,
		User:     cfg.PostgresUser,
		Password: cfg.PostgresPass,
		Database: cfg.PostgresDB,
		SSLMode:  cfg.PostgresSSL,
		Logger:   logger,
	})
	if err != nil {
		return fmt.Errorf("create audit store: %w", err)
	}

	decisions := broker.NewConsumer(&broker.ConsumerConfig{
		Brokers: cfg.KafkaBrokers,
		Topic:   cfg.DecisionsTopic,
		GroupID: auditPricesGroup,
		Logger:  logger,
	})

	failures := broker.NewConsumer(&broker.ConsumerConfig{
		Brokers: cfg.KafkaBrokers,
		Topic:   cfg.DeadLetterTopic,
		GroupID: auditFailuresGroup,
		Logger:  logger,
	})

	worker := audit.NewWorker(&audit.WorkerConfig{
		Store:     store,
		Decisions: decisions,
		Failures:  failures,
		Logger:    logger,
	})

	healthChecker := healthprobe.New("audit_worker",
		healthprobe.NamedCheck{Name: "database", Check: store.Healthy})

	// Health and metrics only; the worker has no API surface.
	server := httpserver.New(&httpserver.Config{
		Port:          cfg.AuditWorkerPort,
		Logger:        logger,
		HealthChecker: healthChecker,
	})

	application := app.New(&app.Options{
		Name:          "audit-worker",
		Logger:        logger,
		HealthChecker: healthChecker,
		HTTPServer:    server,
		Runners:       []app.Runner{worker, store},
		Closers: []app.Closer{
			{Name: "decisions-consumer", Close: decisions.Close},
			{Name: "failures-consumer", Close: failures.Close},
			{Name: "store", Close: store.Close},
		},
	})

	return application.Run()
}
