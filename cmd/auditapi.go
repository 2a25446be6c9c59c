package cmd

import (
	"fmt"

	"github.com/go-chi/chi/v5"
	"github.com/skuwise/pricing-pipeline/internal/app"
	"github.com/skuwise/pricing-pipeline/internal/audit"
	"github.com/skuwise/pricing-pipeline/pkg/config"
	"github.com/skuwise/pricing-pipeline/pkg/healthprobe"
	"github.com/skuwise/pricing-pipeline/pkg/httpserver"
	"github.com/spf13/cobra"
)

//nolint:gochecknoglobals // Cobra boilerplate
var auditAPICmd = &cobra.Command{
	Use:   "audit-api",
	Short: "Start the audit query API",
	Long: `Starts the audit API: read-only queries over the decision history
and failure log, plus aggregate statistics for monitoring.`,
	RunE: runAuditAPI,
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(auditAPICmd)
}

func runAuditAPI(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := config.NewLogger("audit_api")
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

	handler := audit.NewHandler(store, logger)

	healthChecker := healthprobe.New("audit_api",
		healthprobe.NamedCheck{Name: "database", Check: store.Healthy})

	server := httpserver.New(&httpserver.Config{
		Port:          cfg.AuditAPIPort,
		Logger:        logger,
		HealthChecker: healthChecker,
		Mount: func(r chi.Router) {
			r.Route("/api/v1", handler.Mount)
		},
	})

	application := app.New(&app.Options{
		Name:          "audit-api",
		Logger:        logger,
		HealthChecker: healthChecker,
		HTTPServer:    server,
		Runners:       []app.Runner{store},
		Closers: []app.Closer{
			{Name: "store", Close: store.Close},
		},
	})

	return application.Run()
}
