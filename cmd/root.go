// Package cmd wires the pipeline services into one multi-command binary.
// Each subcommand assembles its service from config and runs it until
// SIGINT/SIGTERM.
package cmd

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

//nolint:gochecknoglobals // Cobra boilerplate
var rootCmd = &cobra.Command{
	Use:   "pricing-pipeline",
	Short: "Dynamic pricing pipeline services",
	Long: `Dynamic pricing pipeline: competitor price ingestion, a rules engine
that turns market observations into price recommendations, a low-latency
price API backed by a tiered cache, and a PostgreSQL audit trail.

Each service runs as its own subcommand so one binary covers every
deployment role.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// Missing .env is fine; real deployments use the environment.
		_ = godotenv.Load()
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}
