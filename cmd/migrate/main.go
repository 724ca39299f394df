package main

import (
	"context"
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"farm-advisor/internal/app"
	"farm-advisor/internal/config"
	"farm-advisor/migrations"
	"farm-advisor/pkg/database"
	"farm-advisor/pkg/logging"
	"farm-advisor/pkg/metrics"
)

var rootCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply or roll back the farm advisor schema",
	Long: `Apply or roll back the farm advisor schema.

The database is selected the same way as for the server: DB_DRIVER plus
the DB_* settings, or a single DATABASE_URL.`,
	SilenceUsage: true,
}

var upCmd = &cobra.Command{
	Use:   "up",
	Short: "Create the schema",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd.Context(), migrations.Up)
	},
}

var downCmd = &cobra.Command{
	Use:   "down",
	Short: "Drop the schema and all data",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd.Context(), migrations.Down)
	},
}

var listCmd = &cobra.Command{
	Use:   "list [up|down]",
	Short: "List the migrations for the configured driver",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		direction := migrations.Up
		if len(args) == 1 {
			direction = migrations.Direction(args[0])
		}

		names, err := migrations.Files(cfg.Database.Driver, direction)
		if err != nil {
			return err
		}
		for _, name := range names {
			fmt.Fprintln(cmd.OutOrStdout(), name)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(upCmd, downCmd, listCmd)
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func run(ctx context.Context, direction migrations.Direction) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logger := app.NewLogger(cfg, "farm-advisor-migrate")
	metricsCollector := metrics.NewCollector("farm_advisor_migrate", prometheus.NewRegistry())

	db, err := database.Open(app.DatabaseConfig(cfg), logger, metricsCollector)
	if err != nil {
		return err
	}
	defer db.Close()

	applied, err := migrations.Apply(ctx, db.DB(), db.Driver(), direction)
	if err != nil {
		logger.Error(ctx, "[MIGRATE_ERROR] Migration failed", logging.Fields{
			"direction": string(direction),
		}, err)
		return err
	}

	logger.Info(ctx, "[MIGRATE_COMPLETE] Migrations applied", logging.Fields{
		"direction":  string(direction),
		"driver":     db.Driver(),
		"migrations": applied,
	})
	return nil
}
