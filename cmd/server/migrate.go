package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"auth-api/internal/config"
	"auth-api/internal/repository/postgres"
)

// NewMigrateCmd creates the migrate subcommand.
func NewMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
		Long: `Apply pending schema migrations to the PostgreSQL database.
The sqlite backend creates its schema on startup and needs no migrations.`,
		RunE: runMigrate,
	}
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.Database.Driver != config.DriverPostgres {
		logger.Infof("database driver %s needs no migrations", cfg.Database.Driver)
		return nil
	}
	if cfg.Database.DSN == "" {
		return fmt.Errorf("database dsn is required for postgres")
	}

	version, err := postgres.Migrate(cfg.Database.DSN)
	if err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	logger.Infof("schema at version %d", version)
	return nil
}
