package main

import (
	"github.com/goliatone/go-credentials/persistence"
	"github.com/spf13/cobra"
)

// NewMigrateCmd creates the migrate subcommand.
func NewMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
		Long: `Apply pending schema migrations for the configured database driver.
Applied migrations are recorded in bun_migrations and skipped on later runs.`,
		RunE: runMigrate,
	}

	cmd.Flags().Bool("rollback", false, "revert the last applied migration group")

	databaseFlags(cmd.Flags())
	logFlags(cmd.Flags())

	return cmd
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	ctx := cmd.Context()

	db, err := persistence.Open(ctx, persistence.Options{
		Driver:       cfg.Database.Driver,
		DSN:          cfg.Database.DSN,
		MaxOpenConns: cfg.Database.MaxOpenConns,
	})
	if err != nil {
		return err
	}
	defer db.Close()

	if rollback, _ := cmd.Flags().GetBool("rollback"); rollback {
		reverted, err := persistence.Rollback(ctx, db)
		if err != nil {
			return err
		}
		logger.Info("migrations reverted", "driver", cfg.Database.Driver, "migrations", reverted)
		cmd.Printf("Reverted %d migrations\n", len(reverted))
		return nil
	}

	applied, err := persistence.Migrate(ctx, db)
	if err != nil {
		return err
	}

	logger.Info("migrations applied", "driver", cfg.Database.Driver, "migrations", applied)
	cmd.Printf("Applied %d migrations\n", len(applied))
	return nil
}
