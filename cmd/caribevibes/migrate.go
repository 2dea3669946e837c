package main

import (
	"context"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/IngAlexfit/caribeVibes-system-sub001/repository"
)

// NewMigrateCmd creates the migrate subcommand.
func NewMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the account tables and seed the default roles",
		RunE:  runMigrate,
	}
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadRuntime(cmd)
	if err != nil {
		return err
	}

	if cfg.Database.Driver == repository.DriverMemory {
		cmd.Println("memory driver selected, nothing to migrate")
		return nil
	}

	ctx := context.Background()

	cmd.Println("Connecting to database...")
	db, err := repository.Open(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return oops.Code("DB_CONNECT_FAILED").With("operation", "connect to database").Wrap(err)
	}

	manager := repository.NewManager(db, repository.WithQueryTimeout(cfg.Database.QueryTimeout))
	defer manager.Close()

	cmd.Println("Running migrations...")
	if err := prepareSchema(ctx, manager); err != nil {
		return err
	}

	logger.Info("migrations completed", "driver", cfg.Database.Driver)
	cmd.Println("Migrations completed successfully")
	return nil
}
