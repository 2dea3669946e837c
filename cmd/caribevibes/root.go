package main

import (
	"context"
	"log/slog"

	"github.com/goliatone/go-print"
	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/IngAlexfit/caribeVibes-system-sub001/config"
	"github.com/IngAlexfit/caribeVibes-system-sub001/logging"
	"github.com/IngAlexfit/caribeVibes-system-sub001/repository"
)

const serviceName = "caribevibes-auth"

// Global flags available to all subcommands.
var configFile string

// NewRootCmd creates the root command for the caribevibes CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "caribevibes",
		Short: "Caribe Vibes authentication service",
		Long: `Caribe Vibes authentication service: account registration, login and
session tokens for the booking platform.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path")

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewMigrateCmd())
	cmd.AddCommand(NewUsersCmd())

	return cmd
}

// loadRuntime reads the configuration and builds the process logger
func loadRuntime(cmd *cobra.Command) (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, nil, err
	}

	logger := logging.Setup(serviceName, cfg.Log.Format, cfg.Log.Level, cmd.ErrOrStderr())
	logger.Debug("effective configuration", "config", print.MaybePrettyJSON(cfg.Redacted()))

	return cfg, logger, nil
}

// openStore returns the store selected by cfg. For SQL drivers the schema
// is migrated and the default roles seeded when prepare is set.
func openStore(ctx context.Context, cfg *config.Config, prepare bool) (repository.Store, func() error, error) {
	if cfg.Database.Driver == repository.DriverMemory {
		return repository.NewMemoryStore(), func() error { return nil }, nil
	}

	db, err := repository.Open(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return nil, nil, oops.Code("DB_CONNECT_FAILED").With("driver", cfg.Database.Driver).Wrap(err)
	}

	manager := repository.NewManager(db, repository.WithQueryTimeout(cfg.Database.QueryTimeout))
	manager.MustValidate()

	if prepare {
		if err := prepareSchema(ctx, manager); err != nil {
			_ = manager.Close()
			return nil, nil, err
		}
	}

	return manager.Users(), manager.Close, nil
}

func prepareSchema(ctx context.Context, manager *repository.Manager) error {
	if err := manager.Migrate(ctx); err != nil {
		return oops.Code("MIGRATION_FAILED").With("operation", "run migrations").Wrap(err)
	}

	if err := manager.SeedRoles(ctx); err != nil {
		return oops.Code("SEED_FAILED").With("operation", "seed roles").Wrap(err)
	}

	return nil
}
