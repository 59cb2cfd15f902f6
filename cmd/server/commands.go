package main

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"storefinder/internal/adapters/storage"
	"storefinder/internal/config"
)

var configPath string

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "storefinder",
		Short:        "Store directory and ownership service",
		Version:      version,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(commandContext(cmd))
		},
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to a YAML config file (default ./config.yaml if present)")
	root.AddCommand(serveCmd(), migrateCmd())
	return root
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and outbox worker",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(commandContext(cmd))
		},
	}
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(commandContext(cmd), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runMigrate(ctx, cfg)
		},
	}
}

// loadConfig resolves configuration and installs the process logger.
func loadConfig() (config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return config.Config{}, fmt.Errorf("load config: %w", err)
	}
	slog.SetDefault(config.NewLogger(cfg))
	return cfg, nil
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// runMigrate brings the SQLite schema (and the Mongo indexes when selected) up to date.
func runMigrate(ctx context.Context, cfg config.Config) error {
	db, err := storage.OpenSQLite(cfg.DBPath)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := storage.MigrateDB(ctx, db); err != nil {
		return fmt.Errorf("migrate sqlite: %w", err)
	}
	if cfg.DBDriver == config.DriverMongo {
		repo, closeMongo, err := openMongoStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer closeMongo()
		if err := repo.Migrate(ctx); err != nil {
			return fmt.Errorf("migrate mongo: %w", err)
		}
	}
	slog.Info("migrations_applied", "db_path", cfg.DBPath, "schema", storage.LatestSchemaVersion(), "driver", cfg.DBDriver)
	return nil
}
