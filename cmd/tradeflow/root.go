package main

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"

	"github.com/tradeflow-ai/tradeflow/internal/config"
	"github.com/tradeflow-ai/tradeflow/internal/database"
	"github.com/tradeflow-ai/tradeflow/internal/logging"
)

const serviceName = "tradeflow"

// loadConfig is replaced in tests.
var loadConfig = config.Load

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           serviceName,
		Short:         "TradeFlow purchase order processing API",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newServeCmd(), newMigrateCmd(), newSeedCmd())
	return root
}

func setup() (*config.Config, *logging.Logger, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, logging.New(serviceName, cfg.Logging.Level, cfg.Logging.Format), nil
}

func openDB(ctx context.Context, cfg *config.Config) (*sqlx.DB, error) {
	return database.Open(ctx, database.Config{
		URL:             cfg.Database.URL,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		QueryTimeout:    cfg.Database.QueryTimeout,
	})
}
