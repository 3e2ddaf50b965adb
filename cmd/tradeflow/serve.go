package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/tradeflow-ai/tradeflow/internal/app"
)

func newServeCmd() *cobra.Command {
	var migrate bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and scheduled jobs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := setup()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			application, err := app.New(ctx, cfg, log, app.Options{Migrate: migrate})
			if err != nil {
				return err
			}

			runErr := application.Run(ctx)
			log.Info("shutting down")
			if err := application.Shutdown(context.Background()); err != nil {
				log.WithError(err).Error("graceful shutdown failed")
			}
			return runErr
		},
	}
	cmd.Flags().BoolVar(&migrate, "migrate", true, "apply pending migrations before serving")
	return cmd
}
