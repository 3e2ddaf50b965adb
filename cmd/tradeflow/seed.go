package main

import (
	"github.com/spf13/cobra"

	"github.com/tradeflow-ai/tradeflow/internal/database"
	"github.com/tradeflow-ai/tradeflow/internal/seed"
)

func newSeedCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load sample users, clients and purchase orders",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			fixtures, err := loadFixtures(file)
			if err != nil {
				return err
			}
			cfg, log, err := setup()
			if err != nil {
				return err
			}
			db, err := openDB(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			repo := database.NewRepository(db, cfg.Database.QueryTimeout)
			_, err = seed.Apply(cmd.Context(), repo, fixtures, log)
			return err
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "fixture YAML file (defaults to the built-in sample data)")
	return cmd
}

func loadFixtures(path string) (*seed.Fixtures, error) {
	if path == "" {
		return seed.Default()
	}
	return seed.LoadFile(path)
}
