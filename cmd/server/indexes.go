package main

import (
	"heartspeak/internal/app"
	"heartspeak/internal/config"

	"github.com/spf13/cobra"
)

func newIndexesCmd(load func() (*config.Config, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "indexes",
		Short: "Create the MongoDB indexes and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			logger, err := newLogger(cfg.Log)
			if err != nil {
				return err
			}
			defer logger.Sync()

			ctx := cmd.Context()
			a, err := app.Connect(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close(ctx)

			if err := a.EnsureIndexes(ctx); err != nil {
				return err
			}
			logger.Info("indexes created")
			return nil
		},
	}
}
