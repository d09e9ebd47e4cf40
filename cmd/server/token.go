package main

import (
	"encoding/json"
	"errors"
	"heartspeak/internal/config"
	"heartspeak/internal/service"
	"time"

	"github.com/spf13/cobra"
)

func newTokenCmd(load func() (*config.Config, error)) *cobra.Command {
	var (
		role string
		ttl  time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token <userId>",
		Short: "Mint a bearer token for a user (development)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			if cfg.JWTSecret == "" {
				return errors.New("jwt secret is required (JWT_SECRET)")
			}

			resp, err := service.NewAuthService(cfg.JWTSecret).IssueToken(args[0], role, ttl)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(resp)
		},
	}
	cmd.Flags().StringVar(&role, "role", "user", "role claim")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	return cmd
}
