package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/telemyapp/brother-bot/internal/config"
	"github.com/telemyapp/brother-bot/internal/session"
)

func newLoginCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Log into the portal and overwrite the cached token and cookies",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadFromEnv()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			c := buildComponents(cfg, newBrowser(cfg), session.LogProgress{})
			creds, err := c.acquirer.Acquire(cmd.Context())
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "saved token (%d bytes) to %s and cookies (%d bytes) to %s\n",
				len(creds.BearerToken), cfg.TokenFile, len(creds.CookieHeader), cfg.CookieFile)
			return err
		},
	}
}
