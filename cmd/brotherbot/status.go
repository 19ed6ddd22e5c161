package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/telemyapp/brother-bot/internal/bot"
	"github.com/telemyapp/brother-bot/internal/config"
	"github.com/telemyapp/brother-bot/internal/session"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Fetch the current usage once and print it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadFromEnv()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			c := buildComponents(cfg, newBrowser(cfg), session.LogProgress{})
			report, err := c.fetcher.Fetch(cmd.Context())
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), bot.FormatReport(report))
			return err
		},
	}
}
