package main

import (
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "brotherbot",
		Short: "Reports printer subscription usage over Telegram",
		Long: `brotherbot logs into the printer subscription portal with a headless
browser, reads page usage for your device and answers /status on Telegram.

Configuration is read from BROTHERBOT_* environment variables.`,
		SilenceUsage: true,
	}
	root.AddCommand(newRunCmd(), newStatusCmd(), newLoginCmd())
	return root
}
