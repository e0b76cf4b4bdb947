// Package cli holds the cobra commands of the mt5assistant binary.
package cli

import (
	"github.com/spf13/cobra"
)

// NewRootCommand assembles the command tree. Running it without a subcommand serves.
func NewRootCommand() *cobra.Command {
	var settingsPath string

	root := &cobra.Command{
		Use:   "mt5assistant",
		Short: "Batch order entry and daily risk guard for a trading terminal",
		Long: `mt5assistant places batches of market or breakout orders on a trading terminal,
tracks the daily trade count and closes everything when the daily loss limit is hit.

Process configuration comes from the environment (.env is read when present),
trading settings from the settings document (SETTINGS_PATH or --settings).`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, settingsPath)
		},
	}
	root.PersistentFlags().StringVarP(&settingsPath, "settings", "s", "", "settings document path (overrides SETTINGS_PATH)")

	root.AddCommand(
		newServeCmd(&settingsPath),
		newConfigCmd(),
		newCounterCmd(&settingsPath),
		newRiskCmd(&settingsPath),
		newTradesCmd(&settingsPath),
		newPositionsCmd(&settingsPath),
		NewFetchRatesCommand(),
	)
	return root
}

// Execute runs the root command.
func Execute() error {
	return NewRootCommand().Execute()
}
