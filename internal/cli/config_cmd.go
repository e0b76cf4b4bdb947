package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"mt5Assistant/config"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Generate or validate the settings document",
		Long: `Manage the trading settings document.

Subcommands:
  init     - Write the default settings
  validate - Load and check an existing settings document

Examples:
  mt5assistant config init --output settings.yaml
  mt5assistant config validate --file settings.yaml`,
	}
	cmd.AddCommand(newConfigInitCmd(), newConfigValidateCmd())
	return cmd
}

func newConfigInitCmd() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write the default settings document",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.Default().SaveToFile(output); err != nil {
				return fmt.Errorf("save settings: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created default settings: %s\n", output)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "settings.yaml", "output path (.yaml/.yml writes YAML, anything else JSON)")
	return cmd
}

func newConfigValidateCmd() *cobra.Command {
	var path string
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate a settings document",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := config.LoadSettings(path)
			if err != nil {
				return fmt.Errorf("validation failed: %w", err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Settings valid: %s\n", path)
			fmt.Fprintf(out, "  Symbols: %v\n", s.Symbols)
			fmt.Fprintf(out, "  Daily loss limit: %s, daily trade limit: %d\n", s.LossLimit(), s.DailyTradeLimit)
			fmt.Fprintf(out, "  Batch slots: %d, SL mode: %s\n", len(s.BatchOrderDefaults), s.SLMode.DefaultMode)
			return nil
		},
	}
	cmd.Flags().StringVarP(&path, "file", "f", "", "path to the settings document (required)")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}
