package cli

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newCounterCmd(settingsPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "counter",
		Short: "Inspect the daily trade counter",
	}
	var days int
	history := &cobra.Command{
		Use:   "history",
		Short: "List the most recent daily counters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, settings, err := loadConfig(*settingsPath)
			if err != nil {
				return err
			}
			rt, err := openStore(cfg, settings)
			if err != nil {
				return err
			}
			defer rt.Close()

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "DATE\tCOUNT")
			for _, c := range rt.counter.GetHistory(contextOf(cmd), days) {
				fmt.Fprintf(w, "%s\t%d\n", c.Date, c.Count)
			}
			return w.Flush()
		},
	}
	history.Flags().IntVarP(&days, "days", "n", 30, "number of trading days")
	cmd.AddCommand(history)
	return cmd
}

func newRiskCmd(settingsPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "risk",
		Short: "Inspect the risk audit log",
	}
	var limit int
	events := &cobra.Command{
		Use:   "events",
		Short: "List the most recent risk events",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, settings, err := loadConfig(*settingsPath)
			if err != nil {
				return err
			}
			rt, err := openStore(cfg, settings)
			if err != nil {
				return err
			}
			defer rt.Close()

			list, err := rt.repo.RecentRiskEvents(contextOf(cmd), limit)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "TIME\tTYPE\tDETAILS")
			for _, e := range list {
				fmt.Fprintf(w, "%s\t%s\t%s\n", e.Time.Format("2006-01-02 15:04:05"), e.Type, e.Details)
			}
			return w.Flush()
		},
	}
	events.Flags().IntVarP(&limit, "limit", "n", 50, "maximum number of events")
	cmd.AddCommand(events)
	return cmd
}

// contextOf returns the command context, or Background when run outside Execute.
func contextOf(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
