package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"mt5Assistant/internal/app"
	"mt5Assistant/internal/domain"
)

func newTradesCmd(settingsPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "trades",
		Short: "Synchronise and analyse closed trades",
	}
	cmd.AddCommand(newTradesSyncCmd(settingsPath), newTradesStatsCmd(settingsPath))
	return cmd
}

// withService bootstraps the service, connects the terminal and runs fn while the scheduler loop is live.
func withService(cmd *cobra.Command, settingsPath string, fn func(ctx context.Context, rt *runtime) error) error {
	cfg, settings, err := loadConfig(settingsPath)
	if err != nil {
		return err
	}
	rt, err := bootstrap(cfg, settings, prometheus.NewRegistry())
	if err != nil {
		return err
	}
	defer rt.Close()

	ctx, cancel := context.WithCancel(contextOf(cmd))
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- rt.sched.Run(ctx) }()

	if err := rt.trading.Connect(ctx); err != nil {
		return fmt.Errorf("connect terminal: %w", err)
	}
	runErr := fn(ctx, rt)
	cancel()
	if err := <-done; err != nil && runErr == nil {
		runErr = err
	}
	return runErr
}

func newTradesSyncCmd(settingsPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Pull recently closed trades into the trade log",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd, *settingsPath, func(ctx context.Context, rt *runtime) error {
				n, err := rt.service.SyncTrades(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Stored %d new closed trades\n", n)
				return nil
			})
		},
	}
}

func newTradesStatsCmd(settingsPath *string) *cobra.Command {
	var (
		days int
		from string
	)
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Print performance statistics as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if days <= 0 {
				return fmt.Errorf("--days must be positive, got %d", days)
			}
			req := app.StatisticsRequest{Days: days}
			if from != "" {
				day, err := domain.ParseTradingDay(from)
				if err != nil {
					return fmt.Errorf("--from: %w", err)
				}
				req.From = day
			}
			return withService(cmd, *settingsPath, func(ctx context.Context, rt *runtime) error {
				report, err := rt.service.Statistics(ctx, req)
				if err != nil {
					return err
				}
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(report)
			})
		},
	}
	cmd.Flags().IntVarP(&days, "days", "d", 30, "cover this many trading days, today included")
	cmd.Flags().StringVar(&from, "from", "", "start trading day (YYYY-MM-DD), overrides --days")
	return cmd
}
