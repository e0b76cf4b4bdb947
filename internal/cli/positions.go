package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"mt5Assistant/internal/app"
	"mt5Assistant/internal/domain"
)

func newPositionsCmd(settingsPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "positions",
		Short: "Move the stops of open positions",
	}
	cmd.AddCommand(newBreakevenCmd(settingsPath), newStopsToCandleCmd(settingsPath))
	return cmd
}

func newBreakevenCmd(settingsPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "breakeven",
		Short: "Move every stop to its entry price, shifted by breakeven_offset_points",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd, *settingsPath, func(ctx context.Context, rt *runtime) error {
				res, err := rt.service.BreakevenAll(ctx)
				printModifyResult(cmd.OutOrStdout(), res)
				return err
			})
		},
	}
}

func newStopsToCandleCmd(settingsPath *string) *cobra.Command {
	var (
		count     int
		timeframe string
	)
	cmd := &cobra.Command{
		Use:   "stops-to-candle",
		Short: "Move the stops of the oldest positions to the previous candle's extreme",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			req := app.MoveStopsRequest{Count: count}
			if timeframe != "" {
				tf, err := domain.ParseTimeframe(timeframe)
				if err != nil {
					return err
				}
				req.Timeframe = tf
			}
			return withService(cmd, *settingsPath, func(ctx context.Context, rt *runtime) error {
				res, err := rt.service.MoveStopsToCandle(ctx, req)
				printModifyResult(cmd.OutOrStdout(), res)
				return err
			})
		},
	}
	cmd.Flags().IntVarP(&count, "count", "n", 0, "oldest positions to move, 0 for all")
	cmd.Flags().StringVarP(&timeframe, "timeframe", "t", "", "candle timeframe (defaults to default_timeframe)")
	return cmd
}

func printModifyResult(w io.Writer, res app.ModifyResult) {
	fmt.Fprintf(w, "Moved %d of %d stops", len(res.Modified), res.Total)
	if len(res.Skipped) > 0 {
		fmt.Fprintf(w, ", %d already tighter", len(res.Skipped))
	}
	if len(res.Failed) > 0 {
		fmt.Fprintf(w, ", failed: %v", res.Failed)
	}
	fmt.Fprintln(w)
}
