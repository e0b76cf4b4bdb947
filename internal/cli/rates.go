package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"mt5Assistant/internal/domain"
	"mt5Assistant/internal/utils"
)

// NewFetchRatesCommand downloads candles from the configured terminal into a CSV file.
func NewFetchRatesCommand() *cobra.Command {
	var (
		settingsPath string
		symbol       string
		timeframe    string
		count        int
		output       string
	)
	cmd := &cobra.Command{
		Use:   "fetch-rates",
		Short: "Download recent candles into a CSV file",
		Example: `  mt5assistant fetch-rates --symbol XAUUSD --timeframe M15 --count 500
  fetch_rates -y EURUSD -t H1 -o data/eurusd_h1.csv`,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			tf, err := domain.ParseTimeframe(timeframe)
			if err != nil {
				return err
			}
			if count <= 0 {
				return fmt.Errorf("--count must be positive, got %d", count)
			}
			cfg, settings, err := loadConfig(settingsPath)
			if err != nil {
				return err
			}
			rt, err := openStore(cfg, settings)
			if err != nil {
				return err
			}
			defer rt.Close()

			ctx := contextOf(cmd)
			trading, err := newTradingAPI(cfg, settings, rt.logger)
			if err != nil {
				return err
			}
			if err := trading.Connect(ctx); err != nil {
				return fmt.Errorf("connect terminal: %w", err)
			}
			sym := strings.ToUpper(strings.TrimSpace(symbol))
			candles, err := trading.Candles(ctx, sym, tf, count)
			if err != nil {
				return fmt.Errorf("fetch candles: %w", err)
			}
			rt.logger.Info(ctx, "Fetched candles", map[string]interface{}{"symbol": sym, "timeframe": string(tf), "count": len(candles)})

			filename := output
			if filename == "" {
				filename = fmt.Sprintf("data/%s_%s_%s.csv", sym, tf, time.Now().Format("20060102"))
			}
			if err := utils.WriteCandlesToFile(candles, filename); err != nil {
				return fmt.Errorf("write CSV: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Saved %d candles to %s\n", len(candles), filename)
			return nil
		},
	}
	cmd.Flags().StringVarP(&settingsPath, "settings", "s", "", "settings document path (overrides SETTINGS_PATH)")
	cmd.Flags().StringVarP(&symbol, "symbol", "y", "", "symbol to download (required)")
	cmd.Flags().StringVarP(&timeframe, "timeframe", "t", "M15", "candle timeframe (M1, M5, M15, M30, H1, H4)")
	cmd.Flags().IntVarP(&count, "count", "n", 500, "number of candles")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default data/<symbol>_<tf>_<date>.csv)")
	_ = cmd.MarkFlagRequired("symbol")
	return cmd
}
