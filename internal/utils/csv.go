package utils

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"mt5Assistant/internal/domain"
)

var candleHeader = []string{"open_time", "symbol", "timeframe", "open", "high", "low", "close", "volume"}

// WriteCandlesCSV writes candles oldest first. The input is newest first, as terminals return it.
func WriteCandlesCSV(w io.Writer, candles []domain.Candle) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(candleHeader); err != nil {
		return err
	}
	for i := len(candles) - 1; i >= 0; i-- {
		c := candles[i]
		if err := writer.Write([]string{
			c.OpenTime.UTC().Format(time.RFC3339),
			c.Symbol,
			string(c.Timeframe),
			c.Open.String(),
			c.High.String(),
			c.Low.String(),
			c.Close.String(),
			c.Volume.String(),
		}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// WriteCandlesToFile creates filename (and its directory) and writes candles to it.
func WriteCandlesToFile(candles []domain.Candle, filename string) error {
	if dir := filepath.Dir(filename); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()
	return WriteCandlesCSV(file, candles)
}
