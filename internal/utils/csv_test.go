package utils

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"mt5Assistant/internal/domain"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func candle(minute int, close string) domain.Candle {
	c := decimal.RequireFromString(close)
	return domain.Candle{
		OpenTime:  time.Date(2026, 10, 16, 9, minute, 0, 0, time.UTC),
		Symbol:    "EURUSD",
		Timeframe: domain.M1,
		Open:      c,
		High:      c.Add(decimal.RequireFromString("0.0005")),
		Low:       c.Sub(decimal.RequireFromString("0.0005")),
		Close:     c,
		Volume:    decimal.NewFromInt(120),
	}
}

func TestWriteCandlesCSV_OldestFirst(t *testing.T) {
	var buf bytes.Buffer
	newestFirst := []domain.Candle{candle(2, "1.1020"), candle(1, "1.1010"), candle(0, "1.1000")}

	require.NoError(t, WriteCandlesCSV(&buf, newestFirst))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "open_time,symbol,timeframe,open,high,low,close,volume", lines[0])
	assert.Equal(t, "2026-10-16T09:00:00Z,EURUSD,M1,1.1,1.1005,1.0995,1.1,120", lines[1])
	assert.True(t, strings.HasPrefix(lines[3], "2026-10-16T09:02:00Z"))
}

func TestWriteCandlesToFile_CreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "EURUSD_M1.csv")

	require.NoError(t, WriteCandlesToFile([]domain.Candle{candle(0, "1.1")}, path))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "EURUSD,M1")
}
