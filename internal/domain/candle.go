package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Candle represents a single OHLC bar as reported by the terminal.
type Candle struct {
	OpenTime  time.Time
	Symbol    string
	Timeframe Timeframe
	Open      decimal.Decimal
	High      decimal.Decimal
	Low       decimal.Decimal
	Close     decimal.Decimal
	Volume    decimal.Decimal
}
