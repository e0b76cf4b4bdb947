package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ClosedTrade is one row of the realized-trade log. PositionID is the dedup key.
type ClosedTrade struct {
	PositionID string          `db:"position_id"`
	Account    string          `db:"account"`
	Symbol     string          `db:"symbol"`
	Side       OrderSide       `db:"side"`
	Volume     decimal.Decimal `db:"volume"`
	OpenPrice  decimal.Decimal `db:"open_price"`
	ClosePrice decimal.Decimal `db:"close_price"`
	OpenTime   time.Time       `db:"open_time"`
	CloseTime  time.Time       `db:"close_time"`
	TradingDay TradingDay      `db:"trading_day"`
	Profit     decimal.Decimal `db:"profit"`
	Comment    string          `db:"comment"`
}
