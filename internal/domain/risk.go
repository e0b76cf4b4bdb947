package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// PnLSnapshot is the profit picture of one trading day. It is never persisted.
// RealizedErr and UnrealizedErr are set when the component could not be read
// and was counted as zero.
type PnLSnapshot struct {
	TradingDay    TradingDay
	Realized      decimal.Decimal
	Unrealized    decimal.Decimal
	Total         decimal.Decimal
	RealizedErr   error
	UnrealizedErr error
}

// Complete reports whether both components were read successfully.
func (s PnLSnapshot) Complete() bool {
	return s.RealizedErr == nil && s.UnrealizedErr == nil
}

// RiskEventType classifies an audit entry of the risk log.
type RiskEventType string

const (
	RiskEventDailyLossLimit RiskEventType = "DAILY_LOSS_LIMIT"
	RiskEventTradeLimit     RiskEventType = "DAILY_TRADE_LIMIT"
	RiskEventCloseAll       RiskEventType = "CLOSE_ALL"
	RiskEventPartialBatch   RiskEventType = "PARTIAL_BATCH"
)

// RiskEvent is one row of the persisted risk audit log.
type RiskEvent struct {
	ID      string        `db:"event_id" json:"id"`
	Time    time.Time     `db:"timestamp" json:"time"`
	Type    RiskEventType `db:"event_type" json:"type"`
	Details string        `db:"details" json:"details"`
}
