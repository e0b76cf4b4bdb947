package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Position is an open position as reported by the terminal.
type Position struct {
	Ticket     Ticket
	Symbol     string
	Side       OrderSide
	Volume     decimal.Decimal
	OpenPrice  decimal.Decimal
	StopLoss   decimal.Decimal
	TakeProfit decimal.Decimal
	Profit     decimal.Decimal // floating profit in account currency
	OpenTime   time.Time
	Comment    string
}

// PendingOrder is a resting (not yet triggered) order on the terminal.
type PendingOrder struct {
	Ticket     Ticket
	Symbol     string
	Side       OrderSide
	Kind       OrderKind
	Volume     decimal.Decimal
	Price      decimal.Decimal
	StopLoss   decimal.Decimal
	TakeProfit decimal.Decimal
	Comment    string
}
