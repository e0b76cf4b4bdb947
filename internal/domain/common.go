package domain

import (
	"fmt"
	"strings"
	"time"
)

// OrderSide represents the side of an order (buy or sell).
type OrderSide string

const (
	Buy  OrderSide = "buy"
	Sell OrderSide = "sell"
)

// ParseOrderSide converts user input into an OrderSide. Matching is case-insensitive.
func ParseOrderSide(s string) (OrderSide, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "buy":
		return Buy, nil
	case "sell":
		return Sell, nil
	default:
		return "", fmt.Errorf("unknown order side %q", s)
	}
}

// Valid reports whether the side is one of Buy or Sell.
func (s OrderSide) Valid() bool {
	return s == Buy || s == Sell
}

// Opposite returns the closing side for a position opened with s.
func (s OrderSide) Opposite() OrderSide {
	if s == Buy {
		return Sell
	}
	return Buy
}

// OrderKind distinguishes immediate market orders from pending stop (breakout) orders.
type OrderKind string

const (
	KindMarket OrderKind = "market"
	KindStop   OrderKind = "stop"
)

// Ticket is the terminal-assigned identifier of an order or position. Zero means "no ticket".
type Ticket int64

// Valid reports whether the ticket was assigned by the terminal.
func (t Ticket) Valid() bool { return t > 0 }

// CloseReason indicates why a position was closed.
type CloseReason string

const (
	CloseReasonStopLoss       CloseReason = "SL"
	CloseReasonTakeProfit     CloseReason = "TP"
	CloseReasonManual         CloseReason = "MANUAL"
	CloseReasonDailyLossLimit CloseReason = "DAILY_LOSS_LIMIT"
	CloseReasonUnknown        CloseReason = "Unknown"
)

// Timeframe is a candle period such as M1 or H4.
type Timeframe string

const (
	M1  Timeframe = "M1"
	M5  Timeframe = "M5"
	M15 Timeframe = "M15"
	M30 Timeframe = "M30"
	H1  Timeframe = "H1"
	H4  Timeframe = "H4"
)

// ParseTimeframe validates a timeframe string. Unknown values are rejected.
func ParseTimeframe(s string) (Timeframe, error) {
	tf := Timeframe(strings.ToUpper(strings.TrimSpace(s)))
	switch tf {
	case M1, M5, M15, M30, H1, H4:
		return tf, nil
	default:
		return "", fmt.Errorf("unknown timeframe %q", s)
	}
}

// Duration returns the length of one candle of the timeframe.
func (tf Timeframe) Duration() time.Duration {
	switch tf {
	case M1:
		return time.Minute
	case M5:
		return 5 * time.Minute
	case M15:
		return 15 * time.Minute
	case M30:
		return 30 * time.Minute
	case H1:
		return time.Hour
	case H4:
		return 4 * time.Hour
	default:
		return 0
	}
}
