package ports

import (
	"context"
	"time"

	"mt5Assistant/internal/domain"

	"github.com/shopspring/decimal"
)

// CounterRepository persists one DailyCounter per trading day.
type CounterRepository interface {
	// EnsureDay creates a zero row for day if none exists.
	EnsureDay(ctx context.Context, day domain.TradingDay) error
	// Count returns the counter for day, 0 if absent.
	Count(ctx context.Context, day domain.TradingDay) (int, error)
	// Increment atomically adds one to the counter for day, creating it if needed.
	Increment(ctx context.Context, day domain.TradingDay) error
	// History returns up to n counters, most recent first.
	History(ctx context.Context, n int) ([]domain.DailyCounter, error)
}

// TradeLog is the realized-trade log keyed by account.
type TradeLog interface {
	// SaveTrades stores trades, ignoring those whose position id is already present.
	// Returns the number of new rows.
	SaveTrades(ctx context.Context, trades []domain.ClosedTrade) (int, error)
	// RealizedProfit sums the profit of account's trades closed on day.
	RealizedProfit(ctx context.Context, account string, day domain.TradingDay) (decimal.Decimal, error)
	// TradesSince lists account's trades closed at or after since, oldest first.
	TradesSince(ctx context.Context, account string, since time.Time) ([]domain.ClosedTrade, error)
}

// RiskEventStore persists risk audit events.
type RiskEventStore interface {
	RecordRiskEvent(ctx context.Context, event domain.RiskEvent) error
	// RecentRiskEvents returns up to limit events, newest first.
	RecentRiskEvents(ctx context.Context, limit int) ([]domain.RiskEvent, error)
}
