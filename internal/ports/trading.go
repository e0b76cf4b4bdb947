package ports

import (
	"context"
	"time"

	"mt5Assistant/internal/domain"

	"github.com/shopspring/decimal"
)

// TradingAPI abstracts the trading terminal (MT5 bridge, Binance futures, paper).
// Implementations translate terminal failures into the errors in errors.go.
type TradingAPI interface {
	// Connect establishes the terminal session.
	Connect(ctx context.Context) error

	// IsConnected reports whether the session is usable.
	IsConnected(ctx context.Context) bool

	// TerminalInfo returns the connection and automated-trading flags.
	TerminalInfo(ctx context.Context) (domain.TerminalInfo, error)

	// SymbolInfo returns point size and current quotes for symbol.
	SymbolInfo(ctx context.Context, symbol string) (domain.SymbolInfo, error)

	// SubmitOrder sends a priced order and returns the assigned ticket.
	SubmitOrder(ctx context.Context, req domain.OrderRequest) (domain.Ticket, error)

	// CancelOrder removes a pending order.
	CancelOrder(ctx context.Context, order domain.PendingOrder) error

	// ClosePosition closes an open position at market.
	ClosePosition(ctx context.Context, pos domain.Position) error

	// ModifyPosition sets new stop-loss and take-profit levels on an open position.
	ModifyPosition(ctx context.Context, pos domain.Position, stopLoss, takeProfit decimal.Decimal) error

	// Positions lists open positions.
	Positions(ctx context.Context) ([]domain.Position, error)

	// PendingOrders lists resting orders.
	PendingOrders(ctx context.Context) ([]domain.PendingOrder, error)

	// AccountInfo returns the account summary.
	AccountInfo(ctx context.Context) (domain.AccountInfo, error)

	// Candles returns the latest count candles, newest first.
	Candles(ctx context.Context, symbol string, tf domain.Timeframe, count int) ([]domain.Candle, error)

	// ClosedTrades returns trades closed at or after since.
	ClosedTrades(ctx context.Context, since time.Time) ([]domain.ClosedTrade, error)
}
