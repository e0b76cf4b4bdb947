package risk

import (
	"context"
	"errors"
	"time"

	"mt5Assistant/internal/domain"
	"mt5Assistant/internal/ports"

	"github.com/shopspring/decimal"
)

type mockLogger struct{}

func (m *mockLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {}
func (m *mockLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
}

// mockTrading implements the parts of ports.TradingAPI the guard uses.
type mockTrading struct {
	connected    bool
	login        string
	positions    []domain.Position
	positionsErr error
	closeErr     map[domain.Ticket]error
	closed       []domain.Ticket
}

func (m *mockTrading) Connect(ctx context.Context) error    { return nil }
func (m *mockTrading) IsConnected(ctx context.Context) bool { return m.connected }
func (m *mockTrading) TerminalInfo(ctx context.Context) (domain.TerminalInfo, error) {
	return domain.TerminalInfo{Connected: m.connected, TradeAllowed: true}, nil
}
func (m *mockTrading) SymbolInfo(ctx context.Context, symbol string) (domain.SymbolInfo, error) {
	return domain.SymbolInfo{}, errors.New("not implemented")
}
func (m *mockTrading) SubmitOrder(ctx context.Context, req domain.OrderRequest) (domain.Ticket, error) {
	return 0, errors.New("not implemented")
}
func (m *mockTrading) CancelOrder(ctx context.Context, order domain.PendingOrder) error { return nil }
func (m *mockTrading) ClosePosition(ctx context.Context, pos domain.Position) error {
	if err := m.closeErr[pos.Ticket]; err != nil {
		return err
	}
	m.closed = append(m.closed, pos.Ticket)
	open := make([]domain.Position, 0, len(m.positions))
	for _, p := range m.positions {
		if p.Ticket != pos.Ticket {
			open = append(open, p)
		}
	}
	m.positions = open
	return nil
}
func (m *mockTrading) ModifyPosition(ctx context.Context, pos domain.Position, stopLoss, takeProfit decimal.Decimal) error {
	return nil
}
func (m *mockTrading) Positions(ctx context.Context) ([]domain.Position, error) {
	if m.positionsErr != nil {
		return nil, m.positionsErr
	}
	return m.positions, nil
}
func (m *mockTrading) PendingOrders(ctx context.Context) ([]domain.PendingOrder, error) {
	return nil, nil
}
func (m *mockTrading) AccountInfo(ctx context.Context) (domain.AccountInfo, error) {
	return domain.AccountInfo{Login: m.login}, nil
}
func (m *mockTrading) Candles(ctx context.Context, symbol string, tf domain.Timeframe, count int) ([]domain.Candle, error) {
	return nil, nil
}
func (m *mockTrading) ClosedTrades(ctx context.Context, since time.Time) ([]domain.ClosedTrade, error) {
	return nil, nil
}

var _ ports.TradingAPI = (*mockTrading)(nil)

type mockTradeLog struct {
	realized decimal.Decimal
	err      error
	account  string
	day      domain.TradingDay
}

func (m *mockTradeLog) SaveTrades(ctx context.Context, trades []domain.ClosedTrade) (int, error) {
	return len(trades), nil
}
func (m *mockTradeLog) RealizedProfit(ctx context.Context, account string, day domain.TradingDay) (decimal.Decimal, error) {
	m.account, m.day = account, day
	return m.realized, m.err
}
func (m *mockTradeLog) TradesSince(ctx context.Context, account string, since time.Time) ([]domain.ClosedTrade, error) {
	return nil, nil
}

type mockEvents struct {
	events []domain.RiskEvent
}

func (m *mockEvents) RecordRiskEvent(ctx context.Context, event domain.RiskEvent) error {
	m.events = append(m.events, event)
	return nil
}
func (m *mockEvents) RecentRiskEvents(ctx context.Context, limit int) ([]domain.RiskEvent, error) {
	return m.events, nil
}

type mockCounter struct {
	count int
	err   error
}

func (m *mockCounter) TodayCount(ctx context.Context) (int, error) { return m.count, m.err }

type mockNotifier struct {
	messages []string
}

func (m *mockNotifier) Notify(ctx context.Context, text string) error {
	m.messages = append(m.messages, text)
	return nil
}
