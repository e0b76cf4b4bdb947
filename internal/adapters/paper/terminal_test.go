package paper

import (
	"context"
	"errors"
	"testing"
	"time"

	"mt5Assistant/internal/domain"
	"mt5Assistant/internal/ports"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockLogger struct{}

func (m *mockLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {}
func (m *mockLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
}

var _ ports.TradingAPI = (*Terminal)(nil)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func newTerminal(t *testing.T) *Terminal {
	t.Helper()
	term, err := NewTerminal(Config{
		Login:   "5550001",
		Balance: d("10000"),
		Symbols: []SymbolSpec{{Name: "EURUSD", Point: d("0.0001"), Digits: 4, ContractSize: d("100000")}},
		Logger:  &mockLogger{},
	})
	require.NoError(t, err)
	require.NoError(t, term.Connect(context.Background()))
	require.NoError(t, term.SetQuote("EURUSD", d("1.1000"), d("1.1002")))
	return term
}

func TestTerminal_RequiresConnection(t *testing.T) {
	term := newTerminal(t)
	term.SetConnected(false)

	_, err := term.Positions(context.Background())
	assert.ErrorIs(t, err, ports.ErrNotConnected)
	_, err = term.SubmitOrder(context.Background(), domain.OrderRequest{Symbol: "EURUSD", Side: domain.Buy, Kind: domain.KindMarket, Volume: d("0.1")})
	assert.ErrorIs(t, err, ports.ErrNotConnected)
}

func TestTerminal_MarketOrderProfitAndClose(t *testing.T) {
	term := newTerminal(t)
	ctx := context.Background()

	ticket, err := term.SubmitOrder(ctx, domain.OrderRequest{Symbol: "EURUSD", Side: domain.Buy, Kind: domain.KindMarket, Volume: d("0.1")})
	require.NoError(t, err)
	require.True(t, ticket.Valid())

	require.NoError(t, term.SetQuote("EURUSD", d("1.1012"), d("1.1014")))
	positions, err := term.Positions(ctx)
	require.NoError(t, err)
	require.Len(t, positions, 1)
	// (1.1012 - 1.1002) * 0.1 * 100000
	assert.True(t, positions[0].Profit.Equal(d("10")), "got %s", positions[0].Profit)

	require.NoError(t, term.ClosePosition(ctx, positions[0]))
	closed, err := term.ClosedTrades(ctx, time.Time{})
	require.NoError(t, err)
	require.Len(t, closed, 1)
	assert.Equal(t, "5550001", closed[0].Account)
	assert.True(t, closed[0].Profit.Equal(d("10")))

	acct, err := term.AccountInfo(ctx)
	require.NoError(t, err)
	assert.True(t, acct.Balance.Equal(d("10010")))

	assert.ErrorIs(t, term.ClosePosition(ctx, positions[0]), ports.ErrPositionNotFound)
}

func TestTerminal_StopOrderTriggersAndHitsStopLoss(t *testing.T) {
	term := newTerminal(t)
	ctx := context.Background()

	ticket, err := term.SubmitOrder(ctx, domain.OrderRequest{
		Symbol: "EURUSD", Side: domain.Buy, Kind: domain.KindStop, Volume: d("0.1"),
		Price: d("1.1010"), StopLoss: d("1.0990"),
	})
	require.NoError(t, err)
	pending, err := term.PendingOrders(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)

	require.NoError(t, term.SetQuote("EURUSD", d("1.1009"), d("1.1011")))
	pending, _ = term.PendingOrders(ctx)
	assert.Empty(t, pending)
	positions, _ := term.Positions(ctx)
	require.Len(t, positions, 1)
	assert.Equal(t, ticket, positions[0].Ticket)

	require.NoError(t, term.SetQuote("EURUSD", d("1.0989"), d("1.0991")))
	positions, _ = term.Positions(ctx)
	assert.Empty(t, positions)
	closed, _ := term.ClosedTrades(ctx, time.Time{})
	require.Len(t, closed, 1)
	assert.Equal(t, string(domain.CloseReasonStopLoss), closed[0].Comment)
	assert.True(t, closed[0].Profit.IsNegative())
}

func TestTerminal_RejectsInvalidStopsAndInjectedFailures(t *testing.T) {
	term := newTerminal(t)
	ctx := context.Background()

	_, err := term.SubmitOrder(ctx, domain.OrderRequest{Symbol: "EURUSD", Side: domain.Buy, Kind: domain.KindStop, Volume: d("0.1"), Price: d("1.0900")})
	assert.ErrorIs(t, err, ports.ErrOrderRejected)

	term.RejectNext(errors.New("requote"))
	_, err = term.SubmitOrder(ctx, domain.OrderRequest{Symbol: "EURUSD", Side: domain.Sell, Kind: domain.KindMarket, Volume: d("0.1")})
	assert.EqualError(t, err, "requote")

	_, err = term.SubmitOrder(ctx, domain.OrderRequest{Symbol: "GBPUSD", Side: domain.Sell, Kind: domain.KindMarket, Volume: d("0.1")})
	assert.ErrorIs(t, err, ports.ErrSymbolNotFound)

	_, err = term.SubmitOrder(ctx, domain.OrderRequest{Symbol: "EURUSD", Side: domain.Buy, Kind: domain.KindMarket, Volume: d("100")})
	assert.ErrorIs(t, err, ports.ErrInsufficientFunds)
}

func TestTerminal_Candles(t *testing.T) {
	term := newTerminal(t)
	ctx := context.Background()
	base := time.Date(2024, 5, 2, 10, 0, 0, 0, time.UTC)
	term.SeedCandles("EURUSD", domain.M5, []domain.Candle{
		{OpenTime: base, High: d("1.1010")},
		{OpenTime: base.Add(5 * time.Minute), High: d("1.1020")},
		{OpenTime: base.Add(10 * time.Minute), High: d("1.1030")},
	})

	candles, err := term.Candles(ctx, "EURUSD", domain.M5, 2)
	require.NoError(t, err)
	require.Len(t, candles, 2)
	assert.True(t, candles[0].High.Equal(d("1.1030")), "newest first")

	var now time.Time
	term.now = func() time.Time { return now }
	for i, bid := range []string{"1.1000", "1.1005", "1.0995", "1.1001"} {
		now = base.Add(time.Duration(i*20) * time.Second)
		require.NoError(t, term.SetQuote("EURUSD", d(bid), d(bid).Add(d("0.0002"))))
	}
	built, err := term.Candles(ctx, "EURUSD", domain.M1, 2)
	require.NoError(t, err)
	require.Len(t, built, 2)
	assert.True(t, built[1].Open.Equal(d("1.1000")))
	assert.True(t, built[1].High.Equal(d("1.1005")))
	assert.True(t, built[1].Low.Equal(d("1.0995")))
	assert.True(t, built[0].Close.Equal(d("1.1001")))
}

func TestTerminal_ModifyPosition(t *testing.T) {
	term := newTerminal(t)
	ctx := context.Background()

	ticket, err := term.SubmitOrder(ctx, domain.OrderRequest{Symbol: "EURUSD", Side: domain.Buy, Kind: domain.KindMarket, Volume: d("0.1"), StopLoss: d("1.09"), TakeProfit: d("1.12")})
	require.NoError(t, err)

	require.NoError(t, term.ModifyPosition(ctx, domain.Position{Ticket: ticket}, d("1.0995"), d("1.12")))
	positions, err := term.Positions(ctx)
	require.NoError(t, err)
	require.Len(t, positions, 1)
	assert.Equal(t, "1.0995", positions[0].StopLoss.String())
	assert.Equal(t, "1.12", positions[0].TakeProfit.String())

	// buy stop above the bid
	err = term.ModifyPosition(ctx, domain.Position{Ticket: ticket}, d("1.1001"), d("1.12"))
	assert.ErrorIs(t, err, ports.ErrInvalidArgument)

	err = term.ModifyPosition(ctx, domain.Position{Ticket: 1}, d("1.09"), decimal.Zero)
	assert.ErrorIs(t, err, ports.ErrPositionNotFound)

	// the new stop is live
	require.NoError(t, term.SetQuote("EURUSD", d("1.0995"), d("1.0997")))
	positions, err = term.Positions(ctx)
	require.NoError(t, err)
	assert.Empty(t, positions)
}
