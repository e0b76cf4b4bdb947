package binanceclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"mt5Assistant/internal/domain"
	"mt5Assistant/internal/ports"

	"github.com/adshao/go-binance/v2/common"
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

var _ ports.TradingAPI = (*Client)(nil)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// fakeFutures serves canned Binance futures responses keyed by path suffix.
type fakeFutures struct {
	mu        sync.Mutex
	responses map[string]string
	status    map[string]int
	orders    []url.Values
}

func (f *fakeFutures) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	_ = r.ParseForm()
	f.mu.Lock()
	defer f.mu.Unlock()
	if strings.HasSuffix(r.URL.Path, "/order") && r.Method == http.MethodPost {
		f.orders = append(f.orders, r.Form)
	}
	for suffix, body := range f.responses {
		if strings.HasSuffix(r.URL.Path, suffix) {
			if code, ok := f.status[suffix]; ok {
				w.WriteHeader(code)
			}
			fmt.Fprint(w, body)
			return
		}
	}
	w.WriteHeader(http.StatusNotFound)
	fmt.Fprint(w, `{"code":-1,"msg":"unexpected path"}`)
}

func (f *fakeFutures) placedOrders() []url.Values {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]url.Values(nil), f.orders...)
}

func newTestClient(t *testing.T, responses map[string]string) (*Client, *fakeFutures) {
	t.Helper()
	fake := &fakeFutures{responses: responses, status: map[string]int{}}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	client, err := New(Config{
		APIKey:               "key",
		SecretKey:            "secret",
		BaseURL:              srv.URL,
		Symbols:              []string{"BTCUSDT"},
		Logger:               &mockLogger{},
		ReconnectDelay:       time.Millisecond,
		MaxReconnectAttempts: 2,
	})
	require.NoError(t, err)
	return client, fake
}

func TestHandleError(t *testing.T) {
	client, err := New(Config{Logger: &mockLogger{}})
	require.NoError(t, err)
	ctx := context.Background()

	tests := []struct {
		name string
		err  error
		want error
	}{
		{"rate limit", &common.APIError{Code: -1003, Message: "Too many requests"}, ports.ErrRateLimited},
		{"bad signature", &common.APIError{Code: -1022, Message: "Signature invalid"}, ports.ErrAuthenticationFailed},
		{"invalid key", &common.APIError{Code: -2015, Message: "Invalid API-key"}, ports.ErrAuthenticationFailed},
		{"invalid symbol", &common.APIError{Code: -1121, Message: "Invalid symbol"}, ports.ErrSymbolNotFound},
		{"bad quantity", &common.APIError{Code: -4003, Message: "Quantity less than zero"}, ports.ErrInvalidArgument},
		{"order rejected", &common.APIError{Code: -2021, Message: "Order would immediately trigger"}, ports.ErrOrderRejected},
		{"margin", &common.APIError{Code: -2019, Message: "Margin is insufficient"}, ports.ErrInsufficientFunds},
		{"unknown order", &common.APIError{Code: -2013, Message: "Order does not exist"}, ports.ErrOrderNotFound},
		{"unmapped code", &common.APIError{Code: -9999, Message: "?"}, ports.ErrExternalAPIFailure},
		{"deadline", context.DeadlineExceeded, ports.ErrTimeout},
		{"canceled", context.Canceled, ports.ErrContextCanceled},
		{"refused", errors.New("dial tcp: connection refused"), ports.ErrConnectionFailed},
		{"other", errors.New("boom"), ports.ErrExternalAPIFailure},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := client.handleError(ctx, tt.err, "op")
			assert.ErrorIs(t, got, tt.want)
		})
	}
	assert.NoError(t, client.handleError(ctx, nil, "op"))
}

func TestClient_Connect(t *testing.T) {
	client, _ := newTestClient(t, map[string]string{
		"/ping": `{}`,
		"/time": fmt.Sprintf(`{"serverTime":%d}`, time.Now().UnixMilli()),
	})
	ctx := context.Background()

	assert.False(t, client.IsConnected(ctx))
	require.NoError(t, client.Connect(ctx))
	assert.True(t, client.IsConnected(ctx))
}

func TestClient_ConnectGivesUp(t *testing.T) {
	client, _ := newTestClient(t, map[string]string{})

	err := client.Connect(context.Background())
	assert.ErrorIs(t, err, ports.ErrConnectionFailed)
	assert.False(t, client.IsConnected(context.Background()))
}

func TestClient_SymbolInfo(t *testing.T) {
	client, _ := newTestClient(t, map[string]string{
		"/exchangeInfo": `{"symbols":[{"symbol":"BTCUSDT","pricePrecision":1,"quantityPrecision":3,
			"filters":[{"filterType":"PRICE_FILTER","minPrice":"0.10","maxPrice":"1000000","tickSize":"0.10"}]}]}`,
		"/ticker/bookTicker": `[{"symbol":"BTCUSDT","bidPrice":"65000.10","bidQty":"1.5","askPrice":"65000.30","askQty":"2"}]`,
	})
	ctx := context.Background()

	info, err := client.SymbolInfo(ctx, "BTCUSDT")
	require.NoError(t, err)
	assert.Equal(t, "0.1", info.Point.String())
	assert.Equal(t, int32(1), info.Digits)
	assert.Equal(t, "65000.1", info.Bid.String())
	assert.Equal(t, "0.2", info.Spread().String())

	_, err = client.SymbolInfo(ctx, "ETHUSDT")
	assert.ErrorIs(t, err, ports.ErrSymbolNotFound)
}

func TestClient_SubmitMarketOrderWithProtection(t *testing.T) {
	client, fake := newTestClient(t, map[string]string{
		"/order": `{"orderId":1001,"symbol":"BTCUSDT","status":"NEW"}`,
	})

	ticket, err := client.SubmitOrder(context.Background(), domain.OrderRequest{
		Symbol:     "BTCUSDT",
		Side:       domain.Buy,
		Kind:       domain.KindMarket,
		Volume:     d("0.01"),
		Price:      d("65000.3"),
		StopLoss:   d("64000"),
		TakeProfit: d("67000"),
	})
	require.NoError(t, err)
	assert.Equal(t, domain.Ticket(1001), ticket)

	orders := fake.placedOrders()
	require.Len(t, orders, 3)
	assert.Equal(t, "MARKET", orders[0].Get("type"))
	assert.Equal(t, "BUY", orders[0].Get("side"))
	assert.Equal(t, "0.01", orders[0].Get("quantity"))
	assert.NotEmpty(t, orders[0].Get("newClientOrderId"))

	assert.Equal(t, "STOP_MARKET", orders[1].Get("type"))
	assert.Equal(t, "SELL", orders[1].Get("side"))
	assert.Equal(t, "64000", orders[1].Get("stopPrice"))
	assert.Equal(t, "true", orders[1].Get("closePosition"))

	assert.Equal(t, "TAKE_PROFIT_MARKET", orders[2].Get("type"))
	assert.Equal(t, "67000", orders[2].Get("stopPrice"))
}

func TestClient_SubmitStopOrder(t *testing.T) {
	client, fake := newTestClient(t, map[string]string{
		"/order": `{"orderId":1002,"symbol":"BTCUSDT","status":"NEW"}`,
	})

	_, err := client.SubmitOrder(context.Background(), domain.OrderRequest{
		Symbol: "BTCUSDT",
		Side:   domain.Sell,
		Kind:   domain.KindStop,
		Volume: d("0.02"),
		Price:  d("64500"),
	})
	require.NoError(t, err)

	orders := fake.placedOrders()
	require.Len(t, orders, 1)
	assert.Equal(t, "STOP_MARKET", orders[0].Get("type"))
	assert.Equal(t, "SELL", orders[0].Get("side"))
	assert.Equal(t, "64500", orders[0].Get("stopPrice"))
}

func TestClient_SubmitOrderRejected(t *testing.T) {
	client, fake := newTestClient(t, map[string]string{
		"/order": `{"code":-2019,"msg":"Margin is insufficient."}`,
	})
	fake.status["/order"] = http.StatusBadRequest

	_, err := client.SubmitOrder(context.Background(), domain.OrderRequest{Symbol: "BTCUSDT", Side: domain.Buy, Kind: domain.KindMarket, Volume: d("5")})
	assert.ErrorIs(t, err, ports.ErrInsufficientFunds)
}

func TestClient_Positions(t *testing.T) {
	client, _ := newTestClient(t, map[string]string{
		"/positionRisk": `[
			{"symbol":"BTCUSDT","positionAmt":"-0.050","entryPrice":"65000","markPrice":"64900","unRealizedProfit":"5.0","leverage":"10"},
			{"symbol":"ETHUSDT","positionAmt":"0.000","entryPrice":"0","markPrice":"3000","unRealizedProfit":"0","leverage":"10"}
		]`,
	})

	positions, err := client.Positions(context.Background())
	require.NoError(t, err)
	require.Len(t, positions, 1)
	assert.Equal(t, domain.Sell, positions[0].Side)
	assert.Equal(t, "0.05", positions[0].Volume.String())
	assert.Equal(t, "5", positions[0].Profit.String())
	assert.True(t, positions[0].Ticket.Valid())
	assert.Equal(t, positionTicket("BTCUSDT"), positions[0].Ticket)
}

func TestClient_ModifyPositionReplacesStopOnly(t *testing.T) {
	client, fake := newTestClient(t, map[string]string{
		"/openOrders": `[
			{"symbol":"BTCUSDT","orderId":11,"type":"STOP_MARKET","side":"BUY","stopPrice":"66000","closePosition":true,"status":"NEW"},
			{"symbol":"BTCUSDT","orderId":12,"type":"TAKE_PROFIT_MARKET","side":"BUY","stopPrice":"63000","closePosition":true,"status":"NEW"}
		]`,
		"/order": `{"symbol":"BTCUSDT","orderId":13,"status":"NEW"}`,
	})
	pos := domain.Position{Ticket: positionTicket("BTCUSDT"), Symbol: "BTCUSDT", Side: domain.Sell, Volume: d("0.05"), OpenPrice: d("65000")}

	err := client.ModifyPosition(context.Background(), pos, d("65000"), decimal.Zero)
	require.NoError(t, err)

	placed := fake.placedOrders()
	require.Len(t, placed, 1)
	assert.Equal(t, "STOP_MARKET", placed[0].Get("type"))
	assert.Equal(t, "BUY", placed[0].Get("side"))
	assert.Equal(t, "65000", placed[0].Get("stopPrice"))
	assert.Equal(t, "true", placed[0].Get("closePosition"))
}

func TestClient_ModifyPositionListFailure(t *testing.T) {
	client, fake := newTestClient(t, map[string]string{})
	pos := domain.Position{Symbol: "BTCUSDT", Side: domain.Buy, Volume: d("0.05")}

	err := client.ModifyPosition(context.Background(), pos, d("64000"), d("70000"))
	require.Error(t, err)
	assert.Empty(t, fake.placedOrders())
}

func TestClient_CandlesNewestFirst(t *testing.T) {
	client, _ := newTestClient(t, map[string]string{
		"/klines": `[
			[1700000000000,"100","110","90","105","12",1700000059999,"0",1,"0","0","0"],
			[1700000060000,"105","120","100","118","8",1700000119999,"0",1,"0","0","0"]
		]`,
	})

	candles, err := client.Candles(context.Background(), "BTCUSDT", domain.M1, 2)
	require.NoError(t, err)
	require.Len(t, candles, 2)
	assert.Equal(t, time.UnixMilli(1700000060000).UTC(), candles[0].OpenTime)
	assert.Equal(t, "120", candles[0].High.String())
	assert.Equal(t, "105", candles[1].Close.String())

	_, err = client.Candles(context.Background(), "BTCUSDT", domain.Timeframe("D1"), 2)
	assert.ErrorIs(t, err, ports.ErrInvalidArgument)
}

func TestClient_ClosedTradesSkipsOpeningFills(t *testing.T) {
	client, _ := newTestClient(t, map[string]string{
		"/userTrades": `[
			{"id":1,"orderId":11,"symbol":"BTCUSDT","side":"BUY","price":"65000","qty":"0.01","realizedPnl":"0","time":1700000000000},
			{"id":2,"orderId":12,"symbol":"BTCUSDT","side":"SELL","price":"65500","qty":"0.01","realizedPnl":"5","time":1700003600000}
		]`,
	})

	trades, err := client.ClosedTrades(context.Background(), time.UnixMilli(1699990000000))
	require.NoError(t, err)
	require.Len(t, trades, 1)
	assert.Equal(t, "BTCUSDT-2", trades[0].PositionID)
	assert.Equal(t, domain.Buy, trades[0].Side)
	assert.Equal(t, "5", trades[0].Profit.String())
	assert.Equal(t, time.UnixMilli(1700003600000).UTC(), trades[0].CloseTime)
}

func TestTranslateAccount(t *testing.T) {
	client, _ := newTestClient(t, map[string]string{
		"/account": `{"canTrade":true,"totalWalletBalance":"1000","totalMarginBalance":"1010","totalInitialMargin":"101","availableBalance":"909","assets":[],"positions":[]}`,
	})

	info, err := client.AccountInfo(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "binance-futures", info.Login)
	assert.Equal(t, "USDT", info.Currency)
	assert.Equal(t, "1000", info.MarginLevel.String())
	assert.Equal(t, "909", info.FreeMargin.String())

	term, err := client.TerminalInfo(context.Background())
	require.NoError(t, err)
	assert.True(t, term.TradeAllowed)
}
