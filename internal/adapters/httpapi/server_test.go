package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"mt5Assistant/internal/app"
	"mt5Assistant/internal/domain"
	"mt5Assistant/internal/ports"
	"mt5Assistant/internal/pricing"
	"mt5Assistant/internal/risk"
	"mt5Assistant/internal/statistics"

	"github.com/prometheus/client_golang/prometheus"
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

// mockService records the requests it receives and returns canned results.
type mockService struct {
	batchReq    app.BatchRequest
	breakoutReq app.BreakoutRequest
	batchResult *domain.BatchResult
	batchErr    error
	cancelSym   string
	accountErr  error
	historyDays int
	eventLimit  int
	statsReq    app.StatisticsRequest
	moveReq     app.MoveStopsRequest
	modifyRes   app.ModifyResult
	modifyErr   error
}

var _ Service = (*mockService)(nil)

func (m *mockService) Status(ctx context.Context) app.Status {
	return app.Status{
		Connected:       true,
		TradeAllowed:    true,
		TradingDay:      "2026-10-16",
		Risk:            risk.State{TradingDisabled: true, DisabledOn: "2026-10-16", Reason: "loss"},
		TradesToday:     2,
		DailyTradeLimit: 5,
		DailyLossLimit:  d("100"),
		PnL:             domain.PnLSnapshot{TradingDay: "2026-10-16", Realized: d("-40"), Unrealized: d("-70"), Total: d("-110")},
		OpenPositions:   1,
	}
}

func (m *mockService) Account(ctx context.Context) (domain.AccountInfo, error) {
	if m.accountErr != nil {
		return domain.AccountInfo{}, m.accountErr
	}
	return domain.AccountInfo{Login: "5550001", Currency: "USD", Balance: d("10000"), Equity: d("9890.5")}, nil
}

func (m *mockService) Positions(ctx context.Context) ([]domain.Position, error) {
	return []domain.Position{{Ticket: 9, Symbol: "EURUSD", Side: domain.Buy, Volume: d("0.1"), Profit: d("-3.2")}}, nil
}

func (m *mockService) PnL(ctx context.Context) domain.PnLSnapshot {
	return domain.PnLSnapshot{TradingDay: "2026-10-16", Realized: d("12"), Unrealized: d("0"), Total: d("12"), UnrealizedErr: errors.New("terminal offline")}
}

func (m *mockService) PlaceBatch(ctx context.Context, req app.BatchRequest) (*domain.BatchResult, error) {
	m.batchReq = req
	return m.batchResult, m.batchErr
}

func (m *mockService) PlaceBreakout(ctx context.Context, req app.BreakoutRequest) (*domain.BatchResult, error) {
	m.breakoutReq = req
	return m.batchResult, m.batchErr
}

func (m *mockService) CloseAllPositions(ctx context.Context) (risk.CloseResult, error) {
	return risk.CloseResult{Closed: 2, Total: 3}, fmt.Errorf("%w: close 7 failed", ports.ErrExternalAPIFailure)
}

func (m *mockService) CancelPendingOrders(ctx context.Context, symbol string) (app.CancelResult, error) {
	m.cancelSym = symbol
	return app.CancelResult{Cancelled: 2, Total: 2}, nil
}

func (m *mockService) CounterHistory(ctx context.Context, days int) []domain.DailyCounter {
	m.historyDays = days
	return []domain.DailyCounter{{Date: "2026-10-16", Count: 2}, {Date: "2026-10-15", Count: 4}}
}

func (m *mockService) RiskEvents(ctx context.Context, limit int) ([]domain.RiskEvent, error) {
	m.eventLimit = limit
	return []domain.RiskEvent{{ID: "01J", Type: domain.RiskEventCloseAll, Details: "manual"}}, nil
}

func (m *mockService) Statistics(ctx context.Context, req app.StatisticsRequest) (statistics.Report, error) {
	m.statsReq = req
	return statistics.Report{Performance: statistics.Performance{TotalTrades: 4, WinningTrades: 3}}, nil
}

func (m *mockService) BreakevenAll(ctx context.Context) (app.ModifyResult, error) {
	return m.modifyRes, m.modifyErr
}

func (m *mockService) MoveStopsToCandle(ctx context.Context, req app.MoveStopsRequest) (app.ModifyResult, error) {
	m.moveReq = req
	return m.modifyRes, m.modifyErr
}

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func newServer(t *testing.T, svc *mockService) *Server {
	t.Helper()
	reg := prometheus.NewRegistry()
	srv, err := New(Config{Service: svc, Logger: &mockLogger{}, Registerer: reg, Gatherer: reg})
	require.NoError(t, err)
	return srv
}

func do(t *testing.T, srv *Server, method, target, body string) (int, map[string]interface{}, []byte) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := srv.App().Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var obj map[string]interface{}
	_ = json.Unmarshal(raw, &obj)
	return resp.StatusCode, obj, raw
}

func placedResult() *domain.BatchResult {
	return &domain.BatchResult{ID: "batch-1", Outcomes: []domain.OrderOutcome{
		{Index: 0, Spec: domain.OrderSpec{Symbol: "EURUSD", Side: domain.Buy, Volume: d("0.1")}, Request: domain.OrderRequest{Price: d("1.1002"), StopLoss: d("1.05")}, Ticket: 101, Status: domain.StatusPlaced},
		{Index: 1, Spec: domain.OrderSpec{Symbol: "EURUSD", Side: domain.Buy, Volume: d("0.2")}, Request: domain.OrderRequest{Price: d("1.1002")}, Ticket: 102, Status: domain.StatusPlaced},
	}}
}

func TestNew_RequiresService(t *testing.T) {
	_, err := New(Config{Logger: &mockLogger{}})
	assert.Error(t, err)
}

func TestHealthCheck(t *testing.T) {
	code, body, _ := do(t, newServer(t, &mockService{}), http.MethodGet, "/api/healthcheck", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body["status"])
}

func TestPlaceBatch(t *testing.T) {
	svc := &mockService{batchResult: placedResult()}
	srv := newServer(t, svc)

	code, body, _ := do(t, srv, http.MethodPost, "/api/batch",
		`{"symbol":" eurusd ","side":"BUY","sl_mode":"CANDLE_KEY_LEVEL","candle_lookback":4,"slots":[{"volume":"0.1","sl_points":500,"tp_points":1000},{"volume":0.2}]}`)
	require.Equal(t, http.StatusCreated, code)
	assert.Equal(t, "batch-1", body["id"])
	assert.Equal(t, true, body["succeeded"])
	orders := body["orders"].([]interface{})
	require.Len(t, orders, 2)
	first := orders[0].(map[string]interface{})
	assert.Equal(t, "1.05", first["sl"])
	assert.Equal(t, float64(101), first["ticket"])
	assert.Equal(t, "placed", first["status"])

	assert.Equal(t, "EURUSD", svc.batchReq.Symbol)
	assert.Equal(t, domain.Buy, svc.batchReq.Side)
	assert.Equal(t, "CANDLE_KEY_LEVEL", svc.batchReq.SLMode)
	assert.Equal(t, 4, svc.batchReq.CandleLookback)
	require.Len(t, svc.batchReq.Slots, 2)
	assert.Equal(t, "0.2", svc.batchReq.Slots[1].Volume.String())
	assert.Equal(t, 500, svc.batchReq.Slots[0].SLPoints)
}

func TestPlaceBatch_Errors(t *testing.T) {
	partial := placedResult()
	partial.Outcomes[1].Status = domain.StatusFailed
	partial.Outcomes[1].Ticket = 0
	partial.Outcomes[1].Err = errors.New("no money")

	tests := []struct {
		name      string
		body      string
		result    *domain.BatchResult
		err       error
		wantCode  int
		condition string
		withBatch bool
	}{
		{name: "malformed body", body: `{"symbol":`, wantCode: http.StatusBadRequest},
		{name: "unknown side", body: `{"symbol":"EURUSD","side":"hold"}`, wantCode: http.StatusBadRequest},
		{name: "invalid argument", body: `{"symbol":"EURUSD","side":"buy"}`, err: fmt.Errorf("%w: symbol not configured", ports.ErrInvalidArgument), wantCode: http.StatusBadRequest},
		{name: "precondition", body: `{"symbol":"EURUSD","side":"buy"}`, err: ports.NewPreconditionError(ports.ConditionTradeLimit, "5/5"), wantCode: http.StatusConflict, condition: ports.ConditionTradeLimit},
		{name: "partial batch", body: `{"symbol":"EURUSD","side":"buy"}`, result: partial, err: fmt.Errorf("%w: member 2 failed", ports.ErrExternalAPIFailure), wantCode: http.StatusBadGateway, withBatch: true},
		{name: "storage", body: `{"symbol":"EURUSD","side":"buy"}`, err: ports.ErrStorageFailure, wantCode: http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newServer(t, &mockService{batchResult: tt.result, batchErr: tt.err})
			code, body, _ := do(t, srv, http.MethodPost, "/api/batch", tt.body)
			assert.Equal(t, tt.wantCode, code)
			assert.NotEmpty(t, body["error"])
			if tt.condition != "" {
				assert.Equal(t, tt.condition, body["condition"])
			}
			if tt.withBatch {
				batch := body["batch"].(map[string]interface{})
				assert.Equal(t, false, batch["succeeded"])
				orders := batch["orders"].([]interface{})
				assert.Equal(t, "no money", orders[1].(map[string]interface{})["error"])
			} else {
				assert.Nil(t, body["batch"])
			}
		})
	}
}

func TestPlaceBreakout(t *testing.T) {
	svc := &mockService{batchResult: placedResult()}
	srv := newServer(t, svc)

	code, _, _ := do(t, srv, http.MethodPost, "/api/breakout", `{"symbol":"EURUSD","direction":"High","timeframe":"m15"}`)
	require.Equal(t, http.StatusCreated, code)
	assert.Equal(t, pricing.BreakoutHigh, svc.breakoutReq.Direction)
	assert.Equal(t, domain.M15, svc.breakoutReq.Timeframe)
	assert.Empty(t, svc.breakoutReq.Slots)

	code, _, _ = do(t, srv, http.MethodPost, "/api/breakout", `{"symbol":"EURUSD","direction":"high","timeframe":"D1"}`)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestStatus(t *testing.T) {
	code, body, _ := do(t, newServer(t, &mockService{}), http.MethodGet, "/api/status", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body["connected"])
	assert.Equal(t, "2026-10-16", body["trading_day"])
	assert.Equal(t, "100", body["daily_loss_limit"])
	riskState := body["risk"].(map[string]interface{})
	assert.Equal(t, true, riskState["trading_disabled"])
	pnl := body["pnl"].(map[string]interface{})
	assert.Equal(t, "-110", pnl["total"])
	assert.Equal(t, true, pnl["complete"])
}

func TestPnL_ReportsUnknownComponent(t *testing.T) {
	code, body, _ := do(t, newServer(t, &mockService{}), http.MethodGet, "/api/pnl", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, false, body["complete"])
	assert.Equal(t, "terminal offline", body["unrealized_error"])
	assert.Equal(t, "12", body["realized"])
}

func TestAccount(t *testing.T) {
	code, body, _ := do(t, newServer(t, &mockService{}), http.MethodGet, "/api/account", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "9890.5", body["equity"])

	svc := &mockService{accountErr: fmt.Errorf("%w: %w", ports.ErrExternalAPIFailure, ports.ErrNotConnected)}
	code, _, _ = do(t, newServer(t, svc), http.MethodGet, "/api/account", "")
	assert.Equal(t, http.StatusBadGateway, code)
}

func TestPositions(t *testing.T) {
	code, _, raw := do(t, newServer(t, &mockService{}), http.MethodGet, "/api/positions", "")
	require.Equal(t, http.StatusOK, code)
	var positions []positionResponse
	require.NoError(t, json.Unmarshal(raw, &positions))
	require.Len(t, positions, 1)
	assert.Equal(t, int64(9), positions[0].Ticket)
	assert.Equal(t, "-3.2", positions[0].Profit.String())
}

func TestCloseAll_PartialFailure(t *testing.T) {
	code, body, _ := do(t, newServer(t, &mockService{}), http.MethodPost, "/api/positions/close-all", "")
	assert.Equal(t, http.StatusBadGateway, code)
	assert.Contains(t, body["error"], "close 7 failed")
}

func TestCancelPending(t *testing.T) {
	svc := &mockService{}
	srv := newServer(t, svc)

	code, body, _ := do(t, srv, http.MethodPost, "/api/orders/cancel-pending", `{"symbol":"xauusd"}`)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, float64(2), body["cancelled"])
	assert.Equal(t, "XAUUSD", svc.cancelSym)

	code, _, _ = do(t, srv, http.MethodPost, "/api/orders/cancel-pending?symbol=EURUSD", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "EURUSD", svc.cancelSym)
}

func TestCounterHistoryAndRiskEvents(t *testing.T) {
	svc := &mockService{}
	srv := newServer(t, svc)

	code, _, raw := do(t, srv, http.MethodGet, "/api/counter/history", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, defaultHistoryDays, svc.historyDays)
	var counters []domain.DailyCounter
	require.NoError(t, json.Unmarshal(raw, &counters))
	assert.Equal(t, 4, counters[1].Count)

	code, _, _ = do(t, srv, http.MethodGet, "/api/counter/history?days=9999", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, maxQueryWindow, svc.historyDays)

	code, _, _ = do(t, srv, http.MethodGet, "/api/counter/history?days=abc", "")
	assert.Equal(t, http.StatusBadRequest, code)

	code, _, raw = do(t, srv, http.MethodGet, "/api/risk/events?limit=10", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, 10, svc.eventLimit)
	assert.Contains(t, string(raw), `"type":"CLOSE_ALL"`)
}

func TestStatistics(t *testing.T) {
	svc := &mockService{}
	srv := newServer(t, svc)

	code, body, _ := do(t, srv, http.MethodGet, "/api/statistics?days=7", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, app.StatisticsRequest{Days: 7}, svc.statsReq)
	assert.NotNil(t, body["performance"])

	code, _, _ = do(t, srv, http.MethodGet, "/api/statistics", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, app.StatisticsRequest{Days: defaultStatisticsDays}, svc.statsReq)

	code, _, _ = do(t, srv, http.MethodGet, "/api/statistics?since=2026-10-01", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, app.StatisticsRequest{From: "2026-10-01"}, svc.statsReq)

	code, _, _ = do(t, srv, http.MethodGet, "/api/statistics?since=yesterday", "")
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestBreakeven(t *testing.T) {
	svc := &mockService{modifyRes: app.ModifyResult{Modified: []domain.Ticket{3, 4}, Skipped: []domain.Ticket{5}, Total: 3}}
	srv := newServer(t, svc)

	code, body, _ := do(t, srv, http.MethodPost, "/api/positions/breakeven", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, []interface{}{3.0, 4.0}, body["modified"])
	assert.Equal(t, []interface{}{5.0}, body["skipped"])
	assert.Equal(t, 3.0, body["total"])
}

func TestBreakeven_PartialFailureKeepsResult(t *testing.T) {
	svc := &mockService{
		modifyRes: app.ModifyResult{Modified: []domain.Ticket{3}, Failed: []domain.Ticket{4}, Total: 2},
		modifyErr: fmt.Errorf("%w: modify 4: rejected", ports.ErrExternalAPIFailure),
	}
	srv := newServer(t, svc)

	code, body, _ := do(t, srv, http.MethodPost, "/api/positions/breakeven", "")
	require.Equal(t, http.StatusBadGateway, code)
	assert.Contains(t, body["error"], "modify 4")
	result, ok := body["result"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, []interface{}{4.0}, result["failed"])
}

func TestBreakeven_NotConnected(t *testing.T) {
	svc := &mockService{modifyErr: ports.NewPreconditionError(ports.ConditionConnected, "")}
	srv := newServer(t, svc)

	code, body, _ := do(t, srv, http.MethodPost, "/api/positions/breakeven", "")
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, ports.ConditionConnected, body["condition"])
}

func TestStopsToCandle(t *testing.T) {
	svc := &mockService{modifyRes: app.ModifyResult{Modified: []domain.Ticket{1}, Total: 1}}
	srv := newServer(t, svc)

	code, _, _ := do(t, srv, http.MethodPost, "/api/positions/stops-to-candle", `{"count":2,"timeframe":"m5"}`)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, app.MoveStopsRequest{Count: 2, Timeframe: domain.M5}, svc.moveReq)

	code, _, _ = do(t, srv, http.MethodPost, "/api/positions/stops-to-candle", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, app.MoveStopsRequest{}, svc.moveReq)

	code, _, _ = do(t, srv, http.MethodPost, "/api/positions/stops-to-candle", `{"timeframe":"D1"}`)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _, _ = do(t, srv, http.MethodPost, "/api/positions/stops-to-candle", `{"count":-1}`)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newServer(t, &mockService{})
	do(t, srv, http.MethodGet, "/api/healthcheck", "")

	code, _, raw := do(t, srv, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(raw), "http_requests_total")
}

func TestUnknownRoute(t *testing.T) {
	code, body, _ := do(t, newServer(t, &mockService{}), http.MethodGet, "/api/nope", "")
	assert.Equal(t, http.StatusNotFound, code)
	assert.NotEmpty(t, body["error"])
}
