package httpapi

import (
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"mt5Assistant/internal/app"
	"mt5Assistant/internal/domain"
	"mt5Assistant/internal/ports"
	"mt5Assistant/internal/pricing"
	"mt5Assistant/internal/risk"
)

const (
	defaultHistoryDays     = 30
	defaultEventLimit      = 50
	defaultStatisticsDays  = 30
	maxQueryWindow         = 366
	statisticsSinceExample = "2026-01-31"
)

// --- request DTOs ---

type slotRequest struct {
	Volume   decimal.Decimal `json:"volume"`
	SLPoints int             `json:"sl_points"`
	TPPoints int             `json:"tp_points"`
}

type batchRequest struct {
	Symbol         string        `json:"symbol"`
	Side           string        `json:"side"`
	Slots          []slotRequest `json:"slots"`
	SLMode         string        `json:"sl_mode"`
	CandleLookback int           `json:"candle_lookback"`
}

type breakoutRequest struct {
	Symbol         string        `json:"symbol"`
	Direction      string        `json:"direction"`
	Timeframe      string        `json:"timeframe"`
	Slots          []slotRequest `json:"slots"`
	SLMode         string        `json:"sl_mode"`
	CandleLookback int           `json:"candle_lookback"`
}

type cancelPendingRequest struct {
	Symbol string `json:"symbol"`
}

type stopsToCandleRequest struct {
	Count     int    `json:"count"`
	Timeframe string `json:"timeframe"`
}

// --- response DTOs ---

type errorResponse struct {
	Error     string         `json:"error"`
	Condition string         `json:"condition,omitempty"`
	Batch     *batchResponse `json:"batch,omitempty"`
}

type orderResponse struct {
	Index      int             `json:"index"`
	Symbol     string          `json:"symbol"`
	Side       string          `json:"side"`
	Kind       string          `json:"kind"`
	Volume     decimal.Decimal `json:"volume"`
	Price      decimal.Decimal `json:"price"`
	StopLoss   decimal.Decimal `json:"sl"`
	TakeProfit decimal.Decimal `json:"tp"`
	Ticket     int64           `json:"ticket,omitempty"`
	Status     string          `json:"status"`
	Error      string          `json:"error,omitempty"`
}

type batchResponse struct {
	ID          string          `json:"id"`
	Succeeded   bool            `json:"succeeded"`
	Compensated bool            `json:"compensated"`
	Orders      []orderResponse `json:"orders"`
}

type pnlResponse struct {
	TradingDay      string          `json:"trading_day"`
	Realized        decimal.Decimal `json:"realized"`
	Unrealized      decimal.Decimal `json:"unrealized"`
	Total           decimal.Decimal `json:"total"`
	Complete        bool            `json:"complete"`
	RealizedError   string          `json:"realized_error,omitempty"`
	UnrealizedError string          `json:"unrealized_error,omitempty"`
}

type statusResponse struct {
	Connected       bool            `json:"connected"`
	TradeAllowed    bool            `json:"trade_allowed"`
	TradingDay      string          `json:"trading_day"`
	Risk            risk.State      `json:"risk"`
	TradesToday     int             `json:"trades_today"`
	DailyTradeLimit int             `json:"daily_trade_limit"`
	DailyLossLimit  decimal.Decimal `json:"daily_loss_limit"`
	PnL             pnlResponse     `json:"pnl"`
	OpenPositions   int             `json:"open_positions"`
	PendingOrders   int             `json:"pending_orders"`
}

type accountResponse struct {
	Login       string          `json:"login"`
	Currency    string          `json:"currency"`
	Balance     decimal.Decimal `json:"balance"`
	Equity      decimal.Decimal `json:"equity"`
	Margin      decimal.Decimal `json:"margin"`
	FreeMargin  decimal.Decimal `json:"free_margin"`
	MarginLevel decimal.Decimal `json:"margin_level"`
}

type positionResponse struct {
	Ticket     int64           `json:"ticket"`
	Symbol     string          `json:"symbol"`
	Side       string          `json:"side"`
	Volume     decimal.Decimal `json:"volume"`
	OpenPrice  decimal.Decimal `json:"open_price"`
	StopLoss   decimal.Decimal `json:"sl"`
	TakeProfit decimal.Decimal `json:"tp"`
	Profit     decimal.Decimal `json:"profit"`
	OpenTime   time.Time       `json:"open_time"`
	Comment    string          `json:"comment,omitempty"`
}

type closeAllResponse struct {
	Closed int `json:"closed"`
	Total  int `json:"total"`
}

type modifyResponse struct {
	Modified []int64 `json:"modified"`
	Skipped  []int64 `json:"skipped"`
	Failed   []int64 `json:"failed"`
	Total    int     `json:"total"`
}

type cancelPendingResponse struct {
	Cancelled int `json:"cancelled"`
	Total     int `json:"total"`
}

// --- translation ---

func toSlots(in []slotRequest) []app.Slot {
	out := make([]app.Slot, 0, len(in))
	for _, s := range in {
		out = append(out, app.Slot{Volume: s.Volume, SLPoints: s.SLPoints, TPPoints: s.TPPoints})
	}
	return out
}

func toBatchResponse(r *domain.BatchResult) batchResponse {
	resp := batchResponse{ID: r.ID, Succeeded: r.Succeeded(), Compensated: r.Compensated, Orders: make([]orderResponse, 0, len(r.Outcomes))}
	for _, o := range r.Outcomes {
		or := orderResponse{
			Index:      o.Index,
			Symbol:     o.Spec.Symbol,
			Side:       string(o.Spec.Side),
			Kind:       string(o.Spec.Kind()),
			Volume:     o.Spec.Volume,
			Price:      o.Request.Price,
			StopLoss:   o.Request.StopLoss,
			TakeProfit: o.Request.TakeProfit,
			Ticket:     int64(o.Ticket),
			Status:     string(o.Status),
		}
		if o.Err != nil {
			or.Error = o.Err.Error()
		}
		resp.Orders = append(resp.Orders, or)
	}
	return resp
}

func tickets(in []domain.Ticket) []int64 {
	out := make([]int64, 0, len(in))
	for _, t := range in {
		out = append(out, int64(t))
	}
	return out
}

func toModifyResponse(r app.ModifyResult) modifyResponse {
	return modifyResponse{Modified: tickets(r.Modified), Skipped: tickets(r.Skipped), Failed: tickets(r.Failed), Total: r.Total}
}

func toPnLResponse(p domain.PnLSnapshot) pnlResponse {
	resp := pnlResponse{
		TradingDay: p.TradingDay.String(),
		Realized:   p.Realized,
		Unrealized: p.Unrealized,
		Total:      p.Total,
		Complete:   p.Complete(),
	}
	if p.RealizedErr != nil {
		resp.RealizedError = p.RealizedErr.Error()
	}
	if p.UnrealizedErr != nil {
		resp.UnrealizedError = p.UnrealizedErr.Error()
	}
	return resp
}

// queryInt reads a positive integer query parameter capped at max.
func queryInt(c *fiber.Ctx, key string, def, max int) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return def, nil
	}
	var v int
	if _, err := fmt.Sscan(raw, &v); err != nil || v <= 0 {
		return 0, fmt.Errorf("%w: %s must be a positive integer, got %q", ports.ErrInvalidArgument, key, raw)
	}
	if v > max {
		v = max
	}
	return v, nil
}

// --- handlers ---

func (s *Server) healthCheck(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": true})
}

func (s *Server) status(c *fiber.Ctx) error {
	ctx, cancel := s.requestContext(c)
	defer cancel()
	st := s.svc.Status(ctx)
	return c.JSON(statusResponse{
		Connected:       st.Connected,
		TradeAllowed:    st.TradeAllowed,
		TradingDay:      st.TradingDay.String(),
		Risk:            st.Risk,
		TradesToday:     st.TradesToday,
		DailyTradeLimit: st.DailyTradeLimit,
		DailyLossLimit:  st.DailyLossLimit,
		PnL:             toPnLResponse(st.PnL),
		OpenPositions:   st.OpenPositions,
		PendingOrders:   st.PendingOrders,
	})
}

func (s *Server) account(c *fiber.Ctx) error {
	ctx, cancel := s.requestContext(c)
	defer cancel()
	info, err := s.svc.Account(ctx)
	if err != nil {
		return s.fail(c, "account", err, nil)
	}
	return c.JSON(accountResponse{
		Login:       info.Login,
		Currency:    info.Currency,
		Balance:     info.Balance,
		Equity:      info.Equity,
		Margin:      info.Margin,
		FreeMargin:  info.FreeMargin,
		MarginLevel: info.MarginLevel,
	})
}

func (s *Server) positions(c *fiber.Ctx) error {
	ctx, cancel := s.requestContext(c)
	defer cancel()
	positions, err := s.svc.Positions(ctx)
	if err != nil {
		return s.fail(c, "positions", err, nil)
	}
	out := make([]positionResponse, 0, len(positions))
	for _, p := range positions {
		out = append(out, positionResponse{
			Ticket:     int64(p.Ticket),
			Symbol:     p.Symbol,
			Side:       string(p.Side),
			Volume:     p.Volume,
			OpenPrice:  p.OpenPrice,
			StopLoss:   p.StopLoss,
			TakeProfit: p.TakeProfit,
			Profit:     p.Profit,
			OpenTime:   p.OpenTime,
			Comment:    p.Comment,
		})
	}
	return c.JSON(out)
}

func (s *Server) pnl(c *fiber.Ctx) error {
	ctx, cancel := s.requestContext(c)
	defer cancel()
	return c.JSON(toPnLResponse(s.svc.PnL(ctx)))
}

func (s *Server) placeBatch(c *fiber.Ctx) error {
	const op = "placeBatch"
	var req batchRequest
	if err := c.BodyParser(&req); err != nil {
		return s.fail(c, op, fmt.Errorf("%w: malformed body: %v", ports.ErrInvalidArgument, err), nil)
	}
	side, err := domain.ParseOrderSide(req.Side)
	if err != nil {
		return s.fail(c, op, fmt.Errorf("%w: %v", ports.ErrInvalidArgument, err), nil)
	}
	ctx, cancel := s.requestContext(c)
	defer cancel()
	result, err := s.svc.PlaceBatch(ctx, app.BatchRequest{
		Symbol:         strings.ToUpper(strings.TrimSpace(req.Symbol)),
		Side:           side,
		Slots:          toSlots(req.Slots),
		SLMode:         req.SLMode,
		CandleLookback: req.CandleLookback,
	})
	if err != nil {
		return s.fail(c, op, err, result)
	}
	return c.Status(fiber.StatusCreated).JSON(toBatchResponse(result))
}

func (s *Server) placeBreakout(c *fiber.Ctx) error {
	const op = "placeBreakout"
	var req breakoutRequest
	if err := c.BodyParser(&req); err != nil {
		return s.fail(c, op, fmt.Errorf("%w: malformed body: %v", ports.ErrInvalidArgument, err), nil)
	}
	var tf domain.Timeframe
	if req.Timeframe != "" {
		parsed, err := domain.ParseTimeframe(req.Timeframe)
		if err != nil {
			return s.fail(c, op, fmt.Errorf("%w: %v", ports.ErrInvalidArgument, err), nil)
		}
		tf = parsed
	}
	ctx, cancel := s.requestContext(c)
	defer cancel()
	result, err := s.svc.PlaceBreakout(ctx, app.BreakoutRequest{
		Symbol:         strings.ToUpper(strings.TrimSpace(req.Symbol)),
		Direction:      pricing.BreakoutDirection(strings.ToLower(strings.TrimSpace(req.Direction))),
		Timeframe:      tf,
		Slots:          toSlots(req.Slots),
		SLMode:         req.SLMode,
		CandleLookback: req.CandleLookback,
	})
	if err != nil {
		return s.fail(c, op, err, result)
	}
	return c.Status(fiber.StatusCreated).JSON(toBatchResponse(result))
}

func (s *Server) closeAll(c *fiber.Ctx) error {
	ctx, cancel := s.requestContext(c)
	defer cancel()
	res, err := s.svc.CloseAllPositions(ctx)
	if err != nil {
		return s.fail(c, "closeAll", err, nil)
	}
	return c.JSON(closeAllResponse{Closed: res.Closed, Total: res.Total})
}

// breakeven and stopsToCandle answer 502 with the per-ticket result when some moves failed.
func (s *Server) breakeven(c *fiber.Ctx) error {
	ctx, cancel := s.requestContext(c)
	defer cancel()
	res, err := s.svc.BreakevenAll(ctx)
	if err != nil {
		return s.failModify(c, "breakeven", err, res)
	}
	return c.JSON(toModifyResponse(res))
}

func (s *Server) stopsToCandle(c *fiber.Ctx) error {
	const op = "stopsToCandle"
	var req stopsToCandleRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return s.fail(c, op, fmt.Errorf("%w: malformed body: %v", ports.ErrInvalidArgument, err), nil)
		}
	}
	if req.Count < 0 {
		return s.fail(c, op, fmt.Errorf("%w: count must not be negative, got %d", ports.ErrInvalidArgument, req.Count), nil)
	}
	var tf domain.Timeframe
	if req.Timeframe != "" {
		parsed, err := domain.ParseTimeframe(req.Timeframe)
		if err != nil {
			return s.fail(c, op, fmt.Errorf("%w: %v", ports.ErrInvalidArgument, err), nil)
		}
		tf = parsed
	}
	ctx, cancel := s.requestContext(c)
	defer cancel()
	res, err := s.svc.MoveStopsToCandle(ctx, app.MoveStopsRequest{Count: req.Count, Timeframe: tf})
	if err != nil {
		return s.failModify(c, op, err, res)
	}
	return c.JSON(toModifyResponse(res))
}

func (s *Server) failModify(c *fiber.Ctx, op string, err error, res app.ModifyResult) error {
	if res.Total == 0 {
		return s.fail(c, op, err, nil)
	}
	code := statusFor(err)
	s.logger.Error(c.UserContext(), err, op+" request failed", map[string]interface{}{"path": c.Path(), "status": code})
	return c.Status(code).JSON(fiber.Map{"error": err.Error(), "result": toModifyResponse(res)})
}

func (s *Server) cancelPending(c *fiber.Ctx) error {
	var req cancelPendingRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return s.fail(c, "cancelPending", fmt.Errorf("%w: malformed body: %v", ports.ErrInvalidArgument, err), nil)
		}
	}
	if req.Symbol == "" {
		req.Symbol = c.Query("symbol")
	}
	ctx, cancel := s.requestContext(c)
	defer cancel()
	res, err := s.svc.CancelPendingOrders(ctx, strings.ToUpper(strings.TrimSpace(req.Symbol)))
	if err != nil {
		return s.fail(c, "cancelPending", err, nil)
	}
	return c.JSON(cancelPendingResponse{Cancelled: res.Cancelled, Total: res.Total})
}

func (s *Server) counterHistory(c *fiber.Ctx) error {
	days, err := queryInt(c, "days", defaultHistoryDays, maxQueryWindow)
	if err != nil {
		return s.fail(c, "counterHistory", err, nil)
	}
	ctx, cancel := s.requestContext(c)
	defer cancel()
	return c.JSON(s.svc.CounterHistory(ctx, days))
}

func (s *Server) riskEvents(c *fiber.Ctx) error {
	limit, err := queryInt(c, "limit", defaultEventLimit, 1000)
	if err != nil {
		return s.fail(c, "riskEvents", err, nil)
	}
	ctx, cancel := s.requestContext(c)
	defer cancel()
	events, err := s.svc.RiskEvents(ctx, limit)
	if err != nil {
		return s.fail(c, "riskEvents", err, nil)
	}
	return c.JSON(events)
}

// statistics accepts either since=YYYY-MM-DD (a trading day) or days=N (default 30).
func (s *Server) statistics(c *fiber.Ctx) error {
	const op = "statistics"
	var req app.StatisticsRequest
	if raw := c.Query("since"); raw != "" {
		day, err := domain.ParseTradingDay(raw)
		if err != nil {
			return s.fail(c, op, fmt.Errorf("%w: since must look like %s, got %q", ports.ErrInvalidArgument, statisticsSinceExample, raw), nil)
		}
		req.From = day
	} else {
		days, err := queryInt(c, "days", defaultStatisticsDays, maxQueryWindow)
		if err != nil {
			return s.fail(c, op, err, nil)
		}
		req.Days = days
	}
	ctx, cancel := s.requestContext(c)
	defer cancel()
	report, err := s.svc.Statistics(ctx, req)
	if err != nil {
		return s.fail(c, op, err, nil)
	}
	return c.JSON(report)
}
