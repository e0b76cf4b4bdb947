package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"mt5Assistant/config"
	"mt5Assistant/internal/batch"
	"mt5Assistant/internal/counter"
	"mt5Assistant/internal/domain"
	"mt5Assistant/internal/metrics"
	"mt5Assistant/internal/ports"
	"mt5Assistant/internal/pricing"
	"mt5Assistant/internal/risk"
	"mt5Assistant/internal/scheduler"
	"mt5Assistant/internal/statistics"
)

// Job names registered with the scheduler.
const (
	JobEvaluateRisk     = "evaluate_risk"
	JobRefreshPositions = "refresh_positions"
	JobSyncClosedTrades = "sync_closed_trades"
)

// breakoutCandles is how many of the latest candles a breakout reads; index 1 is the
// previous closed candle.
const breakoutCandles = 3

// Slot is one batch member as entered by the user.
type Slot struct {
	Volume   decimal.Decimal
	SLPoints int
	TPPoints int
}

// BatchRequest is the market batch intent. Empty Slots fall back to the configured defaults,
// an empty SLMode to the configured default mode.
type BatchRequest struct {
	Symbol         string
	Side           domain.OrderSide
	Slots          []Slot
	SLMode         string
	CandleLookback int
}

// BreakoutRequest is the pending breakout intent.
type BreakoutRequest struct {
	Symbol         string
	Direction      pricing.BreakoutDirection
	Timeframe      domain.Timeframe
	Slots          []Slot
	SLMode         string
	CandleLookback int
}

// Status is the dashboard view of the assistant.
type Status struct {
	Connected       bool
	TradeAllowed    bool
	TradingDay      domain.TradingDay
	Risk            risk.State
	TradesToday     int
	DailyTradeLimit int
	DailyLossLimit  decimal.Decimal
	PnL             domain.PnLSnapshot
	OpenPositions   int
	PendingOrders   int
}

// CancelResult reports a cancel-pending run.
type CancelResult struct {
	Cancelled int
	Total     int
}

// StatisticsRequest selects the trading days a report covers. From wins over Days.
type StatisticsRequest struct {
	From domain.TradingDay
	Days int
}

// Config holds the service's collaborators.
type Config struct {
	Settings  *config.Settings
	Trading   ports.TradingAPI
	Counter   *counter.Store
	Guard     *risk.Guard
	Sequencer *batch.Sequencer
	TradeLog  ports.TradeLog
	Events    ports.RiskEventStore
	Scheduler *scheduler.Scheduler
	Logger    ports.Logger
	Metrics   *metrics.Metrics // optional
	// Account keys the trade log. Empty means the terminal login is used.
	Account string
}

// TradingService turns user intents and periodic jobs into terminal operations.
// Every state-changing call runs on the scheduler goroutine.
type TradingService struct {
	settings  *config.Settings
	calendar  domain.Calendar
	trading   ports.TradingAPI
	counter   *counter.Store
	guard     *risk.Guard
	sequencer *batch.Sequencer
	tradeLog  ports.TradeLog
	events    ports.RiskEventStore
	sched     *scheduler.Scheduler
	logger    ports.Logger
	metrics   *metrics.Metrics
	account   string
	now       func() time.Time
}

// NewTradingService creates a new application service instance.
func NewTradingService(cfg Config) (*TradingService, error) {
	if cfg.Settings == nil || cfg.Trading == nil || cfg.Counter == nil || cfg.Guard == nil ||
		cfg.Sequencer == nil || cfg.TradeLog == nil || cfg.Events == nil || cfg.Scheduler == nil || cfg.Logger == nil {
		return nil, fmt.Errorf("missing required dependencies for TradingService")
	}
	if err := cfg.Settings.Validate(); err != nil {
		return nil, fmt.Errorf("invalid settings: %w", err)
	}
	return &TradingService{
		settings:  cfg.Settings,
		calendar:  cfg.Settings.Calendar(),
		trading:   cfg.Trading,
		counter:   cfg.Counter,
		guard:     cfg.Guard,
		sequencer: cfg.Sequencer,
		tradeLog:  cfg.TradeLog,
		events:    cfg.Events,
		sched:     cfg.Scheduler,
		logger:    cfg.Logger,
		metrics:   cfg.Metrics,
		account:   cfg.Account,
		now:       time.Now,
	}, nil
}

// Settings returns the loaded settings document.
func (s *TradingService) Settings() *config.Settings {
	return s.settings
}

// RegisterJobs adds the polling jobs to the scheduler. Call once before Run.
func (s *TradingService) RegisterJobs() error {
	p := s.settings.Polling
	jobs := []scheduler.Job{
		{Name: JobEvaluateRisk, Interval: p.RiskInterval.Std(), Priority: true, Run: s.evaluateRisk},
		{Name: JobRefreshPositions, Interval: p.PositionsInterval.Std(), Run: s.refreshPositions},
		{Name: JobSyncClosedTrades, Interval: p.TradeSyncInterval.Std(), Run: func(ctx context.Context) error {
			_, err := s.syncClosedTrades(ctx)
			return err
		}},
	}
	for _, job := range jobs {
		if err := s.sched.Every(job); err != nil {
			return fmt.Errorf("register job %s: %w", job.Name, err)
		}
	}
	return nil
}

// Start connects to the terminal, registers the polling jobs and runs the scheduler until
// ctx is cancelled. A failed initial connection is logged; the refresh job keeps retrying.
func (s *TradingService) Start(ctx context.Context) error {
	s.logger.Info(ctx, "Starting Trading Service...")
	if err := s.trading.Connect(ctx); err != nil {
		s.logger.Error(ctx, err, "Initial terminal connection failed, will retry")
	}
	if err := s.RegisterJobs(); err != nil {
		return err
	}
	err := s.sched.Run(ctx)
	s.logger.Info(ctx, "Trading Service stopped")
	return err
}

// PlaceBatch submits an immediate market batch.
func (s *TradingService) PlaceBatch(ctx context.Context, req BatchRequest) (*domain.BatchResult, error) {
	const op = "PlaceBatch"
	var result *domain.BatchResult
	err := s.sched.Do(ctx, "place_batch", func(ctx context.Context) error {
		if err := s.checkTradingAllowed(ctx, req.Symbol); err != nil {
			return err
		}
		if !req.Side.Valid() {
			return fmt.Errorf("%w: unknown order side %q", ports.ErrInvalidArgument, req.Side)
		}
		slots, err := s.slots(req.Symbol, req.Slots)
		if err != nil {
			return err
		}

		mode, err := s.slMode(req.SLMode)
		if err != nil {
			return err
		}
		var keyLevel *decimal.Decimal
		if mode == config.SLModeCandleKeyLevel {
			sl, err := s.keyLevelStop(ctx, req.Symbol, s.settings.Timeframe(), req.Side, req.CandleLookback)
			if err != nil {
				return err
			}
			keyLevel = &sl
		}

		specs := make([]domain.OrderSpec, 0, len(slots))
		for i, slot := range slots {
			spec := domain.OrderSpec{
				Symbol:           req.Symbol,
				Side:             req.Side,
				Volume:           slot.Volume,
				StopLossPoints:   slot.SLPoints,
				TakeProfitPoints: slot.TPPoints,
				StopLossPrice:    keyLevel,
				Comment:          fmt.Sprintf("batch %s %d", req.Side, i+1),
			}
			specs = append(specs, spec)
		}
		result, err = s.submit(ctx, op, specs)
		return err
	})
	return result, err
}

// PlaceBreakout places one stop order per slot beyond the previous closed candle.
func (s *TradingService) PlaceBreakout(ctx context.Context, req BreakoutRequest) (*domain.BatchResult, error) {
	const op = "PlaceBreakout"
	var result *domain.BatchResult
	err := s.sched.Do(ctx, "place_breakout", func(ctx context.Context) error {
		if err := s.checkTradingAllowed(ctx, req.Symbol); err != nil {
			return err
		}
		side, err := req.Direction.Side()
		if err != nil {
			return err
		}
		tf := req.Timeframe
		if tf == "" {
			tf = s.settings.Timeframe()
		}
		slots, err := s.slots(req.Symbol, req.Slots)
		if err != nil {
			return err
		}
		mode, err := s.slMode(req.SLMode)
		if err != nil {
			return err
		}

		info, err := s.trading.SymbolInfo(ctx, req.Symbol)
		if err != nil {
			return fmt.Errorf("symbol info %s: %w: %w", req.Symbol, ports.ErrExternalAPIFailure, err)
		}
		candles, err := s.trading.Candles(ctx, req.Symbol, tf, breakoutCandles)
		if err != nil {
			return fmt.Errorf("candles %s %s: %w: %w", req.Symbol, tf, ports.ErrExternalAPIFailure, err)
		}
		if len(candles) < breakoutCandles {
			return fmt.Errorf("%w: need %d candles for %s %s, got %d", ports.ErrExternalAPIFailure, breakoutCandles, req.Symbol, tf, len(candles))
		}

		offset := s.settings.Breakout.HighOffsetPoints
		if req.Direction == pricing.BreakoutLow {
			offset = s.settings.Breakout.LowOffsetPoints
		}
		trigger, err := pricing.BreakoutTrigger(req.Direction, candles[1], offset, info.Point)
		if err != nil {
			return err
		}
		trigger = pricing.Round(trigger, info.Digits)

		var keyLevel *decimal.Decimal
		if mode == config.SLModeCandleKeyLevel {
			sl, err := s.keyLevelStop(ctx, req.Symbol, tf, side, req.CandleLookback)
			if err != nil {
				return err
			}
			keyLevel = &sl
		}

		s.logger.Info(ctx, op+": breakout level resolved", map[string]interface{}{
			"symbol": req.Symbol, "timeframe": tf, "direction": req.Direction,
			"high": candles[1].High.String(), "low": candles[1].Low.String(), "trigger": trigger.String(),
		})

		specs := make([]domain.OrderSpec, 0, len(slots))
		for i, slot := range slots {
			specs = append(specs, domain.OrderSpec{
				Symbol:           req.Symbol,
				Side:             side,
				Volume:           slot.Volume,
				StopLossPoints:   slot.SLPoints,
				TakeProfitPoints: slot.TPPoints,
				LimitPrice:       &trigger,
				StopLossPrice:    keyLevel,
				Comment:          fmt.Sprintf("%s %s breakout %d", tf, req.Direction, i+1),
			})
		}
		result, err = s.submit(ctx, op, specs)
		return err
	})
	return result, err
}

func (s *TradingService) submit(ctx context.Context, op string, specs []domain.OrderSpec) (*domain.BatchResult, error) {
	result, err := s.sequencer.PlaceBatch(ctx, specs)
	if err != nil && result != nil {
		placed := result.Count(domain.StatusPlaced)
		details := fmt.Sprintf("batch %s: %d placed, member %d failed, %d not attempted, compensated=%t: %v",
			result.ID, placed, result.FailedIndex()+1, result.Count(domain.StatusNotAttempted), result.Compensated, err)
		s.guard.RecordEvent(ctx, domain.RiskEventPartialBatch, details)
	}
	if err != nil {
		s.logger.Error(ctx, err, op+": batch not completed")
		return result, err
	}
	s.logger.Info(ctx, op+": batch placed", map[string]interface{}{"batchID": result.ID, "orders": len(result.Outcomes)})
	return result, nil
}

// checkTradingAllowed runs the checks shared by every order intent before any quote or candle
// is read: symbol, risk session, daily trade limit and the terminal preconditions.
func (s *TradingService) checkTradingAllowed(ctx context.Context, symbol string) error {
	if symbol == "" || !s.settings.AllowsSymbol(symbol) {
		return fmt.Errorf("%w: symbol %q is not configured", ports.ErrInvalidArgument, symbol)
	}
	if state := s.guard.Session().State(s.now()); state.TradingDisabled {
		return ports.NewPreconditionError(ports.ConditionTradingEnabled, state.Reason)
	}
	if err := s.guard.CheckTradeLimit(ctx, s.settings.DailyTradeLimit); err != nil {
		s.guard.RecordEvent(ctx, domain.RiskEventTradeLimit, err.Error())
		return err
	}
	if err := s.sequencer.CheckPreconditions(ctx); err != nil {
		s.logger.Warn(ctx, "checkTradingAllowed: terminal precondition failed", map[string]interface{}{"symbol": symbol, "error": err.Error()})
		return err
	}
	return nil
}

// slots applies the configured defaults, drops zero-volume slots and enforces the
// per-symbol bounds.
func (s *TradingService) slots(symbol string, in []Slot) ([]Slot, error) {
	if len(in) == 0 {
		for _, d := range s.settings.BatchOrderDefaults {
			in = append(in, Slot{Volume: decimal.NewFromFloat(d.Volume), SLPoints: d.SLPoints, TPPoints: d.TPPoints})
		}
	}
	limits := s.settings.Limits(symbol)
	out := make([]Slot, 0, len(in))
	for i, slot := range in {
		if !slot.Volume.IsPositive() {
			continue
		}
		if err := checkSlot(limits, slot); err != nil {
			return nil, fmt.Errorf("%w: slot %d: %v", ports.ErrInvalidArgument, i+1, err)
		}
		out = append(out, slot)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: every slot has zero volume", ports.ErrInvalidArgument)
	}
	return out, nil
}

func checkSlot(limits config.SymbolLimits, slot Slot) error {
	switch {
	case slot.SLPoints < 0 || slot.TPPoints < 0:
		return errors.New("points must be non-negative")
	case limits.MinVolume > 0 && slot.Volume.LessThan(decimal.NewFromFloat(limits.MinVolume)):
		return fmt.Errorf("volume %s below minimum %v", slot.Volume, limits.MinVolume)
	case limits.MaxVolume > 0 && slot.Volume.GreaterThan(decimal.NewFromFloat(limits.MaxVolume)):
		return fmt.Errorf("volume %s above maximum %v", slot.Volume, limits.MaxVolume)
	case limits.MaxSLPoints > 0 && slot.SLPoints > limits.MaxSLPoints:
		return fmt.Errorf("sl points %d above maximum %d", slot.SLPoints, limits.MaxSLPoints)
	case limits.MaxTPPoints > 0 && slot.TPPoints > limits.MaxTPPoints:
		return fmt.Errorf("tp points %d above maximum %d", slot.TPPoints, limits.MaxTPPoints)
	}
	return nil
}

func (s *TradingService) slMode(requested string) (string, error) {
	switch requested {
	case "":
		return s.settings.SLMode.DefaultMode, nil
	case config.SLModeFixedPoints, config.SLModeCandleKeyLevel:
		return requested, nil
	default:
		return "", fmt.Errorf("%w: unknown sl mode %q", ports.ErrInvalidArgument, requested)
	}
}

// keyLevelStop reads the latest lookback candles and puts the stop beyond their extreme.
func (s *TradingService) keyLevelStop(ctx context.Context, symbol string, tf domain.Timeframe, side domain.OrderSide, lookback int) (decimal.Decimal, error) {
	if lookback <= 0 {
		lookback = s.settings.SLMode.CandleLookback
	}
	info, err := s.trading.SymbolInfo(ctx, symbol)
	if err != nil {
		return decimal.Zero, fmt.Errorf("symbol info %s: %w: %w", symbol, ports.ErrExternalAPIFailure, err)
	}
	candles, err := s.trading.Candles(ctx, symbol, tf, lookback)
	if err != nil {
		return decimal.Zero, fmt.Errorf("candles %s %s: %w: %w", symbol, tf, ports.ErrExternalAPIFailure, err)
	}
	if len(candles) < lookback {
		return decimal.Zero, fmt.Errorf("%w: need %d candles for %s %s, got %d", ports.ErrExternalAPIFailure, lookback, symbol, tf, len(candles))
	}
	sl, err := pricing.KeyLevelStopLoss(side, candles, s.settings.Breakout.SLOffsetPoints, info.Point)
	if err != nil {
		return decimal.Zero, err
	}
	return pricing.Round(sl, info.Digits), nil
}

// CancelPendingOrders cancels the resting buy-stop and sell-stop orders, optionally only for symbol.
func (s *TradingService) CancelPendingOrders(ctx context.Context, symbol string) (CancelResult, error) {
	const op = "CancelPendingOrders"
	var res CancelResult
	err := s.sched.Do(ctx, "cancel_pending", func(ctx context.Context) error {
		if !s.trading.IsConnected(ctx) {
			return ports.NewPreconditionError(ports.ConditionConnected, "")
		}
		orders, err := s.trading.PendingOrders(ctx)
		if err != nil {
			return fmt.Errorf("list pending orders: %w: %w", ports.ErrExternalAPIFailure, err)
		}
		var errs []error
		for _, o := range orders {
			if o.Kind != domain.KindStop || (symbol != "" && o.Symbol != symbol) {
				continue
			}
			res.Total++
			if err := s.trading.CancelOrder(ctx, o); err != nil {
				s.logger.Error(ctx, err, op+": failed to cancel order", map[string]interface{}{"ticket": o.Ticket, "symbol": o.Symbol})
				errs = append(errs, fmt.Errorf("cancel %d: %w", o.Ticket, err))
				continue
			}
			res.Cancelled++
		}
		s.logger.Info(ctx, op+": finished", map[string]interface{}{"cancelled": res.Cancelled, "total": res.Total})
		if len(errs) > 0 {
			return fmt.Errorf("%w: %w", ports.ErrExternalAPIFailure, errors.Join(errs...))
		}
		return nil
	})
	return res, err
}

// CloseAllPositions closes every open position and records a CLOSE_ALL risk event.
func (s *TradingService) CloseAllPositions(ctx context.Context) (risk.CloseResult, error) {
	var res risk.CloseResult
	err := s.sched.Do(ctx, "close_all", func(ctx context.Context) error {
		if !s.trading.IsConnected(ctx) {
			return ports.NewPreconditionError(ports.ConditionConnected, "")
		}
		var err error
		res, err = s.guard.CloseAll(ctx)
		s.guard.RecordEvent(ctx, domain.RiskEventCloseAll, fmt.Sprintf("manual close-all: closed %d/%d", res.Closed, res.Total))
		if err != nil {
			return fmt.Errorf("%w: %w", ports.ErrExternalAPIFailure, err)
		}
		return nil
	})
	return res, err
}

// Status collects the dashboard view. Terminal failures leave the affected fields zero.
func (s *TradingService) Status(ctx context.Context) Status {
	now := s.now()
	st := Status{
		TradingDay:      s.calendar.TradingDay(now),
		Risk:            s.guard.Session().State(now),
		TradesToday:     s.counter.GetTodayCount(ctx),
		DailyTradeLimit: s.settings.DailyTradeLimit,
		DailyLossLimit:  s.settings.LossLimit(),
		PnL:             s.guard.Snapshot(ctx),
	}
	st.Connected = s.trading.IsConnected(ctx)
	if !st.Connected {
		return st
	}
	if term, err := s.trading.TerminalInfo(ctx); err == nil {
		st.TradeAllowed = term.TradeAllowed
	}
	if positions, err := s.trading.Positions(ctx); err == nil {
		st.OpenPositions = len(positions)
	}
	if orders, err := s.trading.PendingOrders(ctx); err == nil {
		st.PendingOrders = len(orders)
	}
	return st
}

// Account returns the terminal account summary.
func (s *TradingService) Account(ctx context.Context) (domain.AccountInfo, error) {
	info, err := s.trading.AccountInfo(ctx)
	if err != nil {
		return info, fmt.Errorf("%w: %w", ports.ErrExternalAPIFailure, err)
	}
	return info, nil
}

// Positions lists the open positions.
func (s *TradingService) Positions(ctx context.Context) ([]domain.Position, error) {
	positions, err := s.trading.Positions(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ports.ErrExternalAPIFailure, err)
	}
	return positions, nil
}

// PnL returns the current trading day's profit snapshot.
func (s *TradingService) PnL(ctx context.Context) domain.PnLSnapshot {
	return s.guard.Snapshot(ctx)
}

// CounterHistory returns up to days trade counters, most recent first.
func (s *TradingService) CounterHistory(ctx context.Context, days int) []domain.DailyCounter {
	return s.counter.GetHistory(ctx, days)
}

// RiskEvents returns up to limit risk events, newest first.
func (s *TradingService) RiskEvents(ctx context.Context, limit int) ([]domain.RiskEvent, error) {
	events, err := s.events.RecentRiskEvents(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ports.ErrStorageFailure, err)
	}
	return events, nil
}

// Statistics analyses the account's trades closed since the start of req.From, or over the
// last req.Days trading days including today. An empty request covers the whole log.
func (s *TradingService) Statistics(ctx context.Context, req StatisticsRequest) (statistics.Report, error) {
	account, err := s.resolveAccount(ctx)
	if err != nil {
		return statistics.Report{}, err
	}
	var since time.Time
	switch {
	case req.From != "":
		since = s.calendar.Start(req.From)
	case req.Days > 0:
		since = s.calendar.DayStart(s.now()).AddDate(0, 0, -(req.Days - 1))
	}
	trades, err := s.tradeLog.TradesSince(ctx, account, since)
	if err != nil {
		return statistics.Report{}, fmt.Errorf("%w: %w", ports.ErrStorageFailure, err)
	}
	return statistics.Analyze(trades, s.calendar), nil
}

// SyncTrades pulls recently closed trades into the trade log and returns how many were new.
func (s *TradingService) SyncTrades(ctx context.Context) (int, error) {
	var n int
	err := s.sched.Do(ctx, "sync_trades", func(ctx context.Context) error {
		var err error
		n, err = s.syncClosedTrades(ctx)
		return err
	})
	return n, err
}

func (s *TradingService) resolveAccount(ctx context.Context) (string, error) {
	if s.account != "" {
		return s.account, nil
	}
	info, err := s.trading.AccountInfo(ctx)
	if err != nil {
		return "", fmt.Errorf("resolve account: %w: %w", ports.ErrExternalAPIFailure, err)
	}
	return info.Login, nil
}

// evaluateRisk is the priority polling job. Closed deals are synced first so a position that
// just left the unrealized total is already counted as realized.
func (s *TradingService) evaluateRisk(ctx context.Context) error {
	if s.trading.IsConnected(ctx) {
		if _, err := s.syncClosedTrades(ctx); err != nil {
			s.logger.Warn(ctx, "evaluateRisk: closed trade sync failed, realized PnL may lag", map[string]interface{}{"error": err.Error()})
		}
	}
	eval, err := s.guard.Evaluate(ctx, s.settings.LossLimit())
	if err != nil {
		return err
	}
	if eval.Breached {
		s.logger.Warn(ctx, "evaluateRisk: trading disabled for the rest of the trading day", map[string]interface{}{
			"tradingDay": eval.Snapshot.TradingDay, "total": eval.Snapshot.Total.String(), "closed": eval.Closed,
		})
	}
	return eval.CloseErr
}

// refreshPositions reconnects when needed and updates the position gauges.
func (s *TradingService) refreshPositions(ctx context.Context) error {
	if !s.trading.IsConnected(ctx) {
		s.logger.Info(ctx, "refreshPositions: terminal not connected, reconnecting")
		if err := s.trading.Connect(ctx); err != nil {
			return fmt.Errorf("reconnect: %w", err)
		}
	}
	positions, err := s.trading.Positions(ctx)
	if err != nil {
		return fmt.Errorf("list positions: %w", err)
	}
	orders, err := s.trading.PendingOrders(ctx)
	if err != nil {
		return fmt.Errorf("list pending orders: %w", err)
	}
	if s.metrics != nil {
		s.metrics.OpenPositions.Set(float64(len(positions)))
		s.metrics.PendingOrders.Set(float64(len(orders)))
	}
	s.logger.Debug(ctx, "refreshPositions: refreshed", map[string]interface{}{"positions": len(positions), "pending": len(orders)})
	return nil
}

// syncClosedTrades copies deals closed within the lookback window into the trade log,
// stamping each with its trading day and account.
func (s *TradingService) syncClosedTrades(ctx context.Context) (int, error) {
	if !s.trading.IsConnected(ctx) {
		return 0, ports.NewPreconditionError(ports.ConditionConnected, "")
	}
	account, err := s.resolveAccount(ctx)
	if err != nil {
		return 0, err
	}
	since := s.now().Add(-s.settings.Polling.TradeSyncLookback.Std())
	trades, err := s.trading.ClosedTrades(ctx, since)
	if err != nil {
		return 0, fmt.Errorf("closed trades: %w: %w", ports.ErrExternalAPIFailure, err)
	}
	if len(trades) == 0 {
		return 0, nil
	}
	for i := range trades {
		trades[i].TradingDay = s.calendar.TradingDay(trades[i].CloseTime)
		if trades[i].Account == "" {
			trades[i].Account = account
		}
	}
	n, err := s.tradeLog.SaveTrades(ctx, trades)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ports.ErrStorageFailure, err)
	}
	if n > 0 {
		if s.metrics != nil {
			s.metrics.TradesSynced.Add(float64(n))
		}
		s.logger.Info(ctx, "syncClosedTrades: stored new closed trades", map[string]interface{}{"new": n, "fetched": len(trades)})
	}
	return n, nil
}
