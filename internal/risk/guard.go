// Package risk enforces the daily loss and trade limits.
package risk

import (
	"context"
	"errors"
	"fmt"
	"time"

	"mt5Assistant/internal/domain"
	"mt5Assistant/internal/id"
	"mt5Assistant/internal/metrics"
	"mt5Assistant/internal/ports"

	"github.com/shopspring/decimal"
)

// TradeCounter reads the number of completed batches today.
type TradeCounter interface {
	TodayCount(ctx context.Context) (int, error)
}

// Evaluation is the outcome of one loss-limit check.
type Evaluation struct {
	Snapshot    domain.PnLSnapshot
	WithinLimit bool
	// Breached is true only on the evaluation that disabled the session.
	Breached bool
	Closed   int
	CloseErr error
}

// CloseResult reports a close-all run.
type CloseResult struct {
	Closed int
	Total  int
}

// Config holds the guard's collaborators.
type Config struct {
	Trading  ports.TradingAPI
	TradeLog ports.TradeLog
	Events   ports.RiskEventStore
	Counter  TradeCounter
	Session  *Session
	Calendar domain.Calendar
	Logger   ports.Logger
	Notifier ports.Notifier   // optional
	Metrics  *metrics.Metrics // optional
	// Account keys the realized-trade log. Empty means the terminal login is used.
	Account string
}

// Guard sums realized and floating profit for the trading day and liquidates on breach.
type Guard struct {
	trading  ports.TradingAPI
	tradeLog ports.TradeLog
	events   ports.RiskEventStore
	counter  TradeCounter
	session  *Session
	calendar domain.Calendar
	logger   ports.Logger
	notifier ports.Notifier
	metrics  *metrics.Metrics
	account  string
	now      func() time.Time
}

// NewGuard validates cfg and creates a Guard.
func NewGuard(cfg Config) (*Guard, error) {
	if cfg.Trading == nil || cfg.TradeLog == nil || cfg.Events == nil || cfg.Counter == nil || cfg.Session == nil || cfg.Logger == nil {
		return nil, fmt.Errorf("missing required dependencies for risk guard")
	}
	return &Guard{
		trading:  cfg.Trading,
		tradeLog: cfg.TradeLog,
		events:   cfg.Events,
		counter:  cfg.Counter,
		session:  cfg.Session,
		calendar: cfg.Calendar,
		logger:   cfg.Logger,
		notifier: cfg.Notifier,
		metrics:  cfg.Metrics,
		account:  cfg.Account,
		now:      time.Now,
	}, nil
}

// Session returns the risk session the guard mutates.
func (g *Guard) Session() *Session {
	return g.session
}

// Snapshot reads the PnL of the current trading day. Unreadable components count as zero
// and their errors are kept on the snapshot.
func (g *Guard) Snapshot(ctx context.Context) domain.PnLSnapshot {
	day := g.calendar.TradingDay(g.now())
	snap := domain.PnLSnapshot{TradingDay: day}

	snap.Realized, snap.RealizedErr = g.realized(ctx, day)
	if snap.RealizedErr != nil {
		g.logger.Warn(ctx, "risk: realized PnL unavailable, counting as zero", map[string]interface{}{"error": snap.RealizedErr.Error()})
		snap.Realized = decimal.Zero
	}

	snap.Unrealized, snap.UnrealizedErr = g.unrealized(ctx)
	if snap.UnrealizedErr != nil {
		g.logger.Warn(ctx, "risk: unrealized PnL unavailable, counting as zero", map[string]interface{}{"error": snap.UnrealizedErr.Error()})
		snap.Unrealized = decimal.Zero
	}

	snap.Total = snap.Realized.Add(snap.Unrealized)
	return snap
}

func (g *Guard) realized(ctx context.Context, day domain.TradingDay) (decimal.Decimal, error) {
	account := g.account
	if account == "" {
		info, err := g.trading.AccountInfo(ctx)
		if err != nil {
			return decimal.Zero, fmt.Errorf("resolve account: %w", err)
		}
		account = info.Login
	}
	return g.tradeLog.RealizedProfit(ctx, account, day)
}

func (g *Guard) unrealized(ctx context.Context) (decimal.Decimal, error) {
	if !g.trading.IsConnected(ctx) {
		return decimal.Zero, ports.ErrNotConnected
	}
	positions, err := g.trading.Positions(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	total := decimal.Zero
	for _, p := range positions {
		total = total.Add(p.Profit)
	}
	return total, nil
}

// Evaluate compares the day's total PnL with -dailyLossLimit. Every breached evaluation closes all
// open positions; the first breach of the day also disables the session, records a risk event and notifies.
func (g *Guard) Evaluate(ctx context.Context, dailyLossLimit decimal.Decimal) (Evaluation, error) {
	const op = "risk.Evaluate"
	if !dailyLossLimit.IsPositive() {
		return Evaluation{}, fmt.Errorf("%s: %w: daily loss limit must be positive, got %s", op, ports.ErrInvalidArgument, dailyLossLimit)
	}

	snap := g.Snapshot(ctx)
	if g.metrics != nil {
		g.metrics.ObservePnL(snap.Realized, snap.Unrealized, snap.Total)
	}

	eval := Evaluation{
		Snapshot:    snap,
		WithinLimit: snap.Total.GreaterThan(dailyLossLimit.Neg()),
	}
	now := g.now()
	if eval.WithinLimit {
		if g.metrics != nil {
			g.metrics.SetTradingDisabled(g.session.Disabled(now))
		}
		return eval, nil
	}
	if g.session.Disabled(now) {
		// Positions that survived the first close-all, or were opened since by a triggered stop.
		g.logger.Debug(ctx, op+": limit still breached, session already disabled", map[string]interface{}{"total": snap.Total.String()})
		res, closeErr := g.CloseAll(ctx)
		eval.Closed = res.Closed
		eval.CloseErr = closeErr
		return eval, nil
	}

	g.logger.Warn(ctx, op+": daily loss limit breached, closing all positions", map[string]interface{}{
		"total":      snap.Total.String(),
		"realized":   snap.Realized.String(),
		"unrealized": snap.Unrealized.String(),
		"limit":      dailyLossLimit.String(),
	})

	res, closeErr := g.CloseAll(ctx)
	eval.Closed = res.Closed
	eval.CloseErr = closeErr
	reason := fmt.Sprintf("daily loss limit %s reached: total %s", dailyLossLimit, snap.Total)
	eval.Breached = g.session.Disable(now, reason)

	details := fmt.Sprintf("total=%s realized=%s unrealized=%s limit=%s closed=%d/%d",
		snap.Total, snap.Realized, snap.Unrealized, dailyLossLimit, res.Closed, res.Total)
	g.record(ctx, domain.RiskEventDailyLossLimit, details)

	if g.metrics != nil {
		g.metrics.RiskBreaches.Inc()
		g.metrics.SetTradingDisabled(true)
	}
	g.notify(ctx, fmt.Sprintf("Daily loss limit reached (%s). Trading disabled for %s. Closed %d/%d positions.",
		snap.Total.StringFixed(2), snap.TradingDay, res.Closed, res.Total))
	return eval, nil
}

// CheckTradeLimit fails with a PreconditionError when today's completed batches reached limit.
// An unreadable counter also blocks trading. A non-positive limit disables the check.
func (g *Guard) CheckTradeLimit(ctx context.Context, limit int) error {
	if limit <= 0 {
		return nil
	}
	count, err := g.counter.TodayCount(ctx)
	if err != nil {
		g.logger.Error(ctx, err, "risk: trade counter unavailable, blocking new batches")
		return ports.NewPreconditionError(ports.ConditionTradeLimit, "trade count unavailable")
	}
	if count >= limit {
		g.logger.Warn(ctx, "risk: daily trade limit reached", map[string]interface{}{"count": count, "limit": limit})
		return ports.NewPreconditionError(ports.ConditionTradeLimit, fmt.Sprintf("%d of %d batches used", count, limit))
	}
	return nil
}

// CloseAll closes every open position and reports how many succeeded.
func (g *Guard) CloseAll(ctx context.Context) (CloseResult, error) {
	positions, err := g.trading.Positions(ctx)
	if err != nil {
		g.logger.Error(ctx, err, "risk: failed to list positions for close-all")
		return CloseResult{}, fmt.Errorf("list positions: %w", err)
	}

	res := CloseResult{Total: len(positions)}
	var errs []error
	for _, p := range positions {
		if err := g.trading.ClosePosition(ctx, p); err != nil {
			g.logger.Error(ctx, err, "risk: failed to close position", map[string]interface{}{"ticket": p.Ticket, "symbol": p.Symbol})
			errs = append(errs, fmt.Errorf("close %d: %w", p.Ticket, err))
			continue
		}
		res.Closed++
	}
	g.logger.Info(ctx, "risk: close-all finished", map[string]interface{}{"closed": res.Closed, "total": res.Total})
	return res, errors.Join(errs...)
}

// RecordEvent appends an audit event; failures are logged only.
func (g *Guard) RecordEvent(ctx context.Context, eventType domain.RiskEventType, details string) {
	g.record(ctx, eventType, details)
}

func (g *Guard) record(ctx context.Context, eventType domain.RiskEventType, details string) {
	now := g.now()
	event := domain.RiskEvent{ID: id.At(now), Time: now, Type: eventType, Details: details}
	if err := g.events.RecordRiskEvent(ctx, event); err != nil {
		g.logger.Error(ctx, err, "risk: failed to record risk event", map[string]interface{}{"type": eventType})
	}
}

func (g *Guard) notify(ctx context.Context, text string) {
	if g.notifier == nil {
		return
	}
	if err := g.notifier.Notify(ctx, text); err != nil {
		g.logger.Warn(ctx, "risk: notification failed", map[string]interface{}{"error": err.Error()})
	}
}
