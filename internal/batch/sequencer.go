// Package batch submits ordered groups of orders to the trading terminal.
package batch

import (
	"context"
	"fmt"

	"mt5Assistant/internal/domain"
	"mt5Assistant/internal/id"
	"mt5Assistant/internal/metrics"
	"mt5Assistant/internal/ports"
	"mt5Assistant/internal/pricing"

	"github.com/shopspring/decimal"
)

// Incrementer records a completed batch.
type Incrementer interface {
	Increment(ctx context.Context) bool
}

// Config holds the sequencer's collaborators.
type Config struct {
	Trading ports.TradingAPI
	Counter Incrementer
	Logger  ports.Logger
	Metrics *metrics.Metrics // optional
	// Compensate rolls back earlier legs when a later one fails. Off keeps them live.
	Compensate bool
}

// Sequencer places the members of a batch strictly in order and stops at the first failure.
type Sequencer struct {
	trading    ports.TradingAPI
	counter    Incrementer
	logger     ports.Logger
	metrics    *metrics.Metrics
	compensate bool
}

// NewSequencer validates cfg and creates a Sequencer.
func NewSequencer(cfg Config) (*Sequencer, error) {
	if cfg.Trading == nil || cfg.Counter == nil || cfg.Logger == nil {
		return nil, fmt.Errorf("missing required dependencies for batch sequencer")
	}
	return &Sequencer{
		trading:    cfg.Trading,
		counter:    cfg.Counter,
		logger:     cfg.Logger,
		metrics:    cfg.Metrics,
		compensate: cfg.Compensate,
	}, nil
}

// PlaceBatch checks the account preconditions, then submits specs one by one.
// The returned result is non-nil whenever at least one member was attempted.
func (s *Sequencer) PlaceBatch(ctx context.Context, specs []domain.OrderSpec) (*domain.BatchResult, error) {
	const op = "batch.PlaceBatch"

	if len(specs) == 0 {
		return nil, fmt.Errorf("%s: %w: empty batch", op, ports.ErrInvalidArgument)
	}
	for i, spec := range specs {
		if err := spec.Validate(); err != nil {
			return nil, fmt.Errorf("%s: %w: member %d: %v", op, ports.ErrInvalidArgument, i+1, err)
		}
	}
	if err := s.CheckPreconditions(ctx); err != nil {
		s.logger.Warn(ctx, op+": precondition failed, no orders placed", map[string]interface{}{"error": err.Error()})
		s.observe(metrics.BatchRejected, nil)
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	result := &domain.BatchResult{ID: id.Batch(), Outcomes: make([]domain.OrderOutcome, len(specs))}
	for i, spec := range specs {
		result.Outcomes[i] = domain.OrderOutcome{Index: i, Spec: spec, Status: domain.StatusNotAttempted}
	}
	logFields := map[string]interface{}{"batchID": result.ID, "size": len(specs)}
	s.logger.Info(ctx, op+": submitting batch", logFields)

	var legs saga
	quotes := make(map[string]domain.SymbolInfo)
	for i, spec := range specs {
		if i == 1 {
			// Once an order is live the batch runs to completion; the caller's deadline no
			// longer applies and each terminal call is bounded by the adapter's own timeout.
			ctx = context.WithoutCancel(ctx)
		}
		outcome := &result.Outcomes[i]
		ticket, req, err := s.submit(ctx, result.ID, i, spec, quotes)
		outcome.Request = req
		if err != nil {
			outcome.Status = domain.StatusFailed
			outcome.Err = err
			return s.fail(ctx, op, result, &legs, i, err)
		}
		outcome.Ticket = ticket
		outcome.Status = domain.StatusPlaced
		legs.register(s.compensationFor(i, ticket, req))
		s.logger.Info(ctx, op+": member placed", map[string]interface{}{
			"batchID": result.ID, "member": i + 1, "ticket": ticket, "kind": req.Kind, "side": req.Side,
			"price": req.Price.String(), "sl": req.StopLoss.String(), "tp": req.TakeProfit.String(),
		})
	}

	if !s.counter.Increment(ctx) {
		s.logger.Warn(ctx, op+": batch complete but trade counter was not updated", logFields)
	}
	s.observe(metrics.BatchComplete, result)
	s.logger.Info(ctx, op+": batch complete", logFields)
	return result, nil
}

func (s *Sequencer) fail(ctx context.Context, op string, result *domain.BatchResult, legs *saga, idx int, cause error) (*domain.BatchResult, error) {
	s.logger.Error(ctx, cause, op+": member failed, stopping batch", map[string]interface{}{
		"batchID": result.ID, "member": idx + 1, "placed": idx, "notAttempted": len(result.Outcomes) - idx - 1,
	})
	if s.compensate && len(legs.done) > 0 {
		if err := legs.rollback(ctx); err != nil {
			s.logger.Error(ctx, err, op+": compensation incomplete", map[string]interface{}{"batchID": result.ID})
		} else {
			result.Compensated = true
			s.logger.Info(ctx, op+": earlier members rolled back", map[string]interface{}{"batchID": result.ID})
		}
	}
	s.observe(metrics.BatchPartial, result)
	return result, fmt.Errorf("%s: member %d of %d failed: %w", op, idx+1, len(result.Outcomes), cause)
}

// CheckPreconditions verifies the terminal is connected, allows automated trading and the
// account has free margin. It fails with a PreconditionError naming the first unmet condition.
func (s *Sequencer) CheckPreconditions(ctx context.Context) error {
	if !s.trading.IsConnected(ctx) {
		return ports.NewPreconditionError(ports.ConditionConnected, "")
	}
	term, err := s.trading.TerminalInfo(ctx)
	if err != nil {
		return ports.NewPreconditionError(ports.ConditionTradingAllowed, err.Error())
	}
	if !term.TradeAllowed {
		return ports.NewPreconditionError(ports.ConditionTradingAllowed, "")
	}
	acct, err := s.trading.AccountInfo(ctx)
	if err != nil {
		return ports.NewPreconditionError(ports.ConditionMarginAvailable, err.Error())
	}
	if !acct.FreeMargin.IsPositive() {
		return ports.NewPreconditionError(ports.ConditionMarginAvailable, "free margin "+acct.FreeMargin.String())
	}
	return nil
}

func (s *Sequencer) submit(ctx context.Context, batchID string, idx int, spec domain.OrderSpec, quotes map[string]domain.SymbolInfo) (domain.Ticket, domain.OrderRequest, error) {
	info, ok := quotes[spec.Symbol]
	if !ok {
		var err error
		info, err = s.trading.SymbolInfo(ctx, spec.Symbol)
		if err != nil {
			return 0, domain.OrderRequest{}, fmt.Errorf("symbol info %s: %w: %w", spec.Symbol, ports.ErrExternalAPIFailure, err)
		}
		quotes[spec.Symbol] = info
	}

	req, err := Price(spec, info)
	if err != nil {
		return 0, req, err
	}
	if req.Comment == "" {
		req.Comment = fmt.Sprintf("batch %s #%d", shortID(batchID), idx+1)
	}

	ticket, err := s.trading.SubmitOrder(ctx, req)
	if err != nil {
		return 0, req, fmt.Errorf("%w: %w", ports.ErrExternalAPIFailure, err)
	}
	if !ticket.Valid() {
		return 0, req, fmt.Errorf("%w: terminal returned no ticket", ports.ErrExternalAPIFailure)
	}
	return ticket, req, nil
}

// Price turns spec into a terminal request using the current quote.
// Market buys are priced from the bid, market sells from the bid plus spread on the stop.
// Stop orders use their trigger with no spread. Zero points leave the level unset.
func Price(spec domain.OrderSpec, info domain.SymbolInfo) (domain.OrderRequest, error) {
	req := domain.OrderRequest{
		Symbol:  spec.Symbol,
		Side:    spec.Side,
		Kind:    spec.Kind(),
		Volume:  spec.Volume,
		Comment: spec.Comment,
	}

	var entry, spread decimal.Decimal
	if spec.LimitPrice != nil {
		entry = *spec.LimitPrice
		req.Price = entry
	} else {
		if !info.Bid.IsPositive() || !info.Ask.IsPositive() {
			return req, fmt.Errorf("%w: no quote for %s", ports.ErrExternalAPIFailure, spec.Symbol)
		}
		entry = info.Bid
		if spec.Side == domain.Sell {
			spread = info.Spread()
			req.Price = info.Bid
		} else {
			req.Price = info.Ask
		}
	}

	switch {
	case spec.StopLossPrice != nil:
		req.StopLoss = *spec.StopLossPrice
	case spec.StopLossPoints > 0:
		sl, err := pricing.StopLoss(spec.Side, entry, spec.StopLossPoints, info.Point, spread)
		if err != nil {
			return req, err
		}
		req.StopLoss = pricing.Round(sl, info.Digits)
	}
	if spec.TakeProfitPoints > 0 {
		tp, err := pricing.TakeProfit(spec.Side, entry, spec.TakeProfitPoints, info.Point)
		if err != nil {
			return req, err
		}
		req.TakeProfit = pricing.Round(tp, info.Digits)
	}
	return req, nil
}

func (s *Sequencer) compensationFor(idx int, ticket domain.Ticket, req domain.OrderRequest) compensation {
	if req.Kind == domain.KindStop {
		order := domain.PendingOrder{Ticket: ticket, Symbol: req.Symbol, Side: req.Side, Kind: req.Kind, Volume: req.Volume, Price: req.Price}
		return compensation{index: idx, name: "cancel pending order", undo: func(ctx context.Context) error {
			return s.trading.CancelOrder(ctx, order)
		}}
	}
	pos := domain.Position{Ticket: ticket, Symbol: req.Symbol, Side: req.Side, Volume: req.Volume}
	return compensation{index: idx, name: "close position", undo: func(ctx context.Context) error {
		return s.trading.ClosePosition(ctx, pos)
	}}
}

func (s *Sequencer) observe(result string, br *domain.BatchResult) {
	if s.metrics == nil {
		return
	}
	s.metrics.Batches.WithLabelValues(result).Inc()
	if br == nil {
		return
	}
	for _, o := range br.Outcomes {
		s.metrics.Orders.WithLabelValues(string(o.Status)).Inc()
	}
}

func shortID(batchID string) string {
	if len(batchID) > 8 {
		return batchID[len(batchID)-8:]
	}
	return batchID
}
