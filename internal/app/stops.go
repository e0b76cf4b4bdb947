package app

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"mt5Assistant/internal/domain"
	"mt5Assistant/internal/ports"
	"mt5Assistant/internal/pricing"
)

// ModifyResult reports a stop-moving run over the open positions.
type ModifyResult struct {
	Modified []domain.Ticket
	Skipped  []domain.Ticket
	Failed   []domain.Ticket
	Total    int
}

// MoveStopsRequest selects the oldest Count positions (all when Count <= 0) and the
// timeframe whose previous closed candle sets the new stop.
type MoveStopsRequest struct {
	Count     int
	Timeframe domain.Timeframe
}

// BreakevenAll moves every open position's stop to its entry price, shifted by the configured
// breakeven offset. Positions whose stop is already at or beyond that level are skipped.
// Take-profit levels are kept.
func (s *TradingService) BreakevenAll(ctx context.Context) (ModifyResult, error) {
	const op = "BreakevenAll"
	var res ModifyResult
	err := s.sched.Do(ctx, "breakeven_all", func(ctx context.Context) error {
		positions, err := s.openPositions(ctx)
		if err != nil {
			return err
		}
		res.Total = len(positions)
		offset := s.settings.BreakevenOffsetPoints
		symbols := make(map[string]domain.SymbolInfo)
		var errs []error
		for _, pos := range positions {
			info, ok := symbols[pos.Symbol]
			if !ok {
				info, err = s.trading.SymbolInfo(ctx, pos.Symbol)
				if err != nil {
					res.Failed = append(res.Failed, pos.Ticket)
					errs = append(errs, fmt.Errorf("symbol info %s: %w", pos.Symbol, err))
					continue
				}
				symbols[pos.Symbol] = info
			}
			sl, err := pricing.BreakevenStopLoss(pos.Side, pos.OpenPrice, offset, info.Point)
			if err != nil {
				res.Failed = append(res.Failed, pos.Ticket)
				errs = append(errs, fmt.Errorf("breakeven %d: %w", pos.Ticket, err))
				continue
			}
			sl = pricing.Round(sl, info.Digits)
			if !pricing.Tightens(pos.Side, pos.StopLoss, sl) {
				res.Skipped = append(res.Skipped, pos.Ticket)
				continue
			}
			if err := s.modifyStop(ctx, op, pos, sl, &res); err != nil {
				errs = append(errs, err)
			}
		}
		s.logger.Info(ctx, op+": finished", map[string]interface{}{
			"modified": len(res.Modified), "skipped": len(res.Skipped), "failed": len(res.Failed), "offsetPoints": offset,
		})
		if len(errs) > 0 {
			return fmt.Errorf("%w: %w", ports.ErrExternalAPIFailure, errors.Join(errs...))
		}
		return nil
	})
	return res, err
}

// MoveStopsToCandle moves the stops of the oldest positions to the previous closed candle of
// req.Timeframe: its low for buys, its high for sells. Take-profit levels are kept.
func (s *TradingService) MoveStopsToCandle(ctx context.Context, req MoveStopsRequest) (ModifyResult, error) {
	const op = "MoveStopsToCandle"
	var res ModifyResult
	err := s.sched.Do(ctx, "move_stops_to_candle", func(ctx context.Context) error {
		tf := req.Timeframe
		if tf == "" {
			tf = s.settings.Timeframe()
		}
		if tf.Duration() == 0 {
			return fmt.Errorf("%w: unknown timeframe %q", ports.ErrInvalidArgument, tf)
		}
		positions, err := s.openPositions(ctx)
		if err != nil {
			return err
		}
		sort.SliceStable(positions, func(i, j int) bool { return positions[i].OpenTime.Before(positions[j].OpenTime) })
		if req.Count > 0 && req.Count < len(positions) {
			positions = positions[:req.Count]
		}
		res.Total = len(positions)

		var errs []error
		for _, pos := range positions {
			candles, err := s.trading.Candles(ctx, pos.Symbol, tf, breakoutCandles)
			if err == nil && len(candles) < breakoutCandles {
				err = fmt.Errorf("need %d candles, got %d", breakoutCandles, len(candles))
			}
			if err != nil {
				res.Failed = append(res.Failed, pos.Ticket)
				errs = append(errs, fmt.Errorf("candles %s %s: %w", pos.Symbol, tf, err))
				continue
			}
			sl := candles[1].Low
			if pos.Side == domain.Sell {
				sl = candles[1].High
			}
			if err := s.modifyStop(ctx, op, pos, sl, &res); err != nil {
				errs = append(errs, err)
			}
		}
		s.logger.Info(ctx, op+": finished", map[string]interface{}{
			"modified": len(res.Modified), "failed": len(res.Failed), "total": res.Total, "timeframe": tf,
		})
		if len(errs) > 0 {
			return fmt.Errorf("%w: %w", ports.ErrExternalAPIFailure, errors.Join(errs...))
		}
		return nil
	})
	return res, err
}

func (s *TradingService) openPositions(ctx context.Context) ([]domain.Position, error) {
	if !s.trading.IsConnected(ctx) {
		return nil, ports.NewPreconditionError(ports.ConditionConnected, "")
	}
	positions, err := s.trading.Positions(ctx)
	if err != nil {
		return nil, fmt.Errorf("list positions: %w: %w", ports.ErrExternalAPIFailure, err)
	}
	return positions, nil
}

func (s *TradingService) modifyStop(ctx context.Context, op string, pos domain.Position, sl decimal.Decimal, res *ModifyResult) error {
	if err := s.trading.ModifyPosition(ctx, pos, sl, pos.TakeProfit); err != nil {
		s.logger.Error(ctx, err, op+": failed to move stop", map[string]interface{}{"ticket": pos.Ticket, "symbol": pos.Symbol, "stopLoss": sl.String()})
		res.Failed = append(res.Failed, pos.Ticket)
		return fmt.Errorf("modify %d: %w", pos.Ticket, err)
	}
	s.logger.Debug(ctx, op+": stop moved", map[string]interface{}{"ticket": pos.Ticket, "symbol": pos.Symbol, "from": pos.StopLoss.String(), "to": sl.String()})
	res.Modified = append(res.Modified, pos.Ticket)
	return nil
}
