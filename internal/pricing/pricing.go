// Package pricing converts point-based offsets into absolute price levels.
package pricing

import (
	"fmt"

	"mt5Assistant/internal/domain"
	"mt5Assistant/internal/ports"

	"github.com/shopspring/decimal"
)

// BreakoutDirection selects which extreme of the reference candle a breakout trades.
type BreakoutDirection string

const (
	BreakoutHigh BreakoutDirection = "high"
	BreakoutLow  BreakoutDirection = "low"
)

// Side returns the order side that trades the breakout.
func (d BreakoutDirection) Side() (domain.OrderSide, error) {
	switch d {
	case BreakoutHigh:
		return domain.Buy, nil
	case BreakoutLow:
		return domain.Sell, nil
	default:
		return "", fmt.Errorf("%w: unknown breakout direction %q", ports.ErrInvalidArgument, d)
	}
}

func offset(points int, point decimal.Decimal) (decimal.Decimal, error) {
	if points < 0 {
		return decimal.Zero, fmt.Errorf("%w: negative point count %d", ports.ErrInvalidArgument, points)
	}
	if !point.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: point size must be positive, got %s", ports.ErrInvalidArgument, point)
	}
	return point.Mul(decimal.NewFromInt(int64(points))), nil
}

// StopLoss returns the stop-loss price slPoints away from entry.
// Buy stops sit below entry; sell stops sit above entry plus the spread.
func StopLoss(side domain.OrderSide, entry decimal.Decimal, slPoints int, point, spread decimal.Decimal) (decimal.Decimal, error) {
	if !side.Valid() {
		return decimal.Zero, fmt.Errorf("%w: unknown order side %q", ports.ErrInvalidArgument, side)
	}
	dist, err := offset(slPoints, point)
	if err != nil {
		return decimal.Zero, err
	}
	if side == domain.Buy {
		return entry.Sub(dist), nil
	}
	return entry.Add(dist).Add(spread), nil
}

// TakeProfit returns the take-profit price tpPoints away from entry. No spread adjustment.
func TakeProfit(side domain.OrderSide, entry decimal.Decimal, tpPoints int, point decimal.Decimal) (decimal.Decimal, error) {
	if !side.Valid() {
		return decimal.Zero, fmt.Errorf("%w: unknown order side %q", ports.ErrInvalidArgument, side)
	}
	dist, err := offset(tpPoints, point)
	if err != nil {
		return decimal.Zero, err
	}
	if side == domain.Buy {
		return entry.Add(dist), nil
	}
	return entry.Sub(dist), nil
}

// BreakoutTrigger returns the pending-order trigger for a breakout of candle.
func BreakoutTrigger(direction BreakoutDirection, candle domain.Candle, offsetPoints int, point decimal.Decimal) (decimal.Decimal, error) {
	dist, err := offset(offsetPoints, point)
	if err != nil {
		return decimal.Zero, err
	}
	switch direction {
	case BreakoutHigh:
		return candle.High.Add(dist), nil
	case BreakoutLow:
		return candle.Low.Sub(dist), nil
	default:
		return decimal.Zero, fmt.Errorf("%w: unknown breakout direction %q", ports.ErrInvalidArgument, direction)
	}
}

// KeyLevelStopLoss places the stop beyond the extreme of candles: below the lowest low
// for buys, above the highest high for sells.
func KeyLevelStopLoss(side domain.OrderSide, candles []domain.Candle, offsetPoints int, point decimal.Decimal) (decimal.Decimal, error) {
	if !side.Valid() {
		return decimal.Zero, fmt.Errorf("%w: unknown order side %q", ports.ErrInvalidArgument, side)
	}
	if len(candles) == 0 {
		return decimal.Zero, fmt.Errorf("%w: no candles for key level", ports.ErrInvalidArgument)
	}
	dist, err := offset(offsetPoints, point)
	if err != nil {
		return decimal.Zero, err
	}

	if side == domain.Buy {
		low := candles[0].Low
		for _, c := range candles[1:] {
			low = decimal.Min(low, c.Low)
		}
		return low.Sub(dist), nil
	}
	high := candles[0].High
	for _, c := range candles[1:] {
		high = decimal.Max(high, c.High)
	}
	return high.Add(dist), nil
}

// BreakevenStopLoss returns the stop offsetPoints away from entry on the loss side:
// below entry for buys, above for sells. A negative offset locks in that many points.
func BreakevenStopLoss(side domain.OrderSide, entry decimal.Decimal, offsetPoints int, point decimal.Decimal) (decimal.Decimal, error) {
	if !side.Valid() {
		return decimal.Zero, fmt.Errorf("%w: unknown order side %q", ports.ErrInvalidArgument, side)
	}
	if !point.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: point size must be positive, got %s", ports.ErrInvalidArgument, point)
	}
	dist := point.Mul(decimal.NewFromInt(int64(offsetPoints)))
	if side == domain.Buy {
		return entry.Sub(dist), nil
	}
	return entry.Add(dist), nil
}

// Tightens reports whether proposed moves a stop toward the profit side of current.
// A zero current stop means none is set.
func Tightens(side domain.OrderSide, current, proposed decimal.Decimal) bool {
	if current.IsZero() {
		return true
	}
	if side == domain.Buy {
		return proposed.GreaterThan(current)
	}
	return proposed.LessThan(current)
}

// Round rounds price half away from zero to the instrument's digits.
func Round(price decimal.Decimal, digits int32) decimal.Decimal {
	if digits <= 0 {
		return price
	}
	return price.Round(digits)
}
