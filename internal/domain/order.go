package domain

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// OrderSpec describes one member of a batch before it is priced.
// A nil LimitPrice means an immediate market order, otherwise a stop order at that trigger.
type OrderSpec struct {
	Symbol           string
	Side             OrderSide
	Volume           decimal.Decimal
	StopLossPoints   int
	TakeProfitPoints int
	LimitPrice       *decimal.Decimal
	// StopLossPrice overrides StopLossPoints with an absolute level (candle key-level mode).
	StopLossPrice *decimal.Decimal
	Comment       string
}

// Kind derives the order classification from LimitPrice.
func (s OrderSpec) Kind() OrderKind {
	if s.LimitPrice != nil {
		return KindStop
	}
	return KindMarket
}

// Validate checks the structural constraints of an order spec.
func (s OrderSpec) Validate() error {
	switch {
	case s.Symbol == "":
		return errors.New("symbol is required")
	case !s.Side.Valid():
		return fmt.Errorf("unknown order side %q", s.Side)
	case !s.Volume.IsPositive():
		return fmt.Errorf("volume must be positive, got %s", s.Volume)
	case s.StopLossPoints < 0:
		return fmt.Errorf("stop loss points must be non-negative, got %d", s.StopLossPoints)
	case s.TakeProfitPoints < 0:
		return fmt.Errorf("take profit points must be non-negative, got %d", s.TakeProfitPoints)
	case s.LimitPrice != nil && !s.LimitPrice.IsPositive():
		return fmt.Errorf("limit price must be positive, got %s", s.LimitPrice)
	}
	return nil
}

// OrderRequest is a fully priced instruction for the terminal.
// Zero StopLoss or TakeProfit means the level is not set.
type OrderRequest struct {
	Symbol     string
	Side       OrderSide
	Kind       OrderKind
	Volume     decimal.Decimal
	Price      decimal.Decimal // trigger for stop orders, current quote for market orders
	StopLoss   decimal.Decimal
	TakeProfit decimal.Decimal
	Comment    string
}

// OutcomeStatus is the result of a single batch member.
type OutcomeStatus string

const (
	StatusPlaced       OutcomeStatus = "placed"
	StatusFailed       OutcomeStatus = "failed"
	StatusNotAttempted OutcomeStatus = "not_attempted"
)

// OrderOutcome records what happened to one member of a batch.
type OrderOutcome struct {
	Index   int
	Spec    OrderSpec
	Request OrderRequest
	Ticket  Ticket
	Status  OutcomeStatus
	Err     error
}

// BatchResult holds the ordered outcomes of a batch submission.
type BatchResult struct {
	ID          string
	Outcomes    []OrderOutcome
	Compensated bool // prior legs were rolled back after a failure
}

// Succeeded reports whether every member was placed.
func (r *BatchResult) Succeeded() bool {
	if r == nil || len(r.Outcomes) == 0 {
		return false
	}
	for _, o := range r.Outcomes {
		if o.Status != StatusPlaced {
			return false
		}
	}
	return true
}

// FailedIndex returns the index of the failed member, or -1.
func (r *BatchResult) FailedIndex() int {
	if r == nil {
		return -1
	}
	for _, o := range r.Outcomes {
		if o.Status == StatusFailed {
			return o.Index
		}
	}
	return -1
}

// Count returns the number of outcomes with the given status.
func (r *BatchResult) Count(status OutcomeStatus) int {
	if r == nil {
		return 0
	}
	n := 0
	for _, o := range r.Outcomes {
		if o.Status == status {
			n++
		}
	}
	return n
}
