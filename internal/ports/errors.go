package ports

import (
	"errors"
	"fmt"
)

// Standard application-level errors.
// Adapters should wrap underlying infrastructure errors with these standard errors.
var (
	// Taxonomy surfaced to callers
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrPreconditionFailed = errors.New("precondition failed")
	ErrExternalAPIFailure = errors.New("trading API returned a failure")
	ErrConfiguration      = errors.New("invalid or missing configuration")
	ErrStorageFailure     = errors.New("storage failure")

	// General Errors
	ErrUnknown         = errors.New("unknown error occurred")
	ErrNotFound        = errors.New("resource not found")
	ErrTimeout         = errors.New("operation timed out")
	ErrContextCanceled = errors.New("operation canceled via context")

	// Terminal Specific Errors
	ErrNotConnected         = errors.New("trading terminal is not connected")
	ErrConnectionFailed     = errors.New("failed to connect to the trading terminal")
	ErrRateLimited          = errors.New("API rate limit exceeded")
	ErrAuthenticationFailed = errors.New("terminal authentication failed (check credentials)")
	ErrInsufficientFunds    = errors.New("insufficient funds for operation")
	ErrSymbolNotFound       = errors.New("symbol not found on the terminal")
	ErrOrderNotFound        = errors.New("order not found on the terminal")
	ErrPositionNotFound     = errors.New("position not found on the terminal")
	ErrOrderRejected        = errors.New("order rejected by the terminal")
)

// Precondition names checked before a batch is submitted.
const (
	ConditionConnected       = "terminal connected"
	ConditionTradingAllowed  = "automated trading enabled"
	ConditionMarginAvailable = "free margin available"
	ConditionTradingEnabled  = "trading not disabled by risk guard"
	ConditionTradeLimit      = "daily trade limit not reached"
)

// PreconditionError names the condition that was not met. It matches ErrPreconditionFailed.
type PreconditionError struct {
	Condition string
	Detail    string
}

func (e *PreconditionError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("%s: %s", ErrPreconditionFailed, e.Condition)
	}
	return fmt.Sprintf("%s: %s (%s)", ErrPreconditionFailed, e.Condition, e.Detail)
}

func (e *PreconditionError) Unwrap() error { return ErrPreconditionFailed }

// NewPreconditionError builds a PreconditionError for condition.
func NewPreconditionError(condition, detail string) error {
	return &PreconditionError{Condition: condition, Detail: detail}
}

// ConfigurationError reports a missing or invalid settings field. It matches ErrConfiguration.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("%s: %s: %s", ErrConfiguration, e.Field, e.Reason)
}

func (e *ConfigurationError) Unwrap() error { return ErrConfiguration }
