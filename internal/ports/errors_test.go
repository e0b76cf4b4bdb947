package ports

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPreconditionError(t *testing.T) {
	err := fmt.Errorf("place batch: %w", NewPreconditionError(ConditionConnected, ""))

	assert.True(t, errors.Is(err, ErrPreconditionFailed))
	assert.Contains(t, err.Error(), ConditionConnected)

	var pe *PreconditionError
	if assert.True(t, errors.As(err, &pe)) {
		assert.Equal(t, ConditionConnected, pe.Condition)
	}
}

func TestConfigurationError(t *testing.T) {
	err := &ConfigurationError{Field: "daily_loss_limit", Reason: "is required"}

	assert.True(t, errors.Is(err, ErrConfiguration))
	assert.Contains(t, err.Error(), "daily_loss_limit")
}
