package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWrapAndUnwrap(t *testing.T) {
	base := errors.New("connection refused")
	fe := Wrap(base, ErrorCategoryTransport, "broker", "GetAccountSnapshot")

	assert.ErrorIs(t, fe, base)
	assert.True(t, fe.IsRetryable())
	assert.False(t, fe.IsFatal())
	assert.Contains(t, fe.Error(), "TRANSPORT")
	assert.Contains(t, fe.Error(), "broker")
}

func TestCategorize(t *testing.T) {
	tests := []struct {
		msg       string
		category  ErrorCategory
		retryable bool
	}{
		{"context deadline exceeded", ErrorCategoryTimeout, true},
		{"dial tcp: connection refused", ErrorCategoryTransport, true},
		{"rate limit exceeded, slow down", ErrorCategoryRateLimit, true},
		{"invalid order quantity", ErrorCategoryValidation, false},
		{"api key expired", ErrorCategoryCredentials, false},
		{"something unexpected", ErrorCategoryTransport, true},
	}

	for _, tt := range tests {
		t.Run(tt.msg, func(t *testing.T) {
			fe := Categorize(errors.New(tt.msg), "broker", "op")
			assert.Equal(t, tt.category, fe.Category)
			assert.Equal(t, tt.retryable, fe.IsRetryable())
		})
	}
}

func TestCategorizePassesThroughFunnelError(t *testing.T) {
	orig := NewBreakerError("risk", "CanTrade", "breaker tripped")
	wrapped := fmt.Errorf("cycle failed: %w", orig)

	got := Categorize(wrapped, "bot", "RunCycle")
	assert.Same(t, orig, got)
}

func TestRecoveryActions(t *testing.T) {
	assert.Equal(t, RecoveryActionStop, NewFatalError("bot", "init", "bad state").GetRecoveryAction())
	assert.Equal(t, RecoveryActionWait, NewStalenessError("staleness", "check", "stale account").GetRecoveryAction())
	assert.Equal(t, RecoveryActionSkip, NewValidationError("risk", "ValidateTrade", "bad proposal").GetRecoveryAction())
	assert.Equal(t, RecoveryActionRetry, NewTransportError("broker", "SubmitOrder", errors.New("reset")).GetRecoveryAction())
}
