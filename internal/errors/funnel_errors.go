package errors

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorCategory represents different types of errors that can occur
type ErrorCategory string

const (
	// Critical errors that should stop the bot
	ErrorCategoryFatal       ErrorCategory = "FATAL"
	ErrorCategoryCredentials ErrorCategory = "CREDENTIALS"
	ErrorCategoryConfig      ErrorCategory = "CONFIG"

	// Errors that fail the current cycle or candidate, not the bot
	ErrorCategoryValidation  ErrorCategory = "VALIDATION"
	ErrorCategoryStaleness   ErrorCategory = "STALENESS"
	ErrorCategoryBreaker     ErrorCategory = "BREAKER"
	ErrorCategoryPersistence ErrorCategory = "PERSISTENCE"

	// Transient boundary errors
	ErrorCategoryTransport ErrorCategory = "TRANSPORT"
	ErrorCategoryTimeout   ErrorCategory = "TIMEOUT"
	ErrorCategoryRateLimit ErrorCategory = "RATE_LIMIT"
)

// FunnelError is a categorized error with component and operation
// context. Gate rejections and validation outcomes are value types, not
// errors; FunnelError is reserved for infrastructure failures.
type FunnelError struct {
	Category   ErrorCategory
	Component  string
	Operation  string
	Message    string
	Underlying error
	Retryable  bool
}

// Error implements the error interface
func (e *FunnelError) Error() string {
	if e.Underlying != nil {
		return fmt.Sprintf("[%s:%s] %s: %s: %v", e.Category, e.Component, e.Operation, e.Message, e.Underlying)
	}
	return fmt.Sprintf("[%s:%s] %s: %s", e.Category, e.Component, e.Operation, e.Message)
}

// Unwrap returns the underlying error for error unwrapping
func (e *FunnelError) Unwrap() error {
	return e.Underlying
}

// IsRetryable returns whether this error can be retried
func (e *FunnelError) IsRetryable() bool {
	return e.Retryable
}

// IsFatal returns whether this error should stop the bot
func (e *FunnelError) IsFatal() bool {
	return e.Category == ErrorCategoryFatal ||
		e.Category == ErrorCategoryCredentials ||
		e.Category == ErrorCategoryConfig
}

// New creates a categorized funnel error
func New(category ErrorCategory, component, operation, message string) *FunnelError {
	return &FunnelError{
		Category:  category,
		Component: component,
		Operation: operation,
		Message:   message,
		Retryable: isRetryableCategory(category),
	}
}

// Wrap wraps an existing error with funnel error context
func Wrap(err error, category ErrorCategory, component, operation string) *FunnelError {
	if err == nil {
		return nil
	}

	return &FunnelError{
		Category:   category,
		Component:  component,
		Operation:  operation,
		Message:    "operation failed",
		Underlying: err,
		Retryable:  isRetryableCategory(category),
	}
}

// WithRetryable sets the retryable flag
func (e *FunnelError) WithRetryable(retryable bool) *FunnelError {
	e.Retryable = retryable
	return e
}

func isRetryableCategory(category ErrorCategory) bool {
	switch category {
	case ErrorCategoryTransport, ErrorCategoryTimeout, ErrorCategoryRateLimit:
		return true
	default:
		return false
	}
}

// Categorize maps a generic error onto a FunnelError by inspecting the
// message. Used at the broker boundary where the SDK returns plain errors.
func Categorize(err error, component, operation string) *FunnelError {
	if err == nil {
		return nil
	}

	var fe *FunnelError
	if errors.As(err, &fe) {
		return fe
	}

	errMsg := strings.ToLower(err.Error())

	if strings.Contains(errMsg, "timeout") || strings.Contains(errMsg, "context deadline exceeded") {
		return Wrap(err, ErrorCategoryTimeout, component, operation)
	}

	if strings.Contains(errMsg, "connection") || strings.Contains(errMsg, "network") ||
		strings.Contains(errMsg, "dns") || strings.Contains(errMsg, "dial") {
		return Wrap(err, ErrorCategoryTransport, component, operation)
	}

	if strings.Contains(errMsg, "api key") || strings.Contains(errMsg, "authentication") ||
		strings.Contains(errMsg, "unauthorized") {
		return Wrap(err, ErrorCategoryCredentials, component, operation)
	}

	if strings.Contains(errMsg, "rate limit") || strings.Contains(errMsg, "too many requests") {
		return Wrap(err, ErrorCategoryRateLimit, component, operation)
	}

	if strings.Contains(errMsg, "invalid") || strings.Contains(errMsg, "insufficient") ||
		strings.Contains(errMsg, "minimum") || strings.Contains(errMsg, "maximum") {
		return Wrap(err, ErrorCategoryValidation, component, operation)
	}

	return Wrap(err, ErrorCategoryTransport, component, operation)
}

// Common error constructors

func NewTransportError(component, operation string, err error) *FunnelError {
	return Wrap(err, ErrorCategoryTransport, component, operation)
}

func NewValidationError(component, operation, message string) *FunnelError {
	return New(ErrorCategoryValidation, component, operation, message)
}

func NewStalenessError(component, operation, message string) *FunnelError {
	return New(ErrorCategoryStaleness, component, operation, message)
}

func NewBreakerError(component, operation, message string) *FunnelError {
	return New(ErrorCategoryBreaker, component, operation, message)
}

func NewPersistenceError(component, operation string, err error) *FunnelError {
	return Wrap(err, ErrorCategoryPersistence, component, operation)
}

func NewConfigError(component, operation, message string) *FunnelError {
	return New(ErrorCategoryConfig, component, operation, message)
}

func NewFatalError(component, operation, message string) *FunnelError {
	return New(ErrorCategoryFatal, component, operation, message)
}

// RecoveryAction suggests how a caller should respond to an error
type RecoveryAction string

const (
	RecoveryActionRetry RecoveryAction = "RETRY"
	RecoveryActionSkip  RecoveryAction = "SKIP"
	RecoveryActionStop  RecoveryAction = "STOP"
	RecoveryActionWait  RecoveryAction = "WAIT"
)

// GetRecoveryAction suggests a recovery action based on error category
func (e *FunnelError) GetRecoveryAction() RecoveryAction {
	switch e.Category {
	case ErrorCategoryFatal, ErrorCategoryCredentials, ErrorCategoryConfig:
		return RecoveryActionStop
	case ErrorCategoryRateLimit:
		return RecoveryActionWait
	case ErrorCategoryTransport, ErrorCategoryTimeout:
		return RecoveryActionRetry
	case ErrorCategoryStaleness, ErrorCategoryBreaker:
		return RecoveryActionWait
	default:
		return RecoveryActionSkip
	}
}
