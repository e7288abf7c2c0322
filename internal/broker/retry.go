package broker

import (
	"context"
	"math"
	"math/rand"
	"time"

	funnelerrors "github.com/ducminhle1904/risk-funnel-bot/internal/errors"
)

// RetryPolicy holds retry configuration for boundary calls. One policy
// is applied at the boundary layer rather than per call site.
type RetryPolicy struct {
	MaxRetries    int           `json:"maxRetries"`
	InitialDelay  time.Duration `json:"initialDelay"`
	MaxDelay      time.Duration `json:"maxDelay"`
	BackoffFactor float64       `json:"backoffFactor"`
	JitterEnabled bool          `json:"jitterEnabled"`
}

// DefaultRetryPolicy returns the retry policy used for broker and
// sentiment calls.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:    3,
		InitialDelay:  time.Second,
		MaxDelay:      time.Minute,
		BackoffFactor: 2.0,
		JitterEnabled: true,
	}
}

// Do executes fn with bounded retries and exponential backoff. Only
// errors categorized as retryable are retried; context cancellation
// stops immediately.
func (p RetryPolicy) Do(ctx context.Context, component, operation string, fn func() error) error {
	var lastErr error

	for attempt := 0; attempt <= p.MaxRetries; attempt++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		err := fn()
		if err == nil {
			return nil
		}

		lastErr = err

		if attempt == p.MaxRetries {
			break
		}

		if !funnelerrors.Categorize(err, component, operation).IsRetryable() {
			break
		}

		delay := p.delay(attempt)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}

	return funnelerrors.Categorize(lastErr, component, operation)
}

func (p RetryPolicy) delay(attempt int) time.Duration {
	delay := p.InitialDelay
	if attempt > 0 {
		delay = time.Duration(float64(p.InitialDelay) * math.Pow(p.BackoffFactor, float64(attempt)))
	}

	if delay > p.MaxDelay {
		delay = p.MaxDelay
	}

	if p.JitterEnabled {
		jitter := time.Duration(float64(delay) * 0.1 * (2*rand.Float64() - 1))
		delay += jitter
	}

	return delay
}
