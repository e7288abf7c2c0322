package broker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:    3,
		InitialDelay:  time.Millisecond,
		MaxDelay:      5 * time.Millisecond,
		BackoffFactor: 2.0,
	}
}

func TestRetrySucceedsAfterTransientFailures(t *testing.T) {
	attempts := 0
	err := fastPolicy().Do(context.Background(), "broker", "op", func() error {
		attempts++
		if attempts < 3 {
			return errors.New("connection reset")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestRetryStopsOnNonRetryableError(t *testing.T) {
	attempts := 0
	err := fastPolicy().Do(context.Background(), "broker", "op", func() error {
		attempts++
		return errors.New("invalid order quantity")
	})

	require.Error(t, err)
	assert.Equal(t, 1, attempts)
}

func TestRetryExhaustsAttempts(t *testing.T) {
	attempts := 0
	err := fastPolicy().Do(context.Background(), "broker", "op", func() error {
		attempts++
		return errors.New("dial tcp: connection refused")
	})

	require.Error(t, err)
	assert.Equal(t, 4, attempts) // initial + 3 retries
}

func TestRetryHonorsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := fastPolicy().Do(ctx, "broker", "op", func() error {
		return errors.New("connection reset")
	})

	assert.ErrorIs(t, err, context.Canceled)
}
