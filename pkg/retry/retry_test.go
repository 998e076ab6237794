package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastConfig(attempts int) Config {
	return Config{
		MaxAttempts:   attempts,
		InitialDelay:  time.Millisecond,
		MaxDelay:      5 * time.Millisecond,
		BackoffFactor: 2,
	}
}

func TestDo_SucceedsAfterFailures(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastConfig(5), func() error {
		calls++
		if calls < 3 {
			return errors.New("not yet")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDo_ExhaustsAttempts(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastConfig(3), func() error {
		calls++
		return errors.New("node unreachable")
	})

	require.Error(t, err)
	assert.Equal(t, 3, calls)
	assert.Contains(t, err.Error(), "max retry attempts (3) exceeded")
}

func TestDo_PermanentStopsImmediately(t *testing.T) {
	invalidKey := errors.New("invalid private key")
	calls := 0
	err := Do(context.Background(), fastConfig(5), func() error {
		calls++
		return Permanent(invalidKey)
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.ErrorIs(t, err, invalidKey)
}

func TestDoWithLog_ReportsAttempts(t *testing.T) {
	var logged []int
	err := DoWithLog(context.Background(), fastConfig(3), "Ledger", func() error {
		return errors.New("dial failed")
	}, func(attempt int, err error, nextDelay time.Duration) {
		logged = append(logged, attempt)
	})

	require.Error(t, err)
	assert.Equal(t, []int{1, 2}, logged)
	assert.Contains(t, err.Error(), "Ledger:")
}

func TestDo_RespectsCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := Do(ctx, fastConfig(3), func() error {
		calls++
		return nil
	})

	require.Error(t, err)
	assert.Equal(t, 0, calls)
	assert.ErrorIs(t, err, context.Canceled)
}
