package retrywrap

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDo_SucceedsWithoutRetry(t *testing.T) {
	calls := 0
	got, err := Do(context.Background(), DefaultPolicy(3), func(ctx context.Context) (string, error) {
		calls++
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", got)
	assert.Equal(t, 1, calls)
}

func TestDo_RetriesThenSucceeds(t *testing.T) {
	calls := 0
	policy := DefaultPolicy(3)
	policy.Base = time.Millisecond
	got, err := Do(context.Background(), policy, func(ctx context.Context) (int, error) {
		calls++
		if calls < 3 {
			return 0, errors.New("transient")
		}
		return 42, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 42, got)
	assert.Equal(t, 3, calls)
}

func TestDo_TerminalErrorNoRetry(t *testing.T) {
	calls := 0
	policy := DefaultPolicy(3)
	policy.Retryable = func(err error) bool { return false }
	_, err := Do(context.Background(), policy, func(ctx context.Context) (int, error) {
		calls++
		return 0, errors.New("terminal")
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestDo_ExhaustsRetries(t *testing.T) {
	calls := 0
	policy := DefaultPolicy(2)
	policy.Base = time.Millisecond
	_, err := Do(context.Background(), policy, func(ctx context.Context) (int, error) {
		calls++
		return 0, errors.New("always fails")
	})
	require.Error(t, err)
	assert.Equal(t, 3, calls) // initial + 2 retries
}

func TestDo_CancellationBetweenAttempts(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	policy := DefaultPolicy(5)
	policy.Base = 20 * time.Millisecond
	calls := 0
	_, err := Do(ctx, policy, func(ctx context.Context) (int, error) {
		calls++
		if calls == 1 {
			cancel()
		}
		return 0, errors.New("retryable")
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCancelled)
}

func TestDo_HonorsRetryAfterHint(t *testing.T) {
	calls := 0
	var timestamps []time.Time
	policy := DefaultPolicy(1)
	policy.RetryAfter = func(err error) time.Duration { return 5 * time.Millisecond }
	_, _ = Do(context.Background(), policy, func(ctx context.Context) (int, error) {
		calls++
		timestamps = append(timestamps, time.Now())
		return 0, errors.New("rate limited")
	})
	require.Len(t, timestamps, 2)
	assert.GreaterOrEqual(t, timestamps[1].Sub(timestamps[0]), 4*time.Millisecond)
}
