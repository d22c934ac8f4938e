package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cortexflow/llmkit/llmerr"
)

func TestRetrySucceedsWithoutRetryOnFirstAttempt(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), Policy{}, func() error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestRetryStopsImmediatelyOnNonRetryableError(t *testing.T) {
	calls := 0
	wantErr := llmerr.New(llmerr.InvalidInput, "bad request")
	err := Retry(context.Background(), Policy{}, func() error {
		calls++
		return wantErr
	})
	assert.Equal(t, wantErr, err)
	assert.Equal(t, 1, calls)
}

func TestRetryRetriesRetryableErrorUpToMaxAttempts(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), Policy{MaxAttempts: 3, BaseDelay: time.Millisecond}, func() error {
		calls++
		return llmerr.API(429, "rate limited", nil)
	})
	assert.Error(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetryReturnsNilAsSoonAsAttemptSucceeds(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), Policy{MaxAttempts: 5, BaseDelay: time.Millisecond}, func() error {
		calls++
		if calls < 3 {
			return llmerr.API(429, "rate limited", nil)
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetryAbortsOnContextCancellationBetweenAttempts(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := Retry(ctx, Policy{MaxAttempts: 5, BaseDelay: 50 * time.Millisecond}, func() error {
		calls++
		if calls == 1 {
			cancel()
		}
		return llmerr.API(429, "rate limited", nil)
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestLimiterWaitConsumesBudget(t *testing.T) {
	l := NewLimiter(6000) // 100 tokens/sec
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, l.Wait(ctx, 1))
}

func TestNewLimiterZeroBudgetDoesNotBlock(t *testing.T) {
	l := NewLimiter(0)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, l.Wait(ctx, 1000))
}
