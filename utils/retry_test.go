package utils

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetrySucceedsAfterTransientFailures(t *testing.T) {
	r := &RetryConfig{MaxAttempts: 3, BaseDelay: time.Millisecond}

	calls := 0
	err := r.Do(context.Background(), "flaky op", func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetryExhaustsAttempts(t *testing.T) {
	r := &RetryConfig{MaxAttempts: 2, BaseDelay: time.Millisecond}

	calls := 0
	err := r.Do(context.Background(), "doomed op", func(ctx context.Context) error {
		calls++
		return errors.New("permanent")
	})

	assert.Error(t, err)
	assert.Equal(t, 2, calls)
}

func TestRetryStopsOnCancelledContext(t *testing.T) {
	r := &RetryConfig{MaxAttempts: 5, BaseDelay: time.Hour}
	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	done := make(chan error, 1)
	go func() {
		done <- r.Do(ctx, "cancelled op", func(ctx context.Context) error {
			calls++
			return errors.New("fail")
		})
	}()

	cancel()
	select {
	case err := <-done:
		assert.Error(t, err)
		assert.LessOrEqual(t, calls, 1)
	case <-time.After(time.Second):
		t.Fatal("retry did not observe context cancellation")
	}
}
