package utils

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
)

// RetryConfig holds the parameters for the retry strategy.
type RetryConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
}

// Do executes fn with exponential back-off retry logic. Cancelling the
// context abandons both the current wait and any remaining attempts.
func (r *RetryConfig) Do(ctx context.Context, operationName string, fn func(ctx context.Context) error) error {
	var lastErr error
	delay := r.BaseDelay

	for attempt := 1; attempt <= r.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%s cancelled: %w", operationName, err)
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}

		if attempt < r.MaxAttempts {
			log.WithFields(log.Fields{
				"operation": operationName,
				"attempt":   attempt,
				"max":       r.MaxAttempts,
				"delay":     delay,
			}).Warnf("Operation failed, retrying: %v", lastErr)

			select {
			case <-ctx.Done():
				return fmt.Errorf("%s cancelled: %w", operationName, ctx.Err())
			case <-time.After(delay):
			}
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, r.MaxAttempts, lastErr)
}
