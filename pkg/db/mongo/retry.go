package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/x/mongo/driver/topology"
)

// Retry calls fn up to attempts times. Between failures that retryable accepts
// it calls onRetry (when set) and sleeps a fixed interval. The last error is
// returned once attempts are exhausted or the context ends.
func Retry(
	ctx context.Context,
	attempts int,
	sleep time.Duration,
	fn func() error,
	retryable func(error) bool,
	onRetry func(attempt int, err error),
) error {
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		if attempt == attempts || (retryable != nil && !retryable(err)) {
			return err
		}
		if ctx.Err() != nil {
			return err
		}
		if onRetry != nil {
			onRetry(attempt, err)
		}

		timer := time.NewTimer(sleep)
		select {
		case <-ctx.Done():
			timer.Stop()
			return err
		case <-timer.C:
		}
	}
	return err
}

// IsConnectionError reports errors that a fresh connection may cure.
func IsConnectionError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, mongo.ErrClientDisconnected) || mongo.IsNetworkError(err) {
		return true
	}
	var selectionErr topology.ServerSelectionError
	return errors.As(err, &selectionErr)
}
