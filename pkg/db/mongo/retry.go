package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
)

const (
	labelRetryableWrite       = "RetryableWriteError"
	labelTransientTransaction = "TransientTransactionError"
)

// RetryPolicy bounds how often a store operation is re-attempted after a
// transient failure. Backoff doubles after every failed attempt.
type RetryPolicy struct {
	Attempts int
	Backoff  time.Duration
}

func NewRetryPolicy(attempts int, backoff time.Duration) RetryPolicy {
	if attempts < 1 {
		attempts = 1
	}
	return RetryPolicy{Attempts: attempts, Backoff: backoff}
}

// IsTransient reports whether err is worth retrying: network failures,
// timeouts that did not come from the caller's context, and server errors
// labelled as retryable.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if mongo.IsNetworkError(err) || mongo.IsTimeout(err) {
		return true
	}

	var serverErr mongo.ServerError
	if errors.As(err, &serverErr) {
		return serverErr.HasErrorLabel(labelRetryableWrite) ||
			serverErr.HasErrorLabel(labelTransientTransaction)
	}

	return false
}

// Do runs fn until it succeeds, returns a non-transient error, or the policy
// is exhausted. The last error is returned unchanged.
func Do(ctx context.Context, policy RetryPolicy, fn func(ctx context.Context) error) error {
	attempts := policy.Attempts
	if attempts < 1 {
		attempts = 1
	}

	backoff := policy.Backoff
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		err = fn(ctx)
		if err == nil || !IsTransient(err) || attempt == attempts {
			return err
		}

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return err
		case <-timer.C:
		}
		backoff *= 2
	}

	return err
}
