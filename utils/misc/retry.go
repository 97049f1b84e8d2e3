package misc

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RetryPolicy is a fixed-attempt, fixed-delay retry policy. There is no exponential growth and no jitter.
type RetryPolicy struct {
	// Attempts is the total number of calls, including the first one.
	Attempts int
	// Delay is the pause between two consecutive attempts.
	Delay time.Duration
	// Retryable reports whether an error is worth another attempt. A nil Retryable retries nothing.
	Retryable func(error) bool
}

// WithRetry calls op until it succeeds, returns an error the policy doesn't consider retryable, or the policy's
// attempts are exhausted. In the last case the error of the final attempt is returned.
func WithRetry[T any](ctx context.Context, policy RetryPolicy, op func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	if policy.Attempts < 1 {
		return zero, fmt.Errorf("invalid parameter attempts: %d", policy.Attempts)
	}
	if err := ctx.Err(); err != nil {
		return zero, err
	}

	b := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(policy.Delay), uint64(policy.Attempts-1)),
		ctx,
	)
	return backoff.RetryWithData(func() (T, error) {
		res, err := op(ctx)
		if err == nil {
			return res, nil
		}
		if ctx.Err() != nil || policy.Retryable == nil || !policy.Retryable(err) {
			return res, backoff.Permanent(err)
		}
		return res, err
	}, b)
}

// Retry is WithRetry for operations without a result.
func Retry(ctx context.Context, policy RetryPolicy, op func(ctx context.Context) error) error {
	_, err := WithRetry(ctx, policy, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, op(ctx)
	})
	return err
}
