package synapse

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rudderlabs/bridge-exporter/utils/misc"
)

// RunAsyncJob starts an async job once and then polls for its result, see PollAsyncJob.
func RunAsyncJob[T any](
	ctx context.Context,
	start func(ctx context.Context) (string, error),
	poll func(ctx context.Context, token string) (T, error),
	interval time.Duration,
	maxAttempts int,
) (T, error) {
	token, err := start(ctx)
	if err != nil {
		var zero T
		return zero, fmt.Errorf("starting async job: %w", err)
	}
	return PollAsyncJob(ctx, token, poll, interval, maxAttempts)
}

// PollAsyncJob polls the job identified by token up to maxAttempts times, sleeping interval before each poll.
// ErrNotReady moves on to the next poll, any other error is returned as is. If the job still isn't done after
// the last poll a *TimeoutError is returned.
func PollAsyncJob[T any](
	ctx context.Context,
	token string,
	poll func(ctx context.Context, token string) (T, error),
	interval time.Duration,
	maxAttempts int,
) (T, error) {
	var zero T
	for range maxAttempts {
		if interval > 0 {
			if err := misc.SleepCtx(ctx, interval); err != nil {
				return zero, err
			}
		}

		res, err := poll(ctx, token)
		if errors.Is(err, ErrNotReady) {
			continue
		}
		if err != nil {
			return zero, fmt.Errorf("polling async job %s: %w", token, err)
		}
		return res, nil
	}
	return zero, &TimeoutError{JobToken: token}
}
