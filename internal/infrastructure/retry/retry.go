package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

type Config struct {
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// Do calls fn until it succeeds, returns an error for which retryable is
// false, runs out of attempts, or ctx is done. The returned error is the last
// one fn produced, unwrapped.
func Do(
	ctx context.Context,
	cfg Config,
	retryable func(error) bool,
	fn func(context.Context) error,
	onRetry func(err error, next time.Duration),
) error {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}

	exp := backoff.NewExponentialBackOff()
	if cfg.InitialInterval > 0 {
		exp.InitialInterval = cfg.InitialInterval
	}
	if cfg.MaxInterval > 0 {
		exp.MaxInterval = cfg.MaxInterval
	}
	exp.MaxElapsedTime = 0

	policy := backoff.WithContext(
		backoff.WithMaxRetries(exp, uint64(cfg.MaxAttempts-1)),
		ctx,
	)

	operation := func() error {
		err := fn(ctx)
		if err != nil && !retryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	var notify backoff.Notify
	if onRetry != nil {
		notify = func(err error, next time.Duration) { onRetry(err, next) }
	}

	return backoff.RetryNotify(operation, policy, notify)
}
