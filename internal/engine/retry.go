package engine

import (
	"context"

	"github.com/cenkalti/backoff/v5"

	"github.com/lazypower/psyche/internal/config"
)

// retry runs op with a per-attempt timeout and bounded exponential backoff.
// Cancellation of the parent context stops retrying immediately.
func retry[T any](ctx context.Context, cfg config.EngineConfig, op func(context.Context) (T, error)) (T, error) {
	b := backoff.NewExponentialBackOff()
	if cfg.RetryInitial > 0 {
		b.InitialInterval = cfg.RetryInitial
	}
	tries := cfg.RetryMaxTries
	if tries == 0 {
		tries = 1
	}

	return backoff.Retry(ctx, func() (T, error) {
		attemptCtx, cancel := ctx, context.CancelFunc(func() {})
		if cfg.StoreTimeout > 0 {
			attemptCtx, cancel = context.WithTimeout(ctx, cfg.StoreTimeout)
		}
		defer cancel()

		v, err := op(attemptCtx)
		if err != nil && ctx.Err() != nil {
			return v, backoff.Permanent(ctx.Err())
		}
		return v, err
	}, backoff.WithBackOff(b), backoff.WithMaxTries(tries))
}

// retryDo is retry for operations that only return an error.
func retryDo(ctx context.Context, cfg config.EngineConfig, op func(context.Context) error) error {
	_, err := retry(ctx, cfg, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, op(ctx)
	})
	return err
}
