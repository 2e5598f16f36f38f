package client

import (
	"context"
	"math"
	"math/rand/v2"
	"time"
)

// retryOptions configures withRetries. The driver has two users: query
// dispatch and feed page fetches, both retrying only on throttling; the
// mechanism itself knows nothing about HTTP or the error taxonomy.
type retryOptions struct {
	maxAttempts int
	maxBackoff  time.Duration

	// shouldRetry decides whether a failure is worth another attempt.
	// Nil retries everything.
	shouldRetry func(error) bool

	// sleep is a seam for tests. Nil uses a context-aware sleep.
	sleep func(context.Context, time.Duration) error
}

// withRetries calls fn until it succeeds, the attempt budget runs out,
// or shouldRetry declines. Between attempts it sleeps a jittered
// exponential backoff, min(random * 2^attempt seconds, maxBackoff). The
// attempt count is returned either way so callers can surface retry
// activity in stats.
func withRetries[T any](ctx context.Context, fn func(context.Context) (T, error), opts retryOptions) (T, int, error) {
	var zero T

	shouldRetry := opts.shouldRetry
	if shouldRetry == nil {
		shouldRetry = func(error) bool { return true }
	}
	sleep := opts.sleep
	if sleep == nil {
		sleep = sleepContext
	}

	attempt := 0
	for {
		attempt++
		v, err := fn(ctx)
		if err == nil {
			return v, attempt, nil
		}
		if attempt >= opts.maxAttempts || !shouldRetry(err) {
			return zero, attempt, err
		}

		backoff := time.Duration(rand.Float64() * math.Pow(2, float64(attempt)) * float64(time.Second))
		if backoff > opts.maxBackoff {
			backoff = opts.maxBackoff
		}
		if serr := sleep(ctx, backoff); serr != nil {
			// The caller gave up during backoff; the last failure is
			// still the interesting one.
			return zero, attempt, err
		}
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
