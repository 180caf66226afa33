// Package retry is a bounded exponential-backoff executor for fallible
// units of work. It knows nothing about what the wrapped work does: failures
// are classified purely through the error value.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrBudgetExceeded is returned when every attempt failed with a rate-limit
// class error. It wraps the last underlying error.
var ErrBudgetExceeded = errors.New("retry budget exceeded")

// rateLimited is satisfied by errors that indicate quota exhaustion and are
// therefore worth retrying after a delay. Everything else is terminal.
type rateLimited interface {
	RateLimited() bool
}

func isRateLimited(err error) bool {
	var rl rateLimited
	return errors.As(err, &rl) && rl.RateLimited()
}

type Policy struct {
	// MaxAttempts is the total attempt count, including the first.
	MaxAttempts int

	// BaseDelay scales the backoff: attempt k waits 2^k * BaseDelay.
	BaseDelay time.Duration

	// OnRetry, when set, is invoked before each backoff wait.
	OnRetry func(attempt int, wait time.Duration)
}

// Delay returns the backoff before retrying after failed attempt k (k >= 1).
// The delay is strictly increasing in k.
func (p Policy) Delay(attempt int) time.Duration {
	return time.Duration(1<<uint(attempt)) * p.BaseDelay
}

// Do executes op up to p.MaxAttempts times. Terminal errors propagate
// immediately without any delay. Rate-limit class errors trigger an
// exponential backoff while attempts remain; once the budget is exhausted
// Do returns an error wrapping ErrBudgetExceeded.
func Do[T any](ctx context.Context, p Policy, op func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	if p.MaxAttempts < 1 {
		p.MaxAttempts = 1
	}

	for attempt := 1; ; attempt++ {
		v, err := op(ctx)
		if err == nil {
			return v, nil
		}
		if !isRateLimited(err) {
			return zero, err
		}
		if attempt >= p.MaxAttempts {
			return zero, fmt.Errorf("%w after %d attempts: %v", ErrBudgetExceeded, attempt, err)
		}

		wait := p.Delay(attempt)
		if p.OnRetry != nil {
			p.OnRetry(attempt, wait)
		}
		if err := sleep(ctx, wait); err != nil {
			return zero, err
		}
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
