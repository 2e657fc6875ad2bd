package resilience

import (
	"context"
	"errors"
	"fmt"
	"time"

	apperrors "github.com/Adithya-Monish-Kumar-K/Similarity-Join-Platform/pkg/errors"
)

// WithTimeout runs fn with a derived context that is cancelled after the
// given timeout. When the deadline passes first, the returned error wraps
// both apperrors.ErrTimeout and context.DeadlineExceeded, so it maps to 504
// through apperrors.HTTPStatusCode.
//
// WithTimeout returns at the deadline without waiting for fn. fn keeps
// running until it observes its cancelled context; any side effect it
// commits afterwards must be guarded by a ctx check (the join engine skips
// publishing once its context is done).
func WithTimeout(ctx context.Context, timeout time.Duration, name string, fn func(ctx context.Context) error) error {
	if timeout <= 0 {
		return fn(ctx)
	}
	timeoutCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	done := make(chan error, 1)
	go func() {
		done <- fn(timeoutCtx)
	}()
	select {
	case err := <-done:
		return classify(ctx, err, name, timeout)
	case <-timeoutCtx.Done():
		// A result delivered at the deadline still counts.
		select {
		case err := <-done:
			return classify(ctx, err, name, timeout)
		default:
		}
		if ctx.Err() != nil {
			return fmt.Errorf("%s: parent context cancelled: %w", name, ctx.Err())
		}
		return timeoutError(name, timeout)
	}
}

// classify marks fn's own deadline error as a timeout unless the parent
// context is what ended it.
func classify(parent context.Context, err error, name string, timeout time.Duration) error {
	if err != nil && parent.Err() == nil && errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, apperrors.ErrTimeout) {
		return fmt.Errorf("%w: %w", timeoutError(name, timeout), err)
	}
	return err
}

func timeoutError(name string, timeout time.Duration) error {
	return fmt.Errorf("%s: %w after %v: %w", name, apperrors.ErrTimeout, timeout, context.DeadlineExceeded)
}
