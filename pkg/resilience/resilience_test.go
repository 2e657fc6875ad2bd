package resilience

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	apperrors "github.com/Adithya-Monish-Kumar-K/Similarity-Join-Platform/pkg/errors"
)

func TestRetrySucceedsAfterFailures(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), "flaky", RetryConfig{MaxAttempts: 3, InitialDelay: time.Millisecond}, func() error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetryStopsOnPermanent(t *testing.T) {
	cause := errors.New("no such table")
	calls := 0
	err := Retry(context.Background(), "load", RetryConfig{MaxAttempts: 5, InitialDelay: time.Millisecond}, func() error {
		calls++
		return Permanent(cause)
	})
	assert.Equal(t, cause, err)
	assert.Equal(t, 1, calls)
	assert.NoError(t, Permanent(nil))
}

func TestRetryGivesUp(t *testing.T) {
	err := Retry(context.Background(), "down", RetryConfig{MaxAttempts: 2, InitialDelay: time.Millisecond}, func() error {
		return errors.New("still down")
	})
	assert.ErrorContains(t, err, "all 2 attempts failed for down")
}

func TestCircuitBreakerTransitions(t *testing.T) {
	var seen []State
	cb := NewCircuitBreaker("test", CircuitBreakerConfig{
		FailureThreshold: 2,
		ResetTimeout:     20 * time.Millisecond,
		OnStateChange:    func(_ string, to State) { seen = append(seen, to) },
	})
	fail := func() error { return errors.New("fail") }

	cb.Execute(fail)
	assert.Equal(t, StateClosed, cb.GetState())
	cb.Execute(fail)
	assert.Equal(t, StateOpen, cb.GetState())
	assert.ErrorIs(t, cb.Execute(func() error { return nil }), ErrCircuitOpen)

	time.Sleep(30 * time.Millisecond)
	assert.NoError(t, cb.Execute(func() error { return nil }))
	assert.Equal(t, StateClosed, cb.GetState())
	assert.Equal(t, []State{StateOpen, StateHalfOpen, StateClosed}, seen)
}

func TestWithTimeout(t *testing.T) {
	err := WithTimeout(context.Background(), 10*time.Millisecond, "slow", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.ErrorIs(t, err, apperrors.ErrTimeout)
	assert.Equal(t, http.StatusGatewayTimeout, apperrors.HTTPStatusCode(err))

	assert.NoError(t, WithTimeout(context.Background(), time.Second, "fast", func(context.Context) error { return nil }))
}

func TestWithTimeoutParentCancelIsNotATimeout(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(5 * time.Millisecond)
		cancel()
	}()
	err := WithTimeout(ctx, time.Second, "cancelled", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, apperrors.ErrTimeout)
}

func TestWithTimeoutKeepsOtherErrors(t *testing.T) {
	boom := errors.New("boom")
	err := WithTimeout(context.Background(), time.Second, "failing", func(context.Context) error { return boom })
	assert.Same(t, boom, err)
}
