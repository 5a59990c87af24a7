package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errTransient = errors.New("transient")

func fast(retryIf func(error) bool) *Retrier {
	return New(
		WithMaxAttempts(3),
		WithBackoff(time.Millisecond, 2*time.Millisecond, 2),
		WithJitter(0),
		WithRetryIf(retryIf),
	)
}

func isTransient(err error) bool { return errors.Is(err, errTransient) }

func TestRetrier_SucceedsAfterTransientFailures(t *testing.T) {
	calls := 0
	var retried []int

	r := New(
		WithMaxAttempts(3),
		WithBackoff(time.Millisecond, time.Millisecond, 1),
		WithRetryIf(isTransient),
		WithOnRetry(func(attempt int, _ error, _ time.Duration) { retried = append(retried, attempt) }),
	)

	err := r.Do(context.Background(), func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return errTransient
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []int{1, 2}, retried)
}

func TestRetrier_StopsOnUnclassifiedError(t *testing.T) {
	boom := errors.New("boom")
	calls := 0

	err := fast(isTransient).Do(context.Background(), func(ctx context.Context) error {
		calls++
		return boom
	})

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, calls)
}

func TestRetrier_PermanentIsUnwrapped(t *testing.T) {
	calls := 0

	err := fast(func(error) bool { return true }).Do(context.Background(), func(ctx context.Context) error {
		calls++
		return Permanent(errTransient)
	})

	assert.Equal(t, errTransient, err)
	assert.False(t, IsPermanent(err))
	assert.Equal(t, 1, calls)
}

func TestRetrier_ExhaustsAttempts(t *testing.T) {
	calls := 0

	err := fast(isTransient).Do(context.Background(), func(ctx context.Context) error {
		calls++
		return errTransient
	})

	assert.ErrorIs(t, err, errTransient)
	assert.Equal(t, 3, calls)
}

func TestRetrier_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := fast(isTransient).Do(ctx, func(ctx context.Context) error {
		t.Fatal("operation must not run")
		return nil
	})

	assert.ErrorIs(t, err, context.Canceled)
}

func TestRetrier_DelayIsCapped(t *testing.T) {
	r := New(WithBackoff(10*time.Millisecond, 30*time.Millisecond, 2), WithJitter(0))

	assert.Equal(t, 10*time.Millisecond, r.delay(1))
	assert.Equal(t, 20*time.Millisecond, r.delay(2))
	assert.Equal(t, 30*time.Millisecond, r.delay(3))
	assert.Equal(t, 30*time.Millisecond, r.delay(6))
}

func TestTransactions_ExtraOptionsApply(t *testing.T) {
	calls := 0
	r := Transactions(isTransient, WithMaxAttempts(2), WithBackoff(time.Millisecond, time.Millisecond, 1))

	err := r.Do(context.Background(), func(ctx context.Context) error {
		calls++
		return errTransient
	})

	assert.ErrorIs(t, err, errTransient)
	assert.Equal(t, 2, calls)
}
