package circuitbreaker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/alem-rewards/pkg/timeutil"
)

var errDown = errors.New("redis down")

func fail(context.Context) error { return errDown }
func ok(context.Context) error   { return nil }

func TestBreaker_OpensAfterThreshold(t *testing.T) {
	var transitions []string
	cb := New("ranking",
		WithFailureThreshold(2),
		WithTimeout(time.Hour),
		WithOnStateChange(func(name string, from, to State) {
			transitions = append(transitions, name+":"+from.String()+"->"+to.String())
		}),
	)

	assert.ErrorIs(t, cb.Execute(context.Background(), fail), errDown)
	assert.True(t, cb.IsClosed())
	assert.ErrorIs(t, cb.Execute(context.Background(), fail), errDown)
	assert.True(t, cb.IsOpen())

	err := cb.Execute(context.Background(), ok)
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.True(t, IsRejected(err))
	assert.Equal(t, []string{"ranking:closed->open"}, transitions)
}

func TestBreaker_HalfOpenRecovers(t *testing.T) {
	clock := timeutil.NewManualClock(time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC))
	cb := New("ranking", WithFailureThreshold(1), WithSuccessThreshold(1), WithTimeout(time.Minute), WithClock(clock))

	require.Error(t, cb.Execute(context.Background(), fail))
	require.True(t, cb.IsOpen())

	clock.Advance(59 * time.Second)
	assert.ErrorIs(t, cb.Execute(context.Background(), ok), ErrCircuitOpen)

	clock.Advance(time.Second)
	require.NoError(t, cb.Execute(context.Background(), ok))
	assert.Equal(t, StateClosed, cb.State())
}

func TestBreaker_HalfOpenFailureReopens(t *testing.T) {
	clock := timeutil.NewManualClock(time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC))
	cb := New("ranking", WithFailureThreshold(1), WithTimeout(time.Minute), WithClock(clock))

	require.Error(t, cb.Execute(context.Background(), fail))
	clock.Advance(time.Minute)
	require.ErrorIs(t, cb.Execute(context.Background(), fail), errDown)
	assert.Equal(t, StateOpen, cb.State())

	// The cool-down restarts from the failed probe.
	clock.Advance(30 * time.Second)
	assert.ErrorIs(t, cb.Execute(context.Background(), ok), ErrCircuitOpen)
}

func TestBreaker_HalfOpenLimitsProbes(t *testing.T) {
	clock := timeutil.NewManualClock(time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC))
	cb := New("ranking", WithFailureThreshold(1), WithTimeout(time.Minute), WithClock(clock))

	require.Error(t, cb.Execute(context.Background(), fail))
	clock.Advance(time.Minute)

	err := cb.Execute(context.Background(), func(ctx context.Context) error {
		assert.Equal(t, StateHalfOpen, cb.State())
		assert.ErrorIs(t, cb.Execute(ctx, ok), ErrTooManyRequests)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, StateHalfOpen, cb.State(), "one success of two keeps probing")
}

func TestBreaker_IsFailureFilters(t *testing.T) {
	miss := errors.New("miss")
	cb := New("ranking", WithFailureThreshold(1), WithIsFailure(func(err error) bool { return !errors.Is(err, miss) }))

	for i := 0; i < 3; i++ {
		assert.ErrorIs(t, cb.Execute(context.Background(), func(context.Context) error { return miss }), miss)
	}
	assert.True(t, cb.IsClosed())
	assert.Equal(t, 3, cb.Counts().TotalSuccesses)
}

func TestBreaker_FallbackAndReset(t *testing.T) {
	cb := ReadModelBreaker("ranking", nil)
	for i := 0; i < 3; i++ {
		_ = cb.Execute(context.Background(), fail)
	}
	require.True(t, cb.IsOpen())

	var fellBack bool
	err := cb.ExecuteWithFallback(context.Background(), ok, func(error) error {
		fellBack = true
		return nil
	})
	require.NoError(t, err)
	assert.True(t, fellBack)

	cb.Reset()
	assert.True(t, cb.IsClosed())
	assert.Zero(t, cb.Counts())
	assert.Equal(t, "ranking", cb.Name())
}
