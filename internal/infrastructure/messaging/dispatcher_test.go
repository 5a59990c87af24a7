package messaging

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/alem-rewards/internal/domain/shared"
	"github.com/alem-hub/alem-rewards/pkg/retry"
)

func newTestDispatcher(t *testing.T) (*InMemoryEventBus, *Dispatcher) {
	t.Helper()
	bus := NewInMemoryEventBus(InMemoryEventBusConfig{AsyncMode: false})
	t.Cleanup(func() { _ = bus.Close() })

	d, err := NewDispatcher(DispatcherConfig{
		Bus:            bus,
		MaxAttempts:    3,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     2 * time.Millisecond,
		Timeout:        100 * time.Millisecond,
	})
	require.NoError(t, err)
	return bus, d
}

func TestDispatcher_RetriesUntilSuccess(t *testing.T) {
	bus, d := newTestDispatcher(t)

	var calls atomic.Int32
	require.NoError(t, d.Register(shared.EventPointsAwarded, "flaky", func(shared.Event) error {
		if calls.Add(1) < 3 {
			return errors.New("redis blip")
		}
		return nil
	}))

	require.NoError(t, bus.Publish(shared.NewPointsAwardedEvent("u1", "U", 5, 5, 1, "mission", t0)))

	assert.Equal(t, int32(3), calls.Load())
	stats := d.Stats()
	assert.Equal(t, int64(1), stats.Handled)
	assert.Equal(t, int64(2), stats.Retried)
	assert.Zero(t, stats.DeadLetters)
}

func TestDispatcher_DeadLetterAndReplay(t *testing.T) {
	bus, d := newTestDispatcher(t)

	var healthy atomic.Bool
	require.NoError(t, d.Register(shared.EventSeasonReset, "ranking", func(shared.Event) error {
		if !healthy.Load() {
			return errors.New("down")
		}
		return nil
	}))

	// The bus sees success; the failure is parked.
	require.NoError(t, bus.Publish(shared.NewSeasonResetEvent("s1", 3, t0)))

	entries := d.DeadLetterQueue().Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, "ranking", entries[0].Handler)
	assert.Equal(t, shared.EventSeasonReset, entries[0].Event.EventType())
	assert.EqualError(t, entries[0].Err, "down")

	n, err := d.Replay(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, 1, d.DeadLetterQueue().Size())
	assert.Equal(t, 1, d.DeadLetterQueue().Entries()[0].Attempts)

	healthy.Store(true)
	n, err = d.Replay(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Zero(t, d.DeadLetterQueue().Size())
}

func TestDispatcher_PermanentErrorSkipsRetries(t *testing.T) {
	bus, d := newTestDispatcher(t)

	var calls atomic.Int32
	require.NoError(t, d.Register(shared.EventLevelUp, "strict", func(shared.Event) error {
		calls.Add(1)
		return retry.Permanent(errors.New("malformed"))
	}))

	require.NoError(t, bus.Publish(shared.NewLevelUpEvent("u1", 1, 2, t0)))
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, int64(1), d.Stats().Failed)
}

func TestDispatcher_MiddlewareAndRecovery(t *testing.T) {
	bus, d := newTestDispatcher(t)

	var order []string
	d.Use(func(next shared.EventHandler) shared.EventHandler {
		return func(e shared.Event) error {
			order = append(order, "outer")
			return next(e)
		}
	})
	d.Use(RecoveryMiddleware(d.logger))

	require.NoError(t, d.RegisterAll("audit", func(shared.Event) error {
		order = append(order, "handler")
		panic("boom")
	}))

	require.NoError(t, bus.Publish(shared.NewLevelUpEvent("u1", 1, 2, t0)))

	entries := d.DeadLetterQueue().Entries()
	require.Len(t, entries, 1)
	assert.ErrorIs(t, entries[0].Err, ErrHandlerPanic)
	assert.Equal(t, []string{"outer", "handler", "outer", "handler", "outer", "handler"}, order)
}

func TestDispatcher_TimeoutCountsAsFailure(t *testing.T) {
	bus, d := newTestDispatcher(t)
	release := make(chan struct{})
	t.Cleanup(func() { close(release) })

	require.NoError(t, d.Register(shared.EventLevelUp, "slow", func(shared.Event) error {
		<-release
		return nil
	}))

	require.NoError(t, bus.Publish(shared.NewLevelUpEvent("u1", 1, 2, t0)))
	assert.Equal(t, 1, d.Stats().DeadLetters)
}

func TestDispatcher_SubscriberNamesAreUnique(t *testing.T) {
	bus, d := newTestDispatcher(t)

	fail := func(shared.Event) error { return errors.New("x") }
	require.NoError(t, d.Subscribe(shared.EventLevelUp, fail))
	require.NoError(t, d.Subscribe(shared.EventLevelUp, fail))

	require.NoError(t, bus.Publish(shared.NewLevelUpEvent("u1", 1, 2, t0)))

	entries := d.DeadLetterQueue().Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, string(shared.EventLevelUp), entries[0].Handler)
	assert.Equal(t, string(shared.EventLevelUp)+"#2", entries[1].Handler)
}

func TestDeadLetterQueue_Bounded(t *testing.T) {
	q := NewDeadLetterQueue(2)
	for _, h := range []string{"a", "b", "c"} {
		q.Add(DeadLetterEntry{Handler: h})
	}

	entries := q.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, "b", entries[0].Handler)
	assert.Equal(t, int64(1), q.Dropped())

	assert.Len(t, q.Drain(), 2)
	assert.Zero(t, q.Size())
}

func TestNewDispatcher_RequiresBus(t *testing.T) {
	_, err := NewDispatcher(DispatcherConfig{})
	assert.Error(t, err)
}
