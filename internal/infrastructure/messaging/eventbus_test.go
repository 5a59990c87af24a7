package messaging

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/alem-rewards/internal/domain/shared"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func TestInMemoryEventBus_SyncDelivery(t *testing.T) {
	bus := NewInMemoryEventBus(InMemoryEventBusConfig{AsyncMode: false})
	defer bus.Close()

	var typed, all []shared.EventType
	require.NoError(t, bus.Subscribe(shared.EventLevelUp, func(e shared.Event) error {
		typed = append(typed, e.EventType())
		return nil
	}))
	require.NoError(t, bus.SubscribeAll(func(e shared.Event) error {
		all = append(all, e.EventType())
		return nil
	}))

	require.NoError(t, bus.Publish(shared.NewLevelUpEvent("u1", 1, 2, t0)))
	require.NoError(t, bus.Publish(shared.NewItemRedeemedEvent("u1", "mug", 10, 4, t0)))

	assert.Equal(t, []shared.EventType{shared.EventLevelUp}, typed)
	assert.Equal(t, []shared.EventType{shared.EventLevelUp, shared.EventItemRedeemed}, all)
	assert.Equal(t, Stats{Published: 2, Handled: 3}, bus.Stats())
}

func TestInMemoryEventBus_HandlerFailuresAreContained(t *testing.T) {
	bus := NewInMemoryEventBus(InMemoryEventBusConfig{AsyncMode: false})
	defer bus.Close()

	require.NoError(t, bus.SubscribeAll(func(shared.Event) error { return errors.New("boom") }))
	require.NoError(t, bus.SubscribeAll(func(shared.Event) error { panic("kaboom") }))

	assert.NoError(t, bus.Publish(shared.NewLevelUpEvent("u1", 1, 2, t0)))
	assert.Equal(t, int64(2), bus.Stats().Failed)
}

func TestInMemoryEventBus_AsyncWait(t *testing.T) {
	bus := NewInMemoryEventBus(InMemoryEventBusConfig{AsyncMode: true, WorkerPoolSize: 2})
	defer bus.Close()

	var n atomic.Int32
	require.NoError(t, bus.SubscribeAll(func(shared.Event) error {
		n.Add(1)
		return nil
	}))

	for i := 0; i < 20; i++ {
		require.NoError(t, bus.Publish(shared.NewLevelUpEvent("u1", 1, 2, t0)))
	}
	bus.Wait()

	assert.Equal(t, int32(20), n.Load())
}

func TestInMemoryEventBus_Closed(t *testing.T) {
	bus := NewInMemoryEventBus(DefaultInMemoryEventBusConfig())
	require.NoError(t, bus.Close())
	require.NoError(t, bus.Close())

	assert.ErrorIs(t, bus.Publish(shared.NewLevelUpEvent("u1", 1, 2, t0)), ErrEventBusClosed)
	assert.ErrorIs(t, bus.SubscribeAll(func(shared.Event) error { return nil }), ErrEventBusClosed)
}

// fakeRedis is an in-process channel shared by several buses.
type fakeRedis struct {
	mu   sync.Mutex
	subs []chan RedisMessage
}

type fakeClient struct {
	hub *fakeRedis
}

func (c *fakeClient) Publish(_ context.Context, channel, message string) error {
	c.hub.mu.Lock()
	defer c.hub.mu.Unlock()
	for _, ch := range c.hub.subs {
		ch <- RedisMessage{Channel: channel, Payload: message}
	}
	return nil
}

func (c *fakeClient) Subscribe(_ context.Context, _ ...string) (<-chan RedisMessage, error) {
	ch := make(chan RedisMessage, 16)
	c.hub.mu.Lock()
	c.hub.subs = append(c.hub.subs, ch)
	c.hub.mu.Unlock()
	return ch, nil
}

func (c *fakeClient) Close() error { return nil }

func TestRedisEventBus_DeliversAcrossInstances(t *testing.T) {
	hub := &fakeRedis{}
	local := InMemoryEventBusConfig{AsyncMode: false}

	a, err := NewRedisEventBus(RedisEventBusConfig{Client: &fakeClient{hub: hub}, InstanceID: "a", LocalBusConfig: local})
	require.NoError(t, err)
	defer a.Close()
	b, err := NewRedisEventBus(RedisEventBusConfig{Client: &fakeClient{hub: hub}, InstanceID: "b", LocalBusConfig: local})
	require.NoError(t, err)
	defer b.Close()

	var onA, onB atomic.Int32
	var payload atomic.Value
	require.NoError(t, a.SubscribeAll(func(shared.Event) error { onA.Add(1); return nil }))
	require.NoError(t, b.Subscribe(shared.EventSeasonReset, func(e shared.Event) error {
		payload.Store(e.Payload())
		onB.Add(1)
		return nil
	}))

	require.NoError(t, a.Publish(shared.NewSeasonResetEvent("arch-1", 3, t0)))

	require.Eventually(t, func() bool { return onB.Load() == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, int32(1), onA.Load(), "own events are not replayed")

	got := payload.Load().(map[string]interface{})
	assert.Equal(t, "arch-1", got["archive_id"])
	assert.EqualValues(t, 3, got["users_archived"])
}
