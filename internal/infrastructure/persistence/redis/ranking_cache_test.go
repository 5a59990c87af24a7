package redis

import (
	"context"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/alem-rewards/internal/domain/season"
	"github.com/alem-hub/alem-rewards/internal/domain/shared"
	"github.com/alem-hub/alem-rewards/internal/infrastructure/messaging"
	"github.com/alem-hub/alem-rewards/pkg/circuitbreaker"
)

// newTestCache connects to LEDGER_TEST_REDIS_ADDR under a unique key prefix.
func newTestCache(t *testing.T) *Cache {
	t.Helper()

	addr := os.Getenv("LEDGER_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("LEDGER_TEST_REDIS_ADDR not set")
	}

	cfg := DefaultConfig()
	cfg.URL = "redis://" + addr
	cfg.KeyPrefix = "alem-rewards-test:" + uuid.NewString() + ":"

	cache, err := NewCache(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx := context.Background()
		keys, _ := cache.Client().Keys(ctx, cfg.KeyPrefix+"*").Result()
		if len(keys) > 0 {
			cache.Client().Del(ctx, keys...)
		}
		_ = cache.Close()
	})
	return cache
}

func sampleStandings() []season.Standing {
	return []season.Standing{
		{Rank: 1, UserID: "carol", DisplayName: "Carol", Points: 300, Level: 3},
		{Rank: 2, UserID: "alice", DisplayName: "Alice", Points: 100, Level: 2},
		{Rank: 3, UserID: "bob", DisplayName: "Bob", Points: 100, Level: 2},
		{Rank: 4, UserID: "dave", DisplayName: "Dave", Points: 0, Level: 1},
	}
}

func TestConfig_Options(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "localhost:6379", cfg.Addr())

	opts, err := cfg.Options()
	require.NoError(t, err)
	assert.Equal(t, "localhost:6379", opts.Addr)
	assert.Equal(t, 10, opts.PoolSize)

	cfg.URL = "redis://:secret@cache:6380/2"
	opts, err = cfg.Options()
	require.NoError(t, err)
	assert.Equal(t, "cache:6380", opts.Addr)
	assert.Equal(t, "secret", opts.Password)
	assert.Equal(t, 2, opts.DB)

	cfg.URL = "http://nope"
	_, err = cfg.Options()
	assert.ErrorIs(t, err, ErrCacheConnection)
}

func TestRankingCache_MissThenRebuild(t *testing.T) {
	ctx := context.Background()
	rc := NewRankingCache(newTestCache(t), time.Minute, nil)

	_, err := rc.Top(ctx, 10)
	require.ErrorIs(t, err, ErrCacheMiss)

	gen, err := rc.Generation(ctx)
	require.NoError(t, err)
	require.NoError(t, rc.Rebuild(ctx, gen, sampleStandings()))

	top, err := rc.Top(ctx, 3)
	require.NoError(t, err)
	require.Len(t, top, 3)

	assert.Equal(t, season.Standing{Rank: 1, UserID: "carol", DisplayName: "Carol", Points: 300, Level: 3}, top[0])
	// Equal points: ascending id.
	assert.Equal(t, "alice", string(top[1].UserID))
	assert.Equal(t, "bob", string(top[2].UserID))
	assert.Equal(t, 3, top[2].Rank)

	all, err := rc.Top(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, 4)
}

func TestRankingCache_InvalidateRetiresBuild(t *testing.T) {
	ctx := context.Background()
	rc := NewRankingCache(newTestCache(t), time.Minute, nil)

	gen, err := rc.Generation(ctx)
	require.NoError(t, err)
	require.NoError(t, rc.Rebuild(ctx, gen, sampleStandings()))

	require.NoError(t, rc.Invalidate(ctx))

	_, err = rc.Top(ctx, 10)
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestRankingCache_StaleBuildDiscarded(t *testing.T) {
	ctx := context.Background()
	rc := NewRankingCache(newTestCache(t), time.Minute, nil)

	gen, err := rc.Generation(ctx)
	require.NoError(t, err)

	// A write lands between the load and the rebuild.
	require.NoError(t, rc.Invalidate(ctx))

	err = rc.Rebuild(ctx, gen, sampleStandings())
	assert.ErrorIs(t, err, errStaleBuild)

	_, err = rc.Top(ctx, 10)
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestRankingCache_TopOrLoadSharesLoad(t *testing.T) {
	ctx := context.Background()
	rc := NewRankingCache(newTestCache(t), time.Minute, nil)

	var loads atomic.Int32
	release := make(chan struct{})
	load := func(context.Context) ([]season.Standing, error) {
		loads.Add(1)
		<-release
		return sampleStandings(), nil
	}

	var wg sync.WaitGroup
	results := make([][]season.Standing, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := rc.TopOrLoad(ctx, 2, load)
			assert.NoError(t, err)
			results[i] = res
		}(i)
	}

	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.LessOrEqual(t, loads.Load(), int32(2))
	for _, res := range results {
		require.Len(t, res, 2)
		assert.Equal(t, "carol", string(res[0].UserID))
	}

	// The load refilled the cache.
	top, err := rc.Top(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, "alice", string(top[1].UserID))
}

func TestRankingCache_SubscribeInvalidatesOnWrites(t *testing.T) {
	ctx := context.Background()
	rc := NewRankingCache(newTestCache(t), time.Minute, nil)

	bus := messaging.NewInMemoryEventBus(messaging.InMemoryEventBusConfig{AsyncMode: false})
	defer bus.Close()
	require.NoError(t, rc.Subscribe(bus))

	gen, err := rc.Generation(ctx)
	require.NoError(t, err)
	require.NoError(t, rc.Rebuild(ctx, gen, sampleStandings()))

	// Unrelated events keep the build.
	require.NoError(t, bus.Publish(shared.NewMultiplierDeactivatedEvent(1, time.Now())))
	_, err = rc.Top(ctx, 1)
	require.NoError(t, err)

	require.NoError(t, bus.Publish(shared.NewPointsAwardedEvent("alice", "Alice", 10, 110, 2, "mission", time.Now())))
	_, err = rc.Top(ctx, 1)
	assert.ErrorIs(t, err, ErrCacheMiss)
}

// subscriptions records the event types a handler was registered for.
type subscriptions struct{ types []shared.EventType }

func (s *subscriptions) Subscribe(t shared.EventType, _ shared.EventHandler) error {
	s.types = append(s.types, t)
	return nil
}

func (s *subscriptions) SubscribeAll(shared.EventHandler) error { return nil }

func TestRankingCache_SubscribesToEveryRowChange(t *testing.T) {
	var subs subscriptions
	require.NoError(t, NewRankingCache(nil, time.Minute, nil).Subscribe(&subs))

	assert.ElementsMatch(t, []shared.EventType{
		shared.EventUserRegistered,
		shared.EventUserRenamed,
		shared.EventPointsAwarded,
		shared.EventSeasonReset,
	}, subs.types)
}

func TestRankingCache_RenameInvalidates(t *testing.T) {
	ctx := context.Background()
	rc := NewRankingCache(newTestCache(t), time.Minute, nil)

	bus := messaging.NewInMemoryEventBus(messaging.InMemoryEventBusConfig{AsyncMode: false})
	defer bus.Close()
	require.NoError(t, rc.Subscribe(bus))

	gen, err := rc.Generation(ctx)
	require.NoError(t, err)
	require.NoError(t, rc.Rebuild(ctx, gen, sampleStandings()))

	require.NoError(t, bus.Publish(shared.NewUserRenamedEvent("alice", "Alice B.", "Alice", time.Now())))
	_, err = rc.Top(ctx, 1)
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestPubSub_RoundTrip(t *testing.T) {
	cache := newTestCache(t)
	ps := NewPubSub(cache)
	defer ps.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	channel := cache.Key("events")
	msgs, err := ps.Subscribe(ctx, channel)
	require.NoError(t, err)

	require.NoError(t, ps.Publish(ctx, channel, `{"hello":"world"}`))

	select {
	case msg := <-msgs:
		assert.Equal(t, channel, msg.Channel)
		assert.Equal(t, `{"hello":"world"}`, msg.Payload)
	case <-ctx.Done():
		t.Fatal("message not received")
	}
}

func TestRankingCache_BreakerBypassesDeadRedis(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { _ = client.Close() })

	cb := circuitbreaker.New("ranking", circuitbreaker.WithFailureThreshold(1), circuitbreaker.WithTimeout(time.Hour))
	rc := NewRankingCache(NewCacheFromClient(client, "t:"), time.Minute, nil).WithBreaker(cb)

	var loads atomic.Int32
	load := func(context.Context) ([]season.Standing, error) {
		loads.Add(1)
		return sampleStandings(), nil
	}

	got, err := rc.TopOrLoad(context.Background(), 2, load)
	require.NoError(t, err)
	assert.Len(t, got, 2)
	assert.Equal(t, circuitbreaker.StateOpen, cb.State())

	before := cb.Counts().Requests
	got, err = rc.TopOrLoad(context.Background(), 0, load)
	require.NoError(t, err)
	assert.Len(t, got, 4)
	assert.Equal(t, int32(2), loads.Load())
	assert.Equal(t, before, cb.Counts().Requests, "open breaker must not reach redis")
}
