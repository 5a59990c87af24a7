package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"github.com/alem-hub/alem-rewards/internal/domain/season"
	"github.com/alem-hub/alem-rewards/internal/domain/shared"
	"github.com/alem-hub/alem-rewards/internal/domain/user"
	"github.com/alem-hub/alem-rewards/pkg/circuitbreaker"
)

// ══════════════════════════════════════════════════════════════════════════════
// KEYS AND TTL
// ══════════════════════════════════════════════════════════════════════════════

const (
	keyRankingSet   = "ranking:points"
	keyRankingInfo  = "ranking:info"
	keyRankingGen   = "ranking:gen"
	keyRankingBuilt = "ranking:built"

	// TTLRanking bounds how long a built ranking may be served.
	TTLRanking = 5 * time.Minute

	// rebuildTimeout bounds a refill started from a read.
	rebuildTimeout = 10 * time.Second
)

// errStaleBuild means a write was committed while the ranking was loading.
var errStaleBuild = errors.New("cache: ranking changed during rebuild")

// rankingInfo is the per-user payload stored next to the sorted set.
type rankingInfo struct {
	DisplayName string `json:"display_name"`
	Level       int    `json:"level"`
}

// ══════════════════════════════════════════════════════════════════════════════
// RANKING CACHE
// ══════════════════════════════════════════════════════════════════════════════

// RankingCache is a read model of the ranking on a Redis sorted set.
//
// Scores are stored negated so ZRANGE yields points descending and, on equal
// points, members in ascending byte order. Every committed write bumps a
// generation counter; a build is only served while its generation is current
// and is discarded if the counter moved during the load.
//
// Reads may go through a circuit breaker. Invalidations never do: a failed
// invalidation must reach the caller so it can be retried.
type RankingCache struct {
	cache   *Cache
	ttl     time.Duration
	logger  *slog.Logger
	breaker *circuitbreaker.CircuitBreaker

	group singleflight.Group
}

// NewRankingCache creates a RankingCache. ttl <= 0 uses TTLRanking.
func NewRankingCache(cache *Cache, ttl time.Duration, logger *slog.Logger) *RankingCache {
	if ttl <= 0 {
		ttl = TTLRanking
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RankingCache{cache: cache, ttl: ttl, logger: logger}
}

// WithBreaker guards cache reads and refills with cb. Misses and lost
// rebuild races do not count as failures. Call before the cache is shared.
func (c *RankingCache) WithBreaker(cb *circuitbreaker.CircuitBreaker) *RankingCache {
	c.breaker = cb
	return c
}

// guarded runs fn through the breaker when one is set.
func (c *RankingCache) guarded(ctx context.Context, fn func(ctx context.Context) error) error {
	if c.breaker == nil {
		return fn(ctx)
	}
	var outcome error
	err := c.breaker.Execute(ctx, func(ctx context.Context) error {
		err := fn(ctx)
		if isOutcome(err) {
			outcome = err
			return nil
		}
		return err
	})
	if outcome != nil {
		return outcome
	}
	return err
}

// isOutcome reports errors that are answers from a healthy Redis.
func isOutcome(err error) bool {
	return errors.Is(err, ErrCacheMiss) || errors.Is(err, errStaleBuild) || errors.Is(err, redis.TxFailedErr)
}

// Top returns the first n standings of the current build. n <= 0 means all.
// ErrCacheMiss is returned when no current build exists.
func (c *RankingCache) Top(ctx context.Context, n int) ([]season.Standing, error) {
	client := c.cache.Client()

	pipe := client.Pipeline()
	genCmd := pipe.Get(ctx, c.cache.Key(keyRankingGen))
	builtCmd := pipe.Get(ctx, c.cache.Key(keyRankingBuilt))
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("get ranking generation: %w", err)
	}

	built, err := builtCmd.Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, err
	}
	gen, err := genCmd.Result()
	if errors.Is(err, redis.Nil) {
		gen = "0"
	} else if err != nil {
		return nil, err
	}
	if gen != built {
		return nil, ErrCacheMiss
	}

	stop := int64(n) - 1
	if n <= 0 {
		stop = -1
	}
	members, err := client.ZRangeWithScores(ctx, c.cache.Key(keyRankingSet), 0, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("read ranking: %w", err)
	}
	if len(members) == 0 {
		return []season.Standing{}, nil
	}

	return c.withInfo(ctx, members)
}

func (c *RankingCache) withInfo(ctx context.Context, members []redis.Z) ([]season.Standing, error) {
	ids := make([]string, len(members))
	for i, m := range members {
		ids[i] = m.Member.(string)
	}

	infos, err := c.cache.Client().HMGet(ctx, c.cache.Key(keyRankingInfo), ids...).Result()
	if err != nil {
		return nil, fmt.Errorf("read ranking info: %w", err)
	}

	out := make([]season.Standing, len(members))
	for i, m := range members {
		s := season.Standing{
			Rank:   i + 1,
			UserID: user.ID(ids[i]),
			Points: int(-m.Score),
			Level:  user.MinLevel,
		}
		raw, ok := infos[i].(string)
		if !ok {
			// Info hash expired ahead of the set.
			return nil, ErrCacheMiss
		}
		var info rankingInfo
		if err := json.Unmarshal([]byte(raw), &info); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCacheSerialization, err)
		}
		s.DisplayName = info.DisplayName
		s.Level = info.Level
		out[i] = s
	}
	return out, nil
}

// Generation returns the current write generation.
func (c *RankingCache) Generation(ctx context.Context) (string, error) {
	gen, err := c.cache.Client().Get(ctx, c.cache.Key(keyRankingGen)).Result()
	if errors.Is(err, redis.Nil) {
		return "0", nil
	}
	return gen, err
}

// Rebuild replaces the cached ranking with standings loaded at generation gen.
// It does nothing and returns errStaleBuild if the generation moved.
func (c *RankingCache) Rebuild(ctx context.Context, gen string, standings []season.Standing) error {
	client := c.cache.Client()
	genKey := c.cache.Key(keyRankingGen)
	setKey := c.cache.Key(keyRankingSet)
	infoKey := c.cache.Key(keyRankingInfo)
	builtKey := c.cache.Key(keyRankingBuilt)

	members := make([]redis.Z, len(standings))
	info := make(map[string]interface{}, len(standings))
	for i, s := range standings {
		members[i] = redis.Z{Score: float64(-s.Points), Member: string(s.UserID)}
		data, err := json.Marshal(rankingInfo{DisplayName: s.DisplayName, Level: s.Level})
		if err != nil {
			return fmt.Errorf("%w: %v", ErrCacheSerialization, err)
		}
		info[string(s.UserID)] = data
	}

	return client.Watch(ctx, func(tx *redis.Tx) error {
		cur, err := tx.Get(ctx, genKey).Result()
		if errors.Is(err, redis.Nil) {
			cur = "0"
		} else if err != nil {
			return err
		}
		if cur != gen {
			return errStaleBuild
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, setKey, infoKey)
			if len(members) > 0 {
				pipe.ZAdd(ctx, setKey, members...)
				pipe.HSet(ctx, infoKey, info)
				pipe.Expire(ctx, setKey, c.ttl)
				pipe.Expire(ctx, infoKey, c.ttl)
			}
			pipe.Set(ctx, builtKey, gen, c.ttl)
			return nil
		})
		return err
	}, genKey)
}

// Invalidate retires the current build. Call after the write is committed.
func (c *RankingCache) Invalidate(ctx context.Context) error {
	pipe := c.cache.Client().TxPipeline()
	pipe.Incr(ctx, c.cache.Key(keyRankingGen))
	pipe.Del(ctx, c.cache.Key(keyRankingBuilt))
	_, err := pipe.Exec(ctx)
	return err
}

// TopOrLoad serves from the cache. On a miss it loads the full ranking from
// the ledger through load, refills the cache and returns the first n entries.
// Concurrent misses share one load.
func (c *RankingCache) TopOrLoad(ctx context.Context, n int, load func(ctx context.Context) ([]season.Standing, error)) ([]season.Standing, error) {
	var hit []season.Standing
	err := c.guarded(ctx, func(ctx context.Context) error {
		var err error
		hit, err = c.Top(ctx, n)
		return err
	})
	switch {
	case err == nil:
		return hit, nil
	case errors.Is(err, ErrCacheMiss):
	case circuitbreaker.IsRejected(err):
		c.logger.Debug("ranking cache bypassed", "reason", err)
	default:
		c.logger.Warn("ranking cache read failed, using store", "error", err)
	}

	v, err, _ := c.group.Do("ranking", func() (interface{}, error) {
		var gen string
		genErr := c.guarded(ctx, func(ctx context.Context) error {
			var err error
			gen, err = c.Generation(ctx)
			return err
		})

		all, err := load(ctx)
		if err != nil {
			return nil, err
		}

		if genErr == nil {
			rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), rebuildTimeout)
			defer cancel()
			err := c.guarded(rctx, func(ctx context.Context) error { return c.Rebuild(ctx, gen, all) })
			switch {
			case err == nil:
				c.logger.Debug("ranking cache rebuilt", "users", len(all), "generation", gen)
			case errors.Is(err, errStaleBuild), errors.Is(err, redis.TxFailedErr):
				c.logger.Debug("ranking cache rebuild skipped", "generation", gen)
			default:
				c.logger.Warn("ranking cache rebuild failed", "error", err)
			}
		}
		return all, nil
	})
	if err != nil {
		return nil, err
	}

	all := v.([]season.Standing)
	if n > 0 && n < len(all) {
		all = all[:n]
	}
	out := make([]season.Standing, len(all))
	copy(out, all)
	return out, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// BUS WIRING
// ══════════════════════════════════════════════════════════════════════════════

// rankingEvents change the cached rows once committed.
var rankingEvents = []shared.EventType{
	shared.EventUserRegistered,
	shared.EventUserRenamed,
	shared.EventPointsAwarded,
	shared.EventSeasonReset,
}

// Subscribe invalidates the cache on every event that changes standings.
func (c *RankingCache) Subscribe(bus shared.EventSubscriber) error {
	for _, t := range rankingEvents {
		if err := bus.Subscribe(t, c.onChange); err != nil {
			return err
		}
	}
	return nil
}

func (c *RankingCache) onChange(e shared.Event) error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := c.Invalidate(ctx); err != nil {
		c.logger.Warn("ranking cache invalidation failed",
			"event", e.EventType(),
			"error", err,
		)
		return err
	}
	return nil
}
