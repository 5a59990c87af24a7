// Package ledgertest is a conformance suite for ledger.Store implementations.
package ledgertest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/alem-hub/alem-rewards/internal/domain/event"
	"github.com/alem-hub/alem-rewards/internal/domain/ledger"
	"github.com/alem-hub/alem-rewards/internal/domain/mission"
	"github.com/alem-hub/alem-rewards/internal/domain/season"
	"github.com/alem-hub/alem-rewards/internal/domain/shared"
	"github.com/alem-hub/alem-rewards/internal/domain/shop"
	"github.com/alem-hub/alem-rewards/internal/domain/user"
)

// Factory returns an empty store. The suite closes it.
type Factory func(t *testing.T) ledger.Store

// base is truncated to microseconds so it round-trips through PostgreSQL.
var base = time.Date(2025, 2, 3, 9, 0, 0, 0, time.UTC)

// Run runs every conformance test against stores built by newStore.
func Run(t *testing.T, newStore Factory) {
	tests := []struct {
		name string
		fn   func(t *testing.T, s ledger.Store)
	}{
		{"Users", testUsers},
		{"SaveUserKeepsUnlocks", testSaveUserKeepsUnlocks},
		{"RankUsers", testRankUsers},
		{"Achievements", testAchievements},
		{"MissionsAndCompletions", testMissionsAndCompletions},
		{"ShopAndRedemptions", testShopAndRedemptions},
		{"Events", testEvents},
		{"SeasonReset", testSeasonReset},
		{"RollbackOnError", testRollbackOnError},
		{"ViewIsReadOnly", testViewIsReadOnly},
		{"PerUserSerialization", testPerUserSerialization},
		{"UnrelatedUsersDoNotBlock", testUnrelatedUsersDoNotBlock},
		{"ExclusiveGlobalWaitsForWriters", testExclusiveGlobal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newStore(t)
			t.Cleanup(func() { _ = s.Close() })
			tt.fn(t, s)
		})
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// helpers
// ─────────────────────────────────────────────────────────────────────────────

func update(t *testing.T, s ledger.Store, scope ledger.Scope, fn func(ctx context.Context, tx ledger.Tx) error) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, s.Update(ctx, scope, func(tx ledger.Tx) error { return fn(ctx, tx) }))
}

func view(t *testing.T, s ledger.Store, fn func(ctx context.Context, tx ledger.Tx) error) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, s.View(ctx, func(tx ledger.Tx) error { return fn(ctx, tx) }))
}

func newUser(t *testing.T, id string, points, level int) *user.User {
	t.Helper()
	u, err := user.New(user.ID(id), "Name "+id, base)
	require.NoError(t, err)
	u.Points = points
	u.Level = level
	return u
}

func createUsers(t *testing.T, s ledger.Store, users ...*user.User) {
	t.Helper()
	update(t, s, ledger.Scope{}, func(ctx context.Context, tx ledger.Tx) error {
		for _, u := range users {
			if err := tx.CreateUser(ctx, u); err != nil {
				return err
			}
		}
		return nil
	})
}

func createMission(t *testing.T, s ledger.Store, id string, cooldownHours int) *mission.Mission {
	t.Helper()
	m, err := mission.NewMission(mission.NewMissionParams{
		ID: mission.ID(id), Name: "Mission " + id, PointValue: 10, CooldownHours: cooldownHours,
	}, base)
	require.NoError(t, err)
	update(t, s, ledger.Scope{}, func(ctx context.Context, tx ledger.Tx) error {
		return tx.CreateMission(ctx, m)
	})
	return m
}

func points(t *testing.T, s ledger.Store, id string) int {
	t.Helper()
	var p int
	view(t, s, func(ctx context.Context, tx ledger.Tx) error {
		u, err := tx.User(ctx, user.ID(id))
		if err != nil {
			return err
		}
		p = u.Points
		return nil
	})
	return p
}

// ─────────────────────────────────────────────────────────────────────────────
// tests
// ─────────────────────────────────────────────────────────────────────────────

func testUsers(t *testing.T, s ledger.Store) {
	ctx := context.Background()
	createUsers(t, s, newUser(t, "bob", 0, 1), newUser(t, "alice", 0, 1))

	err := s.Update(ctx, ledger.Scope{}, func(tx ledger.Tx) error {
		return tx.CreateUser(ctx, newUser(t, "bob", 0, 1))
	})
	assert.ErrorIs(t, err, shared.ErrUserExists)

	view(t, s, func(ctx context.Context, tx ledger.Tx) error {
		u, err := tx.User(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, "Name alice", u.DisplayName)
		assert.Equal(t, user.MinLevel, u.Level)
		assert.True(t, base.Equal(u.CreatedAt))

		_, err = tx.User(ctx, "ghost")
		assert.ErrorIs(t, err, shared.ErrUnknownUser)

		all, err := tx.Users(ctx)
		require.NoError(t, err)
		require.Len(t, all, 2)
		assert.Equal(t, user.ID("alice"), all[0].ID)
		assert.Equal(t, user.ID("bob"), all[1].ID)
		return nil
	})

	// Returned entities are copies.
	view(t, s, func(ctx context.Context, tx ledger.Tx) error {
		u, err := tx.User(ctx, "alice")
		require.NoError(t, err)
		u.Points = 999
		return nil
	})
	assert.Zero(t, points(t, s, "alice"))
}

func testSaveUserKeepsUnlocks(t *testing.T, s ledger.Store) {
	a, err := user.NewAchievement(user.NewAchievementParams{ID: "a1", Name: "A1"}, base)
	require.NoError(t, err)
	b, err := user.NewAchievement(user.NewAchievementParams{ID: "a2", Name: "A2"}, base)
	require.NoError(t, err)

	update(t, s, ledger.Scope{}, func(ctx context.Context, tx ledger.Tx) error {
		if err := tx.CreateAchievement(ctx, a); err != nil {
			return err
		}
		if err := tx.CreateAchievement(ctx, b); err != nil {
			return err
		}
		return tx.CreateUser(ctx, newUser(t, "u1", 0, 1))
	})

	update(t, s, ledger.Scope{Users: []user.ID{"u1"}}, func(ctx context.Context, tx ledger.Tx) error {
		u, err := tx.User(ctx, "u1")
		if err != nil {
			return err
		}
		u.Unlock("a1", base)
		u.Points = 12
		u.Level = 2
		return tx.SaveUser(ctx, u)
	})

	// A stale copy without the unlock cannot remove it.
	update(t, s, ledger.Scope{Users: []user.ID{"u1"}}, func(ctx context.Context, tx ledger.Tx) error {
		u, err := tx.User(ctx, "u1")
		if err != nil {
			return err
		}
		u.Achievements = []user.Unlock{{AchievementID: "a2", UnlockedAt: base.Add(time.Minute)}}
		return tx.SaveUser(ctx, u)
	})

	view(t, s, func(ctx context.Context, tx ledger.Tx) error {
		u, err := tx.User(ctx, "u1")
		require.NoError(t, err)
		assert.Equal(t, 12, u.Points)
		assert.Equal(t, []user.AchievementID{"a1", "a2"}, u.AchievementIDs())
		return nil
	})

	err = s.Update(context.Background(), ledger.Scope{}, func(tx ledger.Tx) error {
		return tx.SaveUser(context.Background(), newUser(t, "ghost", 0, 1))
	})
	assert.ErrorIs(t, err, shared.ErrUnknownUser)
}

func testRankUsers(t *testing.T, s ledger.Store) {
	createUsers(t, s,
		newUser(t, "dave", 0, 1),
		newUser(t, "bob", 10, 2),
		newUser(t, "alice", 10, 2),
		newUser(t, "carol", 30, 3),
	)

	view(t, s, func(ctx context.Context, tx ledger.Tx) error {
		top, err := tx.RankUsers(ctx, 3)
		require.NoError(t, err)
		ids := make([]user.ID, len(top))
		for i, u := range top {
			ids[i] = u.ID
		}
		assert.Equal(t, []user.ID{"carol", "alice", "bob"}, ids)

		all, err := tx.RankUsers(ctx, 0)
		require.NoError(t, err)
		assert.Len(t, all, 4)
		return nil
	})
}

func testAchievements(t *testing.T, s ledger.Store) {
	ctx := context.Background()
	a, err := user.NewAchievement(user.NewAchievementParams{
		ID: "lvl3", Name: "Climber", Icon: "🧗", Trigger: user.Trigger{Kind: user.TriggerLevel, Level: 3},
	}, base)
	require.NoError(t, err)

	update(t, s, ledger.Scope{}, func(ctx context.Context, tx ledger.Tx) error {
		return tx.CreateAchievement(ctx, a)
	})

	dupName, err := user.NewAchievement(user.NewAchievementParams{ID: "other", Name: "CLIMBER"}, base)
	require.NoError(t, err)
	err = s.Update(ctx, ledger.Scope{}, func(tx ledger.Tx) error { return tx.CreateAchievement(ctx, dupName) })
	assert.ErrorIs(t, err, shared.ErrAchievementExists)

	dupID, err := user.NewAchievement(user.NewAchievementParams{ID: "lvl3", Name: "Different"}, base)
	require.NoError(t, err)
	err = s.Update(ctx, ledger.Scope{}, func(tx ledger.Tx) error { return tx.CreateAchievement(ctx, dupID) })
	assert.ErrorIs(t, err, shared.ErrAchievementExists)

	view(t, s, func(ctx context.Context, tx ledger.Tx) error {
		all, err := tx.Achievements(ctx)
		require.NoError(t, err)
		require.Len(t, all, 1)
		assert.Equal(t, user.TriggerLevel, all[0].Trigger.Kind)
		assert.Equal(t, 3, all[0].Trigger.Level)
		assert.Equal(t, "🧗", all[0].Icon)
		return nil
	})
}

func testMissionsAndCompletions(t *testing.T, s ledger.Store) {
	ctx := context.Background()
	createUsers(t, s, newUser(t, "u1", 0, 1))
	m := createMission(t, s, "m1", 24)

	err := s.Update(ctx, ledger.Scope{}, func(tx ledger.Tx) error { return tx.CreateMission(ctx, m) })
	assert.ErrorIs(t, err, shared.ErrMissionExists)

	view(t, s, func(ctx context.Context, tx ledger.Tx) error {
		_, ok, err := tx.LastCompletion(ctx, "u1", "m1")
		require.NoError(t, err)
		assert.False(t, ok)

		got, err := tx.Mission(ctx, "m1")
		require.NoError(t, err)
		assert.Equal(t, 24*time.Hour, got.Cooldown)
		assert.True(t, got.Active)

		_, err = tx.Mission(ctx, "nope")
		assert.ErrorIs(t, err, shared.ErrUnknownMission)
		return nil
	})

	first, second := base.Add(time.Hour), base.Add(30*time.Hour)
	update(t, s, ledger.Scope{Users: []user.ID{"u1"}}, func(ctx context.Context, tx ledger.Tx) error {
		if err := tx.AppendCompletion(ctx, mission.Completion{UserID: "u1", MissionID: "m1", CompletedAt: first}); err != nil {
			return err
		}
		// The index reflects the write inside the same transaction.
		at, ok, err := tx.LastCompletion(ctx, "u1", "m1")
		require.NoError(t, err)
		require.True(t, ok)
		assert.True(t, first.Equal(at))
		return tx.AppendCompletion(ctx, mission.Completion{UserID: "u1", MissionID: "m1", CompletedAt: second})
	})

	view(t, s, func(ctx context.Context, tx ledger.Tx) error {
		at, ok, err := tx.LastCompletion(ctx, "u1", "m1")
		require.NoError(t, err)
		require.True(t, ok)
		assert.True(t, second.Equal(at))

		log, err := tx.Completions(ctx, "u1")
		require.NoError(t, err)
		require.Len(t, log, 2)
		assert.True(t, first.Equal(log[0].CompletedAt))
		return nil
	})

	err = s.Update(ctx, ledger.Scope{}, func(tx ledger.Tx) error {
		return tx.AppendCompletion(ctx, mission.Completion{UserID: "ghost", MissionID: "m1", CompletedAt: base})
	})
	assert.ErrorIs(t, err, shared.ErrUnknownUser)

	err = s.Update(ctx, ledger.Scope{}, func(tx ledger.Tx) error {
		return tx.AppendCompletion(ctx, mission.Completion{UserID: "u1", MissionID: "nope", CompletedAt: base})
	})
	assert.ErrorIs(t, err, shared.ErrUnknownMission)

	update(t, s, ledger.Scope{}, func(ctx context.Context, tx ledger.Tx) error {
		got, err := tx.Mission(ctx, "m1")
		if err != nil {
			return err
		}
		got.Active = false
		return tx.SaveMission(ctx, got)
	})
	view(t, s, func(ctx context.Context, tx ledger.Tx) error {
		all, err := tx.Missions(ctx)
		require.NoError(t, err)
		require.Len(t, all, 1)
		assert.False(t, all[0].Active)
		return nil
	})
}

func testShopAndRedemptions(t *testing.T, s ledger.Store) {
	ctx := context.Background()
	createUsers(t, s, newUser(t, "u1", 50, 4))

	it, err := shop.NewItem(shop.NewItemParams{ID: "hat", Name: "Hat", Cost: 20, Stock: 1}, base)
	require.NoError(t, err)
	update(t, s, ledger.Scope{}, func(ctx context.Context, tx ledger.Tx) error { return tx.CreateItem(ctx, it) })

	err = s.Update(ctx, ledger.Scope{}, func(tx ledger.Tx) error { return tx.CreateItem(ctx, it) })
	assert.ErrorIs(t, err, shared.ErrItemExists)

	r := shop.Redemption{ID: uuid.NewString(), UserID: "u1", ItemID: "hat", Cost: 20, RedeemedAt: base}
	update(t, s, ledger.Scope{Users: []user.ID{"u1"}, Items: []shop.ItemID{"hat"}}, func(ctx context.Context, tx ledger.Tx) error {
		got, err := tx.Item(ctx, "hat")
		if err != nil {
			return err
		}
		if err := got.Take(); err != nil {
			return err
		}
		if err := tx.SaveItem(ctx, got); err != nil {
			return err
		}
		return tx.AppendRedemption(ctx, r)
	})

	view(t, s, func(ctx context.Context, tx ledger.Tx) error {
		got, err := tx.Item(ctx, "hat")
		require.NoError(t, err)
		assert.Zero(t, got.Stock)

		rs, err := tx.Redemptions(ctx, "u1")
		require.NoError(t, err)
		require.Len(t, rs, 1)
		assert.Equal(t, r.ID, rs[0].ID)
		assert.Equal(t, 20, rs[0].Cost)

		_, err = tx.Item(ctx, "nope")
		assert.ErrorIs(t, err, shared.ErrUnknownItem)
		return nil
	})

	err = s.Update(ctx, ledger.Scope{}, func(tx ledger.Tx) error {
		got, err := tx.Item(ctx, "hat")
		if err != nil {
			return err
		}
		got.Stock = -5
		return tx.SaveItem(ctx, got)
	})
	assert.Error(t, err, "finite stock below zero is rejected")

	err = s.Update(ctx, ledger.Scope{}, func(tx ledger.Tx) error {
		return tx.AppendRedemption(ctx, shop.Redemption{ID: uuid.NewString(), UserID: "u1", ItemID: "nope", RedeemedAt: base})
	})
	assert.ErrorIs(t, err, shared.ErrUnknownItem)
}

func testEvents(t *testing.T, s ledger.Store) {
	ctx := context.Background()

	a, err := event.New(event.ID(uuid.NewString()), "A", 2, time.Hour, base)
	require.NoError(t, err)
	b, err := event.New(event.ID(uuid.NewString()), "B", 3, time.Hour, base.Add(time.Minute))
	require.NoError(t, err)

	update(t, s, ledger.Scope{Events: ledger.LockExclusive}, func(ctx context.Context, tx ledger.Tx) error {
		return tx.CreateEvent(ctx, a)
	})

	err = s.Update(ctx, ledger.Scope{Events: ledger.LockExclusive}, func(tx ledger.Tx) error {
		return tx.CreateEvent(ctx, b)
	})
	assert.ErrorIs(t, err, shared.ErrManyActive, "a second flagged event needs the first cleared")

	update(t, s, ledger.Scope{Events: ledger.LockExclusive}, func(ctx context.Context, tx ledger.Tx) error {
		n, err := tx.DeactivateEvents(ctx)
		if err != nil {
			return err
		}
		assert.Equal(t, 1, n)
		return tx.CreateEvent(ctx, b)
	})

	view(t, s, func(ctx context.Context, tx ledger.Tx) error {
		flagged, err := tx.FlaggedEvents(ctx)
		require.NoError(t, err)
		require.Len(t, flagged, 1)
		assert.Equal(t, b.ID, flagged[0].ID)
		assert.Equal(t, 3.0, flagged[0].Multiplier)
		assert.True(t, b.EndTime.Equal(flagged[0].EndTime))
		return nil
	})
}

func testSeasonReset(t *testing.T, s ledger.Store) {
	createUsers(t, s, newUser(t, "u1", 30, 3), newUser(t, "u2", 10, 2))
	createMission(t, s, "m1", 24)

	ach, err := user.NewAchievement(user.NewAchievementParams{ID: "a1", Name: "A1"}, base)
	require.NoError(t, err)
	update(t, s, ledger.Scope{Users: []user.ID{"u1"}}, func(ctx context.Context, tx ledger.Tx) error {
		if err := tx.CreateAchievement(ctx, ach); err != nil {
			return err
		}
		u, err := tx.User(ctx, "u1")
		if err != nil {
			return err
		}
		u.Unlock("a1", base)
		if err := tx.SaveUser(ctx, u); err != nil {
			return err
		}
		return tx.AppendCompletion(ctx, mission.Completion{UserID: "u1", MissionID: "m1", CompletedAt: base})
	})

	first := uuid.NewString()
	second := uuid.NewString()

	var want []season.Standing
	update(t, s, ledger.Scope{ExclusiveGlobal: true}, func(ctx context.Context, tx ledger.Tx) error {
		users, err := tx.Users(ctx)
		if err != nil {
			return err
		}
		a := season.NewArchive(first, users, base)
		want = a.Standings
		if err := tx.CreateArchive(ctx, a); err != nil {
			return err
		}
		return tx.ResetStandings(ctx)
	})
	update(t, s, ledger.Scope{ExclusiveGlobal: true}, func(ctx context.Context, tx ledger.Tx) error {
		return tx.CreateArchive(ctx, season.NewArchive(second, nil, base.Add(time.Hour)))
	})

	view(t, s, func(ctx context.Context, tx ledger.Tx) error {
		a, err := tx.Archive(ctx, first)
		require.NoError(t, err)
		assert.Equal(t, want, a.Standings)
		assert.Equal(t, user.ID("u1"), a.Standings[0].UserID)

		sums, err := tx.Archives(ctx)
		require.NoError(t, err)
		require.Len(t, sums, 2)
		assert.Equal(t, second, sums[0].ID, "newest first")
		assert.Equal(t, 2, sums[1].UserCount)

		_, err = tx.Archive(ctx, uuid.NewString())
		assert.ErrorIs(t, err, shared.ErrUnknownArchive)

		u, err := tx.User(ctx, "u1")
		require.NoError(t, err)
		assert.Zero(t, u.Points)
		assert.Equal(t, user.MinLevel, u.Level)
		assert.True(t, u.Has("a1"), "achievements survive the reset")

		_, ok, err := tx.LastCompletion(ctx, "u1", "m1")
		require.NoError(t, err)
		assert.False(t, ok)

		log, err := tx.Completions(ctx, "u1")
		require.NoError(t, err)
		assert.Empty(t, log)
		return nil
	})
}

func testRollbackOnError(t *testing.T, s ledger.Store) {
	createUsers(t, s, newUser(t, "u1", 5, 1))
	boom := errors.New("boom")

	err := s.Update(context.Background(), ledger.Scope{Users: []user.ID{"u1"}}, func(tx ledger.Tx) error {
		ctx := context.Background()
		u, err := tx.User(ctx, "u1")
		if err != nil {
			return err
		}
		u.Points = 100
		if err := tx.SaveUser(ctx, u); err != nil {
			return err
		}
		if err := tx.CreateUser(ctx, newUser(t, "u2", 0, 1)); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	assert.Equal(t, 5, points(t, s, "u1"))
	view(t, s, func(ctx context.Context, tx ledger.Tx) error {
		_, err := tx.User(ctx, "u2")
		assert.ErrorIs(t, err, shared.ErrUnknownUser)
		return nil
	})
}

func testViewIsReadOnly(t *testing.T, s ledger.Store) {
	ctx := context.Background()
	err := s.View(ctx, func(tx ledger.Tx) error {
		return tx.CreateUser(ctx, newUser(t, "u1", 0, 1))
	})
	assert.Error(t, err)

	view(t, s, func(ctx context.Context, tx ledger.Tx) error {
		all, err := tx.Users(ctx)
		require.NoError(t, err)
		assert.Empty(t, all)
		return nil
	})
}

func testPerUserSerialization(t *testing.T, s ledger.Store) {
	createUsers(t, s, newUser(t, "u1", 0, 1))

	const writers = 16
	var g errgroup.Group
	for i := 0; i < writers; i++ {
		g.Go(func() error {
			ctx := context.Background()
			return s.Update(ctx, ledger.Scope{Users: []user.ID{"u1"}}, func(tx ledger.Tx) error {
				u, err := tx.User(ctx, "u1")
				if err != nil {
					return err
				}
				u.Points++
				return tx.SaveUser(ctx, u)
			})
		})
	}
	require.NoError(t, g.Wait())

	assert.Equal(t, writers, points(t, s, "u1"))
}

func testUnrelatedUsersDoNotBlock(t *testing.T, s ledger.Store) {
	createUsers(t, s, newUser(t, "u1", 0, 1), newUser(t, "u2", 0, 1))

	holding := make(chan struct{})
	release := make(chan struct{})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = s.Update(context.Background(), ledger.Scope{Users: []user.ID{"u1"}}, func(tx ledger.Tx) error {
			close(holding)
			<-release
			return nil
		})
	}()
	<-holding

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := s.Update(ctx, ledger.Scope{Users: []user.ID{"u2"}}, func(tx ledger.Tx) error {
		u, err := tx.User(ctx, "u2")
		if err != nil {
			return err
		}
		u.Points = 7
		return tx.SaveUser(ctx, u)
	})

	close(release)
	wg.Wait()

	require.NoError(t, err)
	assert.Equal(t, 7, points(t, s, "u2"))
}

func testExclusiveGlobal(t *testing.T, s ledger.Store) {
	createUsers(t, s, newUser(t, "u1", 0, 1))

	holding := make(chan struct{})
	release := make(chan struct{})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = s.Update(context.Background(), ledger.Scope{Users: []user.ID{"u1"}}, func(tx ledger.Tx) error {
			close(holding)
			<-release
			return nil
		})
	}()
	<-holding

	// While an ordinary writer holds the global lock shared, the exclusive
	// holder waits until its context gives up.
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	err := s.Update(ctx, ledger.Scope{ExclusiveGlobal: true}, func(tx ledger.Tx) error { return nil })
	assert.Error(t, err)

	close(release)
	wg.Wait()

	update(t, s, ledger.Scope{ExclusiveGlobal: true}, func(ctx context.Context, tx ledger.Tx) error { return nil })
}
