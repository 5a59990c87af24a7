package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/alem-hub/alem-rewards/internal/domain/ledger"
	"github.com/alem-hub/alem-rewards/internal/domain/ledger/ledgertest"
	"github.com/alem-hub/alem-rewards/internal/domain/mission"
	"github.com/alem-hub/alem-rewards/internal/domain/shared"
	"github.com/alem-hub/alem-rewards/internal/domain/user"
)

func TestStore_Conformance(t *testing.T) {
	ledgertest.Run(t, func(t *testing.T) ledger.Store {
		return New(nil)
	})
}

func TestStore_ClosedRejectsWork(t *testing.T) {
	s := New(nil)
	require.NoError(t, s.Close())

	err := s.Update(context.Background(), ledger.Scope{}, func(ledger.Tx) error { return nil })
	assert.ErrorIs(t, err, shared.ErrStoreClosed)

	err = s.View(context.Background(), func(ledger.Tx) error { return nil })
	assert.ErrorIs(t, err, shared.ErrStoreClosed)
}

func TestStore_CancelledLockWaitIsLockUnavailable(t *testing.T) {
	s := New(nil)
	hold := make(chan struct{})
	done := make(chan struct{})

	go func() {
		defer close(done)
		_ = s.Update(context.Background(), ledger.Scope{Users: []user.ID{"u1"}}, func(ledger.Tx) error {
			<-hold
			return nil
		})
	}()

	// Wait for the holder to take the lock.
	require.Eventually(t, func() bool { return s.users.size() == 1 }, time.Second, time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := s.Update(ctx, ledger.Scope{Users: []user.ID{"u1"}}, func(ledger.Tx) error { return nil })
	assert.ErrorIs(t, err, shared.ErrLockUnavailable)
	assert.ErrorIs(t, err, shared.ErrConsistency)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	close(hold)
	<-done
}

// stageThenWait runs create in a transaction that blocks before commit until
// release is closed. staged is closed once create has run.
func stageThenWait(s *Store, create func(ledger.Tx) error, staged, release chan struct{}) <-chan error {
	errc := make(chan error, 1)
	go func() {
		errc <- s.Update(context.Background(), ledger.Scope{}, func(tx ledger.Tx) error {
			err := create(tx)
			close(staged)
			<-release
			return err
		})
	}()
	return errc
}

func TestStore_ConcurrentAchievementNamesStayUnique(t *testing.T) {
	ctx := context.Background()
	s := New(nil)

	staged, release := make(chan struct{}), make(chan struct{})
	errA := stageThenWait(s, func(tx ledger.Tx) error {
		return tx.CreateAchievement(ctx, &user.Achievement{ID: "a1", Name: "Same"})
	}, staged, release)
	<-staged

	errB := s.Update(ctx, ledger.Scope{}, func(tx ledger.Tx) error {
		return tx.CreateAchievement(ctx, &user.Achievement{ID: "a2", Name: "same"})
	})
	require.NoError(t, errB)

	close(release)
	assert.ErrorIs(t, <-errA, shared.ErrAchievementExists)

	require.NoError(t, s.View(ctx, func(tx ledger.Tx) error {
		all, err := tx.Achievements(ctx)
		require.NoError(t, err)
		require.Len(t, all, 1)
		assert.Equal(t, user.AchievementID("a2"), all[0].ID)
		return nil
	}))
}

func TestStore_ConcurrentMissionCreateDoesNotOverwrite(t *testing.T) {
	ctx := context.Background()
	s := New(nil)

	staged, release := make(chan struct{}), make(chan struct{})
	errA := stageThenWait(s, func(tx ledger.Tx) error {
		return tx.CreateMission(ctx, &mission.Mission{ID: "m", Name: "First", PointValue: 1, Active: true})
	}, staged, release)
	<-staged

	errB := s.Update(ctx, ledger.Scope{}, func(tx ledger.Tx) error {
		return tx.CreateMission(ctx, &mission.Mission{ID: "m", Name: "Second", PointValue: 2, Active: true})
	})
	require.NoError(t, errB)

	close(release)
	assert.ErrorIs(t, <-errA, shared.ErrMissionExists)

	require.NoError(t, s.View(ctx, func(tx ledger.Tx) error {
		m, err := tx.Mission(ctx, "m")
		require.NoError(t, err)
		assert.Equal(t, "Second", m.Name)
		return nil
	}))

	// Saving an existing mission is not a create and commits normally.
	require.NoError(t, s.Update(ctx, ledger.Scope{}, func(tx ledger.Tx) error {
		m, err := tx.Mission(ctx, "m")
		if err != nil {
			return err
		}
		m.Active = false
		return tx.SaveMission(ctx, m)
	}))
}

func TestKeyLocks_DropIdleEntries(t *testing.T) {
	s := New(nil)

	var g errgroup.Group
	for i := 0; i < 50; i++ {
		id := user.ID(string(rune('a' + i%5)))
		g.Go(func() error {
			return s.Update(context.Background(), ledger.Scope{Users: []user.ID{id, id}}, func(ledger.Tx) error {
				return nil
			})
		})
	}
	require.NoError(t, g.Wait())

	assert.Zero(t, s.users.size())
	assert.Zero(t, s.items.size())
}

func TestRWLock_ExclusiveWaitsForShared(t *testing.T) {
	l := newRWLock()

	r1, err := l.acquire(context.Background(), ledger.LockShared)
	require.NoError(t, err)
	r2, err := l.acquire(context.Background(), ledger.LockShared)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = l.acquire(ctx, ledger.LockExclusive)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	r1()
	r2()

	w, err := l.acquire(context.Background(), ledger.LockExclusive)
	require.NoError(t, err)
	w()

	none, err := l.acquire(context.Background(), ledger.LockNone)
	require.NoError(t, err)
	none()
}
