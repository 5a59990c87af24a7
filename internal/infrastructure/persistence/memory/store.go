// Package memory implements ledger.Store in process memory. It is the store
// used by tests and by DB_STORE=memory deployments.
package memory

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alem-hub/alem-rewards/internal/domain/event"
	"github.com/alem-hub/alem-rewards/internal/domain/ledger"
	"github.com/alem-hub/alem-rewards/internal/domain/mission"
	"github.com/alem-hub/alem-rewards/internal/domain/season"
	"github.com/alem-hub/alem-rewards/internal/domain/shared"
	"github.com/alem-hub/alem-rewards/internal/domain/shop"
	"github.com/alem-hub/alem-rewards/internal/domain/user"
)

// completionKey is the (user, mission) pair of the lastCompletedAt index.
type completionKey struct {
	user    user.ID
	mission mission.ID
}

// state is the committed data set. Guarded by Store.mu.
type state struct {
	users         map[user.ID]*user.User
	achievements  map[user.AchievementID]*user.Achievement
	missions      map[mission.ID]*mission.Mission
	completions   []mission.Completion
	lastCompleted map[completionKey]time.Time
	items         map[shop.ItemID]*shop.Item
	redemptions   []shop.Redemption
	events        map[event.ID]*event.Event
	archives      []*season.Archive
}

func newState() *state {
	return &state{
		users:         make(map[user.ID]*user.User),
		achievements:  make(map[user.AchievementID]*user.Achievement),
		missions:      make(map[mission.ID]*mission.Mission),
		lastCompleted: make(map[completionKey]time.Time),
		items:         make(map[shop.ItemID]*shop.Item),
		events:        make(map[event.ID]*event.Event),
	}
}

// Store is an in-memory ledger.Store.
type Store struct {
	global *rwLock
	events *rwLock
	users  *keyLocks
	items  *keyLocks

	mu sync.RWMutex
	st *state

	closed atomic.Bool
	logger *slog.Logger
}

// New creates an empty store.
func New(logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		global: newRWLock(),
		events: newRWLock(),
		users:  newKeyLocks(),
		items:  newKeyLocks(),
		st:     newState(),
		logger: logger,
	}
}

var _ ledger.Store = (*Store)(nil)

// Update runs fn under the scope's locks and commits its staged writes
// atomically when fn returns nil.
func (s *Store) Update(ctx context.Context, scope ledger.Scope, fn func(tx ledger.Tx) error) error {
	if s.closed.Load() {
		return shared.ErrStoreClosed
	}

	release, err := s.lock(ctx, scope)
	if err != nil {
		return shared.WrapError("ledger", "Lock", shared.ErrLockUnavailable, "lock wait aborted", err)
	}
	defer release()

	t := newTx(s, false)
	if err := fn(t); err != nil {
		return err
	}

	if err := ctx.Err(); err != nil {
		return shared.Storage("ledger", "Commit", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := t.conflicts(s.st); err != nil {
		return err
	}
	t.commit(s.st)
	return nil
}

// View runs fn over a consistent snapshot. Writes inside fn are rejected.
func (s *Store) View(ctx context.Context, fn func(tx ledger.Tx) error) error {
	if s.closed.Load() {
		return shared.ErrStoreClosed
	}
	if err := ctx.Err(); err != nil {
		return shared.Storage("ledger", "View", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn(newTx(s, true))
}

// Close marks the store closed.
func (s *Store) Close() error {
	s.closed.Store(true)
	return nil
}

// lock acquires global, events, users then items. Every transaction uses
// this order, so lock waits never form a cycle.
func (s *Store) lock(ctx context.Context, scope ledger.Scope) (func(), error) {
	var held releaser

	globalMode := ledger.LockShared
	if scope.ExclusiveGlobal {
		globalMode = ledger.LockExclusive
	}

	rel, err := s.global.acquire(ctx, globalMode)
	if err != nil {
		return nil, err
	}
	held.add(rel)

	if rel, err = s.events.acquire(ctx, scope.Events); err != nil {
		held.release()
		return nil, err
	}
	held.add(rel)

	for _, id := range scope.SortedUsers() {
		if rel, err = s.users.acquire(ctx, string(id)); err != nil {
			held.release()
			return nil, err
		}
		held.add(rel)
	}

	for _, id := range scope.SortedItems() {
		if rel, err = s.items.acquire(ctx, string(id)); err != nil {
			held.release()
			return nil, err
		}
		held.add(rel)
	}

	s.logger.Debug("ledger locks acquired",
		"users", len(scope.Users),
		"items", len(scope.Items),
		"events", scope.Events.String(),
		"exclusive", scope.ExclusiveGlobal,
	)

	return held.release, nil
}
