// Package ledger defines the transactional storage contract every manager
// runs against. Implementations live in infrastructure/persistence.
package ledger

import (
	"context"
	"sort"
	"time"

	"github.com/alem-hub/alem-rewards/internal/domain/event"
	"github.com/alem-hub/alem-rewards/internal/domain/mission"
	"github.com/alem-hub/alem-rewards/internal/domain/season"
	"github.com/alem-hub/alem-rewards/internal/domain/shop"
	"github.com/alem-hub/alem-rewards/internal/domain/user"
)

// LockMode is the mode a scope asks for on a shared lock.
type LockMode int

const (
	LockNone LockMode = iota
	LockShared
	LockExclusive
)

// String returns the lock mode name.
func (m LockMode) String() string {
	switch m {
	case LockShared:
		return "shared"
	case LockExclusive:
		return "exclusive"
	default:
		return "none"
	}
}

// Scope names the locks a write transaction holds for its whole duration.
// Unrelated users and items never block each other.
type Scope struct {
	// Users are serialized per id.
	Users []user.ID

	// Items are serialized per id.
	Items []shop.ItemID

	// Events is the mode of the active-event lock.
	Events LockMode

	// ExclusiveGlobal blocks every other transaction. Ordinary writes hold
	// the global lock shared.
	ExclusiveGlobal bool
}

// SortedUsers returns the scope's user ids deduplicated in byte order.
func (s Scope) SortedUsers() []user.ID {
	seen := make(map[user.ID]struct{}, len(s.Users))
	out := make([]user.ID, 0, len(s.Users))
	for _, id := range s.Users {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// SortedItems returns the scope's item ids deduplicated in byte order.
func (s Scope) SortedItems() []shop.ItemID {
	seen := make(map[shop.ItemID]struct{}, len(s.Items))
	out := make([]shop.ItemID, 0, len(s.Items))
	for _, id := range s.Items {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Store runs callbacks in atomic transactions. Any error returned by fn
// rolls the transaction back and leaves the pre-operation state intact.
type Store interface {
	// Update runs fn in a read-write transaction under the scope's locks.
	Update(ctx context.Context, scope Scope, fn func(tx Tx) error) error

	// View runs fn in a read-only transaction over a consistent snapshot.
	View(ctx context.Context, fn func(tx Tx) error) error

	// Close releases the store.
	Close() error
}

// Tx is the set of reads and writes available inside a transaction.
// Returned entities are copies; mutate them and save them back.
type Tx interface {
	UserRepository
	AchievementRepository
	MissionRepository
	ShopRepository
	EventRepository
	SeasonRepository
}

// UserRepository reads and writes users and their unlocks.
type UserRepository interface {
	// User returns shared.ErrUnknownUser when missing.
	User(ctx context.Context, id user.ID) (*user.User, error)

	// CreateUser returns shared.ErrUserExists on a duplicate id.
	CreateUser(ctx context.Context, u *user.User) error

	// SaveUser persists points, level, display name, last activity and any
	// unlocks not stored yet. Stored unlocks are never removed.
	SaveUser(ctx context.Context, u *user.User) error

	// Users returns every user ordered by id.
	Users(ctx context.Context) ([]*user.User, error)

	// RankUsers returns the top limit users by points desc, id asc.
	// limit <= 0 returns all users.
	RankUsers(ctx context.Context, limit int) ([]*user.User, error)
}

// AchievementRepository holds the achievement catalog.
type AchievementRepository interface {
	Achievements(ctx context.Context) ([]*user.Achievement, error)

	// CreateAchievement returns shared.ErrAchievementExists on a duplicate id or name.
	CreateAchievement(ctx context.Context, a *user.Achievement) error
}

// MissionRepository holds missions and the completion log.
type MissionRepository interface {
	// Mission returns shared.ErrUnknownMission when missing.
	Mission(ctx context.Context, id mission.ID) (*mission.Mission, error)
	CreateMission(ctx context.Context, m *mission.Mission) error
	SaveMission(ctx context.Context, m *mission.Mission) error
	Missions(ctx context.Context) ([]*mission.Mission, error)

	// LastCompletion reads the lastCompletedAt index for the pair.
	LastCompletion(ctx context.Context, uid user.ID, mid mission.ID) (time.Time, bool, error)

	// AppendCompletion appends to the log and updates the index.
	AppendCompletion(ctx context.Context, c mission.Completion) error

	// Completions returns the log of a user, oldest first.
	Completions(ctx context.Context, uid user.ID) ([]mission.Completion, error)
}

// ShopRepository holds items and redemptions.
type ShopRepository interface {
	// Item returns shared.ErrUnknownItem when missing.
	Item(ctx context.Context, id shop.ItemID) (*shop.Item, error)
	CreateItem(ctx context.Context, it *shop.Item) error
	SaveItem(ctx context.Context, it *shop.Item) error
	Items(ctx context.Context) ([]*shop.Item, error)
	AppendRedemption(ctx context.Context, r shop.Redemption) error
	Redemptions(ctx context.Context, uid user.ID) ([]shop.Redemption, error)
}

// EventRepository holds multiplier events.
type EventRepository interface {
	// FlaggedEvents returns events whose Active flag is set, expired or not.
	FlaggedEvents(ctx context.Context) ([]*event.Event, error)
	CreateEvent(ctx context.Context, e *event.Event) error

	// DeactivateEvents clears every Active flag and returns how many changed.
	DeactivateEvents(ctx context.Context) (int, error)
}

// SeasonRepository holds season archives and the reset itself.
type SeasonRepository interface {
	CreateArchive(ctx context.Context, a *season.Archive) error

	// Archive returns shared.ErrUnknownArchive when missing.
	Archive(ctx context.Context, id string) (*season.Archive, error)

	// Archives returns summaries, newest first.
	Archives(ctx context.Context) ([]season.Summary, error)

	// ResetStandings sets every user to 0 points and level 1 and clears the
	// completion log and its index. Achievements are kept.
	ResetStandings(ctx context.Context) error
}
