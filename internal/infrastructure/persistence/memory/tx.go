package memory

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/alem-hub/alem-rewards/internal/domain/event"
	"github.com/alem-hub/alem-rewards/internal/domain/ledger"
	"github.com/alem-hub/alem-rewards/internal/domain/mission"
	"github.com/alem-hub/alem-rewards/internal/domain/season"
	"github.com/alem-hub/alem-rewards/internal/domain/shared"
	"github.com/alem-hub/alem-rewards/internal/domain/shop"
	"github.com/alem-hub/alem-rewards/internal/domain/user"
)

var errReadOnly = shared.NewDomainError("ledger", "Write", shared.ErrStorage, "write inside a read-only transaction")

// tx stages writes in an overlay on top of the committed state. Reads see the
// overlay first. Nothing reaches the state until commit.
type tx struct {
	s        *Store
	readOnly bool

	users         map[user.ID]*user.User
	achievements  map[user.AchievementID]*user.Achievement
	missions      map[mission.ID]*mission.Mission
	completions   []mission.Completion
	lastCompleted map[completionKey]time.Time
	items         map[shop.ItemID]*shop.Item
	redemptions   []shop.Redemption
	events        map[event.ID]*event.Event
	archives      []*season.Archive

	// createdMissions separates CreateMission from SaveMission in the overlay.
	createdMissions map[mission.ID]struct{}

	// resetDone drops committed completions and the index on commit.
	resetDone bool
}

func newTx(s *Store, readOnly bool) *tx {
	return &tx{
		s:             s,
		readOnly:      readOnly,
		users:         make(map[user.ID]*user.User),
		achievements:  make(map[user.AchievementID]*user.Achievement),
		missions:      make(map[mission.ID]*mission.Mission),
		lastCompleted: make(map[completionKey]time.Time),
		items:         make(map[shop.ItemID]*shop.Item),
		events:        make(map[event.ID]*event.Event),

		createdMissions: make(map[mission.ID]struct{}),
	}
}

var _ ledger.Tx = (*tx)(nil)

// read runs fn with the committed state. View already holds the read lock.
func (t *tx) read(fn func(st *state)) {
	if t.readOnly {
		fn(t.s.st)
		return
	}
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()
	fn(t.s.st)
}

func (t *tx) writable() error {
	if t.readOnly {
		return errReadOnly
	}
	return nil
}

// conflicts re-checks catalog uniqueness against st. Catalog writes take no
// key lock, so a concurrent create may have committed since staging.
// Must be called with the store's write lock held.
func (t *tx) conflicts(st *state) error {
	for id, a := range t.achievements {
		for _, e := range st.achievements {
			if e.ID == id || strings.EqualFold(e.Name, a.Name) {
				return shared.ErrAchievementExists
			}
		}
	}
	for id := range t.createdMissions {
		if _, ok := st.missions[id]; ok {
			return shared.ErrMissionExists
		}
	}
	return nil
}

func (t *tx) commit(st *state) {
	if t.resetDone {
		st.completions = nil
		st.lastCompleted = make(map[completionKey]time.Time)
	}
	for id, u := range t.users {
		st.users[id] = u
	}
	for id, a := range t.achievements {
		st.achievements[id] = a
	}
	for id, m := range t.missions {
		st.missions[id] = m
	}
	st.completions = append(st.completions, t.completions...)
	for k, at := range t.lastCompleted {
		st.lastCompleted[k] = at
	}
	for id, it := range t.items {
		st.items[id] = it
	}
	st.redemptions = append(st.redemptions, t.redemptions...)
	for id, e := range t.events {
		st.events[id] = e
	}
	st.archives = append(st.archives, t.archives...)
}

// ══════════════════════════════════════════════════════════════════════════════
// USERS
// ══════════════════════════════════════════════════════════════════════════════

func (t *tx) lookupUser(id user.ID) *user.User {
	if u, ok := t.users[id]; ok {
		return u
	}
	var u *user.User
	t.read(func(st *state) { u = st.users[id] })
	return u
}

func (t *tx) User(_ context.Context, id user.ID) (*user.User, error) {
	u := t.lookupUser(id)
	if u == nil {
		return nil, shared.ErrUnknownUser
	}
	return u.Clone(), nil
}

func (t *tx) CreateUser(_ context.Context, u *user.User) error {
	if err := t.writable(); err != nil {
		return err
	}
	if !u.ID.IsValid() {
		return shared.ErrInvalidUserID
	}
	if t.lookupUser(u.ID) != nil {
		return shared.ErrUserExists
	}
	t.users[u.ID] = u.Clone()
	return nil
}

func (t *tx) SaveUser(_ context.Context, u *user.User) error {
	if err := t.writable(); err != nil {
		return err
	}
	stored := t.lookupUser(u.ID)
	if stored == nil {
		return shared.ErrUnknownUser
	}
	if u.Points < 0 {
		return shared.ErrNegativeBalance
	}

	next := u.Clone()
	next.CreatedAt = stored.CreatedAt
	next.Achievements = append([]user.Unlock(nil), stored.Achievements...)
	for _, a := range u.Achievements {
		if !stored.Has(a.AchievementID) {
			next.Achievements = append(next.Achievements, a)
		}
	}
	t.users[u.ID] = next
	return nil
}

func (t *tx) allUsers() []*user.User {
	var out []*user.User
	t.read(func(st *state) {
		out = make([]*user.User, 0, len(st.users)+len(t.users))
		for id, u := range st.users {
			if _, staged := t.users[id]; !staged {
				out = append(out, u.Clone())
			}
		}
	})
	for _, u := range t.users {
		out = append(out, u.Clone())
	}
	return out
}

func (t *tx) Users(_ context.Context) ([]*user.User, error) {
	out := t.allUsers()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (t *tx) RankUsers(_ context.Context, limit int) ([]*user.User, error) {
	out := t.allUsers()
	user.SortByRank(out)
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// ACHIEVEMENTS
// ══════════════════════════════════════════════════════════════════════════════

func (t *tx) Achievements(_ context.Context) ([]*user.Achievement, error) {
	var out []*user.Achievement
	t.read(func(st *state) {
		for _, a := range st.achievements {
			c := *a
			out = append(out, &c)
		}
	})
	for _, a := range t.achievements {
		c := *a
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (t *tx) CreateAchievement(ctx context.Context, a *user.Achievement) error {
	if err := t.writable(); err != nil {
		return err
	}
	existing, _ := t.Achievements(ctx)
	for _, e := range existing {
		if e.ID == a.ID || strings.EqualFold(e.Name, a.Name) {
			return shared.ErrAchievementExists
		}
	}
	c := *a
	t.achievements[a.ID] = &c
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// MISSIONS
// ══════════════════════════════════════════════════════════════════════════════

func (t *tx) lookupMission(id mission.ID) *mission.Mission {
	if m, ok := t.missions[id]; ok {
		return m
	}
	var m *mission.Mission
	t.read(func(st *state) { m = st.missions[id] })
	return m
}

func (t *tx) Mission(_ context.Context, id mission.ID) (*mission.Mission, error) {
	m := t.lookupMission(id)
	if m == nil {
		return nil, shared.ErrUnknownMission
	}
	c := *m
	return &c, nil
}

func (t *tx) CreateMission(_ context.Context, m *mission.Mission) error {
	if err := t.writable(); err != nil {
		return err
	}
	if t.lookupMission(m.ID) != nil {
		return shared.ErrMissionExists
	}
	c := *m
	t.missions[m.ID] = &c
	t.createdMissions[m.ID] = struct{}{}
	return nil
}

func (t *tx) SaveMission(_ context.Context, m *mission.Mission) error {
	if err := t.writable(); err != nil {
		return err
	}
	if t.lookupMission(m.ID) == nil {
		return shared.ErrUnknownMission
	}
	c := *m
	t.missions[m.ID] = &c
	return nil
}

func (t *tx) Missions(_ context.Context) ([]*mission.Mission, error) {
	var out []*mission.Mission
	t.read(func(st *state) {
		for id, m := range st.missions {
			if _, staged := t.missions[id]; !staged {
				c := *m
				out = append(out, &c)
			}
		}
	})
	for _, m := range t.missions {
		c := *m
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (t *tx) LastCompletion(_ context.Context, uid user.ID, mid mission.ID) (time.Time, bool, error) {
	key := completionKey{user: uid, mission: mid}
	if at, ok := t.lastCompleted[key]; ok {
		return at, true, nil
	}
	if t.resetDone {
		return time.Time{}, false, nil
	}

	var (
		at time.Time
		ok bool
	)
	t.read(func(st *state) { at, ok = st.lastCompleted[key] })
	return at, ok, nil
}

func (t *tx) AppendCompletion(_ context.Context, c mission.Completion) error {
	if err := t.writable(); err != nil {
		return err
	}
	if t.lookupUser(c.UserID) == nil {
		return shared.ErrUnknownUser
	}
	if t.lookupMission(c.MissionID) == nil {
		return shared.ErrUnknownMission
	}
	t.completions = append(t.completions, c)
	t.lastCompleted[completionKey{user: c.UserID, mission: c.MissionID}] = c.CompletedAt
	return nil
}

func (t *tx) Completions(_ context.Context, uid user.ID) ([]mission.Completion, error) {
	var out []mission.Completion
	if !t.resetDone {
		t.read(func(st *state) {
			for _, c := range st.completions {
				if c.UserID == uid {
					out = append(out, c)
				}
			}
		})
	}
	for _, c := range t.completions {
		if c.UserID == uid {
			out = append(out, c)
		}
	}
	return out, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// SHOP
// ══════════════════════════════════════════════════════════════════════════════

func (t *tx) lookupItem(id shop.ItemID) *shop.Item {
	if it, ok := t.items[id]; ok {
		return it
	}
	var it *shop.Item
	t.read(func(st *state) { it = st.items[id] })
	return it
}

func (t *tx) Item(_ context.Context, id shop.ItemID) (*shop.Item, error) {
	it := t.lookupItem(id)
	if it == nil {
		return nil, shared.ErrUnknownItem
	}
	return it.Clone(), nil
}

func (t *tx) CreateItem(_ context.Context, it *shop.Item) error {
	if err := t.writable(); err != nil {
		return err
	}
	if t.lookupItem(it.ID) != nil {
		return shared.ErrItemExists
	}
	t.items[it.ID] = it.Clone()
	return nil
}

func (t *tx) SaveItem(_ context.Context, it *shop.Item) error {
	if err := t.writable(); err != nil {
		return err
	}
	if t.lookupItem(it.ID) == nil {
		return shared.ErrUnknownItem
	}
	if it.Stock < shop.Unlimited {
		return shared.ErrStockNegative
	}
	t.items[it.ID] = it.Clone()
	return nil
}

func (t *tx) Items(_ context.Context) ([]*shop.Item, error) {
	var out []*shop.Item
	t.read(func(st *state) {
		for id, it := range st.items {
			if _, staged := t.items[id]; !staged {
				out = append(out, it.Clone())
			}
		}
	})
	for _, it := range t.items {
		out = append(out, it.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (t *tx) AppendRedemption(_ context.Context, r shop.Redemption) error {
	if err := t.writable(); err != nil {
		return err
	}
	if t.lookupUser(r.UserID) == nil {
		return shared.ErrUnknownUser
	}
	if t.lookupItem(r.ItemID) == nil {
		return shared.ErrUnknownItem
	}
	t.redemptions = append(t.redemptions, r)
	return nil
}

func (t *tx) Redemptions(_ context.Context, uid user.ID) ([]shop.Redemption, error) {
	var out []shop.Redemption
	t.read(func(st *state) {
		for _, r := range st.redemptions {
			if r.UserID == uid {
				out = append(out, r)
			}
		}
	})
	for _, r := range t.redemptions {
		if r.UserID == uid {
			out = append(out, r)
		}
	}
	return out, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// EVENTS
// ══════════════════════════════════════════════════════════════════════════════

func (t *tx) allEvents() map[event.ID]*event.Event {
	merged := make(map[event.ID]*event.Event)
	t.read(func(st *state) {
		for id, e := range st.events {
			merged[id] = e
		}
	})
	for id, e := range t.events {
		merged[id] = e
	}
	return merged
}

func (t *tx) FlaggedEvents(_ context.Context) ([]*event.Event, error) {
	var out []*event.Event
	for _, e := range t.allEvents() {
		if e.Active {
			out = append(out, e.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })
	return out, nil
}

func (t *tx) CreateEvent(_ context.Context, e *event.Event) error {
	if err := t.writable(); err != nil {
		return err
	}
	all := t.allEvents()
	if _, ok := all[e.ID]; ok {
		return shared.WrapError("event", "Create", shared.ErrAlreadyExists, "event already exists", nil)
	}
	if e.Active {
		for _, other := range all {
			if other.Active {
				return shared.ErrManyActive
			}
		}
	}
	t.events[e.ID] = e.Clone()
	return nil
}

func (t *tx) DeactivateEvents(_ context.Context) (int, error) {
	if err := t.writable(); err != nil {
		return 0, err
	}
	n := 0
	for id, e := range t.allEvents() {
		if !e.Active {
			continue
		}
		c := e.Clone()
		c.Active = false
		t.events[id] = c
		n++
	}
	return n, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// SEASONS
// ══════════════════════════════════════════════════════════════════════════════

func (t *tx) CreateArchive(_ context.Context, a *season.Archive) error {
	if err := t.writable(); err != nil {
		return err
	}
	t.archives = append(t.archives, a.Clone())
	return nil
}

func (t *tx) allArchives() []*season.Archive {
	var out []*season.Archive
	t.read(func(st *state) { out = append(out, st.archives...) })
	return append(out, t.archives...)
}

func (t *tx) Archive(_ context.Context, id string) (*season.Archive, error) {
	for _, a := range t.allArchives() {
		if a.ID == id {
			return a.Clone(), nil
		}
	}
	return nil, shared.ErrUnknownArchive
}

func (t *tx) Archives(_ context.Context) ([]season.Summary, error) {
	all := t.allArchives()
	out := make([]season.Summary, 0, len(all))
	for i := len(all) - 1; i >= 0; i-- {
		out = append(out, all[i].Summary())
	}
	return out, nil
}

func (t *tx) ResetStandings(_ context.Context) error {
	if err := t.writable(); err != nil {
		return err
	}
	for _, u := range t.allUsers() {
		u.ResetStanding()
		t.users[u.ID] = u
	}
	t.resetDone = true
	t.completions = nil
	t.lastCompleted = make(map[completionKey]time.Time)
	return nil
}
