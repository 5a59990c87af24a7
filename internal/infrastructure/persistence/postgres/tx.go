package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/alem-hub/alem-rewards/internal/domain/event"
	"github.com/alem-hub/alem-rewards/internal/domain/ledger"
	"github.com/alem-hub/alem-rewards/internal/domain/mission"
	"github.com/alem-hub/alem-rewards/internal/domain/season"
	"github.com/alem-hub/alem-rewards/internal/domain/shared"
	"github.com/alem-hub/alem-rewards/internal/domain/shop"
	"github.com/alem-hub/alem-rewards/internal/domain/user"
)

var errReadOnly = shared.NewDomainError("ledger", "Write", shared.ErrStorage, "write inside a read-only transaction")

// tx implements ledger.Tx over one pgx transaction.
type tx struct {
	q        Querier
	readOnly bool
}

var _ ledger.Tx = (*tx)(nil)

func (t *tx) writable() error {
	if t.readOnly {
		return errReadOnly
	}
	return nil
}

// fkTarget maps a foreign key violation to the missing entity.
func fkTarget(err error, byColumn map[string]error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != codeForeignKeyViolation {
		return nil
	}
	for col, target := range byColumn {
		if strings.Contains(pgErr.ConstraintName, col) {
			return target
		}
	}
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// USERS
// ─────────────────────────────────────────────────────────────────────────────

const userColumns = `id, display_name, points, level, last_active, created_at`

func scanUser(row pgx.Row) (*user.User, error) {
	var (
		u  user.User
		id string
	)
	if err := row.Scan(&id, &u.DisplayName, &u.Points, &u.Level, &u.LastActive, &u.CreatedAt); err != nil {
		return nil, err
	}
	u.ID = user.ID(id)
	return &u, nil
}

func (t *tx) User(ctx context.Context, id user.ID) (*user.User, error) {
	u, err := scanUser(t.q.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, string(id)))
	if IsNoRows(err) {
		return nil, shared.ErrUnknownUser
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	if err := t.loadUnlocks(ctx, []*user.User{u}); err != nil {
		return nil, err
	}
	return u, nil
}

// loadUnlocks fills Achievements for the given users with one query.
func (t *tx) loadUnlocks(ctx context.Context, users []*user.User) error {
	if len(users) == 0 {
		return nil
	}

	byID := make(map[user.ID]*user.User, len(users))
	ids := make([]string, len(users))
	for i, u := range users {
		byID[u.ID] = u
		ids[i] = string(u.ID)
	}

	rows, err := t.q.Query(ctx, `
		SELECT user_id, achievement_id, unlocked_at
		FROM user_achievements
		WHERE user_id = ANY($1)
		ORDER BY unlocked_at, achievement_id
	`, ids)
	if err != nil {
		return fmt.Errorf("failed to query unlocks: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			uid, aid string
			at       time.Time
		)
		if err := rows.Scan(&uid, &aid, &at); err != nil {
			return fmt.Errorf("failed to scan unlock: %w", err)
		}
		if u := byID[user.ID(uid)]; u != nil {
			u.Achievements = append(u.Achievements, user.Unlock{AchievementID: user.AchievementID(aid), UnlockedAt: at})
		}
	}
	return rows.Err()
}

func (t *tx) CreateUser(ctx context.Context, u *user.User) error {
	if err := t.writable(); err != nil {
		return err
	}
	if !u.ID.IsValid() {
		return shared.ErrInvalidUserID
	}

	tag, err := t.q.Exec(ctx, `
		INSERT INTO users (id, display_name, points, level, last_active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO NOTHING
	`, string(u.ID), u.DisplayName, u.Points, u.Level, u.LastActive, u.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrUserExists
	}
	return t.insertUnlocks(ctx, u)
}

func (t *tx) SaveUser(ctx context.Context, u *user.User) error {
	if err := t.writable(); err != nil {
		return err
	}
	if u.Points < 0 {
		return shared.ErrNegativeBalance
	}

	tag, err := t.q.Exec(ctx, `
		UPDATE users
		SET display_name = $2, points = $3, level = $4, last_active = $5
		WHERE id = $1
	`, string(u.ID), u.DisplayName, u.Points, u.Level, u.LastActive)
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrUnknownUser
	}
	return t.insertUnlocks(ctx, u)
}

// insertUnlocks stores unlocks idempotently; existing rows keep their time.
func (t *tx) insertUnlocks(ctx context.Context, u *user.User) error {
	if len(u.Achievements) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, a := range u.Achievements {
		batch.Queue(`
			INSERT INTO user_achievements (user_id, achievement_id, unlocked_at)
			VALUES ($1, $2, $3)
			ON CONFLICT (user_id, achievement_id) DO NOTHING
		`, string(u.ID), string(a.AchievementID), a.UnlockedAt)
	}

	br := t.q.SendBatch(ctx, batch)
	defer br.Close()

	for range u.Achievements {
		if _, err := br.Exec(); err != nil {
			if IsForeignKeyViolation(err) {
				return shared.ErrUnknownAchievement
			}
			return fmt.Errorf("failed to insert unlock: %w", err)
		}
	}
	return nil
}

func (t *tx) queryUsers(ctx context.Context, sql string, args ...any) ([]*user.User, error) {
	rows, err := t.q.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer rows.Close()

	var out []*user.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		out = append(out, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	if err := t.loadUnlocks(ctx, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (t *tx) Users(ctx context.Context) ([]*user.User, error) {
	return t.queryUsers(ctx, `SELECT `+userColumns+` FROM users ORDER BY id`)
}

func (t *tx) RankUsers(ctx context.Context, limit int) ([]*user.User, error) {
	var lim any
	if limit > 0 {
		lim = limit
	}
	return t.queryUsers(ctx, `
		SELECT `+userColumns+`
		FROM users
		ORDER BY points DESC, id ASC
		LIMIT $1
	`, lim)
}

// ─────────────────────────────────────────────────────────────────────────────
// ACHIEVEMENTS
// ─────────────────────────────────────────────────────────────────────────────

func (t *tx) Achievements(ctx context.Context) ([]*user.Achievement, error) {
	rows, err := t.q.Query(ctx, `
		SELECT id, name, description, icon, trigger_kind, trigger_level, created_at
		FROM achievements
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query achievements: %w", err)
	}
	defer rows.Close()

	var out []*user.Achievement
	for rows.Next() {
		var (
			a        user.Achievement
			id, kind string
		)
		if err := rows.Scan(&id, &a.Name, &a.Description, &a.Icon, &kind, &a.Trigger.Level, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan achievement: %w", err)
		}
		a.ID = user.AchievementID(id)
		a.Trigger.Kind = user.TriggerKind(kind)
		out = append(out, &a)
	}
	return out, rows.Err()
}

func (t *tx) CreateAchievement(ctx context.Context, a *user.Achievement) error {
	if err := t.writable(); err != nil {
		return err
	}

	_, err := t.q.Exec(ctx, `
		INSERT INTO achievements (id, name, description, icon, trigger_kind, trigger_level, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, string(a.ID), a.Name, a.Description, a.Icon, string(a.Trigger.Kind), a.Trigger.Level, a.CreatedAt)
	if IsUniqueViolation(err) {
		return shared.ErrAchievementExists
	}
	if err != nil {
		return fmt.Errorf("failed to insert achievement: %w", err)
	}
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// MISSIONS
// ─────────────────────────────────────────────────────────────────────────────

const missionColumns = `id, name, description, point_value, mission_type, cooldown_seconds, active, created_at`

func scanMission(row pgx.Row) (*mission.Mission, error) {
	var (
		m        mission.Mission
		id, typ  string
		cooldown int64
	)
	if err := row.Scan(&id, &m.Name, &m.Description, &m.PointValue, &typ, &cooldown, &m.Active, &m.CreatedAt); err != nil {
		return nil, err
	}
	m.ID = mission.ID(id)
	m.Type = mission.Type(typ)
	m.Cooldown = time.Duration(cooldown) * time.Second
	return &m, nil
}

func (t *tx) Mission(ctx context.Context, id mission.ID) (*mission.Mission, error) {
	m, err := scanMission(t.q.QueryRow(ctx, `SELECT `+missionColumns+` FROM missions WHERE id = $1`, string(id)))
	if IsNoRows(err) {
		return nil, shared.ErrUnknownMission
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get mission: %w", err)
	}
	return m, nil
}

func (t *tx) CreateMission(ctx context.Context, m *mission.Mission) error {
	if err := t.writable(); err != nil {
		return err
	}

	_, err := t.q.Exec(ctx, `
		INSERT INTO missions (`+missionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, string(m.ID), m.Name, m.Description, m.PointValue, string(m.Type), int64(m.Cooldown/time.Second), m.Active, m.CreatedAt)
	if IsUniqueViolation(err) {
		return shared.ErrMissionExists
	}
	if err != nil {
		return fmt.Errorf("failed to insert mission: %w", err)
	}
	return nil
}

func (t *tx) SaveMission(ctx context.Context, m *mission.Mission) error {
	if err := t.writable(); err != nil {
		return err
	}

	tag, err := t.q.Exec(ctx, `
		UPDATE missions
		SET name = $2, description = $3, point_value = $4, mission_type = $5, cooldown_seconds = $6, active = $7
		WHERE id = $1
	`, string(m.ID), m.Name, m.Description, m.PointValue, string(m.Type), int64(m.Cooldown/time.Second), m.Active)
	if err != nil {
		return fmt.Errorf("failed to update mission: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrUnknownMission
	}
	return nil
}

func (t *tx) Missions(ctx context.Context) ([]*mission.Mission, error) {
	rows, err := t.q.Query(ctx, `SELECT `+missionColumns+` FROM missions ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query missions: %w", err)
	}
	defer rows.Close()

	var out []*mission.Mission
	for rows.Next() {
		m, err := scanMission(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan mission: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (t *tx) LastCompletion(ctx context.Context, uid user.ID, mid mission.ID) (time.Time, bool, error) {
	var at time.Time
	err := t.q.QueryRow(ctx, `
		SELECT last_completed_at FROM mission_cooldowns WHERE user_id = $1 AND mission_id = $2
	`, string(uid), string(mid)).Scan(&at)
	if IsNoRows(err) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("failed to read cooldown index: %w", err)
	}
	return at, true, nil
}

func (t *tx) AppendCompletion(ctx context.Context, c mission.Completion) error {
	if err := t.writable(); err != nil {
		return err
	}

	fks := map[string]error{"user_id": shared.ErrUnknownUser, "mission_id": shared.ErrUnknownMission}

	_, err := t.q.Exec(ctx, `
		INSERT INTO mission_completions (user_id, mission_id, completed_at)
		VALUES ($1, $2, $3)
	`, string(c.UserID), string(c.MissionID), c.CompletedAt)
	if target := fkTarget(err, fks); target != nil {
		return target
	}
	if err != nil {
		return fmt.Errorf("failed to append completion: %w", err)
	}

	_, err = t.q.Exec(ctx, `
		INSERT INTO mission_cooldowns (user_id, mission_id, last_completed_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, mission_id) DO UPDATE SET last_completed_at = EXCLUDED.last_completed_at
	`, string(c.UserID), string(c.MissionID), c.CompletedAt)
	if err != nil {
		return fmt.Errorf("failed to update cooldown index: %w", err)
	}
	return nil
}

func (t *tx) Completions(ctx context.Context, uid user.ID) ([]mission.Completion, error) {
	rows, err := t.q.Query(ctx, `
		SELECT mission_id, completed_at FROM mission_completions WHERE user_id = $1 ORDER BY completed_at, id
	`, string(uid))
	if err != nil {
		return nil, fmt.Errorf("failed to query completions: %w", err)
	}
	defer rows.Close()

	var out []mission.Completion
	for rows.Next() {
		c := mission.Completion{UserID: uid}
		var mid string
		if err := rows.Scan(&mid, &c.CompletedAt); err != nil {
			return nil, fmt.Errorf("failed to scan completion: %w", err)
		}
		c.MissionID = mission.ID(mid)
		out = append(out, c)
	}
	return out, rows.Err()
}

// ─────────────────────────────────────────────────────────────────────────────
// SHOP
// ─────────────────────────────────────────────────────────────────────────────

const itemColumns = `id, name, description, cost, stock, created_at`

func scanItem(row pgx.Row) (*shop.Item, error) {
	var (
		it shop.Item
		id string
	)
	if err := row.Scan(&id, &it.Name, &it.Description, &it.Cost, &it.Stock, &it.CreatedAt); err != nil {
		return nil, err
	}
	it.ID = shop.ItemID(id)
	return &it, nil
}

func (t *tx) Item(ctx context.Context, id shop.ItemID) (*shop.Item, error) {
	it, err := scanItem(t.q.QueryRow(ctx, `SELECT `+itemColumns+` FROM shop_items WHERE id = $1`, string(id)))
	if IsNoRows(err) {
		return nil, shared.ErrUnknownItem
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get item: %w", err)
	}
	return it, nil
}

func (t *tx) CreateItem(ctx context.Context, it *shop.Item) error {
	if err := t.writable(); err != nil {
		return err
	}

	_, err := t.q.Exec(ctx, `
		INSERT INTO shop_items (`+itemColumns+`) VALUES ($1, $2, $3, $4, $5, $6)
	`, string(it.ID), it.Name, it.Description, it.Cost, it.Stock, it.CreatedAt)
	if IsUniqueViolation(err) {
		return shared.ErrItemExists
	}
	if err != nil {
		return fmt.Errorf("failed to insert item: %w", err)
	}
	return nil
}

func (t *tx) SaveItem(ctx context.Context, it *shop.Item) error {
	if err := t.writable(); err != nil {
		return err
	}

	tag, err := t.q.Exec(ctx, `
		UPDATE shop_items SET name = $2, description = $3, cost = $4, stock = $5 WHERE id = $1
	`, string(it.ID), it.Name, it.Description, it.Cost, it.Stock)
	if IsCheckViolation(err) {
		return shared.ErrStockNegative
	}
	if err != nil {
		return fmt.Errorf("failed to update item: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrUnknownItem
	}
	return nil
}

func (t *tx) Items(ctx context.Context) ([]*shop.Item, error) {
	rows, err := t.q.Query(ctx, `SELECT `+itemColumns+` FROM shop_items ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query items: %w", err)
	}
	defer rows.Close()

	var out []*shop.Item
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan item: %w", err)
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

func (t *tx) AppendRedemption(ctx context.Context, r shop.Redemption) error {
	if err := t.writable(); err != nil {
		return err
	}

	id, err := uuid.Parse(r.ID)
	if err != nil {
		return shared.WrapError("shop", "Redeem", shared.ErrInvalidInput, "redemption id must be a uuid", err)
	}

	_, err = t.q.Exec(ctx, `
		INSERT INTO redemptions (id, user_id, item_id, cost, redeemed_at) VALUES ($1, $2, $3, $4, $5)
	`, id, string(r.UserID), string(r.ItemID), r.Cost, r.RedeemedAt)
	if target := fkTarget(err, map[string]error{"user_id": shared.ErrUnknownUser, "item_id": shared.ErrUnknownItem}); target != nil {
		return target
	}
	if err != nil {
		return fmt.Errorf("failed to append redemption: %w", err)
	}
	return nil
}

func (t *tx) Redemptions(ctx context.Context, uid user.ID) ([]shop.Redemption, error) {
	rows, err := t.q.Query(ctx, `
		SELECT id, item_id, cost, redeemed_at FROM redemptions WHERE user_id = $1 ORDER BY redeemed_at
	`, string(uid))
	if err != nil {
		return nil, fmt.Errorf("failed to query redemptions: %w", err)
	}
	defer rows.Close()

	var out []shop.Redemption
	for rows.Next() {
		var (
			r      = shop.Redemption{UserID: uid}
			id     uuid.UUID
			itemID string
		)
		if err := rows.Scan(&id, &itemID, &r.Cost, &r.RedeemedAt); err != nil {
			return nil, fmt.Errorf("failed to scan redemption: %w", err)
		}
		r.ID = id.String()
		r.ItemID = shop.ItemID(itemID)
		out = append(out, r)
	}
	return out, rows.Err()
}

// ─────────────────────────────────────────────────────────────────────────────
// SCORE EVENTS
// ─────────────────────────────────────────────────────────────────────────────

func (t *tx) FlaggedEvents(ctx context.Context) ([]*event.Event, error) {
	rows, err := t.q.Query(ctx, `
		SELECT id, name, multiplier, active, start_time, end_time
		FROM score_events
		WHERE active
		ORDER BY start_time
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var out []*event.Event
	for rows.Next() {
		var (
			e  event.Event
			id string
		)
		if err := rows.Scan(&id, &e.Name, &e.Multiplier, &e.Active, &e.StartTime, &e.EndTime); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		e.ID = event.ID(id)
		out = append(out, &e)
	}
	return out, rows.Err()
}

func (t *tx) CreateEvent(ctx context.Context, e *event.Event) error {
	if err := t.writable(); err != nil {
		return err
	}

	_, err := t.q.Exec(ctx, `
		INSERT INTO score_events (id, name, multiplier, active, start_time, end_time)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, string(e.ID), e.Name, e.Multiplier, e.Active, e.StartTime, e.EndTime)
	if IsUniqueViolation(err) {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.ConstraintName == "uq_score_events_single_active" {
			return shared.ErrManyActive
		}
		return shared.WrapError("event", "Create", shared.ErrAlreadyExists, "event already exists", err)
	}
	if err != nil {
		return fmt.Errorf("failed to insert event: %w", err)
	}
	return nil
}

func (t *tx) DeactivateEvents(ctx context.Context) (int, error) {
	if err := t.writable(); err != nil {
		return 0, err
	}

	tag, err := t.q.Exec(ctx, `UPDATE score_events SET active = FALSE WHERE active`)
	if err != nil {
		return 0, fmt.Errorf("failed to deactivate events: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// ─────────────────────────────────────────────────────────────────────────────
// SEASONS
// ─────────────────────────────────────────────────────────────────────────────

func (t *tx) CreateArchive(ctx context.Context, a *season.Archive) error {
	if err := t.writable(); err != nil {
		return err
	}

	id, err := uuid.Parse(a.ID)
	if err != nil {
		return shared.WrapError("season", "Archive", shared.ErrInvalidInput, "archive id must be a uuid", err)
	}

	if _, err := t.q.Exec(ctx, `INSERT INTO season_archives (id, reset_at) VALUES ($1, $2)`, id, a.ResetAt); err != nil {
		return fmt.Errorf("failed to insert archive: %w", err)
	}

	if len(a.Standings) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, s := range a.Standings {
		batch.Queue(`
			INSERT INTO season_standings (archive_id, rank, user_id, display_name, points, level)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, id, s.Rank, string(s.UserID), s.DisplayName, s.Points, s.Level)
	}

	br := t.q.SendBatch(ctx, batch)
	defer br.Close()

	for range a.Standings {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("failed to insert standing: %w", err)
		}
	}
	return nil
}

func (t *tx) Archive(ctx context.Context, raw string) (*season.Archive, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, shared.ErrUnknownArchive
	}

	a := &season.Archive{ID: id.String()}
	err = t.q.QueryRow(ctx, `SELECT reset_at FROM season_archives WHERE id = $1`, id).Scan(&a.ResetAt)
	if IsNoRows(err) {
		return nil, shared.ErrUnknownArchive
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get archive: %w", err)
	}

	rows, err := t.q.Query(ctx, `
		SELECT rank, user_id, display_name, points, level
		FROM season_standings
		WHERE archive_id = $1
		ORDER BY rank
	`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query standings: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			s   season.Standing
			uid string
		)
		if err := rows.Scan(&s.Rank, &uid, &s.DisplayName, &s.Points, &s.Level); err != nil {
			return nil, fmt.Errorf("failed to scan standing: %w", err)
		}
		s.UserID = user.ID(uid)
		a.Standings = append(a.Standings, s)
	}
	return a, rows.Err()
}

func (t *tx) Archives(ctx context.Context) ([]season.Summary, error) {
	rows, err := t.q.Query(ctx, `
		SELECT a.id, a.reset_at, COUNT(s.rank)
		FROM season_archives a
		LEFT JOIN season_standings s ON s.archive_id = a.id
		GROUP BY a.id, a.reset_at
		ORDER BY a.reset_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query archives: %w", err)
	}
	defer rows.Close()

	var out []season.Summary
	for rows.Next() {
		var (
			s  season.Summary
			id uuid.UUID
		)
		if err := rows.Scan(&id, &s.ResetAt, &s.UserCount); err != nil {
			return nil, fmt.Errorf("failed to scan archive: %w", err)
		}
		s.ID = id.String()
		out = append(out, s)
	}
	return out, rows.Err()
}

func (t *tx) ResetStandings(ctx context.Context) error {
	if err := t.writable(); err != nil {
		return err
	}

	for _, stmt := range []string{
		`UPDATE users SET points = 0, level = 1`,
		`DELETE FROM mission_cooldowns`,
		`DELETE FROM mission_completions`,
	} {
		if _, err := t.q.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to reset standings: %w", err)
		}
	}
	return nil
}
