package query

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/alem-hub/alem-rewards/internal/domain/ledger"
	"github.com/alem-hub/alem-rewards/internal/domain/progression"
	"github.com/alem-hub/alem-rewards/internal/domain/shared"
	"github.com/alem-hub/alem-rewards/internal/domain/user"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET PROFILE QUERY
// ══════════════════════════════════════════════════════════════════════════════

// GetProfileQuery identifies the user.
type GetProfileQuery struct {
	UserID string
}

// Validate validates the query.
func (q GetProfileQuery) Validate() error {
	if !user.ID(q.UserID).IsValid() {
		return shared.ErrInvalidUserID
	}
	return nil
}

// ProfileAchievement is an unlocked achievement with its catalog entry.
type ProfileAchievement struct {
	ID          user.AchievementID
	Name        string
	Description string
	Icon        string
	UnlockedAt  time.Time
}

// ProfileDTO is a user's standing.
type ProfileDTO struct {
	UserID      user.ID
	DisplayName string
	Points      int
	Level       int

	// Progress towards the next level.
	Progress progression.Progress

	// Achievements are ordered by unlock time, then id.
	Achievements []ProfileAchievement

	Completions int
	Redemptions int
	LastActive  time.Time
	CreatedAt   time.Time
}

// GetProfileHandler handles the GetProfileQuery.
type GetProfileHandler struct {
	deps Deps
}

// NewGetProfileHandler creates a new GetProfileHandler.
func NewGetProfileHandler(deps Deps) *GetProfileHandler {
	return &GetProfileHandler{deps: deps.withDefaults()}
}

// Handle executes the query. ErrUnknownUser for users never seen.
func (h *GetProfileHandler) Handle(ctx context.Context, q GetProfileQuery) (*ProfileDTO, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	uid := user.ID(q.UserID)

	var dto ProfileDTO
	err := h.deps.Store.View(ctx, func(tx ledger.Tx) error {
		u, err := tx.User(ctx, uid)
		if err != nil {
			return err
		}
		catalog, err := tx.Achievements(ctx)
		if err != nil {
			return err
		}
		completions, err := tx.Completions(ctx, uid)
		if err != nil {
			return err
		}
		redemptions, err := tx.Redemptions(ctx, uid)
		if err != nil {
			return err
		}

		byID := make(map[user.AchievementID]*user.Achievement, len(catalog))
		for _, a := range catalog {
			byID[a.ID] = a
		}

		achievements := make([]ProfileAchievement, 0, len(u.Achievements))
		for _, un := range u.Achievements {
			pa := ProfileAchievement{ID: un.AchievementID, UnlockedAt: un.UnlockedAt}
			if a, ok := byID[un.AchievementID]; ok {
				pa.Name = a.Name
				pa.Description = a.Description
				pa.Icon = a.Icon
			}
			achievements = append(achievements, pa)
		}
		sort.Slice(achievements, func(i, j int) bool {
			if !achievements[i].UnlockedAt.Equal(achievements[j].UnlockedAt) {
				return achievements[i].UnlockedAt.Before(achievements[j].UnlockedAt)
			}
			return achievements[i].ID < achievements[j].ID
		})

		dto = ProfileDTO{
			UserID:       u.ID,
			DisplayName:  u.DisplayName,
			Points:       u.Points,
			Level:        u.Level,
			Progress:     h.deps.Levels.ProgressToNext(u.Points),
			Achievements: achievements,
			Completions:  len(completions),
			Redemptions:  len(redemptions),
			LastActive:   u.LastActive,
			CreatedAt:    u.CreatedAt,
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("get_profile: %w", err)
	}
	return &dto, nil
}
