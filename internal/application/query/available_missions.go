package query

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/alem-hub/alem-rewards/internal/domain/event"
	"github.com/alem-hub/alem-rewards/internal/domain/ledger"
	"github.com/alem-hub/alem-rewards/internal/domain/mission"
	"github.com/alem-hub/alem-rewards/internal/domain/shared"
	"github.com/alem-hub/alem-rewards/internal/domain/user"
)

// ══════════════════════════════════════════════════════════════════════════════
// AVAILABLE MISSIONS QUERY
// Active missions with the user's eligibility and the award at the current
// multiplier.
// ══════════════════════════════════════════════════════════════════════════════

// AvailableMissionsQuery identifies the user.
type AvailableMissionsQuery struct {
	UserID string
}

// MissionAvailability is one active mission seen by one user.
type MissionAvailability struct {
	Mission *mission.Mission

	Eligible bool

	// Remaining is zero when Eligible.
	Remaining   time.Duration
	AvailableAt time.Time

	// Award is what completing the mission now would pay.
	Award int
}

// AvailableMissionsResult lists active missions, eligible first, then by id.
type AvailableMissionsResult struct {
	Missions   []MissionAvailability
	Multiplier float64
}

// AvailableMissionsHandler handles the AvailableMissionsQuery.
type AvailableMissionsHandler struct {
	deps Deps
}

// NewAvailableMissionsHandler creates a new AvailableMissionsHandler.
func NewAvailableMissionsHandler(deps Deps) *AvailableMissionsHandler {
	return &AvailableMissionsHandler{deps: deps.withDefaults()}
}

// Handle executes the query.
func (h *AvailableMissionsHandler) Handle(ctx context.Context, q AvailableMissionsQuery) (*AvailableMissionsResult, error) {
	uid := user.ID(q.UserID)
	if !uid.IsValid() {
		return nil, shared.ErrInvalidUserID
	}
	now := h.deps.Clock.Now()

	var res AvailableMissionsResult
	err := h.deps.Store.View(ctx, func(tx ledger.Tx) error {
		if _, err := tx.User(ctx, uid); err != nil {
			return err
		}

		flagged, err := tx.FlaggedEvents(ctx)
		if err != nil {
			return err
		}
		active, err := event.Resolve(flagged, now)
		if err != nil {
			return err
		}
		res.Multiplier = event.Multiplier(active)

		missions, err := tx.Missions(ctx)
		if err != nil {
			return err
		}
		for _, m := range missions {
			if !m.Active {
				continue
			}
			last, hasLast, err := tx.LastCompletion(ctx, uid, m.ID)
			if err != nil {
				return err
			}

			remaining := m.Remaining(last, hasLast, now)
			res.Missions = append(res.Missions, MissionAvailability{
				Mission:     m,
				Eligible:    remaining == 0,
				Remaining:   remaining,
				AvailableAt: now.Add(remaining),
				Award:       mission.Award(m.PointValue, res.Multiplier),
			})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("available_missions: %w", err)
	}

	sort.SliceStable(res.Missions, func(i, j int) bool {
		a, b := res.Missions[i], res.Missions[j]
		if a.Eligible != b.Eligible {
			return a.Eligible
		}
		return a.Mission.ID < b.Mission.ID
	})
	return &res, nil
}
