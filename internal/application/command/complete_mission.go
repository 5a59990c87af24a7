package command

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/alem-hub/alem-rewards/internal/domain/event"
	"github.com/alem-hub/alem-rewards/internal/domain/ledger"
	"github.com/alem-hub/alem-rewards/internal/domain/mission"
	"github.com/alem-hub/alem-rewards/internal/domain/progression"
	"github.com/alem-hub/alem-rewards/internal/domain/shared"
	"github.com/alem-hub/alem-rewards/internal/domain/user"
)

// ══════════════════════════════════════════════════════════════════════════════
// COMPLETE MISSION COMMAND
// Awards a mission's points (times the active multiplier) once per cooldown
// window, re-derives the level and unlocks achievements in one commit.
// ══════════════════════════════════════════════════════════════════════════════

// CompleteMissionCommand contains the data to complete a mission.
type CompleteMissionCommand struct {
	UserID    string
	MissionID string
}

// Validate validates the command.
func (c CompleteMissionCommand) Validate() error {
	if !user.ID(c.UserID).IsValid() {
		return shared.ErrInvalidUserID
	}
	if !mission.ID(c.MissionID).IsValid() {
		return shared.WrapError("mission", "Complete", shared.ErrInvalidMission, "mission_id is required", nil)
	}
	return nil
}

// CompleteMissionResult contains the outcome of a completion.
type CompleteMissionResult struct {
	// PointsAwarded is floor(pointValue * Multiplier).
	PointsAwarded int

	// Multiplier is the multiplier in effect at completion time.
	Multiplier float64

	// Points is the balance after the award.
	Points int

	// NewLevel is set only when the level increased.
	NewLevel *int

	// Unlocked lists achievements unlocked by this completion, ordered by id.
	Unlocked []*user.Achievement

	CompletedAt time.Time
}

// CompleteMissionHandler handles the CompleteMissionCommand.
type CompleteMissionHandler struct {
	deps Deps
}

// NewCompleteMissionHandler creates a new CompleteMissionHandler.
func NewCompleteMissionHandler(deps Deps) *CompleteMissionHandler {
	return &CompleteMissionHandler{deps: deps.withDefaults()}
}

// Handle executes the complete mission command.
//
// Failures leave the ledger untouched: *mission.NotEligibleError while the
// cooldown runs, ErrMissionInactive, ErrUnknownMission or ErrUnknownUser.
func (h *CompleteMissionHandler) Handle(ctx context.Context, cmd CompleteMissionCommand) (*CompleteMissionResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	uid := user.ID(cmd.UserID)
	mid := mission.ID(cmd.MissionID)

	var (
		now    time.Time
		res    CompleteMissionResult
		change progression.LevelChange
		name   string
	)

	scope := ledger.Scope{
		Users:  []user.ID{uid},
		Events: ledger.LockShared,
	}
	err := h.deps.Store.Update(ctx, scope, func(tx ledger.Tx) error {
		// Read the clock under the user lock.
		now = h.deps.Clock.Now()

		u, err := tx.User(ctx, uid)
		if err != nil {
			return err
		}
		m, err := tx.Mission(ctx, mid)
		if err != nil {
			return err
		}

		last, hasLast, err := tx.LastCompletion(ctx, uid, mid)
		if err != nil {
			return err
		}
		// A last completion ahead of now came from a clock running ahead.
		if hasLast && now.Before(last) {
			now = last
		}
		if err := m.CheckEligible(last, hasLast, now); err != nil {
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
		multiplier := event.Multiplier(active)
		points := mission.Award(m.PointValue, multiplier)

		if err := tx.AppendCompletion(ctx, mission.Completion{UserID: uid, MissionID: mid, CompletedAt: now}); err != nil {
			return err
		}

		change, err = h.deps.Levels.Apply(u, points)
		if err != nil {
			return err
		}
		u.Touch(now)

		catalog, err := tx.Achievements(ctx)
		if err != nil {
			return err
		}
		unlocked := progression.Grant(catalog, u, progression.Trigger{MissionCompleted: true, Level: u.Level}, now)

		if err := tx.SaveUser(ctx, u); err != nil {
			return err
		}

		name = u.DisplayName
		res = CompleteMissionResult{
			PointsAwarded: points,
			Multiplier:    multiplier,
			Points:        u.Points,
			Unlocked:      unlocked,
			CompletedAt:   now,
		}
		return nil
	})
	if err != nil {
		var ne *mission.NotEligibleError
		if errors.As(err, &ne) {
			h.deps.Logger.Debug("mission on cooldown",
				"user_id", cmd.UserID,
				"mission_id", cmd.MissionID,
				"remaining", ne.Remaining,
			)
			return nil, err
		}
		return nil, fmt.Errorf("complete_mission: %w", err)
	}

	if change.LeveledUp() {
		lvl := change.NewLevel
		res.NewLevel = &lvl
	}

	h.deps.Logger.Info("mission completed",
		"user_id", cmd.UserID,
		"mission_id", cmd.MissionID,
		"points", res.PointsAwarded,
		"multiplier", res.Multiplier,
		"unlocked", len(res.Unlocked),
	)

	events := []shared.Event{
		shared.NewMissionCompletedEvent(cmd.UserID, cmd.MissionID, res.PointsAwarded, res.Multiplier, now),
		shared.NewPointsAwardedEvent(cmd.UserID, name, res.PointsAwarded, change.NewPoints, change.NewLevel, "mission:"+cmd.MissionID, now),
	}
	if change.LeveledUp() {
		events = append(events, shared.NewLevelUpEvent(cmd.UserID, change.OldLevel, change.NewLevel, now))
	}
	for _, a := range res.Unlocked {
		events = append(events, shared.NewAchievementUnlockedEvent(cmd.UserID, string(a.ID), a.Name, a.Icon, now))
	}
	h.deps.publish(events...)

	return &res, nil
}
