// Package mission contains repeatable tasks that award points and the
// cooldown rules that gate them. This is a pure domain layer with zero external dependencies.
package mission

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/alem-hub/alem-rewards/internal/domain/shared"
	"github.com/alem-hub/alem-rewards/internal/domain/user"
)

// ID represents a unique identifier for a mission.
type ID string

// IsValid checks if the mission ID is valid.
func (id ID) IsValid() bool {
	return id != ""
}

// Type is the mission cadence.
type Type string

const (
	TypeDaily  Type = "daily"
	TypeWeekly Type = "weekly"
	TypeCustom Type = "custom"
)

// IsValid checks the mission type.
func (t Type) IsValid() bool {
	switch t {
	case TypeDaily, TypeWeekly, TypeCustom:
		return true
	default:
		return false
	}
}

// DefaultCooldown returns the cooldown used when a daily or weekly
// mission is created without one.
func (t Type) DefaultCooldown() time.Duration {
	switch t {
	case TypeDaily:
		return 24 * time.Hour
	case TypeWeekly:
		return 7 * 24 * time.Hour
	default:
		return 0
	}
}

// Mission is an admin-managed task.
type Mission struct {
	ID          ID
	Name        string
	Description string
	PointValue  int
	Type        Type
	Cooldown    time.Duration
	Active      bool
	CreatedAt   time.Time
}

// Bounds on a new mission.
const (
	MaxPointValue    = 1_000_000
	MaxCooldownHours = 10 * 366 * 24
)

// NewMissionParams holds the inputs for NewMission.
type NewMissionParams struct {
	ID            ID
	Name          string
	Description   string
	PointValue    int
	Type          Type
	CooldownHours int
}

// NewMission validates params and returns an active mission.
func NewMission(p NewMissionParams, now time.Time) (*Mission, error) {
	name := strings.TrimSpace(p.Name)
	switch {
	case !p.ID.IsValid():
		return nil, shared.WrapError("mission", "Validate", shared.ErrInvalidMission, "id is required", nil)
	case name == "":
		return nil, shared.WrapError("mission", "Validate", shared.ErrInvalidMission, "name is required", nil)
	case p.PointValue < 0:
		return nil, shared.WrapError("mission", "Validate", shared.ErrInvalidMission, "point value must be non-negative", nil)
	case p.PointValue > MaxPointValue:
		return nil, shared.WrapError("mission", "Validate", shared.ErrInvalidMission, fmt.Sprintf("point value must not exceed %d", MaxPointValue), nil)
	case p.CooldownHours < 0:
		return nil, shared.WrapError("mission", "Validate", shared.ErrInvalidMission, "cooldown must be non-negative", nil)
	case p.CooldownHours > MaxCooldownHours:
		return nil, shared.WrapError("mission", "Validate", shared.ErrInvalidMission, fmt.Sprintf("cooldown must not exceed %d hours", MaxCooldownHours), nil)
	}

	if p.Type == "" {
		p.Type = TypeCustom
	}
	if !p.Type.IsValid() {
		return nil, shared.WrapError("mission", "Validate", shared.ErrInvalidMission, fmt.Sprintf("unknown type %q", p.Type), nil)
	}

	cooldown := time.Duration(p.CooldownHours) * time.Hour
	if cooldown == 0 {
		cooldown = p.Type.DefaultCooldown()
	}

	return &Mission{
		ID:          p.ID,
		Name:        name,
		Description: strings.TrimSpace(p.Description),
		PointValue:  p.PointValue,
		Type:        p.Type,
		Cooldown:    cooldown,
		Active:      true,
		CreatedAt:   now,
	}, nil
}

// CooldownHours returns the cooldown in whole hours.
func (m *Mission) CooldownHours() int {
	return int(m.Cooldown / time.Hour)
}

// Completion is one row of the append-only completion log.
type Completion struct {
	UserID      user.ID
	MissionID   ID
	CompletedAt time.Time
}

// Remaining returns how long the user still has to wait. A zero return means
// the pair is eligible: no previous completion, or now - last >= cooldown.
func (m *Mission) Remaining(last time.Time, hasLast bool, now time.Time) time.Duration {
	if !hasLast {
		return 0
	}
	elapsed := now.Sub(last)
	if elapsed >= m.Cooldown {
		return 0
	}
	return m.Cooldown - elapsed
}

// CheckEligible returns nil or a *NotEligibleError.
func (m *Mission) CheckEligible(last time.Time, hasLast bool, now time.Time) error {
	if !m.Active {
		return shared.ErrMissionInactive
	}
	if rem := m.Remaining(last, hasLast, now); rem > 0 {
		return &NotEligibleError{MissionID: m.ID, Remaining: rem, AvailableAt: now.Add(rem)}
	}
	return nil
}

// epsilon absorbs binary float error such as 100*1.15 = 114.99999999999999.
const epsilon = 1e-9

// maxAward caps a single award so the conversion back to int is defined.
const maxAward = math.MaxInt32

// Award returns floor(pointValue * multiplier), capped at math.MaxInt32.
func Award(pointValue int, multiplier float64) int {
	if pointValue <= 0 || !(multiplier > 0) {
		return 0
	}
	v := math.Floor(float64(pointValue)*multiplier + epsilon)
	if v >= maxAward {
		return maxAward
	}
	return int(v)
}

// NotEligibleError reports that a mission's cooldown window has not elapsed.
type NotEligibleError struct {
	MissionID   ID
	Remaining   time.Duration
	AvailableAt time.Time
}

// Error implements the error interface.
func (e *NotEligibleError) Error() string {
	return fmt.Sprintf("mission.Complete: mission %s not eligible for another %s",
		e.MissionID, e.Remaining.Round(time.Second))
}

// Is matches shared.ErrNotEligible and, through it, shared.ErrEligibility.
func (e *NotEligibleError) Is(target error) bool {
	return target == shared.ErrNotEligible || shared.ErrNotEligible.Is(target)
}
