package mission

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/alem-rewards/internal/domain/shared"
)

var now = time.Date(2025, 1, 6, 10, 0, 0, 0, time.UTC)

func TestNewMission_Defaults(t *testing.T) {
	m, err := NewMission(NewMissionParams{ID: "daily", Name: " Daily ", PointValue: 5, Type: TypeDaily}, now)
	require.NoError(t, err)
	assert.Equal(t, "Daily", m.Name)
	assert.Equal(t, 24*time.Hour, m.Cooldown)
	assert.Equal(t, 24, m.CooldownHours())
	assert.True(t, m.Active)

	w, err := NewMission(NewMissionParams{ID: "weekly", Name: "Weekly", Type: TypeWeekly}, now)
	require.NoError(t, err)
	assert.Equal(t, 7*24*time.Hour, w.Cooldown)

	c, err := NewMission(NewMissionParams{ID: "c", Name: "Custom", CooldownHours: 3}, now)
	require.NoError(t, err)
	assert.Equal(t, TypeCustom, c.Type)
	assert.Equal(t, 3*time.Hour, c.Cooldown)

	z, err := NewMission(NewMissionParams{ID: "z", Name: "Repeatable"}, now)
	require.NoError(t, err)
	assert.Zero(t, z.Cooldown)
}

func TestNewMission_Validation(t *testing.T) {
	tests := []struct {
		name string
		p    NewMissionParams
	}{
		{"missing id", NewMissionParams{Name: "x"}},
		{"blank name", NewMissionParams{ID: "x", Name: "   "}},
		{"negative points", NewMissionParams{ID: "x", Name: "x", PointValue: -1}},
		{"negative cooldown", NewMissionParams{ID: "x", Name: "x", CooldownHours: -1}},
		{"points above cap", NewMissionParams{ID: "x", Name: "x", PointValue: MaxPointValue + 1}},
		{"cooldown above cap", NewMissionParams{ID: "x", Name: "x", CooldownHours: MaxCooldownHours + 1}},
		{"unknown type", NewMissionParams{ID: "x", Name: "x", Type: "monthly"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewMission(tt.p, now)
			assert.ErrorIs(t, err, shared.ErrInvalidMission)
			assert.True(t, shared.IsValidation(err))
		})
	}
}

func TestMission_CheckEligible(t *testing.T) {
	m, err := NewMission(NewMissionParams{ID: "m", Name: "M", PointValue: 10, CooldownHours: 24}, now)
	require.NoError(t, err)

	assert.NoError(t, m.CheckEligible(time.Time{}, false, now))

	last := now.Add(-23 * time.Hour)
	err = m.CheckEligible(last, true, now)
	require.Error(t, err)

	var ne *NotEligibleError
	require.True(t, errors.As(err, &ne))
	assert.Equal(t, time.Hour, ne.Remaining)
	assert.Equal(t, now.Add(time.Hour), ne.AvailableAt)
	assert.ErrorIs(t, err, shared.ErrNotEligible)
	assert.True(t, shared.IsEligibility(err))

	// The window boundary itself is eligible.
	assert.NoError(t, m.CheckEligible(now.Add(-24*time.Hour), true, now))

	m.Active = false
	assert.ErrorIs(t, m.CheckEligible(time.Time{}, false, now), shared.ErrMissionInactive)
}

func TestAward(t *testing.T) {
	tests := []struct {
		points int
		mult   float64
		want   int
	}{
		{10, 1, 10},
		{10, 2, 20},
		{7, 1.5, 10},
		{100, 1.15, 115},
		{3, 0.5, 1},
		{0, 3, 0},
		{10, 0, 0},
		{10, math.NaN(), 0},
		{MaxPointValue, 1e20, math.MaxInt32},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, Award(tt.points, tt.mult), "%d x %v", tt.points, tt.mult)
	}
}
