package user

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/alem-rewards/internal/domain/shared"
)

var now = time.Date(2025, 1, 6, 10, 0, 0, 0, time.UTC)

func TestNew(t *testing.T) {
	u, err := New("42", "  Aigerim ", now)
	require.NoError(t, err)
	assert.Equal(t, "Aigerim", u.DisplayName)
	assert.Zero(t, u.Points)
	assert.Equal(t, MinLevel, u.Level)
	assert.Equal(t, now, u.CreatedAt)

	anon, err := New("43", "", now)
	require.NoError(t, err)
	assert.Equal(t, "43", anon.DisplayName)

	for _, id := range []ID{"", "a b", ID(strings.Repeat("x", 65))} {
		_, err := New(id, "x", now)
		assert.ErrorIs(t, err, shared.ErrInvalidUserID)
	}
}

func TestUser_Unlock(t *testing.T) {
	u, err := New("1", "", now)
	require.NoError(t, err)

	assert.True(t, u.Unlock("b", now))
	assert.True(t, u.Unlock("a", now.Add(time.Minute)))
	assert.False(t, u.Unlock("b", now.Add(time.Hour)), "second unlock is a no-op")

	assert.Equal(t, []AchievementID{"a", "b"}, u.AchievementIDs())
	assert.Equal(t, now, u.Achievements[0].UnlockedAt)
}

func TestUser_TouchIsMonotonic(t *testing.T) {
	u, err := New("1", "", now)
	require.NoError(t, err)

	u.Touch(now.Add(time.Hour))
	u.Touch(now)
	assert.Equal(t, now.Add(time.Hour), u.LastActive)
}

func TestUser_ResetStandingKeepsAchievements(t *testing.T) {
	u, err := New("1", "", now)
	require.NoError(t, err)
	u.Points, u.Level = 120, 5
	u.Unlock(FirstStepsID, now)

	u.ResetStanding()
	assert.Zero(t, u.Points)
	assert.Equal(t, MinLevel, u.Level)
	assert.True(t, u.Has(FirstStepsID))
}

func TestUser_CloneIsDeep(t *testing.T) {
	u, err := New("1", "", now)
	require.NoError(t, err)
	u.Unlock("a", now)

	c := u.Clone()
	c.Unlock("b", now)
	c.Points = 9

	assert.Len(t, u.Achievements, 1)
	assert.Zero(t, u.Points)
	assert.Nil(t, (*User)(nil).Clone())
}

func TestSortByRank(t *testing.T) {
	mk := func(id ID, p int) *User { return &User{ID: id, Points: p} }
	us := []*User{mk("c", 1), mk("b", 5), mk("a", 5), mk("d", 9)}

	SortByRank(us)

	got := make([]ID, len(us))
	for i, u := range us {
		got[i] = u.ID
	}
	assert.Equal(t, []ID{"d", "a", "b", "c"}, got)
}

func TestNewAchievement(t *testing.T) {
	a, err := NewAchievement(NewAchievementParams{ID: "x", Name: " X "}, now)
	require.NoError(t, err)
	assert.Equal(t, "X", a.Name)
	assert.Equal(t, TriggerManual, a.Trigger.Kind)

	lvl, err := NewAchievement(NewAchievementParams{ID: "l", Name: "L", Trigger: Trigger{Kind: TriggerFirstMission, Level: 9}}, now)
	require.NoError(t, err)
	assert.Zero(t, lvl.Trigger.Level)

	for _, p := range []NewAchievementParams{
		{Name: "x"},
		{ID: "x"},
		{ID: "x", Name: strings.Repeat("n", 101)},
		{ID: "x", Name: "x", Trigger: Trigger{Kind: "streak"}},
		{ID: "x", Name: "x", Trigger: Trigger{Kind: TriggerLevel, Level: 1}},
	} {
		_, err := NewAchievement(p, now)
		assert.ErrorIs(t, err, shared.ErrInvalidAchievement, "%+v", p)
	}
}
