package progression

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/alem-rewards/internal/domain/user"
)

func catalog(t *testing.T) []*user.Achievement {
	t.Helper()
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	cat := user.DefaultAchievements(now)

	lvl3, err := user.NewAchievement(user.NewAchievementParams{
		ID: "level_3", Name: "Warming Up", Trigger: user.Trigger{Kind: user.TriggerLevel, Level: 3},
	}, now)
	require.NoError(t, err)
	manual, err := user.NewAchievement(user.NewAchievementParams{ID: "mvp", Name: "MVP"}, now)
	require.NoError(t, err)

	return append(cat, lvl3, manual)
}

func ids(as []*user.Achievement) []user.AchievementID {
	out := make([]user.AchievementID, len(as))
	for i, a := range as {
		out[i] = a.ID
	}
	return out
}

func TestEvaluate(t *testing.T) {
	cat := catalog(t)
	u, err := user.New("u1", "", time.Now())
	require.NoError(t, err)

	assert.Empty(t, Evaluate(cat, u, Trigger{Level: 1}))

	got := Evaluate(cat, u, Trigger{MissionCompleted: true, Level: 2})
	assert.Equal(t, []user.AchievementID{user.FirstStepsID}, ids(got))
	assert.Empty(t, u.Achievements, "evaluate does not mutate")

	got = Evaluate(cat, u, Trigger{MissionCompleted: true, Level: 6})
	assert.Equal(t, []user.AchievementID{user.FirstStepsID, "level_3", user.Level5ID}, ids(got))
}

func TestGrant_UnlocksOnce(t *testing.T) {
	cat := catalog(t)
	u, err := user.New("u1", "", time.Now())
	require.NoError(t, err)
	at := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	got := Grant(cat, u, Trigger{MissionCompleted: true, Level: 3}, at)
	assert.Equal(t, []user.AchievementID{user.FirstStepsID, "level_3"}, ids(got))
	assert.True(t, u.Has(user.FirstStepsID))
	assert.Equal(t, at, u.Achievements[0].UnlockedAt)

	again := Grant(cat, u, Trigger{MissionCompleted: true, Level: 3}, at.Add(time.Hour))
	assert.Empty(t, again)
	assert.Len(t, u.Achievements, 2)

	// Manual achievements are never granted by triggers.
	assert.False(t, u.Has("mvp"))
}
