package season

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/alem-rewards/internal/domain/user"
)

func users(t *testing.T) []*user.User {
	t.Helper()
	mk := func(id user.ID, points int) *user.User {
		u, err := user.New(id, "", time.Now())
		require.NoError(t, err)
		u.Points = points
		return u
	}
	return []*user.User{mk("dave", 5), mk("bob", 20), mk("alice", 20), mk("carol", 40)}
}

func TestRank_OrderAndTieBreak(t *testing.T) {
	in := users(t)
	got := Rank(in, 0)

	require.Len(t, got, 4)
	want := []user.ID{"carol", "alice", "bob", "dave"}
	for i, s := range got {
		assert.Equal(t, i+1, s.Rank)
		assert.Equal(t, want[i], s.UserID)
	}
	assert.Equal(t, user.ID("dave"), in[0].ID, "input order is untouched")

	top := Rank(in, 2)
	require.Len(t, top, 2)
	assert.Equal(t, user.ID("alice"), top[1].UserID)

	assert.Len(t, Rank(in, 10), 4)
	assert.Empty(t, Rank(nil, 3))
}

func TestNewArchive(t *testing.T) {
	at := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	a := NewArchive("s1", users(t), at)

	assert.Equal(t, Rank(users(t), 0), a.Standings)
	assert.Equal(t, Summary{ID: "s1", ResetAt: at, UserCount: 4}, a.Summary())

	c := a.Clone()
	c.Standings[0].Points = 0
	assert.Equal(t, 40, a.Standings[0].Points)
}
