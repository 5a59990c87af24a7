package progression

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/alem-rewards/internal/domain/shared"
	"github.com/alem-hub/alem-rewards/internal/domain/user"
)

func TestTable_LevelOf(t *testing.T) {
	table := DefaultTable()

	tests := []struct {
		points int
		level  int
	}{
		{0, 1},
		{-5, 1},
		{9, 1},
		{10, 2},
		{24, 2},
		{25, 3},
		{99, 4},
		{100, 5},
		{999, 7},
		{1000, 8},
		{1_000_000, 8},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.level, table.LevelOf(tt.points), "points=%d", tt.points)
	}
	assert.Equal(t, 8, table.MaxLevel())
}

func TestTable_LevelOfIsMonotonic(t *testing.T) {
	table := DefaultTable()
	prev := table.LevelOf(0)
	for p := 1; p <= 1200; p++ {
		l := table.LevelOf(p)
		require.GreaterOrEqual(t, l, prev, "points=%d", p)
		prev = l
	}
}

func TestNewTable_RejectsBadThresholds(t *testing.T) {
	for _, th := range [][]int{
		{0, 10},
		{10, 10},
		{25, 10},
		{-1},
	} {
		_, err := NewTable(th)
		assert.ErrorIs(t, err, ErrInvalidThresholds, "%v", th)
	}

	flat, err := NewTable(nil)
	require.NoError(t, err)
	assert.Equal(t, 1, flat.MaxLevel())
	assert.Equal(t, 1, flat.LevelOf(5000))
	assert.False(t, flat.IsZero())
	assert.True(t, Table{}.IsZero())
}

func TestParseThresholds(t *testing.T) {
	got, err := ParseThresholds(" 5, 15 ,40")
	require.NoError(t, err)
	assert.Equal(t, []int{5, 15, 40}, got)

	got, err = ParseThresholds("")
	require.NoError(t, err)
	assert.Nil(t, got)

	_, err = ParseThresholds("5,ten")
	assert.ErrorIs(t, err, ErrInvalidThresholds)
}

func TestTable_Threshold(t *testing.T) {
	table := DefaultTable()

	th, ok := table.Threshold(1)
	assert.True(t, ok)
	assert.Zero(t, th)

	th, ok = table.Threshold(5)
	assert.True(t, ok)
	assert.Equal(t, 100, th)

	_, ok = table.Threshold(9)
	assert.False(t, ok)
	_, ok = table.Threshold(0)
	assert.False(t, ok)
}

func TestTable_ProgressToNext(t *testing.T) {
	table := DefaultTable()

	p := table.ProgressToNext(15)
	assert.Equal(t, 2, p.Level)
	assert.Equal(t, 10, p.LevelFloor)
	assert.Equal(t, 25, p.NextThreshold)
	assert.Equal(t, 10, p.Remaining)
	assert.InDelta(t, 1.0/3.0, p.Fraction, 1e-9)
	assert.False(t, p.MaxReached)

	p = table.ProgressToNext(0)
	assert.Equal(t, 1, p.Level)
	assert.Equal(t, 10, p.Remaining)
	assert.Zero(t, p.Fraction)

	p = table.ProgressToNext(5000)
	assert.Equal(t, 8, p.Level)
	assert.True(t, p.MaxReached)
	assert.Zero(t, p.Remaining)
	assert.Equal(t, 1.0, p.Fraction)
}

func TestTable_Apply(t *testing.T) {
	table := DefaultTable()
	u, err := user.New("u1", "", time.Now())
	require.NoError(t, err)

	change, err := table.Apply(u, 20)
	require.NoError(t, err)
	assert.True(t, change.LeveledUp())
	assert.Equal(t, 1, change.OldLevel)
	assert.Equal(t, 2, change.NewLevel)
	assert.Equal(t, 20, u.Points)

	change, err = table.Apply(u, -15)
	require.NoError(t, err)
	assert.False(t, change.LeveledUp())
	assert.Equal(t, 1, u.Level, "level follows the balance down")

	_, err = table.Apply(u, -6)
	assert.ErrorIs(t, err, shared.ErrNegativeBalance)
	assert.ErrorIs(t, err, shared.ErrConsistency)
	assert.Equal(t, 5, u.Points, "a rejected delta leaves the user untouched")
}
