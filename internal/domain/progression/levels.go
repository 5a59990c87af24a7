// Package progression maps points to levels and decides which achievements
// a state change unlocks. Everything here is a pure function of its inputs.
package progression

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/alem-hub/alem-rewards/internal/domain/shared"
	"github.com/alem-hub/alem-rewards/internal/domain/user"
)

// DefaultThresholds are the point thresholds for level 2, 3, 4, ...
// Level 1 always starts at 0 points.
var DefaultThresholds = []int{10, 25, 50, 100, 250, 500, 1000}

// ErrInvalidThresholds is returned for tables that are not strictly increasing.
var ErrInvalidThresholds = errors.New("progression: thresholds must be positive and strictly increasing")

// Table is the canonical level rule: level L is reached at thresholds[L-1] points,
// with level 1 at 0. The level of a balance is the greatest L whose threshold
// does not exceed it.
type Table struct {
	thresholds []int // thresholds[0] == 0 (level 1)
}

// NewTable builds a table from the thresholds of level 2 upwards.
func NewTable(thresholds []int) (Table, error) {
	t := Table{thresholds: make([]int, 0, len(thresholds)+1)}
	t.thresholds = append(t.thresholds, 0)

	prev := 0
	for _, th := range thresholds {
		if th <= prev {
			return Table{}, fmt.Errorf("%w: %v", ErrInvalidThresholds, thresholds)
		}
		t.thresholds = append(t.thresholds, th)
		prev = th
	}
	return t, nil
}

// DefaultTable returns the table built from DefaultThresholds.
func DefaultTable() Table {
	t, _ := NewTable(DefaultThresholds)
	return t
}

// ParseThresholds parses "10,25,50" into a slice of thresholds.
func ParseThresholds(s string) ([]int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}

	parts := strings.Split(s, ",")
	out := make([]int, 0, len(parts))
	for _, p := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, fmt.Errorf("%w: %q", ErrInvalidThresholds, p)
		}
		out = append(out, v)
	}
	return out, nil
}

// IsZero reports an unconfigured table.
func (t Table) IsZero() bool {
	return len(t.thresholds) == 0
}

// MaxLevel returns the highest defined level.
func (t Table) MaxLevel() int {
	if len(t.thresholds) == 0 {
		return user.MinLevel
	}
	return len(t.thresholds)
}

// Threshold returns the points needed for the given level.
func (t Table) Threshold(level int) (int, bool) {
	if level < user.MinLevel || level > t.MaxLevel() {
		return 0, false
	}
	if len(t.thresholds) == 0 {
		return 0, true
	}
	return t.thresholds[level-1], true
}

// LevelOf returns the level for a point balance. Monotonic in points.
func (t Table) LevelOf(points int) int {
	if points <= 0 || len(t.thresholds) == 0 {
		return user.MinLevel
	}
	// first index whose threshold is > points
	i := sort.Search(len(t.thresholds), func(i int) bool { return t.thresholds[i] > points })
	return i // levels are 1-based, so the count of thresholds <= points
}

// Progress describes how far a balance is from the next level.
type Progress struct {
	Level int

	// LevelFloor is the threshold of the current level.
	LevelFloor int

	// NextThreshold is the threshold of the next level, 0 when MaxReached.
	NextThreshold int

	// Remaining is the number of points still needed.
	Remaining int

	Fraction   float64
	MaxReached bool
}

// ProgressToNext computes the progress of points towards the next level.
func (t Table) ProgressToNext(points int) Progress {
	level := t.LevelOf(points)
	floor, _ := t.Threshold(level)

	next, ok := t.Threshold(level + 1)
	if !ok {
		return Progress{Level: level, LevelFloor: floor, Fraction: 1, MaxReached: true}
	}

	span := next - floor
	done := points - floor
	if done < 0 {
		done = 0
	}

	return Progress{
		Level:         level,
		LevelFloor:    floor,
		NextThreshold: next,
		Remaining:     next - points,
		Fraction:      float64(done) / float64(span),
	}
}

// LevelChange is the outcome of applying a point delta.
type LevelChange struct {
	OldPoints int
	NewPoints int
	OldLevel  int
	NewLevel  int
}

// LeveledUp reports a level increase.
func (c LevelChange) LeveledUp() bool {
	return c.NewLevel > c.OldLevel
}

// Apply adds delta to the user's balance and re-derives the level.
// The balance may never go below zero.
func (t Table) Apply(u *user.User, delta int) (LevelChange, error) {
	change := LevelChange{OldPoints: u.Points, OldLevel: u.Level}

	newPoints := u.Points + delta
	if newPoints < 0 {
		return change, shared.ErrNegativeBalance
	}

	u.Points = newPoints
	u.Level = t.LevelOf(newPoints)

	change.NewPoints = u.Points
	change.NewLevel = u.Level
	return change, nil
}
