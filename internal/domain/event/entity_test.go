package event

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/alem-rewards/internal/domain/shared"
)

var start = time.Date(2025, 1, 6, 10, 0, 0, 0, time.UTC)

func TestNew_Validation(t *testing.T) {
	e, err := New("e1", " Double XP ", 2, 48*time.Hour, start)
	require.NoError(t, err)
	assert.Equal(t, "Double XP", e.Name)
	assert.True(t, e.Active)
	assert.Equal(t, start.Add(48*time.Hour), e.EndTime)

	tests := []struct {
		name     string
		id       ID
		title    string
		mult     float64
		duration time.Duration
	}{
		{"missing id", "", "x", 2, time.Hour},
		{"blank name", "e", " ", 2, time.Hour},
		{"zero multiplier", "e", "x", 0, time.Hour},
		{"negative multiplier", "e", "x", -1, time.Hour},
		{"nan multiplier", "e", "x", math.NaN(), time.Hour},
		{"zero duration", "e", "x", 2, 0},
		{"huge multiplier", "e", "x", 1e20, time.Hour},
		{"multiplier above cap", "e", "x", MaxMultiplier + 0.5, time.Hour},
		{"duration above cap", "e", "x", 2, MaxDuration + time.Hour},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.id, tt.title, tt.mult, tt.duration, start)
			assert.ErrorIs(t, err, shared.ErrInvalidEvent)
		})
	}
}

func TestEvent_InEffect(t *testing.T) {
	e, err := New("e1", "x", 2, time.Hour, start)
	require.NoError(t, err)

	assert.False(t, e.InEffect(start.Add(-time.Nanosecond)))
	assert.True(t, e.InEffect(start))
	assert.True(t, e.InEffect(start.Add(59*time.Minute)))
	assert.False(t, e.InEffect(start.Add(time.Hour)), "the end is exclusive")

	e.Active = false
	assert.False(t, e.InEffect(start))
}

func TestResolve(t *testing.T) {
	a, err := New("a", "A", 2, time.Hour, start)
	require.NoError(t, err)
	b, err := New("b", "B", 3, time.Hour, start)
	require.NoError(t, err)

	got, err := Resolve(nil, start)
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.Equal(t, DefaultMultiplier, Multiplier(got))

	got, err = Resolve([]*Event{a}, start)
	require.NoError(t, err)
	assert.Equal(t, 2.0, Multiplier(got))

	// Flagged but expired resolves to no event.
	got, err = Resolve([]*Event{a}, start.Add(2*time.Hour))
	require.NoError(t, err)
	assert.Nil(t, got)

	_, err = Resolve([]*Event{a, b}, start)
	assert.ErrorIs(t, err, shared.ErrManyActive)
	assert.True(t, shared.IsConsistency(err))

	b.Active = false
	got, err = Resolve([]*Event{a, b}, start)
	require.NoError(t, err)
	assert.Equal(t, ID("a"), got.ID)
}
