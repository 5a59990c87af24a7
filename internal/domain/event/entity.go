// Package event models time-bounded global score multipliers. At most one
// event is flagged active at a time, and expiry is evaluated at read time.
package event

import (
	"fmt"
	"strings"
	"time"

	"github.com/alem-hub/alem-rewards/internal/domain/shared"
)

// DefaultMultiplier applies when no event is in effect.
const DefaultMultiplier = 1.0

// Bounds on a new event.
const (
	MaxMultiplier = 100.0
	MaxDuration   = 366 * 24 * time.Hour
)

// ID represents a unique identifier for an event.
type ID string

// Event is a score multiplier window [StartTime, EndTime).
type Event struct {
	ID         ID
	Name       string
	Multiplier float64
	Active     bool
	StartTime  time.Time
	EndTime    time.Time
}

// New validates the inputs and returns an active event starting at now.
func New(id ID, name string, multiplier float64, duration time.Duration, now time.Time) (*Event, error) {
	name = strings.TrimSpace(name)
	switch {
	case id == "":
		return nil, shared.WrapError("event", "Validate", shared.ErrInvalidEvent, "id is required", nil)
	case name == "":
		return nil, shared.WrapError("event", "Validate", shared.ErrInvalidEvent, "name is required", nil)
	case !(multiplier > 0):
		return nil, shared.WrapError("event", "Validate", shared.ErrInvalidEvent, "multiplier must be positive", nil)
	case multiplier > MaxMultiplier:
		return nil, shared.WrapError("event", "Validate", shared.ErrInvalidEvent, fmt.Sprintf("multiplier must not exceed %g", MaxMultiplier), nil)
	case duration <= 0:
		return nil, shared.WrapError("event", "Validate", shared.ErrInvalidEvent, "duration must be positive", nil)
	case duration > MaxDuration:
		return nil, shared.WrapError("event", "Validate", shared.ErrInvalidEvent, fmt.Sprintf("duration must not exceed %s", MaxDuration), nil)
	}

	return &Event{
		ID:         id,
		Name:       name,
		Multiplier: multiplier,
		Active:     true,
		StartTime:  now,
		EndTime:    now.Add(duration),
	}, nil
}

// InEffect reports whether the event is flagged active and now is in its window.
func (e *Event) InEffect(now time.Time) bool {
	return e.Active && !now.Before(e.StartTime) && now.Before(e.EndTime)
}

// Resolve returns the event in effect at now, or nil. More than one flagged
// event is an invariant violation and is reported instead of guessed at.
func Resolve(events []*Event, now time.Time) (*Event, error) {
	var flagged *Event
	for _, e := range events {
		if !e.Active {
			continue
		}
		if flagged != nil {
			return nil, shared.ErrManyActive
		}
		flagged = e
	}

	if flagged == nil || !flagged.InEffect(now) {
		return nil, nil
	}
	return flagged, nil
}

// Multiplier returns the multiplier of e, or DefaultMultiplier for nil.
func Multiplier(e *Event) float64 {
	if e == nil {
		return DefaultMultiplier
	}
	return e.Multiplier
}

// Clone returns a copy.
func (e *Event) Clone() *Event {
	if e == nil {
		return nil
	}
	c := *e
	return &c
}
