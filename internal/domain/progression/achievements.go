package progression

import (
	"sort"
	"time"

	"github.com/alem-hub/alem-rewards/internal/domain/user"
)

// Trigger describes what just happened to a user.
type Trigger struct {
	// MissionCompleted is set when the change came from a mission completion.
	MissionCompleted bool

	// Level is the user's level after the change.
	Level int
}

// Evaluate returns the catalog achievements the trigger unlocks that the user
// does not hold yet, ordered by id. It does not mutate the user.
func Evaluate(catalog []*user.Achievement, u *user.User, trig Trigger) []*user.Achievement {
	var unlocked []*user.Achievement

	for _, a := range catalog {
		if u.Has(a.ID) {
			continue
		}

		switch a.Trigger.Kind {
		case user.TriggerFirstMission:
			if trig.MissionCompleted {
				unlocked = append(unlocked, a)
			}
		case user.TriggerLevel:
			if trig.Level >= a.Trigger.Level {
				unlocked = append(unlocked, a)
			}
		}
	}

	sort.Slice(unlocked, func(i, j int) bool { return unlocked[i].ID < unlocked[j].ID })
	return unlocked
}

// Grant evaluates the trigger and records the unlocks on the user.
func Grant(catalog []*user.Achievement, u *user.User, trig Trigger, at time.Time) []*user.Achievement {
	unlocked := Evaluate(catalog, u, trig)
	for _, a := range unlocked {
		u.Unlock(a.ID, at)
	}
	return unlocked
}
