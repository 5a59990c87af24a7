// Package command contains write operations (CQRS - Commands).
//
// Every handler runs its reads and writes inside one ledger.Store.Update under
// the narrowest lock scope the operation needs, and publishes domain events
// only after the transaction has committed.
package command

import (
	"log/slog"

	"github.com/alem-hub/alem-rewards/internal/domain/ledger"
	"github.com/alem-hub/alem-rewards/internal/domain/progression"
	"github.com/alem-hub/alem-rewards/internal/domain/shared"
	"github.com/alem-hub/alem-rewards/pkg/timeutil"
)

// Deps are the collaborators shared by all command handlers.
type Deps struct {
	Store     ledger.Store
	Levels    progression.Table
	Clock     timeutil.Clock
	Publisher shared.EventPublisher
	Logger    *slog.Logger
}

// withDefaults fills unset optional collaborators.
func (d Deps) withDefaults() Deps {
	if d.Levels.IsZero() {
		d.Levels = progression.DefaultTable()
	}
	if d.Clock == nil {
		d.Clock = timeutil.SystemClock{}
	}
	if d.Publisher == nil {
		d.Publisher = shared.NopPublisher{}
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	return d
}

// publish sends committed events. A failing subscriber never undoes the commit.
func (d Deps) publish(events ...shared.Event) {
	for _, e := range events {
		if err := d.Publisher.Publish(e); err != nil {
			d.Logger.Warn("failed to publish event",
				"event", e.EventType(),
				"aggregate_id", e.AggregateID(),
				"error", err,
			)
		}
	}
}
