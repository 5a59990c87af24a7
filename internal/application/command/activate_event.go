package command

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/alem-hub/alem-rewards/internal/domain/event"
	"github.com/alem-hub/alem-rewards/internal/domain/ledger"
	"github.com/alem-hub/alem-rewards/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// ACTIVATE EVENT COMMAND
// Starts a score multiplier window now. Any previously active event is
// deactivated in the same transaction.
// ══════════════════════════════════════════════════════════════════════════════

// ActivateEventCommand contains the data to start a multiplier event.
type ActivateEventCommand struct {
	Name          string
	Multiplier    float64
	DurationHours float64
}

// Validate validates the command.
func (c ActivateEventCommand) Validate() error {
	if math.IsNaN(c.DurationHours) || math.IsInf(c.DurationHours, 0) || c.DurationHours <= 0 {
		return shared.WrapError("event", "Activate", shared.ErrInvalidEvent, "duration must be positive", nil)
	}
	if c.DurationHours > event.MaxDuration.Hours() {
		return shared.WrapError("event", "Activate", shared.ErrInvalidEvent,
			fmt.Sprintf("duration must not exceed %g hours", event.MaxDuration.Hours()), nil)
	}
	if math.IsNaN(c.Multiplier) || math.IsInf(c.Multiplier, 0) || c.Multiplier <= 0 {
		return shared.WrapError("event", "Activate", shared.ErrInvalidEvent, "multiplier must be positive", nil)
	}
	if c.Multiplier > event.MaxMultiplier {
		return shared.WrapError("event", "Activate", shared.ErrInvalidEvent,
			fmt.Sprintf("multiplier must not exceed %g", event.MaxMultiplier), nil)
	}
	return nil
}

// Duration converts DurationHours.
func (c ActivateEventCommand) Duration() time.Duration {
	return time.Duration(c.DurationHours * float64(time.Hour))
}

// ActivateEventResult contains the new event.
type ActivateEventResult struct {
	Event *event.Event

	// Replaced counts the events that were flagged active before.
	Replaced int
}

// ActivateEventHandler handles the ActivateEventCommand.
type ActivateEventHandler struct {
	deps Deps
}

// NewActivateEventHandler creates a new ActivateEventHandler.
func NewActivateEventHandler(deps Deps) *ActivateEventHandler {
	return &ActivateEventHandler{deps: deps.withDefaults()}
}

// Handle executes the activate event command under the exclusive events lock.
func (h *ActivateEventHandler) Handle(ctx context.Context, cmd ActivateEventCommand) (*ActivateEventResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	now := h.deps.Clock.Now()
	ev, err := event.New(event.ID(uuid.NewString()), cmd.Name, cmd.Multiplier, cmd.Duration(), now)
	if err != nil {
		return nil, err
	}

	var replaced int
	err = h.deps.Store.Update(ctx, ledger.Scope{Events: ledger.LockExclusive}, func(tx ledger.Tx) error {
		n, err := tx.DeactivateEvents(ctx)
		if err != nil {
			return err
		}
		replaced = n
		return tx.CreateEvent(ctx, ev)
	})
	if err != nil {
		return nil, fmt.Errorf("activate_event: %w", err)
	}

	h.deps.Logger.Info("multiplier event activated",
		"event_id", ev.ID,
		"name", ev.Name,
		"multiplier", ev.Multiplier,
		"ends_at", ev.EndTime,
		"replaced", replaced,
	)

	var events []shared.Event
	if replaced > 0 {
		events = append(events, shared.NewMultiplierDeactivatedEvent(replaced, now))
	}
	events = append(events, shared.NewMultiplierActivatedEvent(string(ev.ID), ev.Name, ev.Multiplier, ev.EndTime, now))
	h.deps.publish(events...)

	return &ActivateEventResult{Event: ev, Replaced: replaced}, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// DEACTIVATE EVENTS COMMAND
// ══════════════════════════════════════════════════════════════════════════════

// DeactivateEventsHandler clears every active flag.
type DeactivateEventsHandler struct {
	deps Deps
}

// NewDeactivateEventsHandler creates a new DeactivateEventsHandler.
func NewDeactivateEventsHandler(deps Deps) *DeactivateEventsHandler {
	return &DeactivateEventsHandler{deps: deps.withDefaults()}
}

// Handle deactivates all events and returns how many were flagged.
func (h *DeactivateEventsHandler) Handle(ctx context.Context) (int, error) {
	var n int
	err := h.deps.Store.Update(ctx, ledger.Scope{Events: ledger.LockExclusive}, func(tx ledger.Tx) error {
		var err error
		n, err = tx.DeactivateEvents(ctx)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("deactivate_events: %w", err)
	}

	if n > 0 {
		h.deps.Logger.Info("multiplier events deactivated", "count", n)
		h.deps.publish(shared.NewMultiplierDeactivatedEvent(n, h.deps.Clock.Now()))
	}
	return n, nil
}
