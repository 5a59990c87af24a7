package query

import (
	"context"
	"fmt"

	"github.com/alem-hub/alem-rewards/internal/domain/event"
	"github.com/alem-hub/alem-rewards/internal/domain/ledger"
)

// ══════════════════════════════════════════════════════════════════════════════
// ACTIVE MULTIPLIER QUERY
// ══════════════════════════════════════════════════════════════════════════════

// ActiveMultiplierResult is the multiplier in effect now.
type ActiveMultiplierResult struct {
	Multiplier float64

	// Event is nil when no event is in effect, including a flagged event
	// whose window has passed.
	Event *event.Event
}

// ActiveMultiplierHandler resolves the event in effect.
type ActiveMultiplierHandler struct {
	deps Deps
}

// NewActiveMultiplierHandler creates a new ActiveMultiplierHandler.
func NewActiveMultiplierHandler(deps Deps) *ActiveMultiplierHandler {
	return &ActiveMultiplierHandler{deps: deps.withDefaults()}
}

// Handle executes the query.
func (h *ActiveMultiplierHandler) Handle(ctx context.Context) (*ActiveMultiplierResult, error) {
	now := h.deps.Clock.Now()

	var res ActiveMultiplierResult
	err := h.deps.Store.View(ctx, func(tx ledger.Tx) error {
		flagged, err := tx.FlaggedEvents(ctx)
		if err != nil {
			return err
		}
		active, err := event.Resolve(flagged, now)
		if err != nil {
			return err
		}
		res = ActiveMultiplierResult{Multiplier: event.Multiplier(active), Event: active}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("active_multiplier: %w", err)
	}
	return &res, nil
}
