package command

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/alem-hub/alem-rewards/internal/domain/ledger"
	"github.com/alem-hub/alem-rewards/internal/domain/season"
	"github.com/alem-hub/alem-rewards/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// RESET SEASON COMMAND
// Archives the standings of every user, then zeroes points and levels and
// clears the completion log. Achievements are kept. This is the only command
// holding the global lock exclusively.
// ══════════════════════════════════════════════════════════════════════════════

// ResetSeasonResult describes the archive written by the reset.
type ResetSeasonResult struct {
	ArchiveID string
	Users     int
}

// ResetSeasonHandler handles the season reset.
type ResetSeasonHandler struct {
	deps Deps
}

// NewResetSeasonHandler creates a new ResetSeasonHandler.
func NewResetSeasonHandler(deps Deps) *ResetSeasonHandler {
	return &ResetSeasonHandler{deps: deps.withDefaults()}
}

// Handle executes the reset.
func (h *ResetSeasonHandler) Handle(ctx context.Context) (*ResetSeasonResult, error) {
	now := h.deps.Clock.Now()
	id := uuid.NewString()

	var archive *season.Archive
	err := h.deps.Store.Update(ctx, ledger.Scope{ExclusiveGlobal: true}, func(tx ledger.Tx) error {
		users, err := tx.Users(ctx)
		if err != nil {
			return err
		}

		archive = season.NewArchive(id, users, now)
		if err := tx.CreateArchive(ctx, archive); err != nil {
			return err
		}
		return tx.ResetStandings(ctx)
	})
	if err != nil {
		return nil, fmt.Errorf("reset_season: %w", err)
	}

	res := &ResetSeasonResult{ArchiveID: id, Users: len(archive.Standings)}

	h.deps.Logger.Info("season reset", "archive_id", id, "users", res.Users)
	h.deps.publish(shared.NewSeasonResetEvent(id, res.Users, now))

	return res, nil
}
