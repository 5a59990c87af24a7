package query

import (
	"context"
	"fmt"

	"github.com/alem-hub/alem-rewards/internal/domain/ledger"
	"github.com/alem-hub/alem-rewards/internal/domain/season"
)

// ══════════════════════════════════════════════════════════════════════════════
// ARCHIVE QUERIES
// ══════════════════════════════════════════════════════════════════════════════

// ArchivesHandler reads season archives.
type ArchivesHandler struct {
	deps Deps
}

// NewArchivesHandler creates a new ArchivesHandler.
func NewArchivesHandler(deps Deps) *ArchivesHandler {
	return &ArchivesHandler{deps: deps.withDefaults()}
}

// List returns archive summaries, newest first.
func (h *ArchivesHandler) List(ctx context.Context) ([]season.Summary, error) {
	var out []season.Summary
	err := h.deps.Store.View(ctx, func(tx ledger.Tx) error {
		var err error
		out, err = tx.Archives(ctx)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("list_archives: %w", err)
	}
	return out, nil
}

// Get returns one archive with its standings. ErrUnknownArchive when missing.
func (h *ArchivesHandler) Get(ctx context.Context, id string) (*season.Archive, error) {
	var a *season.Archive
	err := h.deps.Store.View(ctx, func(tx ledger.Tx) error {
		var err error
		a, err = tx.Archive(ctx, id)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("get_archive: %w", err)
	}
	return a, nil
}
