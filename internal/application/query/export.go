package query

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/alem-hub/alem-rewards/internal/domain/ledger"
)

// ══════════════════════════════════════════════════════════════════════════════
// EXPORT QUERY
// A tabular snapshot of all users. Rendering to a file format is up to the
// caller.
// ══════════════════════════════════════════════════════════════════════════════

// ExportColumns are the columns of the user export, in order.
var ExportColumns = []string{
	"user_id",
	"display_name",
	"points",
	"level",
	"achievements",
	"last_active",
	"created_at",
}

// Table is a column header plus string rows.
type Table struct {
	Columns []string
	Rows    [][]string

	// TakenAt is when the snapshot was read.
	TakenAt time.Time
}

// ExportHandler builds the user export.
type ExportHandler struct {
	deps Deps
}

// NewExportHandler creates a new ExportHandler.
func NewExportHandler(deps Deps) *ExportHandler {
	return &ExportHandler{deps: deps.withDefaults()}
}

// Handle reads every user, ordered by id. Achievements are a
// semicolon-separated list of ids in ascending order.
func (h *ExportHandler) Handle(ctx context.Context) (*Table, error) {
	t := &Table{Columns: append([]string(nil), ExportColumns...), TakenAt: h.deps.Clock.Now()}

	err := h.deps.Store.View(ctx, func(tx ledger.Tx) error {
		users, err := tx.Users(ctx)
		if err != nil {
			return err
		}

		t.Rows = make([][]string, 0, len(users))
		for _, u := range users {
			ids := u.AchievementIDs()
			names := make([]string, len(ids))
			for i, id := range ids {
				names[i] = string(id)
			}

			t.Rows = append(t.Rows, []string{
				string(u.ID),
				u.DisplayName,
				strconv.Itoa(u.Points),
				strconv.Itoa(u.Level),
				strings.Join(names, ";"),
				u.LastActive.UTC().Format(time.RFC3339),
				u.CreatedAt.UTC().Format(time.RFC3339),
			})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("export: %w", err)
	}
	return t, nil
}
