package query

import (
	"context"
	"fmt"

	"github.com/alem-hub/alem-rewards/internal/domain/ledger"
	"github.com/alem-hub/alem-rewards/internal/domain/season"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET RANKING QUERY
// Points descending, ties broken by user id ascending.
// ══════════════════════════════════════════════════════════════════════════════

// DefaultRankingLimit is used when the query asks for n <= 0.
const DefaultRankingLimit = 10

// MaxRankingLimit caps a single page.
const MaxRankingLimit = 1000

// GetRankingQuery asks for the top N users.
type GetRankingQuery struct {
	Limit int
}

// GetRankingHandler handles the GetRankingQuery.
type GetRankingHandler struct {
	deps Deps
}

// NewGetRankingHandler creates a new GetRankingHandler.
func NewGetRankingHandler(deps Deps) *GetRankingHandler {
	return &GetRankingHandler{deps: deps.withDefaults()}
}

// Handle executes the query.
func (h *GetRankingHandler) Handle(ctx context.Context, q GetRankingQuery) ([]season.Standing, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = DefaultRankingLimit
	}
	if limit > MaxRankingLimit {
		limit = MaxRankingLimit
	}

	if h.deps.Ranking != nil {
		standings, err := h.deps.Ranking.TopOrLoad(ctx, limit, func(ctx context.Context) ([]season.Standing, error) {
			return h.load(ctx, 0)
		})
		if err != nil {
			return nil, fmt.Errorf("get_ranking: %w", err)
		}
		return standings, nil
	}

	standings, err := h.load(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("get_ranking: %w", err)
	}
	return standings, nil
}

// load reads the ranking from the ledger. limit <= 0 reads all users.
func (h *GetRankingHandler) load(ctx context.Context, limit int) ([]season.Standing, error) {
	var standings []season.Standing
	err := h.deps.Store.View(ctx, func(tx ledger.Tx) error {
		users, err := tx.RankUsers(ctx, limit)
		if err != nil {
			return err
		}
		standings = season.Rank(users, limit)
		return nil
	})
	return standings, err
}
