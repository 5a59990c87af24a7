package query

import (
	"context"
	"fmt"

	"github.com/alem-hub/alem-rewards/internal/domain/ledger"
	"github.com/alem-hub/alem-rewards/internal/domain/shop"
)

// ══════════════════════════════════════════════════════════════════════════════
// LIST SHOP QUERY
// ══════════════════════════════════════════════════════════════════════════════

// ListShopHandler lists shop items ordered by id.
type ListShopHandler struct {
	deps Deps
}

// NewListShopHandler creates a new ListShopHandler.
func NewListShopHandler(deps Deps) *ListShopHandler {
	return &ListShopHandler{deps: deps.withDefaults()}
}

// Handle executes the query. Sold-out items are included.
func (h *ListShopHandler) Handle(ctx context.Context) ([]*shop.Item, error) {
	var items []*shop.Item
	err := h.deps.Store.View(ctx, func(tx ledger.Tx) error {
		var err error
		items, err = tx.Items(ctx)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("list_shop: %w", err)
	}
	return items, nil
}
