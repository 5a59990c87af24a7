// Package shop contains the redemption catalog: finite or unlimited stock
// items bought with points.
package shop

import (
	"strings"
	"time"

	"github.com/alem-hub/alem-rewards/internal/domain/shared"
	"github.com/alem-hub/alem-rewards/internal/domain/user"
)

// Unlimited marks an item that never runs out.
const Unlimited = -1

// ItemID represents a unique identifier for a shop item.
type ItemID string

// IsValid checks if the item ID is valid.
func (id ItemID) IsValid() bool {
	return id != ""
}

// Item is an entry of the shop.
type Item struct {
	ID          ItemID
	Name        string
	Description string
	Cost        int
	Stock       int // -1 = unlimited
	CreatedAt   time.Time
}

// NewItemParams holds the inputs for NewItem.
type NewItemParams struct {
	ID          ItemID
	Name        string
	Description string
	Cost        int
	Stock       int
}

// NewItem validates params and builds an item.
func NewItem(p NewItemParams, now time.Time) (*Item, error) {
	name := strings.TrimSpace(p.Name)
	switch {
	case !p.ID.IsValid():
		return nil, shared.WrapError("shop", "Validate", shared.ErrInvalidItem, "id is required", nil)
	case name == "":
		return nil, shared.WrapError("shop", "Validate", shared.ErrInvalidItem, "name is required", nil)
	case p.Cost < 0:
		return nil, shared.WrapError("shop", "Validate", shared.ErrInvalidItem, "cost must be non-negative", nil)
	case p.Stock < Unlimited:
		return nil, shared.WrapError("shop", "Validate", shared.ErrInvalidItem, "stock must be >= -1", nil)
	}

	return &Item{
		ID:          p.ID,
		Name:        name,
		Description: strings.TrimSpace(p.Description),
		Cost:        p.Cost,
		Stock:       p.Stock,
		CreatedAt:   now,
	}, nil
}

// IsUnlimited reports whether the item never runs out.
func (i *Item) IsUnlimited() bool {
	return i.Stock == Unlimited
}

// InStock reports whether at least one unit is available.
func (i *Item) InStock() bool {
	return i.IsUnlimited() || i.Stock > 0
}

// CheckRedeemable validates a redemption by a user holding points.
// Stock is checked before balance.
func (i *Item) CheckRedeemable(points int) error {
	if !i.InStock() {
		return shared.ErrOutOfStock
	}
	if points < i.Cost {
		return shared.ErrInsufficientPoints
	}
	return nil
}

// Take removes one unit from finite stock.
func (i *Item) Take() error {
	if i.IsUnlimited() {
		return nil
	}
	if i.Stock <= 0 {
		return shared.ErrStockNegative
	}
	i.Stock--
	return nil
}

// Restock adds units to finite stock. Restocking an unlimited item is a no-op;
// passing Unlimited converts the item to unlimited.
func (i *Item) Restock(units int) error {
	if units == Unlimited {
		i.Stock = Unlimited
		return nil
	}
	if units < 0 {
		return shared.WrapError("shop", "Restock", shared.ErrInvalidItem, "units must be positive", nil)
	}
	if !i.IsUnlimited() {
		i.Stock += units
	}
	return nil
}

// Clone returns a copy.
func (i *Item) Clone() *Item {
	if i == nil {
		return nil
	}
	c := *i
	return &c
}

// Redemption is the audit record of a successful purchase.
type Redemption struct {
	ID         string
	UserID     user.ID
	ItemID     ItemID
	Cost       int
	RedeemedAt time.Time
}
