package command

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/alem-hub/alem-rewards/internal/domain/ledger"
	"github.com/alem-hub/alem-rewards/internal/domain/progression"
	"github.com/alem-hub/alem-rewards/internal/domain/shared"
	"github.com/alem-hub/alem-rewards/internal/domain/shop"
	"github.com/alem-hub/alem-rewards/internal/domain/user"
)

// ══════════════════════════════════════════════════════════════════════════════
// REDEEM ITEM COMMAND
// Spends points on a shop item. Stock and balance are re-checked under the
// user and item locks, so finite stock never goes below zero.
// ══════════════════════════════════════════════════════════════════════════════

// RedeemItemCommand contains the data to redeem an item.
type RedeemItemCommand struct {
	UserID string
	ItemID string
}

// Validate validates the command.
func (c RedeemItemCommand) Validate() error {
	if !user.ID(c.UserID).IsValid() {
		return shared.ErrInvalidUserID
	}
	if !shop.ItemID(c.ItemID).IsValid() {
		return shared.WrapError("shop", "Redeem", shared.ErrInvalidItem, "item_id is required", nil)
	}
	return nil
}

// RedeemItemResult contains the stored redemption.
type RedeemItemResult struct {
	Redemption shop.Redemption

	// Points and Level are the user's standing after the debit.
	Points int
	Level  int

	// RemainingStock is shop.Unlimited for unlimited items.
	RemainingStock int
}

// RedeemItemHandler handles the RedeemItemCommand.
type RedeemItemHandler struct {
	deps Deps
}

// NewRedeemItemHandler creates a new RedeemItemHandler.
func NewRedeemItemHandler(deps Deps) *RedeemItemHandler {
	return &RedeemItemHandler{deps: deps.withDefaults()}
}

// Handle executes the redeem item command.
//
// Stock is checked before the balance: an empty item reports ErrOutOfStock
// even to a user who could not afford it.
func (h *RedeemItemHandler) Handle(ctx context.Context, cmd RedeemItemCommand) (*RedeemItemResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	uid := user.ID(cmd.UserID)
	iid := shop.ItemID(cmd.ItemID)

	var (
		now    time.Time
		res    RedeemItemResult
		change progression.LevelChange
		name   string
	)

	scope := ledger.Scope{
		Users: []user.ID{uid},
		Items: []shop.ItemID{iid},
	}
	err := h.deps.Store.Update(ctx, scope, func(tx ledger.Tx) error {
		now = h.deps.Clock.Now()

		u, err := tx.User(ctx, uid)
		if err != nil {
			return err
		}
		it, err := tx.Item(ctx, iid)
		if err != nil {
			return err
		}

		if err := it.CheckRedeemable(u.Points); err != nil {
			return err
		}
		if err := it.Take(); err != nil {
			return err
		}
		change, err = h.deps.Levels.Apply(u, -it.Cost)
		if err != nil {
			return err
		}
		u.Touch(now)

		r := shop.Redemption{
			ID:         uuid.NewString(),
			UserID:     uid,
			ItemID:     iid,
			Cost:       it.Cost,
			RedeemedAt: now,
		}

		if err := tx.SaveItem(ctx, it); err != nil {
			return err
		}
		if err := tx.SaveUser(ctx, u); err != nil {
			return err
		}
		if err := tx.AppendRedemption(ctx, r); err != nil {
			return err
		}

		name = u.DisplayName
		res = RedeemItemResult{
			Redemption:     r,
			Points:         u.Points,
			Level:          u.Level,
			RemainingStock: it.Stock,
		}
		return nil
	})
	if err != nil {
		if shared.IsEligibility(err) {
			return nil, err
		}
		return nil, fmt.Errorf("redeem_item: %w", err)
	}

	h.deps.Logger.Info("item redeemed",
		"user_id", cmd.UserID,
		"item_id", cmd.ItemID,
		"cost", res.Redemption.Cost,
		"remaining_stock", res.RemainingStock,
	)

	h.deps.publish(
		shared.NewItemRedeemedEvent(cmd.UserID, cmd.ItemID, res.Redemption.Cost, res.RemainingStock, now),
		shared.NewPointsAwardedEvent(cmd.UserID, name, -res.Redemption.Cost, change.NewPoints, change.NewLevel, "redeem:"+cmd.ItemID, now),
	)

	return &res, nil
}
