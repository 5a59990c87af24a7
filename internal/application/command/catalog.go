package command

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/alem-hub/alem-rewards/internal/domain/ledger"
	"github.com/alem-hub/alem-rewards/internal/domain/mission"
	"github.com/alem-hub/alem-rewards/internal/domain/shop"
	"github.com/alem-hub/alem-rewards/internal/domain/user"
)

// ══════════════════════════════════════════════════════════════════════════════
// CATALOG COMMANDS
// Admin maintenance of missions, shop items and achievements. An empty id is
// replaced by a generated UUID.
// ══════════════════════════════════════════════════════════════════════════════

// CatalogHandler handles the admin catalog commands.
type CatalogHandler struct {
	deps Deps
}

// NewCatalogHandler creates a new CatalogHandler.
func NewCatalogHandler(deps Deps) *CatalogHandler {
	return &CatalogHandler{deps: deps.withDefaults()}
}

// CreateMission validates and stores a new active mission.
func (h *CatalogHandler) CreateMission(ctx context.Context, p mission.NewMissionParams) (*mission.Mission, error) {
	if p.ID == "" {
		p.ID = mission.ID(uuid.NewString())
	}
	m, err := mission.NewMission(p, h.deps.Clock.Now())
	if err != nil {
		return nil, err
	}

	err = h.deps.Store.Update(ctx, ledger.Scope{}, func(tx ledger.Tx) error {
		return tx.CreateMission(ctx, m)
	})
	if err != nil {
		return nil, fmt.Errorf("create_mission: %w", err)
	}

	h.deps.Logger.Info("mission created",
		"mission_id", m.ID,
		"type", m.Type,
		"points", m.PointValue,
		"cooldown", m.Cooldown,
	)
	return m, nil
}

// SetMissionActive enables or disables a mission.
func (h *CatalogHandler) SetMissionActive(ctx context.Context, id string, active bool) (*mission.Mission, error) {
	var m *mission.Mission
	err := h.deps.Store.Update(ctx, ledger.Scope{}, func(tx ledger.Tx) error {
		var err error
		m, err = tx.Mission(ctx, mission.ID(id))
		if err != nil {
			return err
		}
		if m.Active == active {
			return nil
		}
		m.Active = active
		return tx.SaveMission(ctx, m)
	})
	if err != nil {
		return nil, fmt.Errorf("set_mission_active: %w", err)
	}

	h.deps.Logger.Info("mission updated", "mission_id", id, "active", active)
	return m, nil
}

// CreateItem validates and stores a new shop item. Stock -1 is unlimited.
func (h *CatalogHandler) CreateItem(ctx context.Context, p shop.NewItemParams) (*shop.Item, error) {
	if p.ID == "" {
		p.ID = shop.ItemID(uuid.NewString())
	}
	it, err := shop.NewItem(p, h.deps.Clock.Now())
	if err != nil {
		return nil, err
	}

	err = h.deps.Store.Update(ctx, ledger.Scope{Items: []shop.ItemID{it.ID}}, func(tx ledger.Tx) error {
		return tx.CreateItem(ctx, it)
	})
	if err != nil {
		return nil, fmt.Errorf("create_item: %w", err)
	}

	h.deps.Logger.Info("shop item created", "item_id", it.ID, "cost", it.Cost, "stock", it.Stock)
	return it, nil
}

// RestockItem adds units to an item under its lock. shop.Unlimited converts
// the item to unlimited stock.
func (h *CatalogHandler) RestockItem(ctx context.Context, id string, units int) (*shop.Item, error) {
	iid := shop.ItemID(id)

	var it *shop.Item
	err := h.deps.Store.Update(ctx, ledger.Scope{Items: []shop.ItemID{iid}}, func(tx ledger.Tx) error {
		var err error
		it, err = tx.Item(ctx, iid)
		if err != nil {
			return err
		}
		if err := it.Restock(units); err != nil {
			return err
		}
		return tx.SaveItem(ctx, it)
	})
	if err != nil {
		return nil, fmt.Errorf("restock_item: %w", err)
	}

	h.deps.Logger.Info("shop item restocked", "item_id", id, "units", units, "stock", it.Stock)
	return it, nil
}

// CreateAchievement adds an achievement to the catalog. Names are unique
// case-insensitively.
func (h *CatalogHandler) CreateAchievement(ctx context.Context, p user.NewAchievementParams) (*user.Achievement, error) {
	if p.ID == "" {
		p.ID = user.AchievementID(uuid.NewString())
	}
	a, err := user.NewAchievement(p, h.deps.Clock.Now())
	if err != nil {
		return nil, err
	}

	err = h.deps.Store.Update(ctx, ledger.Scope{}, func(tx ledger.Tx) error {
		return tx.CreateAchievement(ctx, a)
	})
	if err != nil {
		return nil, fmt.Errorf("create_achievement: %w", err)
	}

	h.deps.Logger.Info("achievement created", "achievement_id", a.ID, "trigger", a.Trigger.Kind)
	return a, nil
}
