package application

import (
	"context"
	"fmt"
	"time"

	"github.com/alem-hub/alem-rewards/internal/domain/mission"
	"github.com/alem-hub/alem-rewards/internal/domain/shared"
	"github.com/alem-hub/alem-rewards/internal/domain/shop"
	"github.com/alem-hub/alem-rewards/internal/domain/user"
)

// Catalog is a batch of admin catalog entries.
type Catalog struct {
	Achievements []user.NewAchievementParams
	Missions     []mission.NewMissionParams
	Items        []shop.NewItemParams
}

// SeedReport counts what a seed created and what already existed.
type SeedReport struct {
	Created int
	Skipped int
}

// DefaultCatalog is the catalog loaded by a bare seed. firstStepsName
// renames the first-mission achievement when non-empty.
func DefaultCatalog(firstStepsName string) Catalog {
	var c Catalog
	for _, a := range user.DefaultAchievements(time.Time{}) {
		p := user.NewAchievementParams{
			ID:          a.ID,
			Name:        a.Name,
			Description: a.Description,
			Icon:        a.Icon,
			Trigger:     a.Trigger,
		}
		if a.ID == user.FirstStepsID && firstStepsName != "" {
			p.Name = firstStepsName
		}
		c.Achievements = append(c.Achievements, p)
	}

	c.Missions = []mission.NewMissionParams{
		{ID: "daily_checkin", Name: "Daily check-in", PointValue: 5, Type: mission.TypeDaily},
		{ID: "weekly_review", Name: "Weekly review", PointValue: 30, Type: mission.TypeWeekly},
	}
	c.Items = []shop.NewItemParams{
		{ID: "sticker_pack", Name: "Sticker pack", Cost: 20, Stock: 50},
		{ID: "profile_badge", Name: "Profile badge", Cost: 10, Stock: shop.Unlimited},
	}
	return c
}

// Seed creates every catalog entry that does not exist yet. Re-running it
// is harmless.
func (c *Core) Seed(ctx context.Context, cat Catalog) (SeedReport, error) {
	var rep SeedReport

	count := func(err error) error {
		switch {
		case err == nil:
			rep.Created++
			return nil
		case shared.IsAlreadyExists(err):
			rep.Skipped++
			return nil
		default:
			return err
		}
	}

	for _, p := range cat.Achievements {
		_, err := c.catalog.CreateAchievement(ctx, p)
		if err := count(err); err != nil {
			return rep, fmt.Errorf("seed achievement %q: %w", p.ID, err)
		}
	}
	for _, p := range cat.Missions {
		_, err := c.catalog.CreateMission(ctx, p)
		if err := count(err); err != nil {
			return rep, fmt.Errorf("seed mission %q: %w", p.ID, err)
		}
	}
	for _, p := range cat.Items {
		_, err := c.catalog.CreateItem(ctx, p)
		if err := count(err); err != nil {
			return rep, fmt.Errorf("seed item %q: %w", p.ID, err)
		}
	}
	return rep, nil
}
