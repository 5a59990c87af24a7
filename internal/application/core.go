// Package application wires the command and query handlers into the Core
// facade used by transports and admin tooling.
package application

import (
	"context"
	"errors"
	"log/slog"

	"github.com/alem-hub/alem-rewards/internal/application/command"
	"github.com/alem-hub/alem-rewards/internal/application/query"
	"github.com/alem-hub/alem-rewards/internal/domain/event"
	"github.com/alem-hub/alem-rewards/internal/domain/ledger"
	"github.com/alem-hub/alem-rewards/internal/domain/mission"
	"github.com/alem-hub/alem-rewards/internal/domain/progression"
	"github.com/alem-hub/alem-rewards/internal/domain/season"
	"github.com/alem-hub/alem-rewards/internal/domain/shared"
	"github.com/alem-hub/alem-rewards/internal/domain/shop"
	"github.com/alem-hub/alem-rewards/internal/domain/user"
	"github.com/alem-hub/alem-rewards/pkg/timeutil"
)

// Config holds the collaborators of the Core.
type Config struct {
	// Store is required.
	Store ledger.Store

	// Levels defaults to progression.DefaultTable().
	Levels progression.Table

	// Clock defaults to the system clock.
	Clock timeutil.Clock

	// Publisher receives events after commit. Defaults to a no-op.
	Publisher shared.EventPublisher

	// Ranking is the optional ranking read model.
	Ranking query.RankingCache

	Logger *slog.Logger
}

// Core is the ledger's public surface.
type Core struct {
	ensureUser       *command.EnsureUserHandler
	completeMission  *command.CompleteMissionHandler
	redeemItem       *command.RedeemItemHandler
	activateEvent    *command.ActivateEventHandler
	deactivateEvents *command.DeactivateEventsHandler
	resetSeason      *command.ResetSeasonHandler
	catalog          *command.CatalogHandler

	profile          *query.GetProfileHandler
	ranking          *query.GetRankingHandler
	export           *query.ExportHandler
	missions         *query.AvailableMissionsHandler
	activeMultiplier *query.ActiveMultiplierHandler
	shop             *query.ListShopHandler
	archives         *query.ArchivesHandler

	levels progression.Table
}

// New builds the Core.
func New(cfg Config) (*Core, error) {
	if cfg.Store == nil {
		return nil, errors.New("application: store is required")
	}
	if cfg.Levels.IsZero() {
		cfg.Levels = progression.DefaultTable()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	cmds := command.Deps{
		Store:     cfg.Store,
		Levels:    cfg.Levels,
		Clock:     cfg.Clock,
		Publisher: cfg.Publisher,
		Logger:    cfg.Logger.With("component", "command"),
	}
	queries := query.Deps{
		Store:   cfg.Store,
		Levels:  cfg.Levels,
		Clock:   cfg.Clock,
		Ranking: cfg.Ranking,
		Logger:  cfg.Logger.With("component", "query"),
	}

	return &Core{
		ensureUser:       command.NewEnsureUserHandler(cmds),
		completeMission:  command.NewCompleteMissionHandler(cmds),
		redeemItem:       command.NewRedeemItemHandler(cmds),
		activateEvent:    command.NewActivateEventHandler(cmds),
		deactivateEvents: command.NewDeactivateEventsHandler(cmds),
		resetSeason:      command.NewResetSeasonHandler(cmds),
		catalog:          command.NewCatalogHandler(cmds),

		profile:          query.NewGetProfileHandler(queries),
		ranking:          query.NewGetRankingHandler(queries),
		export:           query.NewExportHandler(queries),
		missions:         query.NewAvailableMissionsHandler(queries),
		activeMultiplier: query.NewActiveMultiplierHandler(queries),
		shop:             query.NewListShopHandler(queries),
		archives:         query.NewArchivesHandler(queries),

		levels: cfg.Levels,
	}, nil
}

// Levels returns the level table in use.
func (c *Core) Levels() progression.Table {
	return c.levels
}

// ─────────────────────────────────────────────────────────────────────────────
// User operations
// ─────────────────────────────────────────────────────────────────────────────

// EnsureUser registers the user on first interaction.
func (c *Core) EnsureUser(ctx context.Context, userID, displayName string) (*user.User, error) {
	res, err := c.ensureUser.Handle(ctx, command.EnsureUserCommand{UserID: userID, DisplayName: displayName})
	if err != nil {
		return nil, err
	}
	return res.User, nil
}

// CompleteMission awards a mission to a user.
func (c *Core) CompleteMission(ctx context.Context, userID, missionID string) (*command.CompleteMissionResult, error) {
	return c.completeMission.Handle(ctx, command.CompleteMissionCommand{UserID: userID, MissionID: missionID})
}

// RedeemItem spends points on an item.
func (c *Core) RedeemItem(ctx context.Context, userID, itemID string) (*command.RedeemItemResult, error) {
	return c.redeemItem.Handle(ctx, command.RedeemItemCommand{UserID: userID, ItemID: itemID})
}

// GetProfile returns a user's standing.
func (c *Core) GetProfile(ctx context.Context, userID string) (*query.ProfileDTO, error) {
	return c.profile.Handle(ctx, query.GetProfileQuery{UserID: userID})
}

// GetRanking returns the top n users.
func (c *Core) GetRanking(ctx context.Context, n int) ([]season.Standing, error) {
	return c.ranking.Handle(ctx, query.GetRankingQuery{Limit: n})
}

// AvailableMissions lists active missions with the user's eligibility.
func (c *Core) AvailableMissions(ctx context.Context, userID string) (*query.AvailableMissionsResult, error) {
	return c.missions.Handle(ctx, query.AvailableMissionsQuery{UserID: userID})
}

// ListShop lists shop items.
func (c *Core) ListShop(ctx context.Context) ([]*shop.Item, error) {
	return c.shop.Handle(ctx)
}

// ActiveMultiplier returns the multiplier in effect, 1.0 when none.
func (c *Core) ActiveMultiplier(ctx context.Context) (float64, error) {
	res, err := c.activeMultiplier.Handle(ctx)
	if err != nil {
		return 0, err
	}
	return res.Multiplier, nil
}

// ActiveEvent returns the event in effect, or nil.
func (c *Core) ActiveEvent(ctx context.Context) (*event.Event, error) {
	res, err := c.activeMultiplier.Handle(ctx)
	if err != nil {
		return nil, err
	}
	return res.Event, nil
}

// ListArchives returns season archive summaries, newest first.
func (c *Core) ListArchives(ctx context.Context) ([]season.Summary, error) {
	return c.archives.List(ctx)
}

// GetArchive returns one season archive.
func (c *Core) GetArchive(ctx context.Context, id string) (*season.Archive, error) {
	return c.archives.Get(ctx, id)
}

// ─────────────────────────────────────────────────────────────────────────────
// Admin operations
// ─────────────────────────────────────────────────────────────────────────────

// AdminActivateEvent starts a multiplier event and returns its id.
func (c *Core) AdminActivateEvent(ctx context.Context, name string, multiplier, durationHours float64) (string, error) {
	res, err := c.activateEvent.Handle(ctx, command.ActivateEventCommand{
		Name:          name,
		Multiplier:    multiplier,
		DurationHours: durationHours,
	})
	if err != nil {
		return "", err
	}
	return string(res.Event.ID), nil
}

// AdminDeactivateEvents clears every active event.
func (c *Core) AdminDeactivateEvents(ctx context.Context) (int, error) {
	return c.deactivateEvents.Handle(ctx)
}

// AdminResetSeason archives and resets the season, returning the archive id.
func (c *Core) AdminResetSeason(ctx context.Context) (string, error) {
	res, err := c.resetSeason.Handle(ctx)
	if err != nil {
		return "", err
	}
	return res.ArchiveID, nil
}

// AdminExport returns the tabular user snapshot.
func (c *Core) AdminExport(ctx context.Context) (*query.Table, error) {
	return c.export.Handle(ctx)
}

// AdminCreateMission adds a mission.
func (c *Core) AdminCreateMission(ctx context.Context, p mission.NewMissionParams) (*mission.Mission, error) {
	return c.catalog.CreateMission(ctx, p)
}

// AdminSetMissionActive enables or disables a mission.
func (c *Core) AdminSetMissionActive(ctx context.Context, missionID string, active bool) (*mission.Mission, error) {
	return c.catalog.SetMissionActive(ctx, missionID, active)
}

// AdminCreateItem adds a shop item.
func (c *Core) AdminCreateItem(ctx context.Context, p shop.NewItemParams) (*shop.Item, error) {
	return c.catalog.CreateItem(ctx, p)
}

// AdminRestockItem adds stock to an item.
func (c *Core) AdminRestockItem(ctx context.Context, itemID string, units int) (*shop.Item, error) {
	return c.catalog.RestockItem(ctx, itemID, units)
}

// AdminCreateAchievement adds an achievement to the catalog.
func (c *Core) AdminCreateAchievement(ctx context.Context, p user.NewAchievementParams) (*user.Achievement, error) {
	return c.catalog.CreateAchievement(ctx, p)
}
