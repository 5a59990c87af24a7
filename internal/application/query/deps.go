// Package query contains read operations (CQRS - Queries).
// Every query runs in one ledger.Store.View over a consistent snapshot.
package query

import (
	"context"
	"log/slog"

	"github.com/alem-hub/alem-rewards/internal/domain/ledger"
	"github.com/alem-hub/alem-rewards/internal/domain/progression"
	"github.com/alem-hub/alem-rewards/internal/domain/season"
	"github.com/alem-hub/alem-rewards/pkg/timeutil"
)

// RankingCache is the optional read model in front of the ledger ranking.
type RankingCache interface {
	// TopOrLoad serves the first n standings, loading the full ranking
	// through load on a miss.
	TopOrLoad(ctx context.Context, n int, load func(ctx context.Context) ([]season.Standing, error)) ([]season.Standing, error)
}

// Deps are the collaborators shared by all query handlers.
type Deps struct {
	Store  ledger.Store
	Levels progression.Table
	Clock  timeutil.Clock

	// Ranking may be nil; the ledger is then read directly.
	Ranking RankingCache

	Logger *slog.Logger
}

func (d Deps) withDefaults() Deps {
	if d.Levels.IsZero() {
		d.Levels = progression.DefaultTable()
	}
	if d.Clock == nil {
		d.Clock = timeutil.SystemClock{}
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	return d
}
