// Package season содержит снимки рейтинга, сохраняемые при сбросе сезона.
// Снимок неизменяем после создания.
package season

import (
	"time"

	"github.com/alem-hub/alem-rewards/internal/domain/user"
)

// ══════════════════════════════════════════════════════════════════════════════
// STANDING
// ══════════════════════════════════════════════════════════════════════════════

// Standing - позиция пользователя в рейтинге.
type Standing struct {
	Rank        int
	UserID      user.ID
	DisplayName string
	Points      int
	Level       int
}

// Rank строит рейтинг: очки по убыванию, при равенстве - ID по возрастанию.
// limit <= 0 означает "все пользователи". Входной слайс не изменяется.
func Rank(users []*user.User, limit int) []Standing {
	sorted := make([]*user.User, len(users))
	copy(sorted, users)
	user.SortByRank(sorted)

	if limit > 0 && limit < len(sorted) {
		sorted = sorted[:limit]
	}

	out := make([]Standing, len(sorted))
	for i, u := range sorted {
		out[i] = Standing{
			Rank:        i + 1,
			UserID:      u.ID,
			DisplayName: u.DisplayName,
			Points:      u.Points,
			Level:       u.Level,
		}
	}
	return out
}

// ══════════════════════════════════════════════════════════════════════════════
// ARCHIVE
// ══════════════════════════════════════════════════════════════════════════════

// Archive - снимок рейтинга на момент сброса сезона.
type Archive struct {
	ID        string
	ResetAt   time.Time
	Standings []Standing
}

// Summary - краткая информация об архиве (без позиций).
type Summary struct {
	ID        string
	ResetAt   time.Time
	UserCount int
}

// NewArchive создаёт снимок всех пользователей.
func NewArchive(id string, users []*user.User, at time.Time) *Archive {
	return &Archive{
		ID:        id,
		ResetAt:   at,
		Standings: Rank(users, 0),
	}
}

// Summary возвращает краткую информацию.
func (a *Archive) Summary() Summary {
	return Summary{ID: a.ID, ResetAt: a.ResetAt, UserCount: len(a.Standings)}
}

// Clone возвращает копию архива.
func (a *Archive) Clone() *Archive {
	if a == nil {
		return nil
	}
	c := *a
	c.Standings = append([]Standing(nil), a.Standings...)
	return &c
}
