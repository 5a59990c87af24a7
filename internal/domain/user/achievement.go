package user

import (
	"strings"
	"time"

	"github.com/alem-hub/alem-rewards/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// ACHIEVEMENT CATALOG
// ══════════════════════════════════════════════════════════════════════════════

// TriggerKind определяет, какое событие открывает достижение.
type TriggerKind string

const (
	// TriggerFirstMission - первое выполнение любой миссии ("first steps").
	TriggerFirstMission TriggerKind = "first_mission"

	// TriggerLevel - достижение уровня Trigger.Level.
	TriggerLevel TriggerKind = "level"

	// TriggerManual - выдаётся только администратором.
	TriggerManual TriggerKind = "manual"
)

// IsValid проверяет тип триггера.
func (k TriggerKind) IsValid() bool {
	switch k {
	case TriggerFirstMission, TriggerLevel, TriggerManual:
		return true
	default:
		return false
	}
}

// Trigger - условие получения достижения.
type Trigger struct {
	Kind  TriggerKind
	Level int // только для TriggerLevel
}

// Achievement - достижение из каталога. Неизменяемо после создания.
type Achievement struct {
	ID          AchievementID
	Name        string
	Description string
	Icon        string
	Trigger     Trigger
	CreatedAt   time.Time
}

// NewAchievementParams содержит параметры для создания достижения.
type NewAchievementParams struct {
	ID          AchievementID
	Name        string
	Description string
	Icon        string
	Trigger     Trigger
}

// NewAchievement создаёт достижение с валидацией полей.
func NewAchievement(p NewAchievementParams, now time.Time) (*Achievement, error) {
	name := strings.TrimSpace(p.Name)
	if p.ID == "" || name == "" || len(name) > 100 {
		return nil, shared.ErrInvalidAchievement
	}

	if p.Trigger.Kind == "" {
		p.Trigger.Kind = TriggerManual
	}
	if !p.Trigger.Kind.IsValid() {
		return nil, shared.ErrInvalidAchievement
	}
	if p.Trigger.Kind == TriggerLevel && p.Trigger.Level <= MinLevel {
		return nil, shared.ErrInvalidAchievement
	}
	if p.Trigger.Kind != TriggerLevel {
		p.Trigger.Level = 0
	}

	return &Achievement{
		ID:          p.ID,
		Name:        name,
		Description: strings.TrimSpace(p.Description),
		Icon:        p.Icon,
		Trigger:     p.Trigger,
		CreatedAt:   now,
	}, nil
}

// Стандартный каталог, который заливается командой seed.
const (
	FirstStepsID AchievementID = "first_steps"
	Level5ID     AchievementID = "level_5"
)

// DefaultAchievements возвращает базовые достижения.
func DefaultAchievements(now time.Time) []*Achievement {
	return []*Achievement{
		{
			ID:          FirstStepsID,
			Name:        "First Steps",
			Description: "Complete your first mission",
			Icon:        "👣",
			Trigger:     Trigger{Kind: TriggerFirstMission},
			CreatedAt:   now,
		},
		{
			ID:          Level5ID,
			Name:        "Rising Star",
			Description: "Reach level 5",
			Icon:        "⭐",
			Trigger:     Trigger{Kind: TriggerLevel, Level: 5},
			CreatedAt:   now,
		},
	}
}
