// Package user содержит доменную модель участника: очки, уровень и достижения.
// Это ядро бизнес-логики - здесь нет внешних зависимостей.
package user

import (
	"sort"
	"strings"
	"time"

	"github.com/alem-hub/alem-rewards/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// VALUE OBJECTS
// ══════════════════════════════════════════════════════════════════════════════

// ID - внешний идентификатор пользователя (например, Telegram ID в виде строки).
type ID string

// IsValid проверяет, что ID не пустой и без пробелов.
func (id ID) IsValid() bool {
	s := string(id)
	return s != "" && len(s) <= 64 && !strings.ContainsAny(s, " \t\n\r")
}

// String возвращает строковое представление ID.
func (id ID) String() string {
	return string(id)
}

// AchievementID - идентификатор достижения.
type AchievementID string

// MinLevel - минимальный уровень, с которого начинает каждый пользователь.
const MinLevel = 1

// ══════════════════════════════════════════════════════════════════════════════
// MAIN ENTITY: USER
// ══════════════════════════════════════════════════════════════════════════════

// User - участник системы геймификации.
type User struct {
	// ID - уникальный внешний идентификатор.
	ID ID

	// DisplayName - отображаемое имя.
	DisplayName string

	// Points - текущий баланс очков (>= 0).
	Points int

	// Level - уровень, всегда вычисляется из Points. Напрямую не задаётся.
	Level int

	// Achievements - полученные достижения. Множество только растёт.
	Achievements []Unlock

	// LastActive - время последнего начисления или списания.
	LastActive time.Time

	// CreatedAt - время первого взаимодействия.
	CreatedAt time.Time
}

// Unlock - запись о получении достижения (UserAchievement).
type Unlock struct {
	AchievementID AchievementID
	UnlockedAt    time.Time
}

// New создаёт пользователя при первом взаимодействии.
func New(id ID, displayName string, now time.Time) (*User, error) {
	if !id.IsValid() {
		return nil, shared.ErrInvalidUserID
	}

	displayName = strings.TrimSpace(displayName)
	if displayName == "" {
		displayName = string(id)
	}

	return &User{
		ID:          id,
		DisplayName: displayName,
		Points:      0,
		Level:       MinLevel,
		LastActive:  now,
		CreatedAt:   now,
	}, nil
}

// Has возвращает true, если достижение уже получено.
func (u *User) Has(id AchievementID) bool {
	for _, a := range u.Achievements {
		if a.AchievementID == id {
			return true
		}
	}
	return false
}

// Unlock добавляет достижение. Повторное получение - no-op, не ошибка.
// Возвращает true, если достижение новое.
func (u *User) Unlock(id AchievementID, at time.Time) bool {
	if u.Has(id) {
		return false
	}
	u.Achievements = append(u.Achievements, Unlock{AchievementID: id, UnlockedAt: at})
	return true
}

// AchievementIDs возвращает отсортированный список полученных достижений.
func (u *User) AchievementIDs() []AchievementID {
	ids := make([]AchievementID, len(u.Achievements))
	for i, a := range u.Achievements {
		ids[i] = a.AchievementID
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Touch обновляет время последней активности.
func (u *User) Touch(now time.Time) {
	if now.After(u.LastActive) {
		u.LastActive = now
	}
}

// ResetStanding обнуляет прогресс сезона. Достижения сохраняются.
func (u *User) ResetStanding() {
	u.Points = 0
	u.Level = MinLevel
}

// Clone возвращает глубокую копию (хранилища отдают копии, а не указатели на своё состояние).
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	c := *u
	c.Achievements = append([]Unlock(nil), u.Achievements...)
	return &c
}

// Less задаёт порядок рейтинга: очки по убыванию, при равенстве - ID по возрастанию.
// Порядок полный и стабильный между запусками.
func Less(a, b *User) bool {
	if a.Points != b.Points {
		return a.Points > b.Points
	}
	return a.ID < b.ID
}

// SortByRank сортирует пользователей в порядке рейтинга.
func SortByRank(users []*User) {
	sort.Slice(users, func(i, j int) bool { return Less(users[i], users[j]) })
}
