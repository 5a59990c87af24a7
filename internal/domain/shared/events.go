package shared

import (
	"time"
)

// EventType represents the type of domain event.
type EventType string

// Domain event types. They are published only after the ledger commit
// that produced them succeeded.
const (
	// User events
	EventUserRegistered EventType = "user.registered"
	EventUserRenamed    EventType = "user.renamed"

	// Progress events
	EventPointsAwarded       EventType = "progress.points_awarded"
	EventLevelUp             EventType = "progress.level_up"
	EventAchievementUnlocked EventType = "progress.achievement_unlocked"
	EventMissionCompleted    EventType = "progress.mission_completed"

	// Shop events
	EventItemRedeemed EventType = "shop.item_redeemed"

	// Multiplier events
	EventMultiplierActivated   EventType = "event.activated"
	EventMultiplierDeactivated EventType = "event.deactivated"

	// Season events
	EventSeasonReset EventType = "season.reset"
)

// Event is the base interface for all domain events.
type Event interface {
	// EventType returns the type of the event.
	EventType() EventType

	// OccurredAt returns when the event occurred.
	OccurredAt() time.Time

	// AggregateID returns the ID of the aggregate that produced this event.
	AggregateID() string

	// Payload returns the event data as a map for serialization.
	Payload() map[string]interface{}
}

// BaseEvent provides common event functionality.
type BaseEvent struct {
	Type          EventType `json:"type"`
	Timestamp     time.Time `json:"timestamp"`
	AggregateId   string    `json:"aggregate_id"`
	Version       int       `json:"version"`
	CorrelationID string    `json:"correlation_id,omitempty"`
}

// EventType implements Event interface.
func (e BaseEvent) EventType() EventType {
	return e.Type
}

// OccurredAt implements Event interface.
func (e BaseEvent) OccurredAt() time.Time {
	return e.Timestamp
}

// AggregateID implements Event interface.
func (e BaseEvent) AggregateID() string {
	return e.AggregateId
}

// NewBaseEvent creates a new base event.
func NewBaseEvent(eventType EventType, aggregateID string, at time.Time) BaseEvent {
	return BaseEvent{
		Type:        eventType,
		Timestamp:   at,
		AggregateId: aggregateID,
		Version:     1,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Progress Events
// ═══════════════════════════════════════════════════════════════════════════

// UserRegisteredEvent is emitted when a user is seen for the first time.
type UserRegisteredEvent struct {
	BaseEvent
	DisplayName string `json:"display_name"`
}

// Payload implements Event interface.
func (e UserRegisteredEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":      e.AggregateId,
		"display_name": e.DisplayName,
	}
}

// NewUserRegisteredEvent creates a UserRegisteredEvent.
func NewUserRegisteredEvent(userID, displayName string, at time.Time) UserRegisteredEvent {
	return UserRegisteredEvent{
		BaseEvent:   NewBaseEvent(EventUserRegistered, userID, at),
		DisplayName: displayName,
	}
}

// UserRenamedEvent is emitted when a user's display name changes.
type UserRenamedEvent struct {
	BaseEvent
	DisplayName  string `json:"display_name"`
	PreviousName string `json:"previous_name"`
}

// Payload implements Event interface.
func (e UserRenamedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":       e.AggregateId,
		"display_name":  e.DisplayName,
		"previous_name": e.PreviousName,
	}
}

// NewUserRenamedEvent creates a UserRenamedEvent.
func NewUserRenamedEvent(userID, displayName, previousName string, at time.Time) UserRenamedEvent {
	return UserRenamedEvent{
		BaseEvent:    NewBaseEvent(EventUserRenamed, userID, at),
		DisplayName:  displayName,
		PreviousName: previousName,
	}
}

// PointsAwardedEvent is emitted whenever a user's balance changes.
// Delta is negative for redemptions.
type PointsAwardedEvent struct {
	BaseEvent
	DisplayName string `json:"display_name"`
	Delta       int    `json:"delta"`
	NewPoints   int    `json:"new_points"`
	NewLevel    int    `json:"new_level"`
	Reason      string `json:"reason"`
}

// Payload implements Event interface.
func (e PointsAwardedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":      e.AggregateId,
		"display_name": e.DisplayName,
		"delta":        e.Delta,
		"new_points":   e.NewPoints,
		"new_level":    e.NewLevel,
		"reason":       e.Reason,
	}
}

// NewPointsAwardedEvent creates a PointsAwardedEvent.
func NewPointsAwardedEvent(userID, displayName string, delta, newPoints, newLevel int, reason string, at time.Time) PointsAwardedEvent {
	return PointsAwardedEvent{
		BaseEvent:   NewBaseEvent(EventPointsAwarded, userID, at),
		DisplayName: displayName,
		Delta:       delta,
		NewPoints:   newPoints,
		NewLevel:    newLevel,
		Reason:      reason,
	}
}

// LevelUpEvent is emitted when the derived level increases.
type LevelUpEvent struct {
	BaseEvent
	OldLevel int `json:"old_level"`
	NewLevel int `json:"new_level"`
}

// Payload implements Event interface.
func (e LevelUpEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":   e.AggregateId,
		"old_level": e.OldLevel,
		"new_level": e.NewLevel,
	}
}

// NewLevelUpEvent creates a LevelUpEvent.
func NewLevelUpEvent(userID string, oldLevel, newLevel int, at time.Time) LevelUpEvent {
	return LevelUpEvent{
		BaseEvent: NewBaseEvent(EventLevelUp, userID, at),
		OldLevel:  oldLevel,
		NewLevel:  newLevel,
	}
}

// AchievementUnlockedEvent is emitted once per newly unlocked achievement.
type AchievementUnlockedEvent struct {
	BaseEvent
	AchievementID   string `json:"achievement_id"`
	AchievementName string `json:"achievement_name"`
	Icon            string `json:"icon"`
}

// Payload implements Event interface.
func (e AchievementUnlockedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":          e.AggregateId,
		"achievement_id":   e.AchievementID,
		"achievement_name": e.AchievementName,
		"icon":             e.Icon,
	}
}

// NewAchievementUnlockedEvent creates an AchievementUnlockedEvent.
func NewAchievementUnlockedEvent(userID, achievementID, name, icon string, at time.Time) AchievementUnlockedEvent {
	return AchievementUnlockedEvent{
		BaseEvent:       NewBaseEvent(EventAchievementUnlocked, userID, at),
		AchievementID:   achievementID,
		AchievementName: name,
		Icon:            icon,
	}
}

// MissionCompletedEvent is emitted after a completion row was committed.
type MissionCompletedEvent struct {
	BaseEvent
	MissionID     string  `json:"mission_id"`
	PointsAwarded int     `json:"points_awarded"`
	Multiplier    float64 `json:"multiplier"`
}

// Payload implements Event interface.
func (e MissionCompletedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":        e.AggregateId,
		"mission_id":     e.MissionID,
		"points_awarded": e.PointsAwarded,
		"multiplier":     e.Multiplier,
	}
}

// NewMissionCompletedEvent creates a MissionCompletedEvent.
func NewMissionCompletedEvent(userID, missionID string, points int, multiplier float64, at time.Time) MissionCompletedEvent {
	return MissionCompletedEvent{
		BaseEvent:     NewBaseEvent(EventMissionCompleted, userID, at),
		MissionID:     missionID,
		PointsAwarded: points,
		Multiplier:    multiplier,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Shop, Multiplier and Season Events
// ═══════════════════════════════════════════════════════════════════════════

// ItemRedeemedEvent is emitted after a successful redemption.
type ItemRedeemedEvent struct {
	BaseEvent
	ItemID         string `json:"item_id"`
	Cost           int    `json:"cost"`
	RemainingStock int    `json:"remaining_stock"`
}

// Payload implements Event interface.
func (e ItemRedeemedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":         e.AggregateId,
		"item_id":         e.ItemID,
		"cost":            e.Cost,
		"remaining_stock": e.RemainingStock,
	}
}

// NewItemRedeemedEvent creates an ItemRedeemedEvent.
func NewItemRedeemedEvent(userID, itemID string, cost, remainingStock int, at time.Time) ItemRedeemedEvent {
	return ItemRedeemedEvent{
		BaseEvent:      NewBaseEvent(EventItemRedeemed, userID, at),
		ItemID:         itemID,
		Cost:           cost,
		RemainingStock: remainingStock,
	}
}

// MultiplierActivatedEvent is emitted when an admin activates a score event.
type MultiplierActivatedEvent struct {
	BaseEvent
	Name       string    `json:"name"`
	Multiplier float64   `json:"multiplier"`
	EndsAt     time.Time `json:"ends_at"`
}

// Payload implements Event interface.
func (e MultiplierActivatedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"event_id":   e.AggregateId,
		"name":       e.Name,
		"multiplier": e.Multiplier,
		"ends_at":    e.EndsAt,
	}
}

// NewMultiplierActivatedEvent creates a MultiplierActivatedEvent.
func NewMultiplierActivatedEvent(eventID, name string, multiplier float64, endsAt, at time.Time) MultiplierActivatedEvent {
	return MultiplierActivatedEvent{
		BaseEvent:  NewBaseEvent(EventMultiplierActivated, eventID, at),
		Name:       name,
		Multiplier: multiplier,
		EndsAt:     endsAt,
	}
}

// MultiplierDeactivatedEvent is emitted when an admin clears every active event.
type MultiplierDeactivatedEvent struct {
	BaseEvent
	Count int `json:"count"`
}

// Payload implements Event interface.
func (e MultiplierDeactivatedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"count": e.Count,
	}
}

// NewMultiplierDeactivatedEvent creates a MultiplierDeactivatedEvent.
func NewMultiplierDeactivatedEvent(count int, at time.Time) MultiplierDeactivatedEvent {
	return MultiplierDeactivatedEvent{
		BaseEvent: NewBaseEvent(EventMultiplierDeactivated, "events", at),
		Count:     count,
	}
}

// SeasonResetEvent is emitted after standings were archived and zeroed.
type SeasonResetEvent struct {
	BaseEvent
	UsersArchived int `json:"users_archived"`
}

// Payload implements Event interface.
func (e SeasonResetEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"archive_id":     e.AggregateId,
		"users_archived": e.UsersArchived,
	}
}

// NewSeasonResetEvent creates a SeasonResetEvent.
func NewSeasonResetEvent(archiveID string, users int, at time.Time) SeasonResetEvent {
	return SeasonResetEvent{
		BaseEvent:     NewBaseEvent(EventSeasonReset, archiveID, at),
		UsersArchived: users,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Bus contracts
// ═══════════════════════════════════════════════════════════════════════════

// EventHandler is a function that handles an event.
type EventHandler func(event Event) error

// EventPublisher defines the interface for publishing events.
type EventPublisher interface {
	// Publish sends an event to subscribers.
	Publish(event Event) error
}

// EventSubscriber defines the interface for subscribing to events.
type EventSubscriber interface {
	// Subscribe registers a handler for an event type.
	Subscribe(eventType EventType, handler EventHandler) error

	// SubscribeAll registers a handler for all events.
	SubscribeAll(handler EventHandler) error
}

// EventBus combines publishing and subscribing.
type EventBus interface {
	EventPublisher
	EventSubscriber
}

// NopPublisher discards events. Used when no bus is wired.
type NopPublisher struct{}

// Publish implements EventPublisher.
func (NopPublisher) Publish(Event) error { return nil }
