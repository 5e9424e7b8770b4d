// Package shared contains common domain types, errors, events, and value objects
// that are used across all domain packages.
package shared

import (
	"encoding/json"
	"time"
)

// EventType represents the type of ecosystem event.
type EventType string

// Ecosystem event types - these drive the event-driven architecture.
// Each event represents something significant that happened in the domain.
const (
	// Practice events
	EventProblemCompleted EventType = "problem.completed"
	EventLevelUp          EventType = "xp.level_up"
	EventStreakAtRisk     EventType = "streak.at_risk"

	// Goal events
	EventGoalCompleted EventType = "goal.completed"

	// Reward events
	EventAchievementUnlocked EventType = "achievement.unlocked"
	EventChallengeCreated    EventType = "challenge.created"
)

// Event is the base interface for all ecosystem events.
type Event interface {
	// EventType returns the type of the event.
	EventType() EventType

	// OccurredAt returns when the event occurred.
	OccurredAt() time.Time

	// EventSubject returns the ledger subject the event belongs to.
	EventSubject() Subject

	// Payload returns the event data as a map for serialization.
	Payload() map[string]interface{}
}

// BaseEvent provides common event functionality.
type BaseEvent struct {
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Subject   Subject   `json:"subject"`
}

// EventType implements Event interface.
func (e BaseEvent) EventType() EventType {
	return e.Type
}

// OccurredAt implements Event interface.
func (e BaseEvent) OccurredAt() time.Time {
	return e.Timestamp
}

// EventSubject implements Event interface.
func (e BaseEvent) EventSubject() Subject {
	return e.Subject
}

// NewBaseEvent creates a new base event.
func NewBaseEvent(eventType EventType, subject Subject) BaseEvent {
	return BaseEvent{
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		Subject:   subject,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Practice Events
// ═══════════════════════════════════════════════════════════════════════════

// ProblemCompletedEvent is emitted by the tutoring session when a student
// solves a problem. It is the primary input to the orchestrator.
type ProblemCompletedEvent struct {
	BaseEvent
	ProblemText string        `json:"problem_text"`
	ProblemType ProblemType   `json:"problem_type"`
	Difficulty  Difficulty    `json:"difficulty"`
	HintsUsed   int           `json:"hints_used"`
	TimeSpent   time.Duration `json:"time_spent,omitempty"`
}

// Payload implements Event interface.
func (e ProblemCompletedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"problem_text": e.ProblemText,
		"problem_type": string(e.ProblemType),
		"difficulty":   string(e.Difficulty),
		"hints_used":   e.HintsUsed,
		"time_spent":   e.TimeSpent.String(),
	}
}

// NewProblemCompletedEvent creates a new ProblemCompletedEvent.
func NewProblemCompletedEvent(subject Subject, text string, problemType ProblemType, difficulty Difficulty, hintsUsed int) ProblemCompletedEvent {
	return ProblemCompletedEvent{
		BaseEvent:   NewBaseEvent(EventProblemCompleted, subject),
		ProblemText: text,
		ProblemType: problemType,
		Difficulty:  difficulty,
		HintsUsed:   hintsUsed,
	}
}

// LevelUpEvent is emitted when an XP grant crosses a level boundary.
type LevelUpEvent struct {
	BaseEvent
	OldLevel Level `json:"old_level"`
	NewLevel Level `json:"new_level"`
	TotalXP  XP    `json:"total_xp"`
}

// Payload implements Event interface.
func (e LevelUpEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"old_level": e.OldLevel.Int(),
		"new_level": e.NewLevel.Int(),
		"total_xp":  e.TotalXP.Int(),
	}
}

// NewLevelUpEvent creates a new LevelUpEvent.
func NewLevelUpEvent(subject Subject, oldLevel, newLevel Level, totalXP XP) LevelUpEvent {
	return LevelUpEvent{
		BaseEvent: NewBaseEvent(EventLevelUp, subject),
		OldLevel:  oldLevel,
		NewLevel:  newLevel,
		TotalXP:   totalXP,
	}
}

// StreakAtRiskEvent is emitted when a subject's practice streak is about to
// break (no practice recorded today, streak still alive).
type StreakAtRiskEvent struct {
	BaseEvent
	CurrentStreak int       `json:"current_streak"`
	LastStudyDate time.Time `json:"last_study_date"`
}

// Payload implements Event interface.
func (e StreakAtRiskEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"current_streak":  e.CurrentStreak,
		"last_study_date": e.LastStudyDate.Format("2006-01-02"),
	}
}

// NewStreakAtRiskEvent creates a new StreakAtRiskEvent.
func NewStreakAtRiskEvent(subject Subject, currentStreak int, lastStudyDate time.Time) StreakAtRiskEvent {
	return StreakAtRiskEvent{
		BaseEvent:     NewBaseEvent(EventStreakAtRisk, subject),
		CurrentStreak: currentStreak,
		LastStudyDate: lastStudyDate,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Goal Events
// ═══════════════════════════════════════════════════════════════════════════

// GoalCompletedEvent is emitted exactly once, when a goal's progress reaches
// 100 and its status flips to completed.
type GoalCompletedEvent struct {
	BaseEvent
	GoalID        string `json:"goal_id"`
	GoalType      string `json:"goal_type"`
	TargetSubject string `json:"target_subject"`
}

// Payload implements Event interface.
func (e GoalCompletedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"goal_id":        e.GoalID,
		"goal_type":      e.GoalType,
		"target_subject": e.TargetSubject,
	}
}

// NewGoalCompletedEvent creates a new GoalCompletedEvent.
func NewGoalCompletedEvent(subject Subject, goalID, goalType, targetSubject string) GoalCompletedEvent {
	return GoalCompletedEvent{
		BaseEvent:     NewBaseEvent(EventGoalCompleted, subject),
		GoalID:        goalID,
		GoalType:      goalType,
		TargetSubject: targetSubject,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Reward Events
// ═══════════════════════════════════════════════════════════════════════════

// AchievementUnlockedEvent is emitted when an achievement is unlocked for the
// first time for a subject.
type AchievementUnlockedEvent struct {
	BaseEvent
	AchievementType string `json:"achievement_type"`
	Title           string `json:"title"`
}

// Payload implements Event interface.
func (e AchievementUnlockedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"achievement_type": e.AchievementType,
		"title":            e.Title,
	}
}

// NewAchievementUnlockedEvent creates a new AchievementUnlockedEvent.
func NewAchievementUnlockedEvent(subject Subject, achievementType, title string) AchievementUnlockedEvent {
	return AchievementUnlockedEvent{
		BaseEvent:       NewBaseEvent(EventAchievementUnlocked, subject),
		AchievementType: achievementType,
		Title:           title,
	}
}

// ChallengeCreatedEvent is emitted when the challenge generator creates a
// shareable challenge.
type ChallengeCreatedEvent struct {
	BaseEvent
	ChallengeID   string `json:"challenge_id"`
	ChallengeType string `json:"challenge_type"`
	ShareCode     string `json:"share_code"`
}

// Payload implements Event interface.
func (e ChallengeCreatedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"challenge_id":   e.ChallengeID,
		"challenge_type": e.ChallengeType,
		"share_code":     e.ShareCode,
	}
}

// NewChallengeCreatedEvent creates a new ChallengeCreatedEvent.
func NewChallengeCreatedEvent(subject Subject, challengeID, challengeType, shareCode string) ChallengeCreatedEvent {
	return ChallengeCreatedEvent{
		BaseEvent:     NewBaseEvent(EventChallengeCreated, subject),
		ChallengeID:   challengeID,
		ChallengeType: challengeType,
		ShareCode:     shareCode,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Event Envelope (for serialization and transport)
// ═══════════════════════════════════════════════════════════════════════════

// EventEnvelope wraps an event for transport/storage.
type EventEnvelope struct {
	ID        string          `json:"id"`
	Type      EventType       `json:"type"`
	Subject   Subject         `json:"subject"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
}

// EventHandler is a function that handles an event.
type EventHandler func(event Event) error

// EventPublisher defines the interface for publishing events.
type EventPublisher interface {
	// Publish sends an event to subscribers.
	Publish(event Event) error
}

// EventSubscriber defines the interface for subscribing to events.
// Subscriptions are named: registering the same name for the same event type
// twice replaces the previous handler instead of adding a duplicate, so
// repeated wiring (process restart, re-initialization) cannot double-fire
// side effects. Emits declares every event type the handler may publish; the
// bus rejects registrations that could transitively republish the subscribed
// type.
type EventSubscriber interface {
	// Subscribe registers a named handler for an event type.
	Subscribe(eventType EventType, name string, handler EventHandler, emits ...EventType) error
}

// EventBus combines publishing and subscribing.
type EventBus interface {
	EventPublisher
	EventSubscriber
}
