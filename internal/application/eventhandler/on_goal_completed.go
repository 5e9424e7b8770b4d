// Package eventhandler contains the reactive side of the gamification
// pipeline: handlers that listen for domain events and trigger follow-up
// effects such as achievement unlocks and cache refreshes.
package eventhandler

import (
	"context"
	"log/slog"
	"time"

	"github.com/tutorhub/tutor-hub/internal/domain/ledger"
	"github.com/tutorhub/tutor-hub/internal/domain/shared"
)

// ═══════════════════════════════════════════════════════════════════════════
// ON GOAL COMPLETED HANDLER
// ═══════════════════════════════════════════════════════════════════════════

// OnGoalCompletedHandler reacts to goal completions: it unlocks the
// first-goal achievement and announces new unlocks.
type OnGoalCompletedHandler struct {
	achievementRepo ledger.AchievementRepository
	publisher       shared.EventPublisher

	logger *slog.Logger
	config GoalCompletedConfig
}

// GoalCompletedConfig contains configuration for the handler.
type GoalCompletedConfig struct {
	// StepTimeout bounds the store calls made while handling one event.
	StepTimeout time.Duration
}

// DefaultGoalCompletedConfig returns the default configuration.
func DefaultGoalCompletedConfig() GoalCompletedConfig {
	return GoalCompletedConfig{
		StepTimeout: 5 * time.Second,
	}
}

// NewOnGoalCompletedHandler creates the handler.
func NewOnGoalCompletedHandler(
	achievementRepo ledger.AchievementRepository,
	publisher shared.EventPublisher,
	logger *slog.Logger,
	config GoalCompletedConfig,
) *OnGoalCompletedHandler {
	if logger == nil {
		logger = slog.Default()
	}
	if config.StepTimeout <= 0 {
		config.StepTimeout = 5 * time.Second
	}

	return &OnGoalCompletedHandler{
		achievementRepo: achievementRepo,
		publisher:       publisher,
		logger:          logger.With("handler", "on_goal_completed"),
		config:          config,
	}
}

// Handle processes a goal.completed event.
func (h *OnGoalCompletedHandler) Handle(event shared.Event) error {
	ctx, cancel := context.WithTimeout(context.Background(), h.config.StepTimeout)
	defer cancel()

	goalEvent, ok := event.(shared.GoalCompletedEvent)
	if !ok {
		h.logger.Warn("received non-GoalCompletedEvent", "event_type", event.EventType())
		return nil
	}

	subject := goalEvent.EventSubject()
	h.logger.Info("processing goal completion",
		"subject", subject.Key(),
		"goal_id", goalEvent.GoalID,
		"goal_type", goalEvent.GoalType,
	)

	// The unique constraint makes the unlock idempotent: only the first
	// completed goal produces an announcement.
	a := ledger.NewAchievement(subject, ledger.AchievementFirstGoal, goalEvent.OccurredAt())
	newly, err := h.achievementRepo.Unlock(ctx, a)
	if err != nil {
		h.logger.Error("failed to unlock achievement",
			"subject", subject.Key(),
			"achievement", a.Type,
			"error", err,
		)
		return nil
	}
	if !newly {
		return nil
	}

	h.logger.Info("achievement unlocked", "subject", subject.Key(), "achievement", a.Type)
	if h.publisher != nil {
		if err := h.publisher.Publish(shared.NewAchievementUnlockedEvent(subject, a.Type, a.Title)); err != nil {
			h.logger.Error("failed to publish achievement unlock", "subject", subject.Key(), "error", err)
		}
	}
	return nil
}

// Emits declares the events the handler may publish.
func (h *OnGoalCompletedHandler) Emits() []shared.EventType {
	return []shared.EventType{shared.EventAchievementUnlocked}
}

// EventType returns the event type this handler processes.
func (h *OnGoalCompletedHandler) EventType() shared.EventType {
	return shared.EventGoalCompleted
}
