// Package goal contains the learning goal aggregate: subject-scoped practice
// targets whose progress advances as matching problems are completed.
package goal

import (
	"math"
	"strings"
	"time"

	"github.com/tutorhub/tutor-hub/internal/domain/shared"
)

// Status is the lifecycle state of a learning goal.
type Status string

const (
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusPaused    Status = "paused"
	StatusExpired   Status = "expired"
)

// IsValid checks if the status is a known state.
func (s Status) IsValid() bool {
	switch s {
	case StatusActive, StatusCompleted, StatusPaused, StatusExpired:
		return true
	}
	return false
}

// Goal types supported by the tracker.
const (
	TypeProblemCount = "problem_count"
	TypeDailyStreak  = "daily_streak"
	TypeMasterTopic  = "master_topic"
)

// LearningGoal is a per-subject practice target. Progress is derived from
// CompletedCount and TargetCount; the transition into StatusCompleted happens
// exactly once and CompletedAt is set at that moment.
type LearningGoal struct {
	ID             string
	Subject        shared.Subject
	Type           string
	Title          string
	TargetSubject  string
	TargetCount    int
	CompletedCount int
	Progress       int
	Status         Status
	CreatedAt      time.Time
	UpdatedAt      time.Time
	CompletedAt    *time.Time
}

// NewLearningGoal creates an active goal.
func NewLearningGoal(id string, subject shared.Subject, goalType, title, targetSubject string, targetCount int) (*LearningGoal, error) {
	if strings.TrimSpace(id) == "" {
		return nil, shared.NewDomainError("goal", "NewLearningGoal", shared.ErrEmptyValue, "goal ID cannot be empty")
	}
	if strings.TrimSpace(targetSubject) == "" {
		return nil, shared.NewDomainError("goal", "NewLearningGoal", shared.ErrEmptyValue, "target subject cannot be empty")
	}
	if targetCount <= 0 {
		return nil, shared.NewDomainError("goal", "NewLearningGoal", shared.ErrInvalidInput, "target count must be positive")
	}

	now := time.Now().UTC()
	g := &LearningGoal{
		ID:            id,
		Subject:       subject,
		Type:          goalType,
		Title:         title,
		TargetSubject: strings.TrimSpace(targetSubject),
		TargetCount:   targetCount,
		Status:        StatusActive,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	g.recomputeProgress()
	return g, nil
}

// MatchesProblemType reports whether a completed problem of the given type
// counts toward this goal.
func (g *LearningGoal) MatchesProblemType(problemType shared.ProblemType) bool {
	return problemType.Matches(g.TargetSubject)
}

// ApplyCompletion counts one matching completed problem toward the goal.
// It returns completedNow (this call flipped the goal to completed) and
// changed (the row needs persisting). Non-active goals are left untouched.
func (g *LearningGoal) ApplyCompletion(at time.Time) (completedNow, changed bool) {
	if g.Status != StatusActive {
		return false, false
	}

	g.CompletedCount++
	g.recomputeProgress()
	g.UpdatedAt = at.UTC()

	if g.CompletedCount >= g.TargetCount {
		g.Status = StatusCompleted
		done := at.UTC()
		g.CompletedAt = &done
		return true, true
	}
	return false, true
}

// recomputeProgress derives Progress as a 0..100 percentage.
func (g *LearningGoal) recomputeProgress() {
	if g.TargetCount <= 0 {
		g.Progress = 0
		return
	}
	pct := int(math.Round(100 * float64(g.CompletedCount) / float64(g.TargetCount)))
	if pct > 100 {
		pct = 100
	}
	g.Progress = pct
}
