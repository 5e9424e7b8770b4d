package goal

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tutorhub/tutor-hub/internal/domain/shared"
)

func newTestGoal(t *testing.T, targetSubject string, targetCount int) *LearningGoal {
	t.Helper()
	g, err := NewLearningGoal("g1", shared.Subject{UserID: "u1"}, TypeProblemCount, "Practice", targetSubject, targetCount)
	require.NoError(t, err)
	return g
}

func TestNewLearningGoalValidation(t *testing.T) {
	_, err := NewLearningGoal("", shared.Subject{UserID: "u1"}, TypeProblemCount, "t", "algebra", 5)
	assert.Error(t, err)

	_, err = NewLearningGoal("g1", shared.Subject{UserID: "u1"}, TypeProblemCount, "t", "", 5)
	assert.Error(t, err)

	_, err = NewLearningGoal("g1", shared.Subject{UserID: "u1"}, TypeProblemCount, "t", "algebra", 0)
	assert.Error(t, err)
}

func TestMatchesProblemType(t *testing.T) {
	g := newTestGoal(t, "Algebra", 5)

	assert.True(t, g.MatchesProblemType("algebra"))
	assert.True(t, g.MatchesProblemType("linear algebra"), "problem type containing the target matches")
	assert.True(t, newTestGoal(t, "linear algebra", 5).MatchesProblemType("algebra"), "target containing the problem type matches")
	assert.False(t, g.MatchesProblemType("geometry"))
	assert.False(t, g.MatchesProblemType(""), "empty problem type never matches")
}

func TestApplyCompletionProgress(t *testing.T) {
	g := newTestGoal(t, "algebra", 3)
	now := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

	completedNow, changed := g.ApplyCompletion(now)
	assert.False(t, completedNow)
	assert.True(t, changed)
	assert.Equal(t, 33, g.Progress)
	assert.Equal(t, StatusActive, g.Status)

	g.ApplyCompletion(now)
	assert.Equal(t, 67, g.Progress)

	completedNow, changed = g.ApplyCompletion(now)
	assert.True(t, completedNow)
	assert.True(t, changed)
	assert.Equal(t, 100, g.Progress)
	assert.Equal(t, StatusCompleted, g.Status)
	require.NotNil(t, g.CompletedAt)
	assert.Equal(t, now, *g.CompletedAt)
}

func TestApplyCompletionIsOneWay(t *testing.T) {
	g := newTestGoal(t, "algebra", 1)
	now := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

	completedNow, _ := g.ApplyCompletion(now)
	require.True(t, completedNow)
	firstDone := *g.CompletedAt

	// Further matching completions must not re-complete or touch the row.
	completedNow, changed := g.ApplyCompletion(now.Add(time.Hour))
	assert.False(t, completedNow)
	assert.False(t, changed)
	assert.Equal(t, StatusCompleted, g.Status)
	assert.Equal(t, 1, g.CompletedCount)
	assert.Equal(t, firstDone, *g.CompletedAt)
}

func TestApplyCompletionSkipsPausedGoals(t *testing.T) {
	g := newTestGoal(t, "algebra", 3)
	g.Status = StatusPaused

	completedNow, changed := g.ApplyCompletion(time.Now())
	assert.False(t, completedNow)
	assert.False(t, changed)
	assert.Equal(t, 0, g.CompletedCount)
}

func TestProgressIsCapped(t *testing.T) {
	g := newTestGoal(t, "algebra", 2)
	g.CompletedCount = 5
	g.recomputeProgress()
	assert.Equal(t, 100, g.Progress)
}
