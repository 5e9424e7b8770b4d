package goal

import (
	"context"

	"github.com/tutorhub/tutor-hub/internal/domain/shared"
)

// Repository persists learning goals.
type Repository interface {
	// Create inserts a new goal.
	Create(ctx context.Context, g *LearningGoal) error

	// Update writes the full goal row by ID.
	Update(ctx context.Context, g *LearningGoal) error

	// GetByID returns a goal by ID, or shared.ErrGoalNotFound.
	GetByID(ctx context.Context, id string) (*LearningGoal, error)

	// GetActive returns the subject's active goals, oldest first.
	GetActive(ctx context.Context, subject shared.Subject) ([]*LearningGoal, error)
}
