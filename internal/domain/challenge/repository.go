package challenge

import (
	"context"

	"github.com/tutorhub/tutor-hub/internal/domain/shared"
)

// Repository persists challenges. Share codes are unique across all rows.
type Repository interface {
	// Create inserts a new challenge. A share-code collision returns
	// shared.ErrShareCodeCollision so the caller can regenerate and retry.
	Create(ctx context.Context, c *Challenge) error

	// GetByShareCode returns the challenge with the given code, or
	// shared.ErrChallengeNotFound.
	GetByShareCode(ctx context.Context, code string) (*Challenge, error)

	// ListBySubject returns the subject's challenges, newest first.
	ListBySubject(ctx context.Context, subject shared.Subject, page shared.Pagination) ([]*Challenge, error)

	// Update writes the full challenge row by ID.
	Update(ctx context.Context, c *Challenge) error

	// HasOpenRescue reports whether the subject already has an uncompleted
	// streak rescue challenge created on the given day.
	HasOpenRescue(ctx context.Context, subject shared.Subject) (bool, error)
}
