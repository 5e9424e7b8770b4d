package ledger

import (
	"context"
	"time"

	"github.com/tutorhub/tutor-hub/internal/domain/shared"
)

// XPRepository persists XP ledger rows, one per subject.
type XPRepository interface {
	// Get returns the subject's XP row, or shared.ErrXPRowNotFound.
	Get(ctx context.Context, subject shared.Subject) (*XPLedger, error)

	// GetOrCreate returns the subject's XP row, creating the default row if
	// none exists. A concurrent create by another instance is absorbed by
	// refetching the winning row.
	GetOrCreate(ctx context.Context, subject shared.Subject) (*XPLedger, error)

	// Upsert writes the full row, inserting or replacing by subject.
	Upsert(ctx context.Context, row *XPLedger) error
}

// StreakRepository persists streak rows, one per subject.
type StreakRepository interface {
	// Get returns the subject's streak row, or shared.ErrNotFound.
	Get(ctx context.Context, subject shared.Subject) (*StreakRecord, error)

	// GetOrCreate returns the subject's streak row, creating the default row
	// if none exists.
	GetOrCreate(ctx context.Context, subject shared.Subject) (*StreakRecord, error)

	// Upsert writes the full row, inserting or replacing by subject.
	Upsert(ctx context.Context, row *StreakRecord) error

	// ListAtRisk returns rows with a live streak and no practice recorded on
	// the given day, up to limit.
	ListAtRisk(ctx context.Context, day time.Time, limit int) ([]*StreakRecord, error)
}

// ProblemRepository persists problems presented to subjects.
type ProblemRepository interface {
	// Save inserts a new problem record.
	Save(ctx context.Context, problem *Problem) error

	// FindExact returns the subject's problem whose text matches exactly, or
	// shared.ErrProblemNotFound.
	FindExact(ctx context.Context, subject shared.Subject, text string) (*Problem, error)

	// FindByPrefix returns the most recently created problem whose text
	// starts with the given prefix, or shared.ErrProblemNotFound.
	FindByPrefix(ctx context.Context, subject shared.Subject, prefix string) (*Problem, error)

	// FindMostRecentUnsolved returns the subject's newest unsolved problem,
	// or shared.ErrProblemNotFound.
	FindMostRecentUnsolved(ctx context.Context, subject shared.Subject) (*Problem, error)

	// MarkSolved sets the solved timestamp. It reports whether the row
	// changed; marking an already-solved problem is a no-op.
	MarkSolved(ctx context.Context, problemID string, at time.Time) (bool, error)

	// ListBySubject returns the subject's problems, newest first.
	ListBySubject(ctx context.Context, subject shared.Subject, page shared.Pagination) ([]*Problem, error)
}

// AchievementRepository persists achievement unlocks, unique per subject and
// achievement type.
type AchievementRepository interface {
	// Unlock records an achievement. It reports whether the unlock is new;
	// repeat unlocks of the same type are absorbed silently.
	Unlock(ctx context.Context, achievement Achievement) (bool, error)

	// List returns all of the subject's unlocks, newest first.
	List(ctx context.Context, subject shared.Subject) ([]Achievement, error)
}
