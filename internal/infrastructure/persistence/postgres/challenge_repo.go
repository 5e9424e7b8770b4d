package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/tutorhub/tutor-hub/internal/domain/challenge"
	"github.com/tutorhub/tutor-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// CHALLENGE REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// ChallengeRepository implements challenge.Repository for PostgreSQL.
type ChallengeRepository struct {
	conn *Connection
}

// NewChallengeRepository creates a new ChallengeRepository.
func NewChallengeRepository(conn *Connection) *ChallengeRepository {
	return &ChallengeRepository{conn: conn}
}

const challengeColumns = `id, user_id, profile_id, challenge_type, title, description,
	share_code, target_level, completed, created_at, completed_at`

// Create inserts a new challenge. A share-code collision surfaces as
// shared.ErrShareCodeCollision so the caller can regenerate and retry.
func (r *ChallengeRepository) Create(ctx context.Context, c *challenge.Challenge) error {
	query := `
		INSERT INTO challenges (
			id, user_id, profile_id, challenge_type, title, description,
			share_code, target_level, completed, created_at, completed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err := r.conn.Exec(ctx, query,
		c.ID,
		c.Subject.UserID,
		c.Subject.ProfileID,
		string(c.Type),
		c.Title,
		c.Description,
		c.ShareCode,
		c.TargetLevel,
		c.Completed,
		c.CreatedAt,
		c.CompletedAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return shared.ErrShareCodeCollision
		}
		return fmt.Errorf("failed to create challenge: %w", err)
	}
	return nil
}

// GetByShareCode returns the challenge with the given code.
func (r *ChallengeRepository) GetByShareCode(ctx context.Context, code string) (*challenge.Challenge, error) {
	query := fmt.Sprintf(`SELECT %s FROM challenges WHERE share_code = $1`, challengeColumns)

	row := r.conn.QueryRow(ctx, query, code)
	return r.scanChallenge(row)
}

// ListBySubject returns the subject's challenges, newest first.
func (r *ChallengeRepository) ListBySubject(ctx context.Context, subject shared.Subject, page shared.Pagination) ([]*challenge.Challenge, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM challenges
		WHERE user_id = $1 AND profile_id = $2
		ORDER BY created_at DESC
		LIMIT $3 OFFSET $4
	`, challengeColumns)

	rows, err := r.conn.Query(ctx, query, subject.UserID, subject.ProfileID, page.Limit(), page.Offset())
	if err != nil {
		return nil, fmt.Errorf("failed to query challenges: %w", err)
	}
	defer rows.Close()

	var result []*challenge.Challenge
	for rows.Next() {
		c, err := r.scanChallenge(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, c)
	}
	return result, rows.Err()
}

// Update writes the full challenge row by ID.
func (r *ChallengeRepository) Update(ctx context.Context, c *challenge.Challenge) error {
	query := `
		UPDATE challenges SET
			completed = $2,
			completed_at = $3
		WHERE id = $1
	`

	tag, err := r.conn.Exec(ctx, query, c.ID, c.Completed, c.CompletedAt)
	if err != nil {
		return fmt.Errorf("failed to update challenge: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrChallengeNotFound
	}
	return nil
}

// HasOpenRescue reports whether the subject has an uncompleted streak rescue.
func (r *ChallengeRepository) HasOpenRescue(ctx context.Context, subject shared.Subject) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM challenges
			WHERE user_id = $1 AND profile_id = $2
			  AND challenge_type = $3 AND completed = FALSE
		)
	`

	var exists bool
	err := r.conn.QueryRow(ctx, query, subject.UserID, subject.ProfileID, string(challenge.TypeStreakRescue)).Scan(&exists)
	if err != nil {
		return false, translateErr(fmt.Errorf("failed to check open rescue: %w", err))
	}
	return exists, nil
}

func (r *ChallengeRepository) scanChallenge(row pgx.Row) (*challenge.Challenge, error) {
	var (
		c             challenge.Challenge
		challengeType string
	)

	err := row.Scan(
		&c.ID,
		&c.Subject.UserID,
		&c.Subject.ProfileID,
		&challengeType,
		&c.Title,
		&c.Description,
		&c.ShareCode,
		&c.TargetLevel,
		&c.Completed,
		&c.CreatedAt,
		&c.CompletedAt,
	)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrChallengeNotFound
		}
		return nil, translateErr(fmt.Errorf("failed to scan challenge row: %w", err))
	}

	c.Type = challenge.Type(challengeType)
	return &c, nil
}
