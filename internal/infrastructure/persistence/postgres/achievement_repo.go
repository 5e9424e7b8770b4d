package postgres

import (
	"context"
	"fmt"

	"github.com/tutorhub/tutor-hub/internal/domain/ledger"
	"github.com/tutorhub/tutor-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// ACHIEVEMENT REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// AchievementRepository implements ledger.AchievementRepository for PostgreSQL.
type AchievementRepository struct {
	conn *Connection
}

// NewAchievementRepository creates a new AchievementRepository.
func NewAchievementRepository(conn *Connection) *AchievementRepository {
	return &AchievementRepository{conn: conn}
}

// Unlock records an achievement. The unique constraint absorbs repeats: the
// return value reports whether this call actually inserted the unlock.
func (r *AchievementRepository) Unlock(ctx context.Context, a ledger.Achievement) (bool, error) {
	query := `
		INSERT INTO achievements (user_id, profile_id, achievement_type, title, unlocked_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id, profile_id, achievement_type) DO NOTHING
	`

	tag, err := r.conn.Exec(ctx, query,
		a.Subject.UserID,
		a.Subject.ProfileID,
		a.Type,
		a.Title,
		a.UnlockedAt,
	)
	if err != nil {
		return false, fmt.Errorf("failed to unlock achievement: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// List returns all of the subject's unlocks, newest first.
func (r *AchievementRepository) List(ctx context.Context, subject shared.Subject) ([]ledger.Achievement, error) {
	query := `
		SELECT user_id, profile_id, achievement_type, title, unlocked_at
		FROM achievements
		WHERE user_id = $1 AND profile_id = $2
		ORDER BY unlocked_at DESC
	`

	rows, err := r.conn.Query(ctx, query, subject.UserID, subject.ProfileID)
	if err != nil {
		return nil, fmt.Errorf("failed to query achievements: %w", err)
	}
	defer rows.Close()

	var result []ledger.Achievement
	for rows.Next() {
		var a ledger.Achievement
		err := rows.Scan(
			&a.Subject.UserID,
			&a.Subject.ProfileID,
			&a.Type,
			&a.Title,
			&a.UnlockedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan achievement row: %w", err)
		}
		result = append(result, a)
	}
	return result, rows.Err()
}
