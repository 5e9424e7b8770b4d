package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/tutorhub/tutor-hub/internal/domain/ledger"
	"github.com/tutorhub/tutor-hub/internal/domain/shared"
	"github.com/tutorhub/tutor-hub/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// STREAK REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// StreakRepository implements ledger.StreakRepository for PostgreSQL.
type StreakRepository struct {
	conn *Connection
}

// NewStreakRepository creates a new StreakRepository.
func NewStreakRepository(conn *Connection) *StreakRepository {
	return &StreakRepository{conn: conn}
}

const streakColumns = `user_id, profile_id, current_streak, longest_streak, last_study_date, created_at, updated_at`

// Get returns the subject's streak row.
func (r *StreakRepository) Get(ctx context.Context, subject shared.Subject) (*ledger.StreakRecord, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM streaks
		WHERE user_id = $1 AND profile_id = $2
	`, streakColumns)

	row := r.conn.QueryRow(ctx, query, subject.UserID, subject.ProfileID)
	return r.scanStreak(row)
}

// GetOrCreate returns the subject's streak row, inserting the default row
// when missing.
func (r *StreakRepository) GetOrCreate(ctx context.Context, subject shared.Subject) (*ledger.StreakRecord, error) {
	fresh := ledger.NewStreakRecord(subject)
	return raceGetOrCreate(ctx,
		func(ctx context.Context) (*ledger.StreakRecord, error) { return r.Get(ctx, subject) },
		func(ctx context.Context) error { return r.insert(ctx, fresh) },
		fresh,
	)
}

// Upsert writes the full row, inserting or replacing by subject.
func (r *StreakRepository) Upsert(ctx context.Context, row *ledger.StreakRecord) error {
	query := `
		INSERT INTO streaks (user_id, profile_id, current_streak, longest_streak, last_study_date, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (user_id, profile_id) DO UPDATE SET
			current_streak = EXCLUDED.current_streak,
			longest_streak = EXCLUDED.longest_streak,
			last_study_date = EXCLUDED.last_study_date,
			updated_at = EXCLUDED.updated_at
	`

	_, err := r.conn.Exec(ctx, query,
		row.Subject.UserID,
		row.Subject.ProfileID,
		row.CurrentStreak,
		row.LongestStreak,
		row.LastStudyDate,
		row.CreatedAt,
		row.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert streak row: %w", err)
	}
	return nil
}

// ListAtRisk returns rows with a live streak and no practice recorded on the
// given day.
func (r *StreakRepository) ListAtRisk(ctx context.Context, day time.Time, limit int) ([]*ledger.StreakRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	query := fmt.Sprintf(`
		SELECT %s FROM streaks
		WHERE current_streak > 0 AND last_study_date < $1
		ORDER BY last_study_date ASC
		LIMIT $2
	`, streakColumns)

	rows, err := r.conn.Query(ctx, query, timeutil.StartOfDay(day), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query at-risk streaks: %w", err)
	}
	defer rows.Close()

	var result []*ledger.StreakRecord
	for rows.Next() {
		record, err := r.scanStreak(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, record)
	}
	return result, rows.Err()
}

func (r *StreakRepository) insert(ctx context.Context, row *ledger.StreakRecord) error {
	query := `
		INSERT INTO streaks (user_id, profile_id, current_streak, longest_streak, last_study_date, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.conn.Exec(ctx, query,
		row.Subject.UserID,
		row.Subject.ProfileID,
		row.CurrentStreak,
		row.LongestStreak,
		row.LastStudyDate,
		row.CreatedAt,
		row.UpdatedAt,
	)
	return err
}

func (r *StreakRepository) scanStreak(row pgx.Row) (*ledger.StreakRecord, error) {
	var (
		s    ledger.StreakRecord
		last *time.Time
	)

	err := row.Scan(
		&s.Subject.UserID,
		&s.Subject.ProfileID,
		&s.CurrentStreak,
		&s.LongestStreak,
		&last,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrStreakNotFound
		}
		return nil, translateErr(fmt.Errorf("failed to scan streak row: %w", err))
	}

	if last != nil {
		// DATE columns come back at midnight in the session zone; normalize
		// to UTC so day arithmetic stays stable.
		normalized := timeutil.StartOfDay(*last)
		s.LastStudyDate = &normalized
	}
	return &s, nil
}
