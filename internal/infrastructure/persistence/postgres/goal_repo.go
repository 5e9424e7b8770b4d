package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/tutorhub/tutor-hub/internal/domain/goal"
	"github.com/tutorhub/tutor-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// GOAL REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// GoalRepository implements goal.Repository for PostgreSQL.
type GoalRepository struct {
	conn *Connection
}

// NewGoalRepository creates a new GoalRepository.
func NewGoalRepository(conn *Connection) *GoalRepository {
	return &GoalRepository{conn: conn}
}

const goalColumns = `id, user_id, profile_id, goal_type, title, target_subject, target_count,
	completed_count, progress, status, created_at, updated_at, completed_at`

// Create inserts a new goal.
func (r *GoalRepository) Create(ctx context.Context, g *goal.LearningGoal) error {
	query := `
		INSERT INTO learning_goals (
			id, user_id, profile_id, goal_type, title, target_subject, target_count,
			completed_count, progress, status, created_at, updated_at, completed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`

	_, err := r.conn.Exec(ctx, query,
		g.ID,
		g.Subject.UserID,
		g.Subject.ProfileID,
		g.Type,
		g.Title,
		g.TargetSubject,
		g.TargetCount,
		g.CompletedCount,
		g.Progress,
		string(g.Status),
		g.CreatedAt,
		g.UpdatedAt,
		g.CompletedAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return shared.WrapError("goal", "Create", shared.ErrAlreadyExists, "goal already exists", err)
		}
		return fmt.Errorf("failed to create goal: %w", err)
	}
	return nil
}

// Update writes the full goal row by ID.
func (r *GoalRepository) Update(ctx context.Context, g *goal.LearningGoal) error {
	query := `
		UPDATE learning_goals SET
			completed_count = $2,
			progress = $3,
			status = $4,
			updated_at = $5,
			completed_at = $6
		WHERE id = $1
	`

	tag, err := r.conn.Exec(ctx, query,
		g.ID,
		g.CompletedCount,
		g.Progress,
		string(g.Status),
		g.UpdatedAt,
		g.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update goal: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrGoalNotFound
	}
	return nil
}

// GetByID returns a goal by ID.
func (r *GoalRepository) GetByID(ctx context.Context, id string) (*goal.LearningGoal, error) {
	query := fmt.Sprintf(`SELECT %s FROM learning_goals WHERE id = $1`, goalColumns)

	row := r.conn.QueryRow(ctx, query, id)
	return r.scanGoal(row)
}

// GetActive returns the subject's active goals, oldest first.
func (r *GoalRepository) GetActive(ctx context.Context, subject shared.Subject) ([]*goal.LearningGoal, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM learning_goals
		WHERE user_id = $1 AND profile_id = $2 AND status = 'active'
		ORDER BY created_at ASC
	`, goalColumns)

	rows, err := r.conn.Query(ctx, query, subject.UserID, subject.ProfileID)
	if err != nil {
		return nil, fmt.Errorf("failed to query active goals: %w", err)
	}
	defer rows.Close()

	var result []*goal.LearningGoal
	for rows.Next() {
		g, err := r.scanGoal(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, g)
	}
	return result, rows.Err()
}

func (r *GoalRepository) scanGoal(row pgx.Row) (*goal.LearningGoal, error) {
	var (
		g      goal.LearningGoal
		status string
	)

	err := row.Scan(
		&g.ID,
		&g.Subject.UserID,
		&g.Subject.ProfileID,
		&g.Type,
		&g.Title,
		&g.TargetSubject,
		&g.TargetCount,
		&g.CompletedCount,
		&g.Progress,
		&status,
		&g.CreatedAt,
		&g.UpdatedAt,
		&g.CompletedAt,
	)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrGoalNotFound
		}
		return nil, translateErr(fmt.Errorf("failed to scan goal row: %w", err))
	}

	g.Status = goal.Status(status)
	return &g, nil
}
