package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/tutorhub/tutor-hub/internal/domain/ledger"
	"github.com/tutorhub/tutor-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// PROBLEM REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// ProblemRepository implements ledger.ProblemRepository for PostgreSQL.
type ProblemRepository struct {
	conn *Connection
}

// NewProblemRepository creates a new ProblemRepository.
func NewProblemRepository(conn *Connection) *ProblemRepository {
	return &ProblemRepository{conn: conn}
}

const problemColumns = `id, user_id, profile_id, problem_text, problem_type, difficulty, solved_at, created_at`

// Save inserts a new problem record.
func (r *ProblemRepository) Save(ctx context.Context, p *ledger.Problem) error {
	query := `
		INSERT INTO problems (id, user_id, profile_id, problem_text, problem_type, difficulty, solved_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := r.conn.Exec(ctx, query,
		p.ID,
		p.Subject.UserID,
		p.Subject.ProfileID,
		p.Text,
		string(p.Type),
		string(p.Difficulty),
		p.SolvedAt,
		p.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save problem: %w", err)
	}
	return nil
}

// FindExact returns the subject's problem whose text matches exactly. When
// the same text was presented more than once, the newest row wins.
func (r *ProblemRepository) FindExact(ctx context.Context, subject shared.Subject, text string) (*ledger.Problem, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM problems
		WHERE user_id = $1 AND profile_id = $2 AND problem_text = $3
		ORDER BY created_at DESC
		LIMIT 1
	`, problemColumns)

	row := r.conn.QueryRow(ctx, query, subject.UserID, subject.ProfileID, text)
	return r.scanProblem(row)
}

// FindByPrefix returns the most recently created problem whose text starts
// with the given prefix. The prefix is matched literally: LIKE metacharacters
// in problem text carry no wildcard meaning.
func (r *ProblemRepository) FindByPrefix(ctx context.Context, subject shared.Subject, prefix string) (*ledger.Problem, error) {
	if prefix == "" {
		return nil, shared.ErrProblemNotFound
	}
	query := fmt.Sprintf(`
		SELECT %s FROM problems
		WHERE user_id = $1 AND profile_id = $2 AND problem_text LIKE $3 || '%%' ESCAPE '\'
		ORDER BY created_at DESC
		LIMIT 1
	`, problemColumns)

	row := r.conn.QueryRow(ctx, query, subject.UserID, subject.ProfileID, escapeLike(prefix))
	return r.scanProblem(row)
}

// escapeLike escapes the LIKE pattern metacharacters so arbitrary problem
// text is matched literally.
func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// FindMostRecentUnsolved returns the subject's newest unsolved problem.
func (r *ProblemRepository) FindMostRecentUnsolved(ctx context.Context, subject shared.Subject) (*ledger.Problem, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM problems
		WHERE user_id = $1 AND profile_id = $2 AND solved_at IS NULL
		ORDER BY created_at DESC
		LIMIT 1
	`, problemColumns)

	row := r.conn.QueryRow(ctx, query, subject.UserID, subject.ProfileID)
	return r.scanProblem(row)
}

// MarkSolved sets the solved timestamp. Marking an already-solved problem is
// a no-op and reports false.
func (r *ProblemRepository) MarkSolved(ctx context.Context, problemID string, at time.Time) (bool, error) {
	query := `
		UPDATE problems SET solved_at = $2
		WHERE id = $1 AND solved_at IS NULL
	`

	tag, err := r.conn.Exec(ctx, query, problemID, at.UTC())
	if err != nil {
		return false, fmt.Errorf("failed to mark problem solved: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// ListBySubject returns the subject's problems, newest first.
func (r *ProblemRepository) ListBySubject(ctx context.Context, subject shared.Subject, page shared.Pagination) ([]*ledger.Problem, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM problems
		WHERE user_id = $1 AND profile_id = $2
		ORDER BY created_at DESC
		LIMIT $3 OFFSET $4
	`, problemColumns)

	rows, err := r.conn.Query(ctx, query, subject.UserID, subject.ProfileID, page.Limit(), page.Offset())
	if err != nil {
		return nil, fmt.Errorf("failed to query problems: %w", err)
	}
	defer rows.Close()

	var result []*ledger.Problem
	for rows.Next() {
		p, err := r.scanProblem(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, p)
	}
	return result, rows.Err()
}

func (r *ProblemRepository) scanProblem(row pgx.Row) (*ledger.Problem, error) {
	var (
		p              ledger.Problem
		problemType    string
		difficultyText string
	)

	err := row.Scan(
		&p.ID,
		&p.Subject.UserID,
		&p.Subject.ProfileID,
		&p.Text,
		&problemType,
		&difficultyText,
		&p.SolvedAt,
		&p.CreatedAt,
	)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrProblemNotFound
		}
		return nil, translateErr(fmt.Errorf("failed to scan problem row: %w", err))
	}

	p.Type = shared.ProblemType(problemType)
	p.Difficulty = shared.Difficulty(difficultyText)
	return &p, nil
}
