package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/tutorhub/tutor-hub/internal/domain/ledger"
	"github.com/tutorhub/tutor-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// XP REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// XPRepository implements ledger.XPRepository for PostgreSQL.
type XPRepository struct {
	conn *Connection
}

// NewXPRepository creates a new XPRepository.
func NewXPRepository(conn *Connection) *XPRepository {
	return &XPRepository{conn: conn}
}

const xpColumns = `user_id, profile_id, total_xp, level, xp_to_next_level, history, created_at, updated_at`

// Get returns the subject's XP row.
func (r *XPRepository) Get(ctx context.Context, subject shared.Subject) (*ledger.XPLedger, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM xp_data
		WHERE user_id = $1 AND profile_id = $2
	`, xpColumns)

	row := r.conn.QueryRow(ctx, query, subject.UserID, subject.ProfileID)
	return r.scanXP(row)
}

// GetOrCreate returns the subject's XP row, inserting the default row when
// missing. If a concurrent insert wins the race, the winning row is
// refetched rather than surfacing the unique violation.
func (r *XPRepository) GetOrCreate(ctx context.Context, subject shared.Subject) (*ledger.XPLedger, error) {
	fresh := ledger.NewXPLedger(subject)
	return raceGetOrCreate(ctx,
		func(ctx context.Context) (*ledger.XPLedger, error) { return r.Get(ctx, subject) },
		func(ctx context.Context) error { return r.insert(ctx, fresh) },
		fresh,
	)
}

// Upsert writes the full row, inserting or replacing by subject.
func (r *XPRepository) Upsert(ctx context.Context, row *ledger.XPLedger) error {
	historyJSON, err := json.Marshal(row.History)
	if err != nil {
		return fmt.Errorf("failed to marshal xp history: %w", err)
	}

	query := `
		INSERT INTO xp_data (user_id, profile_id, total_xp, level, xp_to_next_level, history, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (user_id, profile_id) DO UPDATE SET
			total_xp = EXCLUDED.total_xp,
			level = EXCLUDED.level,
			xp_to_next_level = EXCLUDED.xp_to_next_level,
			history = EXCLUDED.history,
			updated_at = EXCLUDED.updated_at
	`

	_, err = r.conn.Exec(ctx, query,
		row.Subject.UserID,
		row.Subject.ProfileID,
		row.TotalXP.Int(),
		row.Level.Int(),
		row.XPToNextLevel.Int(),
		historyJSON,
		row.CreatedAt,
		row.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert xp row: %w", err)
	}
	return nil
}

func (r *XPRepository) insert(ctx context.Context, row *ledger.XPLedger) error {
	historyJSON := []byte("[]")
	if row.History != nil {
		var err error
		historyJSON, err = json.Marshal(row.History)
		if err != nil {
			return fmt.Errorf("failed to marshal xp history: %w", err)
		}
	}

	query := `
		INSERT INTO xp_data (user_id, profile_id, total_xp, level, xp_to_next_level, history, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := r.conn.Exec(ctx, query,
		row.Subject.UserID,
		row.Subject.ProfileID,
		row.TotalXP.Int(),
		row.Level.Int(),
		row.XPToNextLevel.Int(),
		historyJSON,
		row.CreatedAt,
		row.UpdatedAt,
	)
	return err
}

func (r *XPRepository) scanXP(row pgx.Row) (*ledger.XPLedger, error) {
	var (
		l           ledger.XPLedger
		historyJSON []byte
	)

	err := row.Scan(
		&l.Subject.UserID,
		&l.Subject.ProfileID,
		&l.TotalXP,
		&l.Level,
		&l.XPToNextLevel,
		&historyJSON,
		&l.CreatedAt,
		&l.UpdatedAt,
	)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrXPRowNotFound
		}
		return nil, translateErr(fmt.Errorf("failed to scan xp row: %w", err))
	}

	if len(historyJSON) > 0 {
		if err := json.Unmarshal(historyJSON, &l.History); err != nil {
			return nil, fmt.Errorf("failed to unmarshal xp history: %w", err)
		}
	}
	return &l, nil
}
