package postgres

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tutorhub/tutor-hub/internal/domain/ledger"
	"github.com/tutorhub/tutor-hub/internal/domain/shared"
)

func uniqueViolation() error {
	return &pgconn.PgError{Code: "23505"}
}

func TestRaceGetOrCreateReturnsExistingRow(t *testing.T) {
	subject := shared.Subject{UserID: "user-1"}
	existing := ledger.NewXPLedger(subject)

	inserts := 0
	row, err := raceGetOrCreate(context.Background(),
		func(context.Context) (*ledger.XPLedger, error) { return existing, nil },
		func(context.Context) error { inserts++; return nil },
		ledger.NewXPLedger(subject),
	)

	require.NoError(t, err)
	assert.Same(t, existing, row)
	assert.Equal(t, 0, inserts, "existing row must not trigger an insert")
}

func TestRaceGetOrCreateInsertsDefaultWhenMissing(t *testing.T) {
	subject := shared.Subject{UserID: "user-1"}
	fresh := ledger.NewXPLedger(subject)

	inserts := 0
	row, err := raceGetOrCreate(context.Background(),
		func(context.Context) (*ledger.XPLedger, error) { return nil, shared.ErrXPRowNotFound },
		func(context.Context) error { inserts++; return nil },
		fresh,
	)

	require.NoError(t, err)
	assert.Same(t, fresh, row)
	assert.Equal(t, 1, inserts)
}

func TestRaceGetOrCreateRefetchesWhenInsertLosesRace(t *testing.T) {
	subject := shared.Subject{UserID: "user-1"}
	winner := ledger.NewXPLedger(subject)
	_, _, err := winner.Grant(10, ledger.ReasonProblemCompleted, time.Now().UTC())
	require.NoError(t, err)

	gets := 0
	row, err := raceGetOrCreate(context.Background(),
		func(context.Context) (*ledger.XPLedger, error) {
			gets++
			if gets == 1 {
				// Not there yet; the concurrent winner inserts between the
				// read and our insert attempt.
				return nil, shared.ErrXPRowNotFound
			}
			return winner, nil
		},
		func(context.Context) error { return uniqueViolation() },
		ledger.NewXPLedger(subject),
	)

	require.NoError(t, err, "losing the insert race must not surface an error")
	assert.Same(t, winner, row, "loser must observe the winning row")
	assert.Equal(t, 10, row.TotalXP.Int())
	assert.Equal(t, 2, gets)
}

func TestRaceGetOrCreateSurfacesOtherInsertErrors(t *testing.T) {
	subject := shared.Subject{UserID: "user-1"}
	boom := errors.New("connection reset")

	_, err := raceGetOrCreate(context.Background(),
		func(context.Context) (*ledger.XPLedger, error) { return nil, shared.ErrXPRowNotFound },
		func(context.Context) error { return boom },
		ledger.NewXPLedger(subject),
	)

	assert.ErrorIs(t, err, boom)
}

func TestRaceGetOrCreateConcurrentCallersShareOneRow(t *testing.T) {
	subject := shared.Subject{UserID: "user-1"}

	// A minimal single-row table: the first insert wins, every later insert
	// reports a unique violation.
	var mu sync.Mutex
	var stored *ledger.XPLedger

	get := func(context.Context) (*ledger.XPLedger, error) {
		mu.Lock()
		defer mu.Unlock()
		if stored == nil {
			return nil, shared.ErrXPRowNotFound
		}
		return stored, nil
	}

	const callers = 8
	results := make([]*ledger.XPLedger, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			fresh := ledger.NewXPLedger(subject)
			insert := func(context.Context) error {
				mu.Lock()
				defer mu.Unlock()
				if stored != nil {
					return uniqueViolation()
				}
				stored = fresh
				return nil
			}
			row, err := raceGetOrCreate(context.Background(), get, insert, fresh)
			assert.NoError(t, err)
			results[i] = row
		}(i)
	}
	wg.Wait()

	require.NotNil(t, stored, "exactly one insert must have landed")
	for _, row := range results {
		assert.Same(t, stored, row, "all callers observe the single row")
		assert.Equal(t, stored.TotalXP.Int(), row.TotalXP.Int())
	}
}
