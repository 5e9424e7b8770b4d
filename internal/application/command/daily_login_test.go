package command

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tutorhub/tutor-hub/internal/domain/ledger"
	"github.com/tutorhub/tutor-hub/internal/domain/shared"
)

type fakeXPRepo struct {
	mu      sync.Mutex
	rows    map[string]*ledger.XPLedger
	loads   int
	upserts int
}

func newFakeXPRepo() *fakeXPRepo {
	return &fakeXPRepo{rows: make(map[string]*ledger.XPLedger)}
}

func (f *fakeXPRepo) Get(_ context.Context, subject shared.Subject) (*ledger.XPLedger, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.rows[subject.Key()]
	if !ok {
		return nil, shared.ErrXPRowNotFound
	}
	return row, nil
}

func (f *fakeXPRepo) GetOrCreate(_ context.Context, subject shared.Subject) (*ledger.XPLedger, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loads++
	if row, ok := f.rows[subject.Key()]; ok {
		return row, nil
	}
	row := ledger.NewXPLedger(subject)
	f.rows[subject.Key()] = row
	return row, nil
}

func (f *fakeXPRepo) Upsert(_ context.Context, row *ledger.XPLedger) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.upserts++
	f.rows[row.Subject.Key()] = row
	return nil
}

type capturingPublisher struct {
	mu     sync.Mutex
	events []shared.Event
}

func (p *capturingPublisher) Publish(event shared.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestDailyLoginAwardsOncePerDay(t *testing.T) {
	repo := newFakeXPRepo()
	cmd := NewDailyLoginCommand(repo, nil, nil, testLogger(), 0)
	subject := shared.Subject{UserID: "user-1"}
	now := time.Date(2026, 4, 2, 8, 0, 0, 0, time.UTC)

	first, err := cmd.Execute(context.Background(), subject, now)
	require.NoError(t, err)
	assert.True(t, first.Awarded)
	assert.Equal(t, 5, first.Amount)
	assert.Equal(t, 5, first.TotalXP)

	// Second check later the same day is a no-op.
	second, err := cmd.Execute(context.Background(), subject, now.Add(6*time.Hour))
	require.NoError(t, err)
	assert.False(t, second.Awarded)
	assert.Equal(t, 5, second.TotalXP)

	// The next day awards again.
	third, err := cmd.Execute(context.Background(), subject, now.AddDate(0, 0, 1))
	require.NoError(t, err)
	assert.True(t, third.Awarded)
	assert.Equal(t, 10, third.TotalXP)
}

func TestDailyLoginPublishesLevelUp(t *testing.T) {
	repo := newFakeXPRepo()
	publisher := &capturingPublisher{}
	cmd := NewDailyLoginCommand(repo, publisher, nil, testLogger(), 0)
	subject := shared.Subject{UserID: "user-1"}
	now := time.Date(2026, 4, 2, 8, 0, 0, 0, time.UTC)

	seed := ledger.NewXPLedger(subject)
	_, _, err := seed.Grant(97, ledger.ReasonProblemCompleted, now.AddDate(0, 0, -1))
	require.NoError(t, err)
	require.NoError(t, repo.Upsert(context.Background(), seed))

	result, err := cmd.Execute(context.Background(), subject, now)
	require.NoError(t, err)
	assert.True(t, result.Awarded)
	assert.True(t, result.LeveledUp)
	assert.Equal(t, 2, result.Level)

	require.Len(t, publisher.events, 1)
	assert.Equal(t, shared.EventLevelUp, publisher.events[0].EventType())
}

func TestDailyLoginCoalescesConcurrentChecks(t *testing.T) {
	repo := newFakeXPRepo()
	cmd := NewDailyLoginCommand(repo, nil, nil, testLogger(), 0)
	subject := shared.Subject{UserID: "user-1"}
	now := time.Date(2026, 4, 2, 8, 0, 0, 0, time.UTC)

	var wg sync.WaitGroup
	awarded := make([]bool, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			result, err := cmd.Execute(context.Background(), subject, now)
			assert.NoError(t, err)
			awarded[i] = result.Awarded
		}(i)
	}
	wg.Wait()

	row, err := repo.Get(context.Background(), subject)
	require.NoError(t, err)
	assert.Equal(t, 5, row.TotalXP.Int(), "the bonus lands at most once")
	assert.Len(t, row.History, 1)
}
