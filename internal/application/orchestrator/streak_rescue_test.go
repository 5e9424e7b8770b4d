package orchestrator

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tutorhub/tutor-hub/internal/domain/challenge"
	"github.com/tutorhub/tutor-hub/internal/domain/ledger"
	"github.com/tutorhub/tutor-hub/internal/domain/shared"
)

type rescueFixture struct {
	streaks    *fakeStreakRepo
	challenges *fakeChallengeRepo
	publisher  *capturingPublisher
	mirror     *fakeMirror
	rescuer    *StreakRescuer
}

func newRescueFixture() *rescueFixture {
	f := &rescueFixture{
		streaks:    newFakeStreakRepo(),
		challenges: &fakeChallengeRepo{},
		publisher:  &capturingPublisher{},
		mirror:     newFakeMirror(),
	}
	f.rescuer = NewStreakRescuer(
		f.streaks,
		f.challenges,
		f.publisher,
		f.mirror,
		slog.New(slog.NewTextHandler(io.Discard, nil)),
	)
	return f
}

// seedStreak stores a streak last practiced daysAgo days before now.
func (f *rescueFixture) seedStreak(subject shared.Subject, current int, daysAgo int, now time.Time) *ledger.StreakRecord {
	last := now.AddDate(0, 0, -daysAgo)
	row := ledger.NewStreakRecord(subject)
	row.CurrentStreak = current
	row.LongestStreak = current
	row.LastStudyDate = &last
	f.streaks.rows[subject.Key()] = row
	return row
}

func TestCheckAndRescueCreatesChallengeAndNotice(t *testing.T) {
	f := newRescueFixture()
	subject := testSubject()
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	f.seedStreak(subject, 12, 1, now)

	require.NoError(t, f.rescuer.CheckAndRescue(context.Background(), subject, now))

	require.Len(t, f.challenges.challenges, 1)
	c := f.challenges.challenges[0]
	assert.Equal(t, challenge.TypeStreakRescue, c.Type)
	assert.Contains(t, c.Description, "12-day streak")

	assert.Len(t, f.publisher.byType(shared.EventStreakAtRisk), 1)
	assert.Len(t, f.publisher.byType(shared.EventChallengeCreated), 1)

	notice, ok := f.mirror.notices[subject.Key()]
	require.True(t, ok, "notice written for the UI")
	assert.Equal(t, 12, notice.CurrentStreak)
	assert.Equal(t, c.ShareCode, notice.ShareCode)
}

func TestCheckAndRescueSkipsHealthyStreak(t *testing.T) {
	f := newRescueFixture()
	subject := testSubject()
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	f.seedStreak(subject, 5, 0, now)

	require.NoError(t, f.rescuer.CheckAndRescue(context.Background(), subject, now))

	assert.Empty(t, f.challenges.challenges)
	assert.Empty(t, f.publisher.events)
}

func TestCheckAndRescueSkipsUnknownSubject(t *testing.T) {
	f := newRescueFixture()

	require.NoError(t, f.rescuer.CheckAndRescue(context.Background(), testSubject(), time.Now().UTC()))
	assert.Empty(t, f.challenges.challenges)
}

func TestCheckAndRescueSuppressesDuplicateRescue(t *testing.T) {
	f := newRescueFixture()
	subject := testSubject()
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	f.seedStreak(subject, 7, 1, now)

	require.NoError(t, f.rescuer.CheckAndRescue(context.Background(), subject, now))
	require.NoError(t, f.rescuer.CheckAndRescue(context.Background(), subject, now))

	assert.Len(t, f.challenges.challenges, 1, "open rescue suppresses a second one")
	assert.Len(t, f.publisher.byType(shared.EventStreakAtRisk), 1)
}

func TestCheckAndRescueRetriesShareCodeCollision(t *testing.T) {
	f := newRescueFixture()
	subject := testSubject()
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	f.seedStreak(subject, 3, 1, now)
	f.challenges.failCreates = 2

	require.NoError(t, f.rescuer.CheckAndRescue(context.Background(), subject, now))

	assert.Equal(t, 3, f.challenges.createCalled)
	require.Len(t, f.challenges.challenges, 1)
}

func TestSweepRescuesEveryAtRiskSubject(t *testing.T) {
	f := newRescueFixture()
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	atRisk1 := shared.Subject{UserID: "user-1"}
	atRisk2 := shared.Subject{UserID: "user-2", ProfileID: "kid"}
	healthy := shared.Subject{UserID: "user-3"}
	f.seedStreak(atRisk1, 4, 1, now)
	f.seedStreak(atRisk2, 9, 2, now)
	f.seedStreak(healthy, 2, 0, now)

	rescued, err := f.rescuer.Sweep(context.Background(), now, 100)
	require.NoError(t, err)
	assert.Equal(t, 2, rescued)
	assert.Len(t, f.challenges.challenges, 2)
}
