package orchestrator

import (
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tutorhub/tutor-hub/internal/domain/challenge"
	"github.com/tutorhub/tutor-hub/internal/domain/goal"
	"github.com/tutorhub/tutor-hub/internal/domain/ledger"
	"github.com/tutorhub/tutor-hub/internal/domain/shared"
)

type handlerFixture struct {
	xp         *fakeXPRepo
	streaks    *fakeStreakRepo
	problems   *fakeProblemRepo
	unlocks    *fakeAchievementRepo
	goals      *fakeGoalRepo
	challenges *fakeChallengeRepo
	publisher  *capturingPublisher
	mirror     *fakeMirror
	handler    *OnProblemCompletedHandler
}

func newHandlerFixture() *handlerFixture {
	f := &handlerFixture{
		xp:         newFakeXPRepo(),
		streaks:    newFakeStreakRepo(),
		problems:   &fakeProblemRepo{},
		unlocks:    newFakeAchievementRepo(),
		goals:      &fakeGoalRepo{},
		challenges: &fakeChallengeRepo{},
		publisher:  &capturingPublisher{},
		mirror:     newFakeMirror(),
	}
	f.handler = NewOnProblemCompletedHandler(
		f.xp,
		f.streaks,
		f.problems,
		f.unlocks,
		f.goals,
		f.challenges,
		NewProblemResolver(f.problems),
		f.publisher,
		f.mirror,
		slog.New(slog.NewTextHandler(io.Discard, nil)),
		DefaultProblemCompletedConfig(),
	)
	return f
}

func completedEvent(subject shared.Subject, text string) shared.ProblemCompletedEvent {
	return shared.NewProblemCompletedEvent(subject, text, "algebra", shared.DifficultyMiddle, 0)
}

func TestHandleGrantsXPStreakAndAchievement(t *testing.T) {
	f := newHandlerFixture()
	subject := testSubject()

	err := f.handler.Handle(completedEvent(subject, "solve 2x = 4"))
	require.NoError(t, err)

	xpRow, err := f.xp.Get(nil, subject)
	require.NoError(t, err)
	assert.Equal(t, 10, xpRow.TotalXP.Int())
	assert.Equal(t, 1, xpRow.Level.Int())

	streakRow, err := f.streaks.Get(nil, subject)
	require.NoError(t, err)
	assert.Equal(t, 1, streakRow.CurrentStreak)

	// The completion was recorded as a solved problem.
	require.Len(t, f.problems.problems, 1)
	assert.True(t, f.problems.problems[0].IsSolved())

	// First-problem achievement unlocked and announced.
	unlocked := f.publisher.byType(shared.EventAchievementUnlocked)
	require.Len(t, unlocked, 1)
	assert.Equal(t, ledger.AchievementFirstProblem, unlocked[0].(shared.AchievementUnlockedEvent).AchievementType)

	// Cache mirror written.
	assert.Equal(t, 1, f.mirror.xpWrites)
	assert.Equal(t, 1, f.mirror.streakWrites)
}

func TestHandleCreatesChallengeWithoutLevelUp(t *testing.T) {
	f := newHandlerFixture()
	subject := testSubject()

	// 10 XP stays well below the first level boundary.
	require.NoError(t, f.handler.Handle(completedEvent(subject, "solve 2x = 4")))
	assert.Empty(t, f.publisher.byType(shared.EventLevelUp))

	// Every counted completion still yields a shareable challenge at the
	// subject's current level.
	require.Len(t, f.challenges.challenges, 1)
	c := f.challenges.challenges[0]
	assert.Equal(t, challenge.TypeBeatMySkill, c.Type)
	assert.Equal(t, 1, c.TargetLevel)
	assert.Len(t, f.publisher.byType(shared.EventChallengeCreated), 1)

	// A second, distinct completion yields a second challenge.
	require.NoError(t, f.handler.Handle(completedEvent(subject, "solve 3x = 9")))
	assert.Len(t, f.challenges.challenges, 2)
}

func TestHandleDuplicateDeliveryGrantsNothing(t *testing.T) {
	f := newHandlerFixture()
	subject := testSubject()

	require.NoError(t, f.handler.Handle(completedEvent(subject, "solve 2x = 4")))
	firstEvents := len(f.publisher.events)

	// The same completion delivered again resolves onto the solved row.
	require.NoError(t, f.handler.Handle(completedEvent(subject, "solve 2x = 4")))

	xpRow, err := f.xp.Get(nil, subject)
	require.NoError(t, err)
	assert.Equal(t, 10, xpRow.TotalXP.Int(), "duplicate must not grant again")
	assert.Len(t, f.publisher.events, firstEvents, "duplicate must not publish")
	assert.Len(t, f.challenges.challenges, 1, "duplicate must not create another challenge")
}

func TestHandleResolvesSeededUnsolvedProblem(t *testing.T) {
	f := newHandlerFixture()
	subject := testSubject()
	seeded := ledger.NewProblem("p1", subject, "solve 2x = 4", "algebra", shared.DifficultyMiddle)
	f.problems.problems = append(f.problems.problems, seeded)

	require.NoError(t, f.handler.Handle(completedEvent(subject, "solve 2x = 4")))

	assert.True(t, seeded.IsSolved())
	require.Len(t, f.problems.problems, 1, "no duplicate problem row created")

	xpRow, err := f.xp.Get(nil, subject)
	require.NoError(t, err)
	assert.Equal(t, 10, xpRow.TotalXP.Int())
}

func TestHandleLevelUpEmitsEventAndChallenge(t *testing.T) {
	f := newHandlerFixture()
	subject := testSubject()

	seed := ledger.NewXPLedger(subject)
	_, _, err := seed.Grant(95, ledger.ReasonProblemCompleted, seed.CreatedAt)
	require.NoError(t, err)
	require.NoError(t, f.xp.Upsert(nil, seed))

	require.NoError(t, f.handler.Handle(completedEvent(subject, "solve x + 1 = 2")))

	levelUps := f.publisher.byType(shared.EventLevelUp)
	require.Len(t, levelUps, 1)
	lu := levelUps[0].(shared.LevelUpEvent)
	assert.Equal(t, 1, lu.OldLevel.Int())
	assert.Equal(t, 2, lu.NewLevel.Int())

	// The completion's challenge targets the freshly reached level.
	require.Len(t, f.challenges.challenges, 1)
	c := f.challenges.challenges[0]
	assert.Equal(t, challenge.TypeBeatMySkill, c.Type)
	assert.Equal(t, 2, c.TargetLevel)
	assert.Len(t, f.publisher.byType(shared.EventChallengeCreated), 1)
}

func TestHandleGoalCompletedExactlyOnce(t *testing.T) {
	f := newHandlerFixture()
	subject := testSubject()

	g, err := goal.NewLearningGoal("g1", subject, goal.TypeProblemCount, "Practice algebra", "algebra", 1)
	require.NoError(t, err)
	require.NoError(t, f.goals.Create(nil, g))

	require.NoError(t, f.handler.Handle(completedEvent(subject, "solve 2x = 4")))
	require.Len(t, f.publisher.byType(shared.EventGoalCompleted), 1)
	assert.Equal(t, goal.StatusCompleted, g.Status)

	// A later completion does not re-complete the goal.
	require.NoError(t, f.handler.Handle(completedEvent(subject, "solve 3x = 9")))
	assert.Len(t, f.publisher.byType(shared.EventGoalCompleted), 1)
	assert.Equal(t, 1, g.CompletedCount)
}

func TestHandleNonMatchingGoalUntouched(t *testing.T) {
	f := newHandlerFixture()
	subject := testSubject()

	g, err := goal.NewLearningGoal("g1", subject, goal.TypeProblemCount, "Practice geometry", "geometry", 3)
	require.NoError(t, err)
	require.NoError(t, f.goals.Create(nil, g))

	require.NoError(t, f.handler.Handle(completedEvent(subject, "solve 2x = 4")))

	assert.Equal(t, 0, g.CompletedCount)
	assert.Empty(t, f.publisher.byType(shared.EventGoalCompleted))
}

func TestHandleXPFailureDoesNotBlockStreak(t *testing.T) {
	f := newHandlerFixture()
	subject := testSubject()
	f.xp.loadErr = errors.New("store down")

	err := f.handler.Handle(completedEvent(subject, "solve 2x = 4"))
	require.NoError(t, err, "publisher must never see a step failure")

	streakRow, err := f.streaks.Get(nil, subject)
	require.NoError(t, err)
	assert.Equal(t, 1, streakRow.CurrentStreak, "streak step still ran")
}

func TestHandleIgnoresForeignEventType(t *testing.T) {
	f := newHandlerFixture()

	err := f.handler.Handle(shared.NewLevelUpEvent(testSubject(), 1, 2, 100))
	require.NoError(t, err)
	assert.Empty(t, f.publisher.events)
	assert.Empty(t, f.xp.rows)
}

func TestHandleEmitsDeclaration(t *testing.T) {
	f := newHandlerFixture()

	emits := f.handler.Emits()
	assert.Contains(t, emits, shared.EventLevelUp)
	assert.Contains(t, emits, shared.EventGoalCompleted)
	assert.Contains(t, emits, shared.EventAchievementUnlocked)
	assert.Contains(t, emits, shared.EventChallengeCreated)
	assert.NotContains(t, emits, shared.EventProblemCompleted)
}
