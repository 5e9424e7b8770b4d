package orchestrator

import (
	"context"
	"strings"
	"time"

	"github.com/tutorhub/tutor-hub/internal/domain/challenge"
	"github.com/tutorhub/tutor-hub/internal/domain/goal"
	"github.com/tutorhub/tutor-hub/internal/domain/ledger"
	"github.com/tutorhub/tutor-hub/internal/domain/shared"
)

// In-memory repository fakes used across the orchestrator tests.

type fakeXPRepo struct {
	rows    map[string]*ledger.XPLedger
	loadErr error
	saveErr error
}

func newFakeXPRepo() *fakeXPRepo {
	return &fakeXPRepo{rows: make(map[string]*ledger.XPLedger)}
}

func (f *fakeXPRepo) Get(_ context.Context, subject shared.Subject) (*ledger.XPLedger, error) {
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	row, ok := f.rows[subject.Key()]
	if !ok {
		return nil, shared.ErrXPRowNotFound
	}
	return row, nil
}

func (f *fakeXPRepo) GetOrCreate(_ context.Context, subject shared.Subject) (*ledger.XPLedger, error) {
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	if row, ok := f.rows[subject.Key()]; ok {
		return row, nil
	}
	row := ledger.NewXPLedger(subject)
	f.rows[subject.Key()] = row
	return row, nil
}

func (f *fakeXPRepo) Upsert(_ context.Context, row *ledger.XPLedger) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.rows[row.Subject.Key()] = row
	return nil
}

type fakeStreakRepo struct {
	rows    map[string]*ledger.StreakRecord
	loadErr error
}

func newFakeStreakRepo() *fakeStreakRepo {
	return &fakeStreakRepo{rows: make(map[string]*ledger.StreakRecord)}
}

func (f *fakeStreakRepo) Get(_ context.Context, subject shared.Subject) (*ledger.StreakRecord, error) {
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	row, ok := f.rows[subject.Key()]
	if !ok {
		return nil, shared.ErrStreakNotFound
	}
	return row, nil
}

func (f *fakeStreakRepo) GetOrCreate(_ context.Context, subject shared.Subject) (*ledger.StreakRecord, error) {
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	if row, ok := f.rows[subject.Key()]; ok {
		return row, nil
	}
	row := ledger.NewStreakRecord(subject)
	f.rows[subject.Key()] = row
	return row, nil
}

func (f *fakeStreakRepo) Upsert(_ context.Context, row *ledger.StreakRecord) error {
	f.rows[row.Subject.Key()] = row
	return nil
}

func (f *fakeStreakRepo) ListAtRisk(_ context.Context, day time.Time, limit int) ([]*ledger.StreakRecord, error) {
	var result []*ledger.StreakRecord
	for _, row := range f.rows {
		if row.AtRisk(day) {
			result = append(result, row)
		}
		if limit > 0 && len(result) >= limit {
			break
		}
	}
	return result, nil
}

type fakeProblemRepo struct {
	problems []*ledger.Problem
	saveErr  error
}

func (f *fakeProblemRepo) Save(_ context.Context, p *ledger.Problem) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.problems = append(f.problems, p)
	return nil
}

func (f *fakeProblemRepo) FindExact(_ context.Context, subject shared.Subject, text string) (*ledger.Problem, error) {
	for i := len(f.problems) - 1; i >= 0; i-- {
		p := f.problems[i]
		if p.Subject == subject && p.Text == text {
			return p, nil
		}
	}
	return nil, shared.ErrProblemNotFound
}

func (f *fakeProblemRepo) FindByPrefix(_ context.Context, subject shared.Subject, prefix string) (*ledger.Problem, error) {
	if prefix == "" {
		return nil, shared.ErrProblemNotFound
	}
	for i := len(f.problems) - 1; i >= 0; i-- {
		p := f.problems[i]
		if p.Subject == subject && strings.HasPrefix(p.Text, prefix) {
			return p, nil
		}
	}
	return nil, shared.ErrProblemNotFound
}

func (f *fakeProblemRepo) FindMostRecentUnsolved(_ context.Context, subject shared.Subject) (*ledger.Problem, error) {
	for i := len(f.problems) - 1; i >= 0; i-- {
		p := f.problems[i]
		if p.Subject == subject && !p.IsSolved() {
			return p, nil
		}
	}
	return nil, shared.ErrProblemNotFound
}

func (f *fakeProblemRepo) MarkSolved(_ context.Context, problemID string, at time.Time) (bool, error) {
	for _, p := range f.problems {
		if p.ID == problemID {
			return p.MarkSolved(at), nil
		}
	}
	return false, shared.ErrProblemNotFound
}

func (f *fakeProblemRepo) ListBySubject(_ context.Context, subject shared.Subject, _ shared.Pagination) ([]*ledger.Problem, error) {
	var result []*ledger.Problem
	for i := len(f.problems) - 1; i >= 0; i-- {
		if f.problems[i].Subject == subject {
			result = append(result, f.problems[i])
		}
	}
	return result, nil
}

type fakeAchievementRepo struct {
	unlocked map[string]bool
}

func newFakeAchievementRepo() *fakeAchievementRepo {
	return &fakeAchievementRepo{unlocked: make(map[string]bool)}
}

func (f *fakeAchievementRepo) Unlock(_ context.Context, a ledger.Achievement) (bool, error) {
	key := a.Subject.Key() + "/" + a.Type
	if f.unlocked[key] {
		return false, nil
	}
	f.unlocked[key] = true
	return true, nil
}

func (f *fakeAchievementRepo) List(_ context.Context, _ shared.Subject) ([]ledger.Achievement, error) {
	return nil, nil
}

type fakeGoalRepo struct {
	goals     []*goal.LearningGoal
	updateErr error
}

func (f *fakeGoalRepo) Create(_ context.Context, g *goal.LearningGoal) error {
	f.goals = append(f.goals, g)
	return nil
}

func (f *fakeGoalRepo) Update(_ context.Context, g *goal.LearningGoal) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	for i, existing := range f.goals {
		if existing.ID == g.ID {
			f.goals[i] = g
			return nil
		}
	}
	return shared.ErrGoalNotFound
}

func (f *fakeGoalRepo) GetByID(_ context.Context, id string) (*goal.LearningGoal, error) {
	for _, g := range f.goals {
		if g.ID == id {
			return g, nil
		}
	}
	return nil, shared.ErrGoalNotFound
}

func (f *fakeGoalRepo) GetActive(_ context.Context, subject shared.Subject) ([]*goal.LearningGoal, error) {
	var result []*goal.LearningGoal
	for _, g := range f.goals {
		if g.Subject == subject && g.Status == goal.StatusActive {
			result = append(result, g)
		}
	}
	return result, nil
}

type fakeChallengeRepo struct {
	challenges   []*challenge.Challenge
	failCreates  int
	hasOpenErr   error
	createCalled int
}

func (f *fakeChallengeRepo) Create(_ context.Context, c *challenge.Challenge) error {
	f.createCalled++
	if f.failCreates > 0 {
		f.failCreates--
		return shared.ErrShareCodeCollision
	}
	f.challenges = append(f.challenges, c)
	return nil
}

func (f *fakeChallengeRepo) GetByShareCode(_ context.Context, code string) (*challenge.Challenge, error) {
	for _, c := range f.challenges {
		if c.ShareCode == code {
			return c, nil
		}
	}
	return nil, shared.ErrChallengeNotFound
}

func (f *fakeChallengeRepo) ListBySubject(_ context.Context, subject shared.Subject, _ shared.Pagination) ([]*challenge.Challenge, error) {
	var result []*challenge.Challenge
	for i := len(f.challenges) - 1; i >= 0; i-- {
		if f.challenges[i].Subject == subject {
			result = append(result, f.challenges[i])
		}
	}
	return result, nil
}

func (f *fakeChallengeRepo) Update(_ context.Context, c *challenge.Challenge) error {
	for i, existing := range f.challenges {
		if existing.ID == c.ID {
			f.challenges[i] = c
			return nil
		}
	}
	return shared.ErrChallengeNotFound
}

func (f *fakeChallengeRepo) HasOpenRescue(_ context.Context, subject shared.Subject) (bool, error) {
	if f.hasOpenErr != nil {
		return false, f.hasOpenErr
	}
	for _, c := range f.challenges {
		if c.Subject == subject && c.Type == challenge.TypeStreakRescue && !c.Completed {
			return true, nil
		}
	}
	return false, nil
}

// capturingPublisher records every published event.
type capturingPublisher struct {
	events []shared.Event
}

func (p *capturingPublisher) Publish(event shared.Event) error {
	p.events = append(p.events, event)
	return nil
}

func (p *capturingPublisher) byType(t shared.EventType) []shared.Event {
	var result []shared.Event
	for _, e := range p.events {
		if e.EventType() == t {
			result = append(result, e)
		}
	}
	return result
}

// fakeMirror records cache writes; it satisfies both CacheMirror and
// NoticeStore.
type fakeMirror struct {
	xpWrites      int
	streakWrites  int
	goalWrites    int
	clearedNotice int
	notices       map[string]StreakNotice
}

func newFakeMirror() *fakeMirror {
	return &fakeMirror{notices: make(map[string]StreakNotice)}
}

func (m *fakeMirror) SetXP(_ context.Context, _ *ledger.XPLedger) error {
	m.xpWrites++
	return nil
}

func (m *fakeMirror) SetStreak(_ context.Context, _ *ledger.StreakRecord) error {
	m.streakWrites++
	return nil
}

func (m *fakeMirror) SetGoals(_ context.Context, _ shared.Subject, _ []*goal.LearningGoal) error {
	m.goalWrites++
	return nil
}

func (m *fakeMirror) ClearStreakNotice(_ context.Context, subject shared.Subject) error {
	m.clearedNotice++
	delete(m.notices, subject.Key())
	return nil
}

func (m *fakeMirror) SetStreakNotice(_ context.Context, subject shared.Subject, notice StreakNotice) error {
	m.notices[subject.Key()] = notice
	return nil
}
