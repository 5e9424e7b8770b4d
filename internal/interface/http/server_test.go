package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tutorhub/tutor-hub/internal/application/command"
	"github.com/tutorhub/tutor-hub/internal/application/reconcile"
	"github.com/tutorhub/tutor-hub/internal/domain/challenge"
	"github.com/tutorhub/tutor-hub/internal/domain/ledger"
	"github.com/tutorhub/tutor-hub/internal/domain/shared"
)

type capturingPublisher struct {
	events []shared.Event
}

func (p *capturingPublisher) Publish(event shared.Event) error {
	p.events = append(p.events, event)
	return nil
}

type fakeReconciler struct {
	forced int
	calls  int
}

func (f *fakeReconciler) Reconcile(_ context.Context, subject shared.Subject, force bool) (*reconcile.Snapshot, error) {
	f.calls++
	if force {
		f.forced++
	}
	return &reconcile.Snapshot{
		Subject:      subject,
		XP:           ledger.NewXPLedger(subject),
		Streak:       ledger.NewStreakRecord(subject),
		ReconciledAt: time.Now().UTC(),
	}, nil
}

type fakeChallengeRepo struct {
	byCode map[string]*challenge.Challenge
}

func (f *fakeChallengeRepo) Create(_ context.Context, c *challenge.Challenge) error {
	f.byCode[c.ShareCode] = c
	return nil
}

func (f *fakeChallengeRepo) GetByShareCode(_ context.Context, code string) (*challenge.Challenge, error) {
	c, ok := f.byCode[code]
	if !ok {
		return nil, shared.ErrChallengeNotFound
	}
	return c, nil
}

func (f *fakeChallengeRepo) ListBySubject(_ context.Context, _ shared.Subject, _ shared.Pagination) ([]*challenge.Challenge, error) {
	return nil, nil
}

func (f *fakeChallengeRepo) Update(_ context.Context, _ *challenge.Challenge) error { return nil }

func (f *fakeChallengeRepo) HasOpenRescue(_ context.Context, _ shared.Subject) (bool, error) {
	return false, nil
}

type fakeXPRepo struct {
	rows map[string]*ledger.XPLedger
}

func (f *fakeXPRepo) Get(_ context.Context, subject shared.Subject) (*ledger.XPLedger, error) {
	row, ok := f.rows[subject.Key()]
	if !ok {
		return nil, shared.ErrXPRowNotFound
	}
	return row, nil
}

func (f *fakeXPRepo) GetOrCreate(_ context.Context, subject shared.Subject) (*ledger.XPLedger, error) {
	if row, ok := f.rows[subject.Key()]; ok {
		return row, nil
	}
	row := ledger.NewXPLedger(subject)
	f.rows[subject.Key()] = row
	return row, nil
}

func (f *fakeXPRepo) Upsert(_ context.Context, row *ledger.XPLedger) error {
	f.rows[row.Subject.Key()] = row
	return nil
}

type serverFixture struct {
	publisher  *capturingPublisher
	reconciler *fakeReconciler
	challenges *fakeChallengeRepo
	server     *Server
}

func newServerFixture() *serverFixture {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	f := &serverFixture{
		publisher:  &capturingPublisher{},
		reconciler: &fakeReconciler{},
		challenges: &fakeChallengeRepo{byCode: make(map[string]*challenge.Challenge)},
	}
	f.server = NewServer(DefaultConfig(), Dependencies{
		Publisher:  f.publisher,
		Reconciler: f.reconciler,
		DailyLogin: command.NewDailyLoginCommand(&fakeXPRepo{rows: make(map[string]*ledger.XPLedger)}, nil, nil, logger, 0),
		Challenges: f.challenges,
		Logger:     logger,
	})
	return f
}

func (f *serverFixture) do(t *testing.T, method, target string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, target, reader)
	rec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, req)
	return rec
}

func TestProblemCompletedAcceptsAndPublishes(t *testing.T) {
	f := newServerFixture()

	rec := f.do(t, http.MethodPost, "/api/v1/events/problem-completed", map[string]interface{}{
		"user_id":      "user-1",
		"problem_text": "solve 2x = 4",
		"problem_type": "Algebra",
		"difficulty":   "middle",
		"hints_used":   1,
	})

	assert.Equal(t, http.StatusAccepted, rec.Code)
	require.Len(t, f.publisher.events, 1)
	event := f.publisher.events[0].(shared.ProblemCompletedEvent)
	assert.Equal(t, shared.EventProblemCompleted, event.EventType())
	assert.Equal(t, shared.ProblemType("algebra"), event.ProblemType, "type is normalized")
	assert.Equal(t, 1, event.HintsUsed)
}

func TestProblemCompletedRejectsMissingFields(t *testing.T) {
	f := newServerFixture()

	rec := f.do(t, http.MethodPost, "/api/v1/events/problem-completed", map[string]interface{}{
		"problem_text": "solve 2x = 4",
		"problem_type": "algebra",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/v1/events/problem-completed", map[string]interface{}{
		"user_id":      "user-1",
		"problem_text": "solve 2x = 4",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, f.publisher.events)
}

func TestGetLedgerReturnsSnapshot(t *testing.T) {
	f := newServerFixture()

	rec := f.do(t, http.MethodGet, "/api/v1/ledger?user_id=user-1&profile_id=kid", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, f.reconciler.calls)
	assert.Equal(t, 0, f.reconciler.forced)

	var resp JSONResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
}

func TestGetLedgerRequiresUserID(t *testing.T) {
	f := newServerFixture()
	rec := f.do(t, http.MethodGet, "/api/v1/ledger", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, 0, f.reconciler.calls)
}

func TestReconcileForcesRebuild(t *testing.T) {
	f := newServerFixture()

	rec := f.do(t, http.MethodPost, "/api/v1/ledger/reconcile?user_id=user-1", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, f.reconciler.forced)
}

func TestDailyLoginAwards(t *testing.T) {
	f := newServerFixture()

	rec := f.do(t, http.MethodPost, "/api/v1/login", map[string]interface{}{"user_id": "user-1"})
	assert.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data command.DailyLoginResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Data.Awarded)
	assert.Equal(t, 5, resp.Data.TotalXP)
}

func TestGetChallengeByShareCode(t *testing.T) {
	f := newServerFixture()
	subject := shared.Subject{UserID: "user-1"}
	c, err := challenge.NewBeatMySkill("c1", subject, 5)
	require.NoError(t, err)
	require.NoError(t, f.challenges.Create(context.Background(), c))

	rec := f.do(t, http.MethodGet, "/api/v1/challenges/"+c.ShareCode, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/v1/challenges/NOPE1234", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHealthEndpoint(t *testing.T) {
	f := newServerFixture()
	rec := f.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}
