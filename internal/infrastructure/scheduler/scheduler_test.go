package scheduler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingJob struct {
	name string
	runs atomic.Int64
	err  error
}

func (j *countingJob) Name() string        { return j.name }
func (j *countingJob) Description() string { return "test job" }

func (j *countingJob) Run(_ context.Context) error {
	j.runs.Add(1)
	return j.err
}

func newTestScheduler(tick time.Duration) *Scheduler {
	return NewScheduler(Config{
		Logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
		TickInterval: tick,
	})
}

func TestRegisterRejectsDuplicates(t *testing.T) {
	s := newTestScheduler(time.Second)
	job := &countingJob{name: "sweep"}

	require.NoError(t, s.Register(job, Every(time.Hour)))
	err := s.Register(job, Every(time.Hour))
	assert.ErrorIs(t, err, ErrJobAlreadyExists)
}

func TestRegisterRejectsNil(t *testing.T) {
	s := newTestScheduler(time.Second)
	assert.ErrorIs(t, s.Register(nil, Every(time.Hour)), ErrNilJob)
	assert.ErrorIs(t, s.Register(&countingJob{name: "x"}, nil), ErrNilSchedule)
}

func TestSchedulerRunsDueJobs(t *testing.T) {
	s := newTestScheduler(5 * time.Millisecond)
	job := &countingJob{name: "sweep"}
	require.NoError(t, s.Register(job, Every(10*time.Millisecond)))

	require.NoError(t, s.Start(context.Background()))
	defer func() { _ = s.Stop() }()

	require.Eventually(t, func() bool {
		return job.runs.Load() >= 2
	}, time.Second, 5*time.Millisecond)
}

func TestStopWaitsAndIsIdempotentGuarded(t *testing.T) {
	s := newTestScheduler(5 * time.Millisecond)
	require.NoError(t, s.Start(context.Background()))
	require.NoError(t, s.Stop())
	assert.ErrorIs(t, s.Stop(), ErrSchedulerNotRunning)
	assert.False(t, s.IsRunning())
}

func TestRunNowExecutesImmediately(t *testing.T) {
	s := newTestScheduler(time.Second)
	job := &countingJob{name: "sweep"}
	require.NoError(t, s.Register(job, Every(time.Hour)))

	result, err := s.RunNow(context.Background(), "sweep")
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, int64(1), job.runs.Load())

	_, err = s.RunNow(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrJobNotFound)
}

func TestRunNowReportsJobError(t *testing.T) {
	s := newTestScheduler(time.Second)
	job := &countingJob{name: "sweep", err: errors.New("boom")}
	require.NoError(t, s.Register(job, Every(time.Hour)))

	result, err := s.RunNow(context.Background(), "sweep")
	require.Error(t, err)
	assert.False(t, result.Success)

	infos := s.ListJobs()
	require.Len(t, infos, 1)
	assert.Equal(t, "sweep", infos[0].Name)
}
