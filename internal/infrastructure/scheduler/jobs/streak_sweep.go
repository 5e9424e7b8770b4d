// Package jobs contains the scheduled background jobs of the gamification
// service.
package jobs

import (
	"context"
	"log/slog"
	"time"

	"github.com/tutorhub/tutor-hub/internal/application/orchestrator"
)

// ══════════════════════════════════════════════════════════════════════════════
// STREAK SWEEP JOB
// ══════════════════════════════════════════════════════════════════════════════

// StreakSweepJob periodically scans for streaks that will break without
// practice today and creates rescue challenges for them. The scan is
// read-only on the streak rows themselves.
type StreakSweepJob struct {
	rescuer *orchestrator.StreakRescuer
	logger  *slog.Logger
	config  StreakSweepConfig
}

// StreakSweepConfig contains configuration for the sweep.
type StreakSweepConfig struct {
	// BatchLimit caps how many at-risk rows one sweep processes.
	BatchLimit int

	// SweepTimeout bounds one full sweep.
	SweepTimeout time.Duration
}

// DefaultStreakSweepConfig returns the default configuration.
func DefaultStreakSweepConfig() StreakSweepConfig {
	return StreakSweepConfig{
		BatchLimit:   500,
		SweepTimeout: 2 * time.Minute,
	}
}

// NewStreakSweepJob creates the job.
func NewStreakSweepJob(rescuer *orchestrator.StreakRescuer, logger *slog.Logger, config StreakSweepConfig) *StreakSweepJob {
	if logger == nil {
		logger = slog.Default()
	}
	if config.BatchLimit <= 0 {
		config.BatchLimit = 500
	}
	if config.SweepTimeout <= 0 {
		config.SweepTimeout = 2 * time.Minute
	}

	return &StreakSweepJob{
		rescuer: rescuer,
		logger:  logger.With("job", "streak_sweep"),
		config:  config,
	}
}

// Name implements scheduler.Job.
func (j *StreakSweepJob) Name() string {
	return "streak_sweep"
}

// Description implements scheduler.Job.
func (j *StreakSweepJob) Description() string {
	return "creates rescue challenges for streaks at risk of breaking"
}

// Run implements scheduler.Job.
func (j *StreakSweepJob) Run(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, j.config.SweepTimeout)
	defer cancel()

	now := time.Now().UTC()
	rescued, err := j.rescuer.Sweep(ctx, now, j.config.BatchLimit)
	if err != nil {
		return err
	}

	j.logger.Info("streak sweep finished", "rescued", rescued)
	return nil
}
