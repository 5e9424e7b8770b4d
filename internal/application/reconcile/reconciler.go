// Package reconcile rebuilds the cache tier from the durable ledger. The
// cache is disposable: after a flush or outage the reconciler refetches every
// table for a subject and repopulates the mirror, so reads recover without
// any write ever being replayed.
package reconcile

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/tutorhub/tutor-hub/internal/domain/challenge"
	"github.com/tutorhub/tutor-hub/internal/domain/goal"
	"github.com/tutorhub/tutor-hub/internal/domain/ledger"
	"github.com/tutorhub/tutor-hub/internal/domain/shared"
)

// ═══════════════════════════════════════════════════════════════════════════
// RECONCILER
// ═══════════════════════════════════════════════════════════════════════════

// CacheWriter is the cache-side surface the reconciler repopulates.
type CacheWriter interface {
	SetXP(ctx context.Context, row *ledger.XPLedger) error
	SetStreak(ctx context.Context, row *ledger.StreakRecord) error
	SetGoals(ctx context.Context, subject shared.Subject, goals []*goal.LearningGoal) error
	SetChallenges(ctx context.Context, subject shared.Subject, challenges []*challenge.Challenge) error
	SetProblems(ctx context.Context, subject shared.Subject, problems []*ledger.Problem) error
	SetAchievements(ctx context.Context, subject shared.Subject, achievements []ledger.Achievement) error
}

// Snapshot is the reconciled view of one subject's ledger. Degraded lists the
// tables that could not be read and fell back to safe defaults.
type Snapshot struct {
	Subject      shared.Subject         `json:"subject"`
	XP           *ledger.XPLedger       `json:"xp"`
	Streak       *ledger.StreakRecord   `json:"streak"`
	Goals        []*goal.LearningGoal   `json:"goals"`
	Challenges   []*challenge.Challenge `json:"challenges"`
	Problems     []*ledger.Problem      `json:"problems"`
	Achievements []ledger.Achievement   `json:"achievements"`
	Degraded     []string               `json:"degraded,omitempty"`
	ReconciledAt time.Time              `json:"reconciled_at"`
}

// Config contains reconciler configuration.
type Config struct {
	// TableTimeout bounds each individual table read.
	TableTimeout time.Duration

	// ListLimit caps how many list rows are fetched per table.
	ListLimit int

	// Freshness is how long a completed reconciliation suppresses repeat
	// fan-outs for the same subject unless forced.
	Freshness time.Duration
}

// DefaultConfig returns the default reconciler configuration.
func DefaultConfig() Config {
	return Config{
		TableTimeout: 3 * time.Second,
		ListLimit:    50,
		Freshness:    30 * time.Second,
	}
}

// Reconciler fans out to every ledger table for a subject, builds a snapshot,
// and writes it through to the cache. Concurrent requests for the same
// subject are coalesced into a single fan-out.
type Reconciler struct {
	xpRepo          ledger.XPRepository
	streakRepo      ledger.StreakRepository
	problemRepo     ledger.ProblemRepository
	achievementRepo ledger.AchievementRepository
	goalRepo        goal.Repository
	challengeRepo   challenge.Repository

	cache  CacheWriter
	logger *slog.Logger
	config Config

	group singleflight.Group

	mu   sync.Mutex
	done map[string]time.Time
	last map[string]*Snapshot
}

// NewReconciler creates a Reconciler.
func NewReconciler(
	xpRepo ledger.XPRepository,
	streakRepo ledger.StreakRepository,
	problemRepo ledger.ProblemRepository,
	achievementRepo ledger.AchievementRepository,
	goalRepo goal.Repository,
	challengeRepo challenge.Repository,
	cache CacheWriter,
	logger *slog.Logger,
	config Config,
) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	if config.TableTimeout <= 0 {
		config.TableTimeout = 3 * time.Second
	}
	if config.ListLimit <= 0 {
		config.ListLimit = 50
	}

	return &Reconciler{
		xpRepo:          xpRepo,
		streakRepo:      streakRepo,
		problemRepo:     problemRepo,
		achievementRepo: achievementRepo,
		goalRepo:        goalRepo,
		challengeRepo:   challengeRepo,
		cache:           cache,
		logger:          logger.With("service", "reconciler"),
		config:          config,
		done:            make(map[string]time.Time),
		last:            make(map[string]*Snapshot),
	}
}

// Reconcile rebuilds the subject's cached ledger view and returns the
// snapshot. Unless force is set, a snapshot reconciled within the freshness
// window is returned as-is. Concurrent calls for the same subject share one
// fan-out via singleflight.
func (r *Reconciler) Reconcile(ctx context.Context, subject shared.Subject, force bool) (*Snapshot, error) {
	key := subject.Key()

	if !force {
		if snap := r.fresh(key); snap != nil {
			return snap, nil
		}
	}

	result, err, _ := r.group.Do(key, func() (interface{}, error) {
		// A concurrent caller may have finished while this one queued.
		if !force {
			if snap := r.fresh(key); snap != nil {
				return snap, nil
			}
		}

		snap := r.rebuild(ctx, subject)
		r.writeThrough(ctx, snap)

		r.mu.Lock()
		r.done[key] = snap.ReconciledAt
		r.last[key] = snap
		r.mu.Unlock()

		return snap, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*Snapshot), nil
}

// fresh returns the last snapshot if it is still within the freshness window.
func (r *Reconciler) fresh(key string) *Snapshot {
	if r.config.Freshness <= 0 {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	at, ok := r.done[key]
	if !ok || time.Since(at) > r.config.Freshness {
		return nil
	}
	return r.last[key]
}

// rebuild reads every table in parallel. A table that cannot be read is
// replaced with its safe default and recorded in Degraded: a partial
// snapshot beats no snapshot, and the cache write for a degraded table is
// skipped so stale-but-real data is never overwritten with a default.
func (r *Reconciler) rebuild(ctx context.Context, subject shared.Subject) *Snapshot {
	snap := &Snapshot{
		Subject:      subject,
		ReconciledAt: time.Now().UTC(),
	}
	page := shared.NewPagination(1, r.config.ListLimit)

	var mu sync.Mutex
	degrade := func(table string, err error) {
		r.logger.Warn("table read failed, using default",
			"subject", subject.Key(),
			"table", table,
			"error", err,
		)
		mu.Lock()
		snap.Degraded = append(snap.Degraded, table)
		mu.Unlock()
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		ctx, cancel := context.WithTimeout(gctx, r.config.TableTimeout)
		defer cancel()
		row, err := r.xpRepo.Get(ctx, subject)
		switch {
		case err == nil:
			snap.XP = row
		case shared.IsNotFound(err):
			snap.XP = ledger.NewXPLedger(subject)
		default:
			snap.XP = ledger.NewXPLedger(subject)
			degrade("xp", err)
		}
		return nil
	})

	g.Go(func() error {
		ctx, cancel := context.WithTimeout(gctx, r.config.TableTimeout)
		defer cancel()
		row, err := r.streakRepo.Get(ctx, subject)
		switch {
		case err == nil:
			snap.Streak = row
		case shared.IsNotFound(err):
			snap.Streak = ledger.NewStreakRecord(subject)
		default:
			snap.Streak = ledger.NewStreakRecord(subject)
			degrade("streak", err)
		}
		return nil
	})

	g.Go(func() error {
		ctx, cancel := context.WithTimeout(gctx, r.config.TableTimeout)
		defer cancel()
		goals, err := r.goalRepo.GetActive(ctx, subject)
		if err != nil {
			degrade("goals", err)
			goals = nil
		}
		snap.Goals = goals
		return nil
	})

	g.Go(func() error {
		ctx, cancel := context.WithTimeout(gctx, r.config.TableTimeout)
		defer cancel()
		challenges, err := r.challengeRepo.ListBySubject(ctx, subject, page)
		if err != nil {
			degrade("challenges", err)
			challenges = nil
		}
		snap.Challenges = challenges
		return nil
	})

	g.Go(func() error {
		ctx, cancel := context.WithTimeout(gctx, r.config.TableTimeout)
		defer cancel()
		problems, err := r.problemRepo.ListBySubject(ctx, subject, page)
		if err != nil {
			degrade("problems", err)
			problems = nil
		}
		snap.Problems = problems
		return nil
	})

	g.Go(func() error {
		ctx, cancel := context.WithTimeout(gctx, r.config.TableTimeout)
		defer cancel()
		achievements, err := r.achievementRepo.List(ctx, subject)
		if err != nil {
			degrade("achievements", err)
			achievements = nil
		}
		snap.Achievements = achievements
		return nil
	})

	// Table goroutines never return errors, only degrade.
	_ = g.Wait()
	return snap
}

// writeThrough repopulates the cache from the snapshot, skipping degraded
// tables. Cache failures are logged; the snapshot is still served.
func (r *Reconciler) writeThrough(ctx context.Context, snap *Snapshot) {
	if r.cache == nil {
		return
	}

	degraded := make(map[string]bool, len(snap.Degraded))
	for _, table := range snap.Degraded {
		degraded[table] = true
	}

	ctx, cancel := context.WithTimeout(ctx, r.config.TableTimeout)
	defer cancel()

	write := func(table string, fn func() error) {
		if degraded[table] {
			return
		}
		if err := fn(); err != nil {
			r.logger.Warn("cache write failed",
				"subject", snap.Subject.Key(),
				"table", table,
				"error", err,
			)
		}
	}

	write("xp", func() error { return r.cache.SetXP(ctx, snap.XP) })
	write("streak", func() error { return r.cache.SetStreak(ctx, snap.Streak) })
	write("goals", func() error { return r.cache.SetGoals(ctx, snap.Subject, snap.Goals) })
	write("challenges", func() error { return r.cache.SetChallenges(ctx, snap.Subject, snap.Challenges) })
	write("problems", func() error { return r.cache.SetProblems(ctx, snap.Subject, snap.Problems) })
	write("achievements", func() error { return r.cache.SetAchievements(ctx, snap.Subject, snap.Achievements) })
}

// Forget drops the freshness record for a subject so the next Reconcile does
// a full fan-out.
func (r *Reconciler) Forget(subject shared.Subject) {
	r.mu.Lock()
	delete(r.done, subject.Key())
	delete(r.last, subject.Key())
	r.mu.Unlock()
}
