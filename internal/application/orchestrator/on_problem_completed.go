package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/tutorhub/tutor-hub/internal/domain/challenge"
	"github.com/tutorhub/tutor-hub/internal/domain/goal"
	"github.com/tutorhub/tutor-hub/internal/domain/ledger"
	"github.com/tutorhub/tutor-hub/internal/domain/shared"
)

// ═══════════════════════════════════════════════════════════════════════════
// ON PROBLEM COMPLETED HANDLER
//
// The single entry point for a solved problem. Fans out to:
// 1. Problem identification and duplicate detection
// 2. XP grant and level-up detection
// 3. Streak advancement
// 4. Goal progress
// 5. Achievements
// 6. A shareable beat-my-skill challenge
// 7. Cache mirroring
//
// Each step is wrapped in its own timeout and its own error boundary: a
// failure is logged and the remaining steps still run. The tutoring session
// that published the event never sees a gamification failure.
// ═══════════════════════════════════════════════════════════════════════════

// CacheMirror is the subset of the cache tier the orchestrator writes
// through. Nil is allowed: the durable store alone is still correct.
type CacheMirror interface {
	SetXP(ctx context.Context, row *ledger.XPLedger) error
	SetStreak(ctx context.Context, row *ledger.StreakRecord) error
	SetGoals(ctx context.Context, subject shared.Subject, goals []*goal.LearningGoal) error
	ClearStreakNotice(ctx context.Context, subject shared.Subject) error
}

// OnProblemCompletedHandler processes problem.completed events.
type OnProblemCompletedHandler struct {
	xpRepo          ledger.XPRepository
	streakRepo      ledger.StreakRepository
	problemRepo     ledger.ProblemRepository
	achievementRepo ledger.AchievementRepository
	goalRepo        goal.Repository
	challengeRepo   challenge.Repository

	resolver  ProblemResolver
	publisher shared.EventPublisher
	cache     CacheMirror

	logger *slog.Logger
	config ProblemCompletedConfig
}

// ProblemCompletedConfig contains configuration for the handler.
type ProblemCompletedConfig struct {
	// StepTimeout bounds each fan-out step.
	StepTimeout time.Duration

	// StreakAchievements maps streak lengths to achievement types.
	StreakAchievements map[int]string

	// LevelAchievements maps levels to achievement types.
	LevelAchievements map[int]string
}

// DefaultProblemCompletedConfig returns the default configuration.
func DefaultProblemCompletedConfig() ProblemCompletedConfig {
	return ProblemCompletedConfig{
		StepTimeout: 5 * time.Second,
		StreakAchievements: map[int]string{
			7:  ledger.AchievementStreak7,
			30: ledger.AchievementStreak30,
		},
		LevelAchievements: map[int]string{
			5:  ledger.AchievementLevel5,
			10: ledger.AchievementLevel10,
		},
	}
}

// NewOnProblemCompletedHandler creates the orchestrator handler.
func NewOnProblemCompletedHandler(
	xpRepo ledger.XPRepository,
	streakRepo ledger.StreakRepository,
	problemRepo ledger.ProblemRepository,
	achievementRepo ledger.AchievementRepository,
	goalRepo goal.Repository,
	challengeRepo challenge.Repository,
	resolver ProblemResolver,
	publisher shared.EventPublisher,
	cache CacheMirror,
	logger *slog.Logger,
	config ProblemCompletedConfig,
) *OnProblemCompletedHandler {
	if logger == nil {
		logger = slog.Default()
	}
	if config.StepTimeout <= 0 {
		config.StepTimeout = 5 * time.Second
	}

	return &OnProblemCompletedHandler{
		xpRepo:          xpRepo,
		streakRepo:      streakRepo,
		problemRepo:     problemRepo,
		achievementRepo: achievementRepo,
		goalRepo:        goalRepo,
		challengeRepo:   challengeRepo,
		resolver:        resolver,
		publisher:       publisher,
		cache:           cache,
		logger:          logger.With("handler", "on_problem_completed"),
		config:          config,
	}
}

// EventType returns the event type this handler processes.
func (h *OnProblemCompletedHandler) EventType() shared.EventType {
	return shared.EventProblemCompleted
}

// Emits declares every event type the handler may publish. The bus uses the
// declaration to reject registrations that could loop back.
func (h *OnProblemCompletedHandler) Emits() []shared.EventType {
	return []shared.EventType{
		shared.EventLevelUp,
		shared.EventGoalCompleted,
		shared.EventAchievementUnlocked,
		shared.EventChallengeCreated,
	}
}

// Handle processes a problem.completed event. It always returns nil for
// domain-level failures: individual steps log and continue, and the
// publisher must never be failed by gamification.
func (h *OnProblemCompletedHandler) Handle(event shared.Event) error {
	ctx := context.Background()

	completed, ok := event.(shared.ProblemCompletedEvent)
	if !ok {
		h.logger.Warn("received non-ProblemCompletedEvent", "event_type", event.EventType())
		return nil
	}

	subject := completed.EventSubject()
	now := completed.OccurredAt()

	h.logger.Info("processing problem completion",
		"subject", subject.Key(),
		"problem_type", completed.ProblemType.String(),
		"difficulty", completed.Difficulty.String(),
		"hints_used", completed.HintsUsed,
	)

	// 1. Identify the problem and detect duplicate delivery.
	duplicate, err := h.recordProblem(ctx, subject, completed, now)
	if err != nil {
		h.logger.Error("failed to record problem", "subject", subject.Key(), "error", err)
	}
	if duplicate {
		// The same completion already granted XP; re-running the grant
		// would double-award. The remaining steps are all idempotent and
		// were already applied, so stop here.
		h.logger.Info("duplicate completion, skipping", "subject", subject.Key())
		return nil
	}

	// 2. Grant XP and detect a level-up.
	xpRow, leveledUp := h.grantXP(ctx, subject, completed, now)

	// 3. Advance the streak.
	streakRow := h.advanceStreak(ctx, subject, now)

	// 4. Advance matching goals.
	goals := h.advanceGoals(ctx, subject, completed.ProblemType, now)

	// 5. Achievements.
	h.checkAchievements(ctx, subject, xpRow, streakRow, leveledUp, now)

	// 6. Every counted completion produces a fresh shareable challenge.
	h.createShareChallenge(ctx, subject, xpRow)

	// 7. Mirror the updated rows into the cache.
	h.mirror(ctx, subject, xpRow, streakRow, goals)

	h.logger.Info("problem completion processed", "subject", subject.Key())
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Step 1: problem identification
// ─────────────────────────────────────────────────────────────────────────────

// recordProblem resolves the reported text onto a stored problem and marks
// it solved. It reports whether this completion was already counted.
func (h *OnProblemCompletedHandler) recordProblem(ctx context.Context, subject shared.Subject, event shared.ProblemCompletedEvent, now time.Time) (duplicate bool, err error) {
	ctx, cancel := context.WithTimeout(ctx, h.config.StepTimeout)
	defer cancel()

	p, err := h.resolver.Resolve(ctx, subject, event.ProblemText)
	if err != nil {
		if !shared.IsNotFound(err) {
			return false, fmt.Errorf("resolve problem: %w", err)
		}
		// No stored row matched any tier. Record the completion as a new,
		// already-solved problem so a replay of this event dedupes.
		p = ledger.NewProblem(uuid.NewString(), subject, event.ProblemText, event.ProblemType, event.Difficulty)
		p.MarkSolved(now)
		if err := h.problemRepo.Save(ctx, p); err != nil {
			return false, fmt.Errorf("save problem: %w", err)
		}
		return false, nil
	}

	if p.IsSolved() {
		return true, nil
	}

	changed, err := h.problemRepo.MarkSolved(ctx, p.ID, now)
	if err != nil {
		return false, fmt.Errorf("mark solved: %w", err)
	}
	// A concurrent handler beat us to the mark; treat as duplicate.
	return !changed, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Step 2: XP
// ─────────────────────────────────────────────────────────────────────────────

// grantXP awards XP for the completion. A failure leaves the ledger
// untouched and returns a nil row; downstream steps tolerate that.
func (h *OnProblemCompletedHandler) grantXP(ctx context.Context, subject shared.Subject, event shared.ProblemCompletedEvent, now time.Time) (*ledger.XPLedger, bool) {
	ctx, cancel := context.WithTimeout(ctx, h.config.StepTimeout)
	defer cancel()

	row, err := h.xpRepo.GetOrCreate(ctx, subject)
	if err != nil {
		h.logger.Error("failed to load xp row", "subject", subject.Key(), "error", err)
		return nil, false
	}

	amount := ledger.CalculateProblemXP(event.Difficulty, event.HintsUsed)
	oldLevel, newLevel, err := row.Grant(amount, ledger.ReasonProblemCompleted, now)
	if err != nil {
		h.logger.Error("failed to grant xp", "subject", subject.Key(), "error", err)
		return row, false
	}

	if err := h.xpRepo.Upsert(ctx, row); err != nil {
		h.logger.Error("failed to persist xp row", "subject", subject.Key(), "error", err)
		return row, false
	}

	h.logger.Info("xp granted",
		"subject", subject.Key(),
		"amount", amount.Int(),
		"total_xp", row.TotalXP.Int(),
		"level", row.Level.Int(),
	)

	if newLevel > oldLevel {
		h.publish(shared.NewLevelUpEvent(subject, oldLevel, newLevel, row.TotalXP))
		return row, true
	}
	return row, false
}

// ─────────────────────────────────────────────────────────────────────────────
// Step 3: streak
// ─────────────────────────────────────────────────────────────────────────────

func (h *OnProblemCompletedHandler) advanceStreak(ctx context.Context, subject shared.Subject, now time.Time) *ledger.StreakRecord {
	ctx, cancel := context.WithTimeout(ctx, h.config.StepTimeout)
	defer cancel()

	row, err := h.streakRepo.GetOrCreate(ctx, subject)
	if err != nil {
		h.logger.Error("failed to load streak row", "subject", subject.Key(), "error", err)
		return nil
	}

	if !row.RecordPractice(now) {
		return row
	}

	if err := h.streakRepo.Upsert(ctx, row); err != nil {
		h.logger.Error("failed to persist streak row", "subject", subject.Key(), "error", err)
		return row
	}

	// Practicing resolves any standing at-risk alert.
	if h.cache != nil {
		if err := h.cache.ClearStreakNotice(ctx, subject); err != nil {
			h.logger.Warn("failed to clear streak notice", "subject", subject.Key(), "error", err)
		}
	}

	h.logger.Info("streak advanced",
		"subject", subject.Key(),
		"current_streak", row.CurrentStreak,
		"longest_streak", row.LongestStreak,
	)
	return row
}

// ─────────────────────────────────────────────────────────────────────────────
// Step 4: goals
// ─────────────────────────────────────────────────────────────────────────────

// advanceGoals counts the completion toward every active goal whose target
// subject matches the problem type. Non-matching goals are skipped silently:
// a mismatch is normal, not an error.
func (h *OnProblemCompletedHandler) advanceGoals(ctx context.Context, subject shared.Subject, problemType shared.ProblemType, now time.Time) []*goal.LearningGoal {
	ctx, cancel := context.WithTimeout(ctx, h.config.StepTimeout)
	defer cancel()

	goals, err := h.goalRepo.GetActive(ctx, subject)
	if err != nil {
		h.logger.Error("failed to load active goals", "subject", subject.Key(), "error", err)
		return nil
	}

	for _, g := range goals {
		if !g.MatchesProblemType(problemType) {
			continue
		}

		completedNow, changed := g.ApplyCompletion(now)
		if !changed {
			continue
		}

		if err := h.goalRepo.Update(ctx, g); err != nil {
			h.logger.Error("failed to persist goal", "goal_id", g.ID, "error", err)
			continue
		}

		if completedNow {
			h.logger.Info("goal completed", "subject", subject.Key(), "goal_id", g.ID)
			h.publish(shared.NewGoalCompletedEvent(subject, g.ID, g.Type, g.TargetSubject))
		}
	}
	return goals
}

// ─────────────────────────────────────────────────────────────────────────────
// Step 5: achievements and challenges
// ─────────────────────────────────────────────────────────────────────────────

func (h *OnProblemCompletedHandler) checkAchievements(ctx context.Context, subject shared.Subject, xpRow *ledger.XPLedger, streakRow *ledger.StreakRecord, leveledUp bool, now time.Time) {
	ctx, cancel := context.WithTimeout(ctx, h.config.StepTimeout)
	defer cancel()

	// First problem ever solved.
	h.unlock(ctx, subject, ledger.AchievementFirstProblem, now)

	// Streak milestones.
	if streakRow != nil {
		if achType, ok := h.config.StreakAchievements[streakRow.CurrentStreak]; ok {
			h.unlock(ctx, subject, achType, now)
		}
	}

	// Level milestones.
	if xpRow != nil && leveledUp {
		if achType, ok := h.config.LevelAchievements[xpRow.Level.Int()]; ok {
			h.unlock(ctx, subject, achType, now)
		}
	}
}

// unlock records an achievement and publishes the unlock exactly once.
func (h *OnProblemCompletedHandler) unlock(ctx context.Context, subject shared.Subject, achievementType string, now time.Time) {
	a := ledger.NewAchievement(subject, achievementType, now)
	newly, err := h.achievementRepo.Unlock(ctx, a)
	if err != nil {
		h.logger.Error("failed to unlock achievement",
			"subject", subject.Key(),
			"achievement", achievementType,
			"error", err,
		)
		return
	}
	if !newly {
		return
	}

	h.logger.Info("achievement unlocked", "subject", subject.Key(), "achievement", achievementType)
	h.publish(shared.NewAchievementUnlockedEvent(subject, a.Type, a.Title))
}

// createShareChallenge creates a beat-my-skill challenge at the subject's
// current level for every counted completion, regenerating the share code on
// collision. Duplicate deliveries never reach this step, so one completion
// yields exactly one challenge.
func (h *OnProblemCompletedHandler) createShareChallenge(ctx context.Context, subject shared.Subject, xpRow *ledger.XPLedger) {
	if xpRow == nil {
		// The XP step failed; without the row there is no level to target.
		h.logger.Warn("skipping share challenge, xp row unavailable", "subject", subject.Key())
		return
	}

	ctx, cancel := context.WithTimeout(ctx, h.config.StepTimeout)
	defer cancel()

	c, err := challenge.NewBeatMySkill(uuid.NewString(), subject, xpRow.Level)
	if err != nil {
		h.logger.Error("failed to build challenge", "subject", subject.Key(), "error", err)
		return
	}

	for attempt := 0; attempt < 3; attempt++ {
		err = h.challengeRepo.Create(ctx, c)
		if err == nil {
			h.logger.Info("challenge created",
				"subject", subject.Key(),
				"challenge_type", string(c.Type),
				"share_code", c.ShareCode,
			)
			h.publish(shared.NewChallengeCreatedEvent(subject, c.ID, string(c.Type), c.ShareCode))
			return
		}
		if !shared.IsAlreadyExists(err) {
			break
		}
		if regenErr := c.RegenerateShareCode(); regenErr != nil {
			err = regenErr
			break
		}
	}
	h.logger.Error("failed to create challenge", "subject", subject.Key(), "error", err)
}

// ─────────────────────────────────────────────────────────────────────────────
// Step 6: cache mirror
// ─────────────────────────────────────────────────────────────────────────────

func (h *OnProblemCompletedHandler) mirror(ctx context.Context, subject shared.Subject, xpRow *ledger.XPLedger, streakRow *ledger.StreakRecord, goals []*goal.LearningGoal) {
	if h.cache == nil {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, h.config.StepTimeout)
	defer cancel()

	if xpRow != nil {
		if err := h.cache.SetXP(ctx, xpRow); err != nil {
			h.logger.Warn("failed to mirror xp row", "subject", subject.Key(), "error", err)
		}
	}
	if streakRow != nil {
		if err := h.cache.SetStreak(ctx, streakRow); err != nil {
			h.logger.Warn("failed to mirror streak row", "subject", subject.Key(), "error", err)
		}
	}
	if goals != nil {
		active := goals[:0:0]
		for _, g := range goals {
			if g.Status == goal.StatusActive {
				active = append(active, g)
			}
		}
		if err := h.cache.SetGoals(ctx, subject, active); err != nil {
			h.logger.Warn("failed to mirror goals", "subject", subject.Key(), "error", err)
		}
	}
}

// publish sends a follow-up event, logging instead of failing the step.
func (h *OnProblemCompletedHandler) publish(event shared.Event) {
	if h.publisher == nil {
		return
	}
	if err := h.publisher.Publish(event); err != nil {
		h.logger.Error("failed to publish event", "event_type", event.EventType(), "error", err)
	}
}
