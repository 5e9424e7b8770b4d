package redis

import (
	"context"
	"time"

	"github.com/tutorhub/tutor-hub/internal/domain/challenge"
	"github.com/tutorhub/tutor-hub/internal/domain/goal"
	"github.com/tutorhub/tutor-hub/internal/domain/ledger"
	"github.com/tutorhub/tutor-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// LEDGER CACHE
// ══════════════════════════════════════════════════════════════════════════════

// Cached table names, used as key segments under PrefixLedger.
const (
	tableXP           = "xp"
	tableStreak       = "streak"
	tableGoals        = "goals"
	tableChallenges   = "challenges"
	tableProblems     = "problems"
	tableAchievements = "achievements"
)

// LedgerCache mirrors per-subject ledger rows in Redis. Writes are full-row
// replacements, never increments: the durable store computed the value, the
// cache only repeats it, so replaying a write is harmless.
type LedgerCache struct {
	cache *Cache
}

// NewLedgerCache creates a LedgerCache on top of a Cache.
func NewLedgerCache(cache *Cache) *LedgerCache {
	return &LedgerCache{cache: cache}
}

func ledgerKey(table string, subject shared.Subject) string {
	return PrefixLedger + table + ":" + subject.Key()
}

// SetXP mirrors the subject's XP row.
func (lc *LedgerCache) SetXP(ctx context.Context, row *ledger.XPLedger) error {
	return lc.cache.Set(ctx, ledgerKey(tableXP, row.Subject), row, TTLLedgerMirror)
}

// GetXP reads the mirrored XP row.
func (lc *LedgerCache) GetXP(ctx context.Context, subject shared.Subject) (*ledger.XPLedger, error) {
	var row ledger.XPLedger
	if err := lc.cache.Get(ctx, ledgerKey(tableXP, subject), &row); err != nil {
		return nil, err
	}
	return &row, nil
}

// SetStreak mirrors the subject's streak row.
func (lc *LedgerCache) SetStreak(ctx context.Context, row *ledger.StreakRecord) error {
	return lc.cache.Set(ctx, ledgerKey(tableStreak, row.Subject), row, TTLLedgerMirror)
}

// GetStreak reads the mirrored streak row.
func (lc *LedgerCache) GetStreak(ctx context.Context, subject shared.Subject) (*ledger.StreakRecord, error) {
	var row ledger.StreakRecord
	if err := lc.cache.Get(ctx, ledgerKey(tableStreak, subject), &row); err != nil {
		return nil, err
	}
	return &row, nil
}

// SetGoals mirrors the subject's active goals.
func (lc *LedgerCache) SetGoals(ctx context.Context, subject shared.Subject, goals []*goal.LearningGoal) error {
	if goals == nil {
		goals = []*goal.LearningGoal{}
	}
	return lc.cache.Set(ctx, ledgerKey(tableGoals, subject), goals, TTLLedgerMirror)
}

// GetGoals reads the mirrored goals.
func (lc *LedgerCache) GetGoals(ctx context.Context, subject shared.Subject) ([]*goal.LearningGoal, error) {
	var goals []*goal.LearningGoal
	if err := lc.cache.Get(ctx, ledgerKey(tableGoals, subject), &goals); err != nil {
		return nil, err
	}
	return goals, nil
}

// SetChallenges mirrors the subject's recent challenges.
func (lc *LedgerCache) SetChallenges(ctx context.Context, subject shared.Subject, challenges []*challenge.Challenge) error {
	if challenges == nil {
		challenges = []*challenge.Challenge{}
	}
	return lc.cache.Set(ctx, ledgerKey(tableChallenges, subject), challenges, TTLLedgerMirror)
}

// GetChallenges reads the mirrored challenges.
func (lc *LedgerCache) GetChallenges(ctx context.Context, subject shared.Subject) ([]*challenge.Challenge, error) {
	var challenges []*challenge.Challenge
	if err := lc.cache.Get(ctx, ledgerKey(tableChallenges, subject), &challenges); err != nil {
		return nil, err
	}
	return challenges, nil
}

// SetProblems mirrors the subject's recent problems.
func (lc *LedgerCache) SetProblems(ctx context.Context, subject shared.Subject, problems []*ledger.Problem) error {
	if problems == nil {
		problems = []*ledger.Problem{}
	}
	return lc.cache.Set(ctx, ledgerKey(tableProblems, subject), problems, TTLLedgerMirror)
}

// GetProblems reads the mirrored problems.
func (lc *LedgerCache) GetProblems(ctx context.Context, subject shared.Subject) ([]*ledger.Problem, error) {
	var problems []*ledger.Problem
	if err := lc.cache.Get(ctx, ledgerKey(tableProblems, subject), &problems); err != nil {
		return nil, err
	}
	return problems, nil
}

// SetAchievements mirrors the subject's achievement unlocks.
func (lc *LedgerCache) SetAchievements(ctx context.Context, subject shared.Subject, achievements []ledger.Achievement) error {
	if achievements == nil {
		achievements = []ledger.Achievement{}
	}
	return lc.cache.Set(ctx, ledgerKey(tableAchievements, subject), achievements, TTLLedgerMirror)
}

// GetAchievements reads the mirrored achievements.
func (lc *LedgerCache) GetAchievements(ctx context.Context, subject shared.Subject) ([]ledger.Achievement, error) {
	var achievements []ledger.Achievement
	if err := lc.cache.Get(ctx, ledgerKey(tableAchievements, subject), &achievements); err != nil {
		return nil, err
	}
	return achievements, nil
}

// Invalidate drops every mirrored table for the subject.
func (lc *LedgerCache) Invalidate(ctx context.Context, subject shared.Subject) error {
	return lc.cache.Delete(ctx,
		ledgerKey(tableXP, subject),
		ledgerKey(tableStreak, subject),
		ledgerKey(tableGoals, subject),
		ledgerKey(tableChallenges, subject),
		ledgerKey(tableProblems, subject),
		ledgerKey(tableAchievements, subject),
	)
}

// ══════════════════════════════════════════════════════════════════════════════
// STREAK NOTICES
// ══════════════════════════════════════════════════════════════════════════════

// StreakNotice is the UI-facing alert written when a streak is at risk.
type StreakNotice struct {
	CurrentStreak int       `json:"current_streak"`
	LastStudyDate time.Time `json:"last_study_date"`
	ShareCode     string    `json:"share_code,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// SetStreakNotice writes the at-risk notice for the subject.
func (lc *LedgerCache) SetStreakNotice(ctx context.Context, subject shared.Subject, notice StreakNotice) error {
	return lc.cache.Set(ctx, PrefixNotice+"streak:"+subject.Key(), notice, TTLStreakNotice)
}

// GetStreakNotice reads the at-risk notice, if any.
func (lc *LedgerCache) GetStreakNotice(ctx context.Context, subject shared.Subject) (*StreakNotice, error) {
	var notice StreakNotice
	if err := lc.cache.Get(ctx, PrefixNotice+"streak:"+subject.Key(), &notice); err != nil {
		return nil, err
	}
	return &notice, nil
}

// ClearStreakNotice removes the notice once the subject practices again.
func (lc *LedgerCache) ClearStreakNotice(ctx context.Context, subject shared.Subject) error {
	return lc.cache.Delete(ctx, PrefixNotice+"streak:"+subject.Key())
}
