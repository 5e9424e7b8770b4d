package ledger

import (
	"time"

	"github.com/tutorhub/tutor-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// XP LEDGER
// ══════════════════════════════════════════════════════════════════════════════

// XPHistoryEntry is one append-only record of an XP grant. Entries are never
// mutated in place and their insertion order is significant.
type XPHistoryEntry struct {
	Date   time.Time `json:"date"`
	Amount shared.XP `json:"amount"`
	Reason string    `json:"reason"`
}

// Well-known grant reasons recorded in XP history.
const (
	ReasonProblemCompleted = "problem_completed"
	ReasonDailyLogin       = "daily_login"
	ReasonAchievementBonus = "achievement_bonus"
)

// XPLedger is the per-subject XP row. Level and XPToNextLevel are derived:
// Level == LevelFromXP(TotalXP) holds after every mutation.
type XPLedger struct {
	Subject       shared.Subject
	TotalXP       shared.XP
	Level         shared.Level
	XPToNextLevel shared.XP
	History       []XPHistoryEntry
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// NewXPLedger creates the default (empty) XP row for a subject.
func NewXPLedger(subject shared.Subject) *XPLedger {
	now := time.Now().UTC()
	l := &XPLedger{
		Subject:   subject,
		TotalXP:   0,
		CreatedAt: now,
		UpdatedAt: now,
	}
	l.recompute()
	return l
}

// Grant appends a history entry and raises TotalXP, recomputing the derived
// level fields. It returns the level before and after so callers can detect
// a level-up. Negative amounts are rejected: history is append-only and XP
// only ever accumulates.
func (l *XPLedger) Grant(amount shared.XP, reason string, at time.Time) (oldLevel, newLevel shared.Level, err error) {
	if amount < 0 {
		return l.Level, l.Level, shared.ErrNegativeXPGrant
	}

	oldLevel = l.Level
	l.TotalXP = l.TotalXP.Add(amount)
	l.History = append(l.History, XPHistoryEntry{
		Date:   at.UTC(),
		Amount: amount,
		Reason: reason,
	})
	l.UpdatedAt = at.UTC()
	l.recompute()
	return oldLevel, l.Level, nil
}

// GrantedOn reports whether a grant with the given reason was already
// recorded on the same UTC calendar day. Used for at-most-once-per-day
// awards like the daily login bonus.
func (l *XPLedger) GrantedOn(reason string, day time.Time) bool {
	y, m, d := day.UTC().Date()
	for i := len(l.History) - 1; i >= 0; i-- {
		entry := l.History[i]
		if entry.Reason != reason {
			continue
		}
		ey, em, ed := entry.Date.UTC().Date()
		if ey == y && em == m && ed == d {
			return true
		}
	}
	return false
}

// recompute re-derives Level and XPToNextLevel from TotalXP.
func (l *XPLedger) recompute() {
	l.Level = LevelFromXP(l.TotalXP)
	l.XPToNextLevel = XPToNextLevel(l.TotalXP)
}

// ══════════════════════════════════════════════════════════════════════════════
// PROBLEMS
// ══════════════════════════════════════════════════════════════════════════════

// Problem is one math problem presented to a subject. SolvedAt is set at most
// once; a solved problem never awards XP again.
type Problem struct {
	ID         string
	Subject    shared.Subject
	Text       string
	Type       shared.ProblemType
	Difficulty shared.Difficulty
	SolvedAt   *time.Time
	CreatedAt  time.Time
}

// NewProblem creates an unsolved problem record.
func NewProblem(id string, subject shared.Subject, text string, problemType shared.ProblemType, difficulty shared.Difficulty) *Problem {
	return &Problem{
		ID:         id,
		Subject:    subject,
		Text:       text,
		Type:       problemType.Normalize(),
		Difficulty: difficulty,
		CreatedAt:  time.Now().UTC(),
	}
}

// IsSolved reports whether the problem has already been marked solved.
func (p *Problem) IsSolved() bool {
	return p.SolvedAt != nil
}

// MarkSolved sets SolvedAt. It is idempotent: marking an already-solved
// problem returns false and leaves the original timestamp.
func (p *Problem) MarkSolved(at time.Time) bool {
	if p.SolvedAt != nil {
		return false
	}
	t := at.UTC()
	p.SolvedAt = &t
	return true
}

// ══════════════════════════════════════════════════════════════════════════════
// ACHIEVEMENTS
// ══════════════════════════════════════════════════════════════════════════════

// Achievement is a per-subject unlock record, unique per achievement type.
type Achievement struct {
	Subject    shared.Subject
	Type       string
	Title      string
	UnlockedAt time.Time
}

// Achievement types awarded by the orchestrator and downstream handlers.
const (
	AchievementFirstProblem = "first_problem"
	AchievementStreak7      = "streak_7"
	AchievementStreak30     = "streak_30"
	AchievementLevel5       = "level_5"
	AchievementLevel10      = "level_10"
	AchievementFirstGoal    = "first_goal"
)

// AchievementTitle returns the display title for a known achievement type.
func AchievementTitle(achievementType string) string {
	switch achievementType {
	case AchievementFirstProblem:
		return "First Victory"
	case AchievementStreak7:
		return "Week of Fire"
	case AchievementStreak30:
		return "Iron Will"
	case AchievementLevel5:
		return "Apprentice"
	case AchievementLevel10:
		return "Master"
	case AchievementFirstGoal:
		return "Goal Getter"
	default:
		return achievementType
	}
}

// NewAchievement creates an unlock record.
func NewAchievement(subject shared.Subject, achievementType string, at time.Time) Achievement {
	return Achievement{
		Subject:    subject,
		Type:       achievementType,
		Title:      AchievementTitle(achievementType),
		UnlockedAt: at.UTC(),
	}
}
