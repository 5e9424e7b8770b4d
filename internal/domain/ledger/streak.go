package ledger

import (
	"time"

	"github.com/tutorhub/tutor-hub/internal/domain/shared"
	"github.com/tutorhub/tutor-hub/pkg/timeutil"
)

// StreakRecord is the per-subject consecutive-practice counter. It is mutated
// at most once per UTC calendar day; LongestStreak never decreases.
type StreakRecord struct {
	Subject       shared.Subject
	CurrentStreak int
	LongestStreak int
	LastStudyDate *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// NewStreakRecord creates the default (empty) streak row for a subject.
func NewStreakRecord(subject shared.Subject) *StreakRecord {
	now := time.Now().UTC()
	return &StreakRecord{
		Subject:   subject,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// RecordPractice registers practice on the given day and returns whether the
// row changed. Same-day calls are no-ops; a one-day gap continues the streak;
// a longer gap resets CurrentStreak to 1. LongestStreak only ever grows.
func (s *StreakRecord) RecordPractice(day time.Time) bool {
	today := timeutil.StartOfDay(day)

	if s.LastStudyDate == nil {
		s.CurrentStreak = 1
		if s.LongestStreak < 1 {
			s.LongestStreak = 1
		}
		s.LastStudyDate = &today
		s.UpdatedAt = day.UTC()
		return true
	}

	switch timeutil.DaysBetween(*s.LastStudyDate, today) {
	case 0:
		// Already counted today.
		return false
	case 1:
		s.CurrentStreak++
	default:
		s.CurrentStreak = 1
	}

	if s.CurrentStreak > s.LongestStreak {
		s.LongestStreak = s.CurrentStreak
	}
	s.LastStudyDate = &today
	s.UpdatedAt = day.UTC()
	return true
}

// AtRisk reports whether the streak would break without practice: at least a
// full day since the last study date and a live streak to lose. Reading this
// never mutates the row; only a future RecordPractice after a missed day
// lowers CurrentStreak.
func (s *StreakRecord) AtRisk(now time.Time) bool {
	if s.LastStudyDate == nil || s.CurrentStreak == 0 {
		return false
	}
	return timeutil.DaysBetween(*s.LastStudyDate, timeutil.StartOfDay(now)) >= 1
}
