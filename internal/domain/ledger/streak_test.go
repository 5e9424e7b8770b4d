package ledger

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tutorhub/tutor-hub/internal/domain/shared"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 12, 0, 0, 0, time.UTC)
}

func TestRecordPracticeFirstEver(t *testing.T) {
	s := NewStreakRecord(shared.Subject{UserID: "u1"})

	changed := s.RecordPractice(day(2025, 6, 1))
	require.True(t, changed)
	assert.Equal(t, 1, s.CurrentStreak)
	assert.Equal(t, 1, s.LongestStreak)
	require.NotNil(t, s.LastStudyDate)
	assert.Equal(t, time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC), *s.LastStudyDate)
}

func TestRecordPracticeSameDayIsNoOp(t *testing.T) {
	s := NewStreakRecord(shared.Subject{UserID: "u1"})
	s.RecordPractice(day(2025, 6, 1))

	changed := s.RecordPractice(time.Date(2025, 6, 1, 23, 30, 0, 0, time.UTC))
	assert.False(t, changed)
	assert.Equal(t, 1, s.CurrentStreak)
}

func TestRecordPracticeConsecutiveDays(t *testing.T) {
	s := NewStreakRecord(shared.Subject{UserID: "u1"})
	for d := 1; d <= 5; d++ {
		s.RecordPractice(day(2025, 6, d))
	}
	assert.Equal(t, 5, s.CurrentStreak)
	assert.Equal(t, 5, s.LongestStreak)
}

func TestRecordPracticeGapResets(t *testing.T) {
	s := NewStreakRecord(shared.Subject{UserID: "u1"})
	s.RecordPractice(day(2025, 6, 1))
	s.RecordPractice(day(2025, 6, 2))
	s.RecordPractice(day(2025, 6, 3))

	// Skipping June 4 breaks the run at the next practice.
	changed := s.RecordPractice(day(2025, 6, 5))
	require.True(t, changed)
	assert.Equal(t, 1, s.CurrentStreak)
	assert.Equal(t, 3, s.LongestStreak, "longest streak is never lowered")
}

func TestRecordPracticeMidnightBoundary(t *testing.T) {
	s := NewStreakRecord(shared.Subject{UserID: "u1"})
	s.RecordPractice(time.Date(2025, 6, 1, 23, 59, 0, 0, time.UTC))

	changed := s.RecordPractice(time.Date(2025, 6, 2, 0, 1, 0, 0, time.UTC))
	require.True(t, changed)
	assert.Equal(t, 2, s.CurrentStreak, "two minutes across midnight is still a consecutive day")
}

func TestAtRisk(t *testing.T) {
	s := NewStreakRecord(shared.Subject{UserID: "u1"})
	assert.False(t, s.AtRisk(day(2025, 6, 1)), "no streak yet")

	s.RecordPractice(day(2025, 6, 1))
	assert.False(t, s.AtRisk(day(2025, 6, 1)), "practiced today")
	assert.True(t, s.AtRisk(day(2025, 6, 2)), "no practice yet today")

	// Checking risk must never mutate the row.
	before := s.CurrentStreak
	s.AtRisk(day(2025, 6, 9))
	assert.Equal(t, before, s.CurrentStreak)
}
