package challenge

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tutorhub/tutor-hub/internal/domain/shared"
)

func TestNewShareCode(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		code, err := NewShareCode()
		require.NoError(t, err)
		require.Len(t, code, 8)
		for _, r := range code {
			assert.True(t, strings.ContainsRune(shareCodeAlphabet, r), "unexpected character %q in %s", r, code)
		}
		seen[code] = true
	}
	// 100 draws from a 31^8 space colliding would mean a broken generator.
	assert.Greater(t, len(seen), 95)
}

func TestShareCodeExcludesConfusables(t *testing.T) {
	for _, banned := range "01OIL" {
		assert.False(t, strings.ContainsRune(shareCodeAlphabet, banned))
	}
	assert.Len(t, shareCodeAlphabet, 31)
}

func TestNewBeatMySkill(t *testing.T) {
	c, err := NewBeatMySkill("c1", shared.Subject{UserID: "u1"}, 7)
	require.NoError(t, err)

	assert.Equal(t, TypeBeatMySkill, c.Type)
	assert.Equal(t, 7, c.TargetLevel)
	assert.Contains(t, c.Description, "level 7")
	assert.Len(t, c.ShareCode, 8)
	assert.False(t, c.Completed)
}

func TestNewStreakRescue(t *testing.T) {
	c, err := NewStreakRescue("c2", shared.Subject{UserID: "u1", ProfileID: "p1"}, 12)
	require.NoError(t, err)

	assert.Equal(t, TypeStreakRescue, c.Type)
	assert.Contains(t, c.Description, "12-day streak")
	assert.True(t, c.Subject.IsProfile())
}

func TestRegenerateShareCode(t *testing.T) {
	c, err := NewBeatMySkill("c1", shared.Subject{UserID: "u1"}, 3)
	require.NoError(t, err)

	old := c.ShareCode
	require.NoError(t, c.RegenerateShareCode())
	assert.NotEqual(t, old, c.ShareCode)
	assert.Len(t, c.ShareCode, 8)
}

func TestMarkCompletedIdempotent(t *testing.T) {
	c, err := NewBeatMySkill("c1", shared.Subject{UserID: "u1"}, 3)
	require.NoError(t, err)

	first := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	require.True(t, c.MarkCompleted(first))
	assert.False(t, c.MarkCompleted(first.Add(time.Hour)))
	assert.Equal(t, first, *c.CompletedAt)
}
