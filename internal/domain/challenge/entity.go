// Package challenge contains shareable challenges: level-beating contests and
// streak rescues identified by short share codes.
package challenge

import (
	"crypto/rand"
	"fmt"
	"time"

	"github.com/tutorhub/tutor-hub/internal/domain/shared"
)

// Type classifies a challenge.
type Type string

const (
	TypeBeatMySkill     Type = "beat_my_skill"
	TypeStreakRescue    Type = "streak_rescue"
	TypeFriendChallenge Type = "friend_challenge"
	TypeTopicChallenge  Type = "topic_challenge"
)

// IsValid checks if the type is known.
func (t Type) IsValid() bool {
	switch t {
	case TypeBeatMySkill, TypeStreakRescue, TypeFriendChallenge, TypeTopicChallenge:
		return true
	}
	return false
}

// shareCodeAlphabet excludes confusable characters (0/O, 1/I/L) so codes
// survive being read aloud or retyped.
const (
	shareCodeAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"
	shareCodeLength   = 8
)

// NewShareCode generates a random 8-character share code. Random bytes at or
// above the largest multiple of the alphabet size are rejected, keeping every
// character uniformly likely.
func NewShareCode() (string, error) {
	const limit = byte(256 / len(shareCodeAlphabet) * len(shareCodeAlphabet))

	code := make([]byte, 0, shareCodeLength)
	buf := make([]byte, shareCodeLength)
	for len(code) < shareCodeLength {
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("generating share code: %w", err)
		}
		for _, b := range buf {
			if b >= limit {
				continue
			}
			code = append(code, shareCodeAlphabet[int(b)%len(shareCodeAlphabet)])
			if len(code) == shareCodeLength {
				break
			}
		}
	}
	return string(code), nil
}

// Challenge is a shareable contest created for a subject. The share code is
// globally unique; Completed flips at most once.
type Challenge struct {
	ID          string
	Subject     shared.Subject
	Type        Type
	Title       string
	Description string
	ShareCode   string
	TargetLevel int
	Completed   bool
	CreatedAt   time.Time
	CompletedAt *time.Time
}

// NewBeatMySkill creates a challenge inviting a friend to match the creator's
// level.
func NewBeatMySkill(id string, subject shared.Subject, level shared.Level) (*Challenge, error) {
	code, err := NewShareCode()
	if err != nil {
		return nil, err
	}
	return &Challenge{
		ID:          id,
		Subject:     subject,
		Type:        TypeBeatMySkill,
		Title:       "Beat My Skill",
		Description: fmt.Sprintf("Can you reach level %d? I did!", level.Int()),
		ShareCode:   code,
		TargetLevel: level.Int(),
		CreatedAt:   time.Now().UTC(),
	}, nil
}

// NewStreakRescue creates a rescue challenge for a streak about to break.
func NewStreakRescue(id string, subject shared.Subject, currentStreak int) (*Challenge, error) {
	code, err := NewShareCode()
	if err != nil {
		return nil, err
	}
	return &Challenge{
		ID:          id,
		Subject:     subject,
		Type:        TypeStreakRescue,
		Title:       "Streak Rescue",
		Description: fmt.Sprintf("Solve one problem today to save your %d-day streak!", currentStreak),
		ShareCode:   code,
		CreatedAt:   time.Now().UTC(),
	}, nil
}

// RegenerateShareCode replaces the share code, used when an insert collides
// with an existing code.
func (c *Challenge) RegenerateShareCode() error {
	code, err := NewShareCode()
	if err != nil {
		return err
	}
	c.ShareCode = code
	return nil
}

// MarkCompleted sets the completion timestamp. It is idempotent: completing
// an already-completed challenge returns false.
func (c *Challenge) MarkCompleted(at time.Time) bool {
	if c.Completed {
		return false
	}
	c.Completed = true
	t := at.UTC()
	c.CompletedAt = &t
	return true
}
