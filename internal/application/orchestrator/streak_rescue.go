package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/tutorhub/tutor-hub/internal/domain/challenge"
	"github.com/tutorhub/tutor-hub/internal/domain/ledger"
	"github.com/tutorhub/tutor-hub/internal/domain/shared"
)

// ═══════════════════════════════════════════════════════════════════════════
// STREAK RESCUE
// ═══════════════════════════════════════════════════════════════════════════

// StreakNotice is the UI alert surfaced next to a rescue challenge.
type StreakNotice struct {
	CurrentStreak int       `json:"current_streak"`
	LastStudyDate time.Time `json:"last_study_date"`
	ShareCode     string    `json:"share_code,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// NoticeStore writes at-risk notices where the UI reads them. Nil is allowed.
type NoticeStore interface {
	SetStreakNotice(ctx context.Context, subject shared.Subject, notice StreakNotice) error
}

// StreakRescuer detects at-risk streaks and creates rescue challenges for
// them. Detection is purely read-only on the streak row: a missed day never
// lowers the stored counter, only the subject's next practice does.
type StreakRescuer struct {
	streakRepo    ledger.StreakRepository
	challengeRepo challenge.Repository
	publisher     shared.EventPublisher
	notices       NoticeStore
	logger        *slog.Logger
}

// NewStreakRescuer creates a StreakRescuer.
func NewStreakRescuer(
	streakRepo ledger.StreakRepository,
	challengeRepo challenge.Repository,
	publisher shared.EventPublisher,
	notices NoticeStore,
	logger *slog.Logger,
) *StreakRescuer {
	if logger == nil {
		logger = slog.Default()
	}
	return &StreakRescuer{
		streakRepo:    streakRepo,
		challengeRepo: challengeRepo,
		publisher:     publisher,
		notices:       notices,
		logger:        logger.With("service", "streak_rescuer"),
	}
}

// CheckAndRescue inspects one subject's streak and, if it is at risk and has
// no open rescue yet, creates a streak_rescue challenge, emits the alert
// events, and writes the UI notice. Safe to call repeatedly: an open rescue
// suppresses duplicates.
func (s *StreakRescuer) CheckAndRescue(ctx context.Context, subject shared.Subject, now time.Time) error {
	row, err := s.streakRepo.Get(ctx, subject)
	if err != nil {
		if shared.IsNotFound(err) {
			return nil
		}
		return fmt.Errorf("load streak row: %w", err)
	}

	if !row.AtRisk(now) {
		return nil
	}

	open, err := s.challengeRepo.HasOpenRescue(ctx, subject)
	if err != nil {
		return fmt.Errorf("check open rescue: %w", err)
	}
	if open {
		return nil
	}

	c, err := challenge.NewStreakRescue(uuid.NewString(), subject, row.CurrentStreak)
	if err != nil {
		return fmt.Errorf("build rescue challenge: %w", err)
	}
	if err := s.createWithRetry(ctx, c); err != nil {
		return fmt.Errorf("create rescue challenge: %w", err)
	}

	s.logger.Info("streak rescue created",
		"subject", subject.Key(),
		"current_streak", row.CurrentStreak,
		"share_code", c.ShareCode,
	)

	s.publish(shared.NewStreakAtRiskEvent(subject, row.CurrentStreak, *row.LastStudyDate))
	s.publish(shared.NewChallengeCreatedEvent(subject, c.ID, string(c.Type), c.ShareCode))

	if s.notices != nil {
		notice := StreakNotice{
			CurrentStreak: row.CurrentStreak,
			LastStudyDate: *row.LastStudyDate,
			ShareCode:     c.ShareCode,
			CreatedAt:     now.UTC(),
		}
		if err := s.notices.SetStreakNotice(ctx, subject, notice); err != nil {
			s.logger.Warn("failed to write streak notice", "subject", subject.Key(), "error", err)
		}
	}
	return nil
}

// Sweep scans stored streak rows for at-risk subjects and rescues each one.
// A failed subject is logged and the sweep continues.
func (s *StreakRescuer) Sweep(ctx context.Context, now time.Time, limit int) (int, error) {
	rows, err := s.streakRepo.ListAtRisk(ctx, now, limit)
	if err != nil {
		return 0, fmt.Errorf("list at-risk streaks: %w", err)
	}

	rescued := 0
	for _, row := range rows {
		if err := s.CheckAndRescue(ctx, row.Subject, now); err != nil {
			s.logger.Error("streak rescue failed", "subject", row.Subject.Key(), "error", err)
			continue
		}
		rescued++
	}
	return rescued, nil
}

// Emits declares the events a rescue may publish.
func (s *StreakRescuer) Emits() []shared.EventType {
	return []shared.EventType{
		shared.EventStreakAtRisk,
		shared.EventChallengeCreated,
	}
}

func (s *StreakRescuer) publish(event shared.Event) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(event); err != nil {
		s.logger.Error("failed to publish event", "event_type", event.EventType(), "error", err)
	}
}

// createWithRetry inserts the challenge, regenerating the share code when it
// collides with an existing one.
func (s *StreakRescuer) createWithRetry(ctx context.Context, c *challenge.Challenge) error {
	var err error
	for attempt := 0; attempt < 3; attempt++ {
		err = s.challengeRepo.Create(ctx, c)
		if err == nil {
			return nil
		}
		if !shared.IsAlreadyExists(err) {
			return err
		}
		if regenErr := c.RegenerateShareCode(); regenErr != nil {
			return regenErr
		}
	}
	return err
}
