// Package command contains user-initiated application commands that sit
// outside the event pipeline, such as the daily login bonus.
package command

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/tutorhub/tutor-hub/internal/domain/ledger"
	"github.com/tutorhub/tutor-hub/internal/domain/shared"
)

// DefaultDailyLoginXP is the bonus granted on the first login of a UTC day.
const DefaultDailyLoginXP shared.XP = 5

// XPMirror is the cache write the command performs after a grant. Nil is
// allowed.
type XPMirror interface {
	SetXP(ctx context.Context, row *ledger.XPLedger) error
}

// DailyLoginResult reports what a login check did.
type DailyLoginResult struct {
	Awarded   bool `json:"awarded"`
	Amount    int  `json:"amount"`
	TotalXP   int  `json:"total_xp"`
	Level     int  `json:"level"`
	LeveledUp bool `json:"leveled_up"`
}

// DailyLoginCommand grants the once-per-calendar-day login bonus. Concurrent
// checks for the same subject (two tabs, a refresh) coalesce into a single
// execution; the history-based idempotency guard catches sequential repeats.
type DailyLoginCommand struct {
	xpRepo    ledger.XPRepository
	publisher shared.EventPublisher
	mirror    XPMirror
	logger    *slog.Logger
	amount    shared.XP

	group singleflight.Group
}

// NewDailyLoginCommand creates a DailyLoginCommand. A non-positive amount
// falls back to DefaultDailyLoginXP.
func NewDailyLoginCommand(
	xpRepo ledger.XPRepository,
	publisher shared.EventPublisher,
	mirror XPMirror,
	logger *slog.Logger,
	amount shared.XP,
) *DailyLoginCommand {
	if logger == nil {
		logger = slog.Default()
	}
	if amount <= 0 {
		amount = DefaultDailyLoginXP
	}
	return &DailyLoginCommand{
		xpRepo:    xpRepo,
		publisher: publisher,
		mirror:    mirror,
		logger:    logger.With("command", "daily_login"),
		amount:    amount,
	}
}

// Execute checks and, at most once per UTC day, grants the login bonus.
func (c *DailyLoginCommand) Execute(ctx context.Context, subject shared.Subject, now time.Time) (DailyLoginResult, error) {
	result, err, _ := c.group.Do("daily_login:"+subject.Key(), func() (interface{}, error) {
		return c.execute(ctx, subject, now)
	})
	if err != nil {
		return DailyLoginResult{}, err
	}
	return result.(DailyLoginResult), nil
}

func (c *DailyLoginCommand) execute(ctx context.Context, subject shared.Subject, now time.Time) (DailyLoginResult, error) {
	row, err := c.xpRepo.GetOrCreate(ctx, subject)
	if err != nil {
		return DailyLoginResult{}, fmt.Errorf("load xp row: %w", err)
	}

	if row.GrantedOn(ledger.ReasonDailyLogin, now) {
		return DailyLoginResult{
			Awarded: false,
			TotalXP: row.TotalXP.Int(),
			Level:   row.Level.Int(),
		}, nil
	}

	oldLevel, newLevel, err := row.Grant(c.amount, ledger.ReasonDailyLogin, now)
	if err != nil {
		return DailyLoginResult{}, fmt.Errorf("grant login bonus: %w", err)
	}
	if err := c.xpRepo.Upsert(ctx, row); err != nil {
		return DailyLoginResult{}, fmt.Errorf("persist xp row: %w", err)
	}

	c.logger.Info("daily login bonus granted",
		"subject", subject.Key(),
		"amount", c.amount.Int(),
		"total_xp", row.TotalXP.Int(),
	)

	if newLevel > oldLevel && c.publisher != nil {
		if err := c.publisher.Publish(shared.NewLevelUpEvent(subject, oldLevel, newLevel, row.TotalXP)); err != nil {
			c.logger.Error("failed to publish level-up", "subject", subject.Key(), "error", err)
		}
	}

	if c.mirror != nil {
		if err := c.mirror.SetXP(ctx, row); err != nil {
			c.logger.Warn("failed to mirror xp row", "subject", subject.Key(), "error", err)
		}
	}

	return DailyLoginResult{
		Awarded:   true,
		Amount:    c.amount.Int(),
		TotalXP:   row.TotalXP.Int(),
		Level:     row.Level.Int(),
		LeveledUp: newLevel > oldLevel,
	}, nil
}
