package eventhandler

import (
	"context"
	"log/slog"
	"time"

	"github.com/tutorhub/tutor-hub/internal/application/reconcile"
	"github.com/tutorhub/tutor-hub/internal/domain/shared"
)

// ═══════════════════════════════════════════════════════════════════════════
// ON STREAK AT RISK HANDLER
// ═══════════════════════════════════════════════════════════════════════════

// Reconciler forces a rebuild of a subject's cached ledger view.
type Reconciler interface {
	Reconcile(ctx context.Context, subject shared.Subject, force bool) (*reconcile.Snapshot, error)
}

// OnStreakAtRiskHandler reacts to streak.at_risk events by force-reconciling
// the subject's cache, so the UI that surfaces the alert reads a fresh view
// that includes the rescue challenge just created alongside the event.
type OnStreakAtRiskHandler struct {
	reconciler Reconciler

	logger *slog.Logger
	config StreakAtRiskConfig
}

// StreakAtRiskConfig contains configuration for the handler.
type StreakAtRiskConfig struct {
	// ReconcileTimeout bounds the cache rebuild.
	ReconcileTimeout time.Duration
}

// DefaultStreakAtRiskConfig returns the default configuration.
func DefaultStreakAtRiskConfig() StreakAtRiskConfig {
	return StreakAtRiskConfig{
		ReconcileTimeout: 10 * time.Second,
	}
}

// NewOnStreakAtRiskHandler creates the handler.
func NewOnStreakAtRiskHandler(
	reconciler Reconciler,
	logger *slog.Logger,
	config StreakAtRiskConfig,
) *OnStreakAtRiskHandler {
	if logger == nil {
		logger = slog.Default()
	}
	if config.ReconcileTimeout <= 0 {
		config.ReconcileTimeout = 10 * time.Second
	}

	return &OnStreakAtRiskHandler{
		reconciler: reconciler,
		logger:     logger.With("handler", "on_streak_at_risk"),
		config:     config,
	}
}

// Handle processes a streak.at_risk event.
func (h *OnStreakAtRiskHandler) Handle(event shared.Event) error {
	ctx, cancel := context.WithTimeout(context.Background(), h.config.ReconcileTimeout)
	defer cancel()

	riskEvent, ok := event.(shared.StreakAtRiskEvent)
	if !ok {
		h.logger.Warn("received non-StreakAtRiskEvent", "event_type", event.EventType())
		return nil
	}

	subject := riskEvent.EventSubject()
	h.logger.Info("processing streak at risk",
		"subject", subject.Key(),
		"current_streak", riskEvent.CurrentStreak,
		"last_study_date", riskEvent.LastStudyDate.Format("2006-01-02"),
	)

	if h.reconciler == nil {
		return nil
	}
	if _, err := h.reconciler.Reconcile(ctx, subject, true); err != nil {
		// A stale cache is tolerable; the alert itself was already stored.
		h.logger.Warn("failed to reconcile after streak alert", "subject", subject.Key(), "error", err)
	}
	return nil
}

// Emits declares the events the handler may publish (none).
func (h *OnStreakAtRiskHandler) Emits() []shared.EventType {
	return nil
}

// EventType returns the event type this handler processes.
func (h *OnStreakAtRiskHandler) EventType() shared.EventType {
	return shared.EventStreakAtRisk
}
