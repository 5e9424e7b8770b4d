package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/tutorhub/tutor-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH ENDPOINTS
// ══════════════════════════════════════════════════════════════════════════════

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "ok",
		"time":   time.Now().UTC(),
	})
}

// handleReady pings every backing store; any failure returns 503.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	stores := make(map[string]string, len(s.deps.Stores))
	ready := true
	for name, pinger := range s.deps.Stores {
		if err := pinger.Ping(ctx); err != nil {
			stores[name] = "unreachable"
			ready = false
			continue
		}
		stores[name] = "ok"
	}

	status := http.StatusOK
	if !ready {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, map[string]interface{}{
		"ready":  ready,
		"stores": stores,
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// EVENT INGESTION
// ══════════════════════════════════════════════════════════════════════════════

// problemCompletedRequest is the payload the tutoring session posts when a
// student solves a problem.
type problemCompletedRequest struct {
	UserID      string `json:"user_id"`
	ProfileID   string `json:"profile_id,omitempty"`
	ProblemText string `json:"problem_text"`
	ProblemType string `json:"problem_type"`
	Difficulty  string `json:"difficulty"`
	HintsUsed   int    `json:"hints_used"`
}

// handleProblemCompleted accepts a completion and feeds it to the event
// pipeline. The response only acknowledges receipt: rewards land
// asynchronously and the UI reads them from the ledger snapshot.
func (s *Server) handleProblemCompleted(w http.ResponseWriter, r *http.Request) {
	var req problemCompletedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_body", "request body must be valid JSON")
		return
	}

	subject, err := shared.NewSubject(req.UserID, req.ProfileID)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_subject", "user_id is required")
		return
	}
	if strings.TrimSpace(req.ProblemType) == "" {
		writeJSONError(w, http.StatusBadRequest, "invalid_problem_type", "problem_type is required")
		return
	}

	event := shared.NewProblemCompletedEvent(
		subject,
		req.ProblemText,
		shared.ProblemType(req.ProblemType).Normalize(),
		shared.ParseDifficulty(req.Difficulty),
		req.HintsUsed,
	)
	if err := s.deps.Publisher.Publish(event); err != nil {
		s.logger.Error("failed to publish problem completion", "subject", subject.Key(), "error", err)
		writeJSONError(w, http.StatusInternalServerError, "publish_failed", "event could not be accepted")
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"accepted": true,
		"subject":  subject.Key(),
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// LEDGER READS & RECONCILIATION
// ══════════════════════════════════════════════════════════════════════════════

// handleGetLedger returns the subject's reconciled ledger snapshot.
func (s *Server) handleGetLedger(w http.ResponseWriter, r *http.Request) {
	subject, err := subjectFromQuery(r)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_subject", "user_id is required")
		return
	}

	snap, err := s.deps.Reconciler.Reconcile(r.Context(), subject, false)
	if err != nil {
		s.logger.Error("ledger read failed", "subject", subject.Key(), "error", err)
		writeJSONError(w, http.StatusInternalServerError, "ledger_unavailable", "ledger could not be read")
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// handleReconcile forces a cache rebuild for the subject.
func (s *Server) handleReconcile(w http.ResponseWriter, r *http.Request) {
	subject, err := subjectFromQuery(r)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_subject", "user_id is required")
		return
	}

	snap, err := s.deps.Reconciler.Reconcile(r.Context(), subject, true)
	if err != nil {
		s.logger.Error("forced reconcile failed", "subject", subject.Key(), "error", err)
		writeJSONError(w, http.StatusInternalServerError, "reconcile_failed", "reconciliation failed")
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// ══════════════════════════════════════════════════════════════════════════════
// DAILY LOGIN
// ══════════════════════════════════════════════════════════════════════════════

type dailyLoginRequest struct {
	UserID    string `json:"user_id"`
	ProfileID string `json:"profile_id,omitempty"`
}

// handleDailyLogin runs the once-per-day login bonus check.
func (s *Server) handleDailyLogin(w http.ResponseWriter, r *http.Request) {
	var req dailyLoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_body", "request body must be valid JSON")
		return
	}

	subject, err := shared.NewSubject(req.UserID, req.ProfileID)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_subject", "user_id is required")
		return
	}

	result, err := s.deps.DailyLogin.Execute(r.Context(), subject, time.Now().UTC())
	if err != nil {
		s.logger.Error("daily login check failed", "subject", subject.Key(), "error", err)
		writeJSONError(w, http.StatusInternalServerError, "login_check_failed", "login bonus could not be checked")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// ══════════════════════════════════════════════════════════════════════════════
// CHALLENGES
// ══════════════════════════════════════════════════════════════════════════════

// handleGetChallenge resolves a share code to its challenge.
func (s *Server) handleGetChallenge(w http.ResponseWriter, r *http.Request) {
	code := strings.ToUpper(strings.TrimSpace(r.PathValue("code")))
	if code == "" {
		writeJSONError(w, http.StatusBadRequest, "invalid_code", "share code is required")
		return
	}

	c, err := s.deps.Challenges.GetByShareCode(r.Context(), code)
	if err != nil {
		if shared.IsNotFound(err) {
			writeJSONError(w, http.StatusNotFound, "challenge_not_found", "no challenge with that share code")
			return
		}
		s.logger.Error("challenge lookup failed", "share_code", code, "error", err)
		writeJSONError(w, http.StatusInternalServerError, "lookup_failed", "challenge could not be read")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"id":           c.ID,
		"type":         string(c.Type),
		"title":        c.Title,
		"description":  c.Description,
		"share_code":   c.ShareCode,
		"target_level": c.TargetLevel,
		"completed":    c.Completed,
		"created_at":   c.CreatedAt,
	})
}
