// Package orchestrator reacts to problem completions from the tutoring
// session: it identifies the solved problem, grants XP, advances the streak
// and goals, unlocks achievements, and creates challenges. Every step is
// isolated so one feature failing never blocks the others.
package orchestrator

import (
	"context"
	"strings"

	"github.com/tutorhub/tutor-hub/internal/domain/ledger"
	"github.com/tutorhub/tutor-hub/internal/domain/shared"
)

// ProblemResolver maps the free-form problem text reported by the tutoring
// session onto a stored problem row. The session does not carry problem IDs,
// so identification is best-effort, behind this single interface.
type ProblemResolver interface {
	// Resolve returns the stored problem matching the reported text, or
	// shared.ErrProblemNotFound when no tier matched.
	Resolve(ctx context.Context, subject shared.Subject, text string) (*ledger.Problem, error)
}

// prefixResolveLength is how much of the reported text is used for the
// prefix tier. Long problem statements get truncated in transit; the head is
// the stable part.
const prefixResolveLength = 50

// threeTierResolver resolves in three tiers, most precise first:
// exact text match, then prefix match, then the newest unsolved problem.
type threeTierResolver struct {
	problems ledger.ProblemRepository
}

// NewProblemResolver creates the standard three-tier resolver.
func NewProblemResolver(problems ledger.ProblemRepository) ProblemResolver {
	return &threeTierResolver{problems: problems}
}

func (r *threeTierResolver) Resolve(ctx context.Context, subject shared.Subject, text string) (*ledger.Problem, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		// Nothing to match on; fall through to the last-resort tier.
		return r.problems.FindMostRecentUnsolved(ctx, subject)
	}

	// Tier 1: exact match.
	p, err := r.problems.FindExact(ctx, subject, text)
	if err == nil {
		return p, nil
	}
	if !shared.IsNotFound(err) {
		return nil, err
	}

	// Tier 2: prefix match on the head of the text.
	prefix := text
	if len(prefix) > prefixResolveLength {
		prefix = prefix[:prefixResolveLength]
	}
	p, err = r.problems.FindByPrefix(ctx, subject, prefix)
	if err == nil {
		return p, nil
	}
	if !shared.IsNotFound(err) {
		return nil, err
	}

	// Tier 3: newest unsolved problem for the subject.
	return r.problems.FindMostRecentUnsolved(ctx, subject)
}
