package orchestrator

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tutorhub/tutor-hub/internal/domain/ledger"
	"github.com/tutorhub/tutor-hub/internal/domain/shared"
)

func testSubject() shared.Subject {
	return shared.Subject{UserID: "user-1", ProfileID: "profile-1"}
}

func TestResolveExactMatchWins(t *testing.T) {
	repo := &fakeProblemRepo{}
	subject := testSubject()
	older := ledger.NewProblem("p1", subject, "solve 2x + 3 = 7", "algebra", shared.DifficultyMiddle)
	exact := ledger.NewProblem("p2", subject, "solve x^2 = 9", "algebra", shared.DifficultyMiddle)
	repo.problems = append(repo.problems, older, exact)

	resolver := NewProblemResolver(repo)
	p, err := resolver.Resolve(context.Background(), subject, "solve x^2 = 9")
	require.NoError(t, err)
	assert.Equal(t, "p2", p.ID)
}

func TestResolvePrefixTier(t *testing.T) {
	repo := &fakeProblemRepo{}
	subject := testSubject()
	longText := strings.Repeat("a", 60) + " original tail"
	stored := ledger.NewProblem("p1", subject, longText, "algebra", shared.DifficultyMiddle)
	repo.problems = append(repo.problems, stored)

	// Same head, different tail: only the prefix tier can find it.
	reported := strings.Repeat("a", 60) + " mangled tail"
	resolver := NewProblemResolver(repo)
	p, err := resolver.Resolve(context.Background(), subject, reported)
	require.NoError(t, err)
	assert.Equal(t, "p1", p.ID)
}

func TestResolveFallsBackToMostRecentUnsolved(t *testing.T) {
	repo := &fakeProblemRepo{}
	subject := testSubject()
	solved := ledger.NewProblem("p1", subject, "first problem", "algebra", shared.DifficultyMiddle)
	solved.MarkSolved(solved.CreatedAt)
	unsolved := ledger.NewProblem("p2", subject, "second problem", "algebra", shared.DifficultyMiddle)
	repo.problems = append(repo.problems, solved, unsolved)

	resolver := NewProblemResolver(repo)
	p, err := resolver.Resolve(context.Background(), subject, "completely different text")
	require.NoError(t, err)
	assert.Equal(t, "p2", p.ID)
}

func TestResolveEmptyTextUsesLastResortTier(t *testing.T) {
	repo := &fakeProblemRepo{}
	subject := testSubject()
	unsolved := ledger.NewProblem("p1", subject, "pending problem", "algebra", shared.DifficultyMiddle)
	repo.problems = append(repo.problems, unsolved)

	resolver := NewProblemResolver(repo)
	p, err := resolver.Resolve(context.Background(), subject, "   ")
	require.NoError(t, err)
	assert.Equal(t, "p1", p.ID)
}

func TestResolveNothingMatches(t *testing.T) {
	resolver := NewProblemResolver(&fakeProblemRepo{})
	_, err := resolver.Resolve(context.Background(), testSubject(), "anything")
	require.Error(t, err)
	assert.True(t, shared.IsNotFound(err))
}
