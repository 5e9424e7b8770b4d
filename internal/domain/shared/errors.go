// Package shared contains common domain types, errors, events, and value objects
// that are used across all domain packages. This package has zero external dependencies.
package shared

import (
	"errors"
	"fmt"
)

// Base domain errors that can be used for error checking with errors.Is().
var (
	// Entity errors
	ErrNotFound      = errors.New("entity not found")
	ErrAlreadyExists = errors.New("entity already exists")
	ErrInvalidEntity = errors.New("invalid entity")

	// Validation errors
	ErrValidation      = errors.New("validation error")
	ErrInvalidID       = errors.New("invalid ID")
	ErrInvalidInput    = errors.New("invalid input")
	ErrEmptyValue      = errors.New("value cannot be empty")
	ErrNegativeValue   = errors.New("value cannot be negative")
	ErrValueOutOfRange = errors.New("value out of range")

	// State errors
	ErrInvalidState     = errors.New("invalid state")
	ErrStateTransition  = errors.New("invalid state transition")
	ErrAlreadyProcessed = errors.New("already processed")

	// Matching errors. A subject mismatch is not a failure: callers skip the
	// non-matching row and move on.
	ErrSubjectMismatch = errors.New("subject does not match")

	// Store errors
	ErrTimeout   = errors.New("operation timeout")
	ErrTransport = errors.New("durable store unreachable")

	// Concurrency errors
	ErrConcurrentModification = errors.New("concurrent modification detected")
)

// DomainError represents a domain-specific error with context.
type DomainError struct {
	Domain  string // e.g., "ledger", "goal", "challenge"
	Op      string // Operation that failed, e.g., "Grant", "Upsert"
	Kind    error  // Base error type for errors.Is() checking
	Message string // Human-readable message
	Err     error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s.%s: %s: %v", e.Domain, e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s.%s: %s", e.Domain, e.Op, e.Message)
}

// Unwrap returns the underlying error for errors.Unwrap().
func (e *DomainError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return e.Kind
}

// Is implements errors.Is() matching.
func (e *DomainError) Is(target error) bool {
	if e.Kind != nil && errors.Is(e.Kind, target) {
		return true
	}
	if e.Err != nil && errors.Is(e.Err, target) {
		return true
	}
	return false
}

// NewDomainError creates a new domain error.
func NewDomainError(domain, op string, kind error, message string) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
	}
}

// WrapError wraps an existing error with domain context.
func WrapError(domain, op string, kind error, message string, err error) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
		Err:     err,
	}
}

// Ledger domain errors
var (
	ErrXPRowNotFound     = NewDomainError("ledger", "GetXP", ErrNotFound, "xp row not found")
	ErrStreakNotFound    = NewDomainError("ledger", "GetStreak", ErrNotFound, "streak row not found")
	ErrProblemNotFound   = NewDomainError("ledger", "ResolveProblem", ErrNotFound, "no matching problem")
	ErrProblemSolved     = NewDomainError("ledger", "MarkSolved", ErrAlreadyProcessed, "problem already solved")
	ErrNegativeXPGrant   = NewDomainError("ledger", "Grant", ErrNegativeValue, "xp grant cannot be negative")
	ErrInvalidDifficulty = NewDomainError("ledger", "Validate", ErrInvalidInput, "unknown difficulty tier")
)

// Goal domain errors
var (
	ErrGoalNotFound     = NewDomainError("goal", "Find", ErrNotFound, "goal not found")
	ErrGoalNotActive    = NewDomainError("goal", "ApplyCompletion", ErrInvalidState, "goal is not active")
	ErrGoalMismatch     = NewDomainError("goal", "ApplyCompletion", ErrSubjectMismatch, "problem type does not match goal subject")
	ErrInvalidGoalState = NewDomainError("goal", "Transition", ErrStateTransition, "invalid goal status transition")
)

// Challenge domain errors
var (
	ErrChallengeNotFound  = NewDomainError("challenge", "Find", ErrNotFound, "challenge not found")
	ErrShareCodeCollision = NewDomainError("challenge", "Save", ErrAlreadyExists, "share code already in use")
)

// Achievement domain errors
var (
	ErrAchievementUnlocked = NewDomainError("achievement", "Unlock", ErrAlreadyExists, "achievement already unlocked")
)

// IsNotFound checks if the error is a "not found" error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsAlreadyExists checks if the error is an "already exists" error.
func IsAlreadyExists(err error) bool {
	return errors.Is(err, ErrAlreadyExists)
}

// IsTimeout checks if the error is a bounded-wait timeout.
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout)
}

// IsTransport checks if the error means the durable store was unreachable.
func IsTransport(err error) bool {
	return errors.Is(err, ErrTransport)
}

// IsMismatch checks if the error is a subject/type mismatch (a silent skip,
// never surfaced to the caller as a failure).
func IsMismatch(err error) bool {
	return errors.Is(err, ErrSubjectMismatch)
}
