// Package shared contains common domain types, errors, events, and value objects
// that are used across all domain packages.
package shared

import (
	"strings"
)

// ═══════════════════════════════════════════════════════════════════════════
// Subject Value Object
// ═══════════════════════════════════════════════════════════════════════════

// Subject identifies who a ledger row belongs to: a user, optionally acting
// through a managed learner profile. An empty ProfileID means the user acting
// for themself. The pair is the uniqueness boundary for every ledger table.
type Subject struct {
	UserID    string
	ProfileID string
}

// NewSubject creates a Subject with validation.
func NewSubject(userID, profileID string) (Subject, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return Subject{}, NewDomainError("shared", "NewSubject", ErrEmptyValue, "user ID cannot be empty")
	}
	return Subject{UserID: userID, ProfileID: strings.TrimSpace(profileID)}, nil
}

// IsProfile reports whether the subject is a managed learner profile.
func (s Subject) IsProfile() bool {
	return s.ProfileID != ""
}

// Key returns a stable string form usable as a map or cache key.
func (s Subject) Key() string {
	if s.ProfileID == "" {
		return s.UserID
	}
	return s.UserID + ":" + s.ProfileID
}

// String implements fmt.Stringer.
func (s Subject) String() string {
	return s.Key()
}

// Equal reports whether two subjects identify the same ledger owner.
func (s Subject) Equal(other Subject) bool {
	return s.UserID == other.UserID && s.ProfileID == other.ProfileID
}

// ═══════════════════════════════════════════════════════════════════════════
// XP Value Object (Experience Points)
// ═══════════════════════════════════════════════════════════════════════════

// XP represents experience points earned by a subject.
type XP int

const (
	// XP boundaries
	MinXP XP = 0
	MaxXP XP = 1000000 // 1 million XP cap
)

// IsValid checks if the XP value is within valid range.
func (x XP) IsValid() bool {
	return x >= MinXP && x <= MaxXP
}

// Int returns the underlying int value.
func (x XP) Int() int {
	return int(x)
}

// Add adds XP and returns the result, clamped to [MinXP, MaxXP].
func (x XP) Add(amount XP) XP {
	result := x + amount
	if result > MaxXP {
		return MaxXP
	}
	if result < MinXP {
		return MinXP
	}
	return result
}

// NewXP creates a new XP value with validation.
func NewXP(amount int) (XP, error) {
	if amount < int(MinXP) {
		return 0, NewDomainError("shared", "NewXP", ErrNegativeValue, "XP cannot be negative")
	}
	if amount > int(MaxXP) {
		return MaxXP, nil // Cap at max
	}
	return XP(amount), nil
}

// ═══════════════════════════════════════════════════════════════════════════
// Level Value Object
// ═══════════════════════════════════════════════════════════════════════════

// Level represents a subject's level, derived from cumulative XP.
type Level int

// MinLevel is the floor: a subject with zero XP is level 1.
const MinLevel Level = 1

// IsValid checks if the level is valid.
func (l Level) IsValid() bool {
	return l >= MinLevel
}

// Int returns the underlying int value.
func (l Level) Int() int {
	return int(l)
}

// ═══════════════════════════════════════════════════════════════════════════
// Difficulty Value Object
// ═══════════════════════════════════════════════════════════════════════════

// Difficulty is the tier of a math problem, set by the tutoring session.
type Difficulty string

const (
	DifficultyElementary Difficulty = "elementary"
	DifficultyMiddle     Difficulty = "middle"
	DifficultyHigh       Difficulty = "high"
	DifficultyAdvanced   Difficulty = "advanced"
)

// IsValid checks if the difficulty is a known tier.
func (d Difficulty) IsValid() bool {
	switch d {
	case DifficultyElementary, DifficultyMiddle, DifficultyHigh, DifficultyAdvanced:
		return true
	}
	return false
}

// String returns the string representation.
func (d Difficulty) String() string {
	return string(d)
}

// ParseDifficulty parses a string into a Difficulty. Unknown or empty input
// falls back to the middle tier rather than erroring: the UI may omit it.
func ParseDifficulty(s string) Difficulty {
	d := Difficulty(strings.ToLower(strings.TrimSpace(s)))
	if !d.IsValid() {
		return DifficultyMiddle
	}
	return d
}

// ═══════════════════════════════════════════════════════════════════════════
// ProblemType Value Object
// ═══════════════════════════════════════════════════════════════════════════

// ProblemType is a free-form math topic label ("algebra", "fractions", ...).
type ProblemType string

// Normalize returns a lowercased, trimmed form used for matching.
func (p ProblemType) Normalize() ProblemType {
	return ProblemType(strings.ToLower(strings.TrimSpace(string(p))))
}

// String returns the string representation.
func (p ProblemType) String() string {
	return string(p)
}

// Matches reports whether the problem type and a goal's target subject refer
// to the same topic area: a case-insensitive substring test in either
// direction, so "algebra" matches "linear algebra" and vice versa.
func (p ProblemType) Matches(targetSubject string) bool {
	a := strings.ToLower(strings.TrimSpace(string(p)))
	b := strings.ToLower(strings.TrimSpace(targetSubject))
	if a == "" || b == "" {
		return false
	}
	return strings.Contains(a, b) || strings.Contains(b, a)
}

// ═══════════════════════════════════════════════════════════════════════════
// Pagination Value Object
// ═══════════════════════════════════════════════════════════════════════════

// Pagination represents pagination parameters.
type Pagination struct {
	Page     int
	PageSize int
}

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Offset returns the offset for database queries.
func (p Pagination) Offset() int {
	if p.Page <= 0 {
		return 0
	}
	return (p.Page - 1) * p.Limit()
}

// Limit returns the limit for database queries.
func (p Pagination) Limit() int {
	if p.PageSize <= 0 {
		return DefaultPageSize
	}
	if p.PageSize > MaxPageSize {
		return MaxPageSize
	}
	return p.PageSize
}

// NewPagination creates a new Pagination with defaults.
func NewPagination(page, pageSize int) Pagination {
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}
	return Pagination{Page: page, PageSize: pageSize}
}
