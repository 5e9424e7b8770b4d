// Package ledger contains the durable per-subject gamification records: XP
// with its level curve, practice streaks, problem history, and achievements.
package ledger

import (
	"github.com/tutorhub/tutor-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// LEVEL CURVE
// ══════════════════════════════════════════════════════════════════════════════

// levelThresholds[i] is the total XP required to reach level i+1. The table is
// deliberately non-uniform through level 10; beyond it every additional level
// costs a flat linearXPPerLevel.
var levelThresholds = []shared.XP{
	0,    // level 1
	100,  // level 2
	250,  // level 3
	450,  // level 4
	700,  // level 5
	1000, // level 6
	1400, // level 7
	1900, // level 8
	2500, // level 9
	3200, // level 10
}

// linearXPPerLevel is the XP cost of each level past the threshold table.
const linearXPPerLevel shared.XP = 600

// LevelFromXP maps cumulative XP to a level. It is non-decreasing in total
// and the exact inverse of XPForLevel: LevelFromXP(XPForLevel(L)) == L.
func LevelFromXP(total shared.XP) shared.Level {
	if total < 0 {
		total = 0
	}

	top := len(levelThresholds) - 1
	if total >= levelThresholds[top] {
		extra := (total - levelThresholds[top]) / linearXPPerLevel
		return shared.Level(top+1) + shared.Level(extra)
	}

	level := shared.MinLevel
	for i := 1; i <= top; i++ {
		if total >= levelThresholds[i] {
			level = shared.Level(i + 1)
		} else {
			break
		}
	}
	return level
}

// XPForLevel returns the total XP required to reach the given level.
func XPForLevel(level shared.Level) shared.XP {
	if level <= shared.MinLevel {
		return 0
	}
	top := len(levelThresholds)
	if int(level) <= top {
		return levelThresholds[level-1]
	}
	return levelThresholds[top-1] + shared.XP(int(level)-top)*linearXPPerLevel
}

// XPToNextLevel returns how much XP is still missing until the next level.
func XPToNextLevel(total shared.XP) shared.XP {
	next := LevelFromXP(total) + 1
	return XPForLevel(next) - total
}

// ══════════════════════════════════════════════════════════════════════════════
// PROBLEM XP FORMULA
// ══════════════════════════════════════════════════════════════════════════════

// XP awarded per difficulty tier for a completed problem.
const (
	xpElementary shared.XP = 5
	xpMiddle     shared.XP = 10
	xpHigh       shared.XP = 15
	xpAdvanced   shared.XP = 20

	// hintPenalty is subtracted per hint used during the solve.
	hintPenalty shared.XP = 2

	// minProblemXP is the floor: a solved problem is never worth less.
	minProblemXP shared.XP = 5
)

// CalculateProblemXP computes the XP award for a completed problem: the
// difficulty tier's base minus 2 XP per hint used, floored at 5.
func CalculateProblemXP(difficulty shared.Difficulty, hintsUsed int) shared.XP {
	var base shared.XP
	switch difficulty {
	case shared.DifficultyElementary:
		base = xpElementary
	case shared.DifficultyHigh:
		base = xpHigh
	case shared.DifficultyAdvanced:
		base = xpAdvanced
	default:
		base = xpMiddle
	}

	if hintsUsed < 0 {
		hintsUsed = 0
	}
	award := base - shared.XP(hintsUsed)*hintPenalty
	if award < minProblemXP {
		award = minProblemXP
	}
	return award
}
