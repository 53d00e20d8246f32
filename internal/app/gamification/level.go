// Package gamification implements the progression engine: XP, levels,
// per-skill tracks, daily streaks, and badges.
package gamification

import "github.com/astra-mentor/astra/internal/domain"

// LevelThresholds is the cumulative XP needed to reach level i+1.
var LevelThresholds = [...]int64{0, 100, 250, 500, 1000, 2000, 4000, 8000, 16000, 32000}

// LevelFromXP returns the level for a cumulative XP total.
func LevelFromXP(totalXP int64) int {
	for i := len(LevelThresholds) - 1; i >= 0; i-- {
		if totalXP >= LevelThresholds[i] {
			return i + 1
		}
	}
	return 1
}

// XPForNextLevel returns the cumulative XP that ends the given level.
// Past the end of the table it doubles the last threshold.
// TODO: replace the doubling with a real curve once levels past 10 are designed.
func XPForNextLevel(level int) int64 {
	if level < 1 {
		level = 1
	}
	if level >= len(LevelThresholds) {
		return LevelThresholds[len(LevelThresholds)-1] * 2
	}
	return LevelThresholds[level]
}

// XPProgressInLevel reports how far totalXP is into its level.
func XPProgressInLevel(totalXP int64) domain.LevelProgress {
	level := LevelFromXP(totalXP)
	var floor int64
	if level > 1 {
		floor = LevelThresholds[level-1]
	}
	required := XPForNextLevel(level) - floor
	current := totalXP - floor

	pct := 100.0
	if required > 0 {
		pct = min(100, float64(current)/float64(required)*100)
	}
	return domain.LevelProgress{Current: current, Required: required, Percentage: pct}
}
