// pkg/core/mission.go
package core

import "time"

// DifficultyTier classifies how hard a mission is. Higher tiers pay
// more but shrink the level bonus applied to the success probability.
type DifficultyTier int

const (
	DifficultyEasy DifficultyTier = iota + 1
	DifficultyMedium
	DifficultyHard
	DifficultyExtreme
)

// String returns the lowercase tier name used in catalog files.
func (d DifficultyTier) String() string {
	switch d {
	case DifficultyEasy:
		return "easy"
	case DifficultyMedium:
		return "medium"
	case DifficultyHard:
		return "hard"
	case DifficultyExtreme:
		return "extreme"
	default:
		return "unknown"
	}
}

// ParseDifficulty maps a catalog tier name to its DifficultyTier.
func ParseDifficulty(s string) (DifficultyTier, bool) {
	switch s {
	case "easy":
		return DifficultyEasy, true
	case "medium":
		return DifficultyMedium, true
	case "hard":
		return DifficultyHard, true
	case "extreme":
		return DifficultyExtreme, true
	default:
		return 0, false
	}
}

// Mission is a catalog-defined action. Missions are immutable after
// catalog load.
type Mission struct {
	ID         string
	Name       string
	Reward     int64
	BaseFactor float64 // base success factor in (0,1]
	Cooldown   time.Duration
	Difficulty DifficultyTier
}
