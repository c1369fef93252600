// Package odds implements the success-probability and player-level
// models. Both are pure functions of their inputs.
package odds

import "github.com/mobwars/server/pkg/core"

// Balance thresholds for level tiers 2..5.
var levelThresholds = [...]int64{10_000, 50_000, 250_000, 1_000_000}

// MaxLevel is the highest player level tier.
const MaxLevel = len(levelThresholds) + 1

// per-level bonus before the difficulty divisor is applied
const levelBonusStep = 0.05

// Level maps a balance to a discrete tier in 1..MaxLevel. It is
// monotonic non-decreasing in balance.
func Level(balance int64) int {
	level := 1
	for _, threshold := range levelThresholds {
		if balance < threshold {
			break
		}
		level++
	}
	return level
}

// Probability returns the success probability for a mission attempted
// at the given player level, clamped to [0,1]. Harder missions gain
// less from experience: the level bonus is divided by the difficulty
// tier. Monotonic non-decreasing in level.
func Probability(m core.Mission, level int) float64 {
	if level < 1 {
		level = 1
	}
	bonus := levelBonusStep * float64(level-1) / float64(m.Difficulty)
	p := m.BaseFactor + bonus
	if p < 0 {
		return 0
	}
	if p > 1 {
		return 1
	}
	return p
}
