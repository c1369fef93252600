// pkg/core/player.go
package core

import "time"

// Player is the per-user game state. It is mutated only by the mission
// execution engine; the server stores it as-is.
type Player struct {
	Balance           int64
	CompletedMissions []string
	PrisonTime        *time.Time // release moment; nil means not imprisoned
	Cooldowns         map[string]time.Time
}

// Clone returns a deep copy. The engine mutates copies so a failed save
// never leaves half-applied state behind.
func (p Player) Clone() Player {
	out := Player{
		Balance:           p.Balance,
		CompletedMissions: append([]string(nil), p.CompletedMissions...),
		Cooldowns:         make(map[string]time.Time, len(p.Cooldowns)),
	}
	if p.PrisonTime != nil {
		t := *p.PrisonTime
		out.PrisonTime = &t
	}
	for id, exp := range p.Cooldowns {
		out.Cooldowns[id] = exp
	}
	return out
}

// HasCompleted reports whether missionID is in the completed set.
func (p Player) HasCompleted(missionID string) bool {
	for _, id := range p.CompletedMissions {
		if id == missionID {
			return true
		}
	}
	return false
}

// Imprisoned reports whether the player is locked out at the given time.
func (p Player) Imprisoned(now time.Time) bool {
	return p.PrisonTime != nil && now.Before(*p.PrisonTime)
}

// MissionResult is the outcome of one execution attempt. It is
// ephemeral; its effects are folded into Player.
type MissionResult struct {
	Success    bool
	Reward     int64
	Message    string
	Imprisoned bool
}
