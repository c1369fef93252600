// pkg/core/state.go
package core

import "time"

// GameState is the wire shape exchanged with the persistence server.
// Timestamps travel as epoch milliseconds; cooldown entries map mission
// id to the instant the cooldown ends.
type GameState struct {
	Balance           int64            `json:"balance"`
	CompletedMissions []string         `json:"completedMissions"`
	PrisonTime        *int64           `json:"prisonTime"`
	Cooldowns         map[string]int64 `json:"cooldowns"`
}

// StateFromPlayer converts the in-memory player to the wire shape.
func StateFromPlayer(p Player) GameState {
	s := GameState{
		Balance:           p.Balance,
		CompletedMissions: append([]string(nil), p.CompletedMissions...),
		Cooldowns:         make(map[string]int64, len(p.Cooldowns)),
	}
	if s.CompletedMissions == nil {
		s.CompletedMissions = []string{}
	}
	if p.PrisonTime != nil {
		ms := p.PrisonTime.UnixMilli()
		s.PrisonTime = &ms
	}
	for id, exp := range p.Cooldowns {
		s.Cooldowns[id] = exp.UnixMilli()
	}
	return s
}

// PlayerFromState converts the wire shape back to the in-memory player.
func PlayerFromState(s GameState) Player {
	p := Player{
		Balance:           s.Balance,
		CompletedMissions: append([]string(nil), s.CompletedMissions...),
		Cooldowns:         make(map[string]time.Time, len(s.Cooldowns)),
	}
	if p.CompletedMissions == nil {
		p.CompletedMissions = []string{}
	}
	if s.PrisonTime != nil {
		t := time.UnixMilli(*s.PrisonTime)
		p.PrisonTime = &t
	}
	for id, ms := range s.Cooldowns {
		p.Cooldowns[id] = time.UnixMilli(ms)
	}
	return p
}
