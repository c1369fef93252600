// Package engine implements the mission execution core: precondition
// checks, the outcome roll, and the state mutations that follow.
package engine

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/mobwars/server/internal/audit"
	"github.com/mobwars/server/internal/catalog"
	"github.com/mobwars/server/internal/odds"
	"github.com/mobwars/server/internal/util"
	"github.com/mobwars/server/pkg/core"
)

// DefaultPrisonDuration is the sentence applied after a failed mission.
const DefaultPrisonDuration = 5 * time.Minute

// SaveFunc receives the mutated snapshot after a successful execution.
// Implementations must not block; the engine fires and forgets.
type SaveFunc func(state core.GameState)

// Dependencies holds everything the engine needs.
type Dependencies struct {
	Catalog *catalog.Catalog
	RNG     odds.RandomSource
	Audit   *audit.Recorder
	Logger  zerolog.Logger

	// Save is invoked with the new snapshot after every mutation.
	// Optional; nil disables persistence (useful in tests).
	Save SaveFunc

	// PrisonDuration overrides the default 5 minute sentence when > 0.
	PrisonDuration time.Duration

	// Now overrides the clock. Optional; defaults to time.Now.
	Now func() time.Time

	// UserID tags audit events. Optional.
	UserID string
}

// Engine orchestrates mission attempts against a single player's state.
// All public methods are serialized: precondition checks and mutation
// happen in one critical section, so a second Execute can never
// interleave with an in-flight one.
type Engine struct {
	mu        sync.Mutex
	deps      Dependencies
	player    core.Player
	cooldowns *CooldownTracker
	prison    *Prison
}

// New creates an engine with a zeroed player state.
func New(deps Dependencies) *Engine {
	if deps.RNG == nil {
		deps.RNG = odds.Default()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.PrisonDuration <= 0 {
		deps.PrisonDuration = DefaultPrisonDuration
	}
	return &Engine{
		deps: deps,
		player: core.Player{
			CompletedMissions: []string{},
			Cooldowns:         map[string]time.Time{},
		},
		cooldowns: NewCooldownTracker(),
		prison:    NewPrison(),
	}
}

// Execute attempts the mission with the given id. Precondition failures
// return one of the sentinel errors and leave all state untouched.
func (e *Engine) Execute(missionID string) (core.MissionResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.deps.Now()

	m, ok := e.deps.Catalog.Get(missionID)
	if !ok {
		return core.MissionResult{}, ErrUnknownMission
	}
	if e.cooldowns.Active(missionID) {
		return core.MissionResult{}, ErrOnCooldown
	}
	if e.player.HasCompleted(missionID) {
		return core.MissionResult{}, ErrAlreadyCompleted
	}
	if e.prison.Imprisoned(now) {
		return core.MissionResult{}, ErrImprisoned
	}

	level := odds.Level(e.player.Balance)
	probability := odds.Probability(m, level)
	roll := e.deps.RNG.Float64()

	if e.deps.Audit != nil {
		e.deps.Audit.Attempt(e.deps.UserID, missionID, roll, probability)
	}

	// Inclusive boundary: a roll exactly equal to the probability
	// succeeds. Changing this to < shifts payout fairness at the
	// extremes and must not happen.
	success := roll <= probability

	if e.deps.Audit != nil {
		e.deps.Audit.Result(e.deps.UserID, missionID, success, roll, probability)
	}

	var result core.MissionResult
	if success {
		e.player.Balance += m.Reward
		e.player.CompletedMissions = append(e.player.CompletedMissions, missionID)
		expiry := now.Add(m.Cooldown)
		e.cooldowns.Set(missionID, expiry)
		e.player.Cooldowns[missionID] = expiry

		result = core.MissionResult{
			Success: true,
			Reward:  m.Reward,
			Message: fmt.Sprintf("Successfully completed %s and earned $%s!", m.Name, util.FormatAmount(m.Reward)),
		}
	} else {
		releaseAt := now.Add(e.deps.PrisonDuration)
		e.prison.Imprison(releaseAt)
		e.player.PrisonTime = &releaseAt

		result = core.MissionResult{
			Success:    false,
			Reward:     0,
			Message:    "Mission failed! You got caught and sent to prison!",
			Imprisoned: true,
		}
	}

	if e.deps.Save != nil {
		snap := e.player.Clone()
		// the tracker is pruned by the session tick; persist its view
		// so expired cooldowns do not round-trip through the server
		snap.Cooldowns = e.cooldowns.Snapshot()
		e.deps.Save(core.StateFromPlayer(snap))
	}

	return result, nil
}

// Player returns a copy of the current player state.
func (e *Engine) Player() core.Player {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.player.Clone()
}

// ReplaceState swaps in authoritative state from the server: player
// fields, cooldown entries, and prison status.
func (e *Engine) ReplaceState(p core.Player) {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.deps.Now()
	e.player = p.Clone()
	if e.player.CompletedMissions == nil {
		e.player.CompletedMissions = []string{}
	}
	if e.player.Cooldowns == nil {
		e.player.Cooldowns = map[string]time.Time{}
	}
	e.cooldowns.Replace(e.player.Cooldowns, now)
	e.prison.SetFromState(e.player.PrisonTime, now)
	if e.player.PrisonTime != nil && !now.Before(*e.player.PrisonTime) {
		// sentence already served; treat as cleared on read
		e.player.PrisonTime = nil
	}
}

// Cooldowns exposes the tracker for the session tick loop.
func (e *Engine) Cooldowns() *CooldownTracker {
	return e.cooldowns
}

// Prison exposes the prison state machine for the session tick loop.
func (e *Engine) Prison() *Prison {
	return e.prison
}

// RemainingCooldownMs returns the remaining cooldown for missionID.
func (e *Engine) RemainingCooldownMs(missionID string) int64 {
	return e.cooldowns.RemainingMs(missionID, e.deps.Now())
}

// Imprisoned reports whether the player is currently locked out.
func (e *Engine) Imprisoned() bool {
	return e.prison.Imprisoned(e.deps.Now())
}
