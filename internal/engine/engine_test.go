package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mobwars/server/internal/catalog"
	"github.com/mobwars/server/internal/odds"
	"github.com/mobwars/server/pkg/core"
)

var testNow = time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

func newTestEngine(t *testing.T, rng odds.RandomSource) (*Engine, *[]core.GameState) {
	t.Helper()

	saved := &[]core.GameState{}
	eng := New(Dependencies{
		Catalog: catalog.Default(),
		RNG:     rng,
		Now:     func() time.Time { return testNow },
		Save: func(state core.GameState) {
			*saved = append(*saved, state)
		},
	})
	return eng, saved
}

func TestExecute_ForcedSuccess(t *testing.T) {
	// scenario: balance=0, no completions, roll forced to 0 so any
	// probability succeeds
	eng, saved := newTestEngine(t, odds.Fixed(0))

	result, err := eng.Execute("heist")
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Equal(t, int64(50000), result.Reward)
	assert.False(t, result.Imprisoned)
	assert.Contains(t, result.Message, "Rob the First National Bank")
	assert.Contains(t, result.Message, "$50,000")

	p := eng.Player()
	assert.Equal(t, int64(50000), p.Balance)
	assert.Equal(t, []string{"heist"}, p.CompletedMissions)
	assert.Nil(t, p.PrisonTime)

	heist, _ := catalog.Default().Get("heist")
	assert.Equal(t, testNow.Add(heist.Cooldown), p.Cooldowns["heist"])
	assert.True(t, eng.Cooldowns().Active("heist"))
	assert.Equal(t, heist.Cooldown.Milliseconds(), eng.RemainingCooldownMs("heist"))

	// exactly one snapshot handed to persistence
	require.Len(t, *saved, 1)
	assert.Equal(t, int64(50000), (*saved)[0].Balance)
}

func TestExecute_ForcedFailure(t *testing.T) {
	// roll forced to 1.0, above every probability below certainty
	eng, saved := newTestEngine(t, odds.Fixed(1.0))

	result, err := eng.Execute("heist")
	require.NoError(t, err)

	assert.False(t, result.Success)
	assert.Equal(t, int64(0), result.Reward)
	assert.True(t, result.Imprisoned)
	assert.Equal(t, "Mission failed! You got caught and sent to prison!", result.Message)

	p := eng.Player()
	assert.Equal(t, int64(0), p.Balance)
	assert.Empty(t, p.CompletedMissions)
	require.NotNil(t, p.PrisonTime)
	assert.Equal(t, testNow.Add(5*time.Minute), *p.PrisonTime)
	assert.True(t, eng.Imprisoned())

	// failure never sets a cooldown
	assert.False(t, eng.Cooldowns().Active("heist"))

	require.Len(t, *saved, 1)
	require.NotNil(t, (*saved)[0].PrisonTime)
	assert.Equal(t, testNow.Add(5*time.Minute).UnixMilli(), *(*saved)[0].PrisonTime)
}

func TestExecute_RollEqualToProbabilitySucceeds(t *testing.T) {
	// boundary invariant: roll == probability is a success
	heist, _ := catalog.Default().Get("heist")
	p := odds.Probability(heist, odds.Level(0))

	eng, _ := newTestEngine(t, odds.Fixed(p))

	result, err := eng.Execute("heist")
	require.NoError(t, err)
	assert.True(t, result.Success)
}

func TestExecute_UnknownMission(t *testing.T) {
	eng, saved := newTestEngine(t, odds.Fixed(0))

	_, err := eng.Execute("train-robbery")
	assert.ErrorIs(t, err, ErrUnknownMission)
	assert.Empty(t, *saved)
}

func TestExecute_OnCooldown(t *testing.T) {
	eng, saved := newTestEngine(t, odds.Fixed(0))
	eng.Cooldowns().Set("heist", testNow.Add(time.Minute))

	_, err := eng.Execute("heist")
	assert.ErrorIs(t, err, ErrOnCooldown)

	p := eng.Player()
	assert.Equal(t, int64(0), p.Balance)
	assert.Empty(t, *saved)
}

func TestExecute_AlreadyCompleted(t *testing.T) {
	eng, saved := newTestEngine(t, odds.Fixed(0))
	eng.ReplaceState(core.Player{
		Balance:           500,
		CompletedMissions: []string{"heist"},
	})

	_, err := eng.Execute("heist")
	assert.ErrorIs(t, err, ErrAlreadyCompleted)

	p := eng.Player()
	assert.Equal(t, int64(500), p.Balance)
	assert.Equal(t, []string{"heist"}, p.CompletedMissions)
	assert.Empty(t, *saved)
}

func TestExecute_Imprisoned(t *testing.T) {
	eng, saved := newTestEngine(t, odds.Fixed(0))
	eng.Prison().Imprison(testNow.Add(2 * time.Minute))

	for _, id := range []string{"pickpocket", "burglary", "smuggling", "heist", "casino-job"} {
		_, err := eng.Execute(id)
		assert.ErrorIs(t, err, ErrImprisoned, "mission %s", id)
	}
	assert.Empty(t, *saved)
}

func TestExecute_PreconditionOrder(t *testing.T) {
	// cooldown is checked before completion, completion before prison
	eng, _ := newTestEngine(t, odds.Fixed(0))
	eng.ReplaceState(core.Player{CompletedMissions: []string{"heist"}})
	eng.Cooldowns().Set("heist", testNow.Add(time.Minute))
	eng.Prison().Imprison(testNow.Add(time.Minute))

	_, err := eng.Execute("heist")
	assert.ErrorIs(t, err, ErrOnCooldown)

	eng.Cooldowns().Prune(testNow.Add(2 * time.Minute))
	_, err = eng.Execute("heist")
	assert.ErrorIs(t, err, ErrAlreadyCompleted)
}

func TestExecute_FailureLeavesBalance(t *testing.T) {
	eng, _ := newTestEngine(t, odds.Fixed(0))

	result, err := eng.Execute("pickpocket")
	require.NoError(t, err)
	require.True(t, result.Success)
	balance := eng.Player().Balance

	// now force a failure on another mission
	eng.deps.RNG = odds.Fixed(1.0)
	result, err = eng.Execute("burglary")
	require.NoError(t, err)
	require.False(t, result.Success)

	assert.Equal(t, balance, eng.Player().Balance)
	assert.Equal(t, []string{"pickpocket"}, eng.Player().CompletedMissions)
}

func TestReplaceState(t *testing.T) {
	eng, _ := newTestEngine(t, odds.Fixed(0))

	release := testNow.Add(time.Minute)
	eng.ReplaceState(core.Player{
		Balance:           12345,
		CompletedMissions: []string{"pickpocket"},
		PrisonTime:        &release,
		Cooldowns: map[string]time.Time{
			"pickpocket": testNow.Add(30 * time.Second),
			"stale":      testNow.Add(-time.Second),
		},
	})

	p := eng.Player()
	assert.Equal(t, int64(12345), p.Balance)
	assert.True(t, eng.Imprisoned())
	assert.True(t, eng.Cooldowns().Active("pickpocket"))
	assert.False(t, eng.Cooldowns().Active("stale"))
}

func TestReplaceState_PastPrisonTimeCleared(t *testing.T) {
	eng, _ := newTestEngine(t, odds.Fixed(0))

	release := testNow.Add(-time.Minute)
	eng.ReplaceState(core.Player{PrisonTime: &release})

	assert.False(t, eng.Imprisoned())
	assert.Nil(t, eng.Player().PrisonTime)
}

func TestExecute_SeededRunIsDeterministic(t *testing.T) {
	run := func() []bool {
		eng := New(Dependencies{
			Catalog: catalog.Default(),
			RNG:     odds.NewSeeded(7),
			Now:     func() time.Time { return testNow },
		})
		var outcomes []bool
		for _, id := range []string{"pickpocket", "burglary", "smuggling"} {
			result, err := eng.Execute(id)
			if err != nil {
				// imprisoned after a failure; record and stop
				break
			}
			outcomes = append(outcomes, result.Success)
		}
		return outcomes
	}

	assert.Equal(t, run(), run())
}

func TestExecute_SavedSnapshotDropsPrunedCooldowns(t *testing.T) {
	now := testNow
	var saved []core.GameState
	eng := New(Dependencies{
		Catalog: catalog.Default(),
		RNG:     odds.Fixed(0),
		Now:     func() time.Time { return now },
		Save: func(state core.GameState) {
			saved = append(saved, state)
		},
	})

	_, err := eng.Execute("pickpocket")
	require.NoError(t, err)

	// cooldown lapses and the tick prunes it before the next mission
	now = now.Add(time.Minute)
	eng.Cooldowns().Prune(now)

	_, err = eng.Execute("burglary")
	require.NoError(t, err)

	require.Len(t, saved, 2)
	assert.NotContains(t, saved[1].Cooldowns, "pickpocket")
	assert.Contains(t, saved[1].Cooldowns, "burglary")
}
