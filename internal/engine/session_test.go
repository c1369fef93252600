package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mobwars/server/internal/catalog"
	"github.com/mobwars/server/internal/odds"
	"github.com/mobwars/server/pkg/core"
)

// fakeClient records saves and serves a canned state.
type fakeClient struct {
	mu    sync.Mutex
	state core.GameState
	saves []core.GameState
	loads int
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		state: core.GameState{
			Balance:           0,
			CompletedMissions: []string{},
			Cooldowns:         map[string]int64{},
		},
	}
}

func (f *fakeClient) LoadGame(ctx context.Context) (core.GameState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loads++
	return f.state, nil
}

func (f *fakeClient) SaveGame(ctx context.Context, state core.GameState) (core.GameState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saves = append(f.saves, state)
	f.state = state
	return state, nil
}

func (f *fakeClient) savedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.saves)
}

func (f *fakeClient) loadCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.loads
}

func newTestSession(t *testing.T, rng odds.RandomSource, client GameClient) *Session {
	t.Helper()

	eng := New(Dependencies{
		Catalog: catalog.Default(),
		RNG:     rng,
	})
	return NewSession(eng, client, zerolog.Nop(), SessionConfig{
		CooldownTick:    10 * time.Millisecond,
		PrisonTick:      10 * time.Millisecond,
		RefreshInterval: time.Hour, // keep periodic refresh out of the way
		SaveDrain:       10 * time.Millisecond,
	})
}

func TestSession_RefreshReplacesState(t *testing.T) {
	client := newFakeClient()
	client.state = core.GameState{
		Balance:           7500,
		CompletedMissions: []string{"pickpocket"},
		Cooldowns:         map[string]int64{},
	}

	s := newTestSession(t, odds.Fixed(0), client)
	require.NoError(t, s.Refresh(context.Background()))

	p := s.Engine.Player()
	assert.Equal(t, int64(7500), p.Balance)
	assert.Equal(t, []string{"pickpocket"}, p.CompletedMissions)
}

func TestSession_ExecutePersistsAsync(t *testing.T) {
	client := newFakeClient()
	s := newTestSession(t, odds.Fixed(0), client)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Start(ctx)
	defer s.Stop()

	result, err := s.Engine.Execute("pickpocket")
	require.NoError(t, err)
	require.True(t, result.Success)

	// the save drains on the worker tick, not on the execute path
	assert.Eventually(t, func() bool {
		return client.savedCount() >= 1
	}, time.Second, 5*time.Millisecond)

	client.mu.Lock()
	defer client.mu.Unlock()
	assert.Equal(t, int64(500), client.saves[len(client.saves)-1].Balance)
}

func TestSession_SaveCoalescesToLatest(t *testing.T) {
	client := newFakeClient()
	s := newTestSession(t, odds.Fixed(0), client)

	// no loops running: push several snapshots, then drain once
	s.Engine.Execute("pickpocket")
	s.Engine.Execute("burglary")

	s.drainSaves(context.Background())

	require.Equal(t, 1, client.savedCount())
	assert.Equal(t, int64(3000), client.saves[0].Balance)
}

func TestSession_PrisonReleaseTriggersRefresh(t *testing.T) {
	client := newFakeClient()
	s := newTestSession(t, odds.Fixed(0), client)

	s.Engine.Prison().Imprison(time.Now().Add(20 * time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Start(ctx)
	defer s.Stop()

	assert.Eventually(t, func() bool {
		return client.loadCount() >= 1 && !s.Engine.Imprisoned()
	}, time.Second, 5*time.Millisecond)
}

func TestSession_StopFlushesPendingSave(t *testing.T) {
	client := newFakeClient()
	s := newTestSession(t, odds.Fixed(0), client)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Start(ctx)

	s.Engine.Execute("pickpocket")
	s.Stop()

	assert.GreaterOrEqual(t, client.savedCount(), 1)
}
