package engine

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/mobwars/server/internal/queue"
	"github.com/mobwars/server/pkg/core"
)

// GameClient is the persistence surface the session needs. Implemented
// by api.Client.
type GameClient interface {
	LoadGame(ctx context.Context) (core.GameState, error)
	SaveGame(ctx context.Context, state core.GameState) (core.GameState, error)
}

// SessionConfig holds the timer intervals. Zero values fall back to the
// defaults: 1s cooldown tick, 1s prison tick, 30s refresh.
type SessionConfig struct {
	CooldownTick    time.Duration
	PrisonTick      time.Duration
	RefreshInterval time.Duration
	SaveDrain       time.Duration
}

// Session owns a player's client-side lifecycle: the engine, the two
// 1-second tick loops, the periodic refresh, and the async save worker.
// Timers are scoped to the session and stop with it; nothing global.
type Session struct {
	Engine *Engine

	client GameClient
	log    zerolog.Logger
	cfg    SessionConfig
	saves  *queue.Queue[core.GameState]

	stopOnce sync.Once
	stopChan chan struct{}
	wg       sync.WaitGroup
}

// NewSession wires an engine to a persistence client. The engine's Save
// hook is pointed at the session's save queue.
func NewSession(eng *Engine, client GameClient, log zerolog.Logger, cfg SessionConfig) *Session {
	if cfg.CooldownTick <= 0 {
		cfg.CooldownTick = time.Second
	}
	if cfg.PrisonTick <= 0 {
		cfg.PrisonTick = time.Second
	}
	if cfg.RefreshInterval <= 0 {
		cfg.RefreshInterval = 30 * time.Second
	}
	if cfg.SaveDrain <= 0 {
		cfg.SaveDrain = 250 * time.Millisecond
	}

	s := &Session{
		Engine:   eng,
		client:   client,
		log:      log,
		cfg:      cfg,
		saves:    queue.New[core.GameState](),
		stopChan: make(chan struct{}),
	}
	eng.deps.Save = s.enqueueSave
	return s
}

// enqueueSave is the engine's fire-and-forget save hook.
func (s *Session) enqueueSave(state core.GameState) {
	s.saves.Push(state)
}

// Start launches the tick loops. Call Refresh first to seed state.
func (s *Session) Start(ctx context.Context) {
	s.wg.Add(4)
	go s.cooldownLoop(ctx)
	go s.prisonLoop(ctx)
	go s.refreshLoop(ctx)
	go s.saveLoop(ctx)
	s.log.Info().Msg("Session started")
}

// Stop tears down all loops and waits for them to exit. Pending saves
// are flushed with a short deadline.
func (s *Session) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopChan)
	})
	s.wg.Wait()
	s.flushPending()
}

// Refresh pulls authoritative state from the server and replaces the
// local player, cooldown, and prison state.
func (s *Session) Refresh(ctx context.Context) error {
	state, err := s.client.LoadGame(ctx)
	if err != nil {
		return err
	}
	s.Engine.ReplaceState(core.PlayerFromState(state))
	s.log.Debug().Int64("balance", state.Balance).Msg("State refreshed from server")
	return nil
}

func (s *Session) cooldownLoop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cfg.CooldownTick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopChan:
			return
		case now := <-ticker.C:
			s.Engine.Cooldowns().Prune(now)
		}
	}
}

func (s *Session) prisonLoop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cfg.PrisonTick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopChan:
			return
		case now := <-ticker.C:
			if s.Engine.Prison().CheckRelease(now) {
				s.log.Info().Msg("Prison sentence served, refreshing state")
				// release is a wall-clock event: re-sync truth from
				// the server rather than flipping a local flag
				if err := s.Refresh(ctx); err != nil {
					s.log.Error().Err(err).Msg("Failed to refresh state after release")
				}
			}
		}
	}
}

func (s *Session) refreshLoop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cfg.RefreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopChan:
			return
		case <-ticker.C:
			if err := s.Refresh(ctx); err != nil {
				s.log.Warn().Err(err).Msg("Periodic refresh failed")
			}
		}
	}
}

func (s *Session) saveLoop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cfg.SaveDrain)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.drainSaves(ctx)
		}
	}
}

// drainSaves persists the newest queued snapshot. Older snapshots are
// superseded: every snapshot carries the full state.
func (s *Session) drainSaves(ctx context.Context) {
	state, ok := s.saves.Latest()
	if !ok {
		return
	}
	if _, err := s.client.SaveGame(ctx, state); err != nil {
		s.log.Error().Err(err).Msg("Failed to save game state")
	}
}

func (s *Session) flushPending() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.drainSaves(ctx)
}
