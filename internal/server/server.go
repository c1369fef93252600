// Package server exposes the auth and game-state endpoints over HTTP.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/mobwars/server/internal/auth"
	"github.com/mobwars/server/internal/store"
)

// Server owns the HTTP listener and routes requests to the auth
// service and the game-state store.
type Server struct {
	log        zerolog.Logger
	auth       *auth.Service
	store      *store.Store
	httpServer *http.Server
}

// New wires the routes and returns a server listening on listenAddr
// once Start is called.
func New(log zerolog.Logger, authSvc *auth.Service, st *store.Store, listenAddr string) *Server {
	s := &Server{
		log:   log,
		auth:  authSvc,
		store: st,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthcheck", s.handleHealthcheck)
	mux.HandleFunc("POST /api/auth/register", s.handleRegister)
	mux.HandleFunc("POST /api/auth/login", s.handleLogin)
	mux.HandleFunc("POST /api/auth/google", s.handleGoogleLogin)
	mux.HandleFunc("GET /api/auth/verify", s.requireAuth(s.handleVerify))
	mux.HandleFunc("GET /api/user/game-data", s.requireAuth(s.handleGameData))
	mux.HandleFunc("POST /api/user/save-game", s.requireAuth(s.handleSaveGame))

	s.httpServer = &http.Server{
		Addr:              listenAddr,
		Handler:           s.logRequests(mux),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
	}

	return s
}

// Handler returns the routed handler, used directly by tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start blocks serving requests until Shutdown is called or the
// listener fails.
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.httpServer.Addr).Msg("HTTP server listening")
	err := s.httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown drains in-flight requests until ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
