// mobwars-server runs the persistence and auth backend: account
// endpoints plus transactional game-state storage.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/mobwars/server/internal/auth"
	"github.com/mobwars/server/internal/config"
	"github.com/mobwars/server/internal/database"
	"github.com/mobwars/server/internal/logging"
	"github.com/mobwars/server/internal/server"
	"github.com/mobwars/server/internal/store"
)

func main() {
	configDir := flag.String("config", ".", "directory containing the config file")
	flag.Parse()

	sessionStart := time.Now()
	if err := config.Load(*configDir); err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logsDir := config.GetString("logsDir")
	if err := os.MkdirAll(logsDir, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logs dir: %v\n", err)
		os.Exit(1)
	}
	logFile, err := os.Create(filepath.Clean(logging.LogFilePath(logsDir, "mobwars-server", sessionStart)))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create log file: %v\n", err)
		os.Exit(1)
	}
	defer logFile.Close()

	log := logging.Setup(config.GetString("logLevel"), logFile)
	log.Info().Msg("Starting up...")

	dbm := database.NewManager(log)
	if err := dbm.Connect(); err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	if err := dbm.Setup(); err != nil {
		log.Fatal().Err(err).Msg("Failed to run migrations")
	}

	authSvc := auth.New(
		dbm.DB,
		log,
		config.GetString("auth.jwtSecret"),
		config.GetDuration("auth.tokenTTL"),
		config.GetString("auth.googleClientId"),
	)
	st := store.New(
		dbm.DB,
		log,
		config.GetInt("save.maxRetries"),
		config.GetDuration("save.baseBackoff"),
	)
	srv := server.New(log, authSvc, st, config.GetString("server.listenAddr"))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("Shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Shutdown did not complete cleanly")
		}
	case err := <-errCh:
		if err != nil {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}

	log.Info().Msg("Goodbye")
}
