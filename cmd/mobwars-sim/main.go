// mobwars-sim is a headless game client: it authenticates against a
// running server, loads the player's state, and attempts the missions
// named on the command line through the execution engine.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/mobwars/server/internal/api"
	"github.com/mobwars/server/internal/audit"
	"github.com/mobwars/server/internal/catalog"
	"github.com/mobwars/server/internal/config"
	"github.com/mobwars/server/internal/engine"
	"github.com/mobwars/server/internal/logging"
	"github.com/mobwars/server/internal/odds"
	"github.com/mobwars/server/internal/util"
)

func main() {
	configDir := flag.String("config", ".", "directory containing the config file")
	serverURL := flag.String("server", "", "game server base URL (overrides config)")
	email := flag.String("email", "", "account email")
	password := flag.String("password", "", "account password")
	register := flag.Bool("register", false, "create the account instead of logging in")
	username := flag.String("username", "", "username for registration")
	name := flag.String("name", "", "display name for registration")
	seed := flag.Uint64("seed", 0, "deterministic RNG seed (0 = crypto randomness)")
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
	logFile, err := os.Create(filepath.Clean(logging.LogFilePath(logsDir, "mobwars-sim", sessionStart)))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create log file: %v\n", err)
		os.Exit(1)
	}
	defer logFile.Close()

	log := logging.Setup(config.GetString("logLevel"), logFile)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, log, *serverURL, *email, *password, *register, *username, *name, *seed, flag.Args()); err != nil {
		log.Fatal().Err(err).Msg("Session failed")
	}
}

func run(ctx context.Context, log zerolog.Logger, serverURL, email, password string, register bool, username, name string, seed uint64, missions []string) error {
	base := serverURL
	if base == "" {
		base = config.GetString("server.baseUrl")
	}

	client := api.New(base, config.GetInt("client.maxRetries"), config.GetDuration("client.retryDelay"))
	if err := client.Healthcheck(ctx); err != nil {
		return fmt.Errorf("server unreachable: %w", err)
	}

	var authErr error
	if register {
		_, authErr = client.Register(ctx, email, password, name, username)
	} else {
		_, authErr = client.Login(ctx, email, password)
	}
	if authErr != nil {
		return fmt.Errorf("authentication failed: %w", authErr)
	}
	log.Info().Str("email", email).Msg("Authenticated")

	cat, err := loadCatalog(log)
	if err != nil {
		return err
	}

	var rng odds.RandomSource
	if seed != 0 {
		rng = odds.NewSeeded(seed)
	} else {
		rng = odds.Default()
	}

	recorder := audit.NewRecorder(log)
	if err := recorder.Connect(); err != nil {
		log.Warn().Err(err).Msg("Fairness audit sink unavailable")
	}
	defer recorder.Close()

	eng := engine.New(engine.Dependencies{
		Catalog:        cat,
		RNG:            rng,
		Audit:          recorder,
		Logger:         log,
		PrisonDuration: config.GetDuration("game.prisonDuration"),
		UserID:         email,
	})
	session := engine.NewSession(eng, client, log, engine.SessionConfig{
		CooldownTick:    config.GetDuration("game.cooldownTick"),
		PrisonTick:      config.GetDuration("game.cooldownTick"),
		RefreshInterval: config.GetDuration("game.refreshInterval"),
	})

	if err := session.Refresh(ctx); err != nil {
		return fmt.Errorf("initial state load: %w", err)
	}
	session.Start(ctx)
	defer session.Stop()

	printStatus(eng, cat)

	for _, id := range missions {
		if ctx.Err() != nil {
			break
		}
		attemptMission(ctx, eng, id)
	}

	return nil
}

// attemptMission runs one mission, waiting out an active cooldown or
// prison sentence first so the attempt is not wasted.
func attemptMission(ctx context.Context, eng *engine.Engine, id string) {
	for {
		result, err := eng.Execute(id)
		switch {
		case err == nil:
			fmt.Println(result.Message)
			if result.Imprisoned {
				fmt.Println("Serving time; remaining missions wait for release.")
			}
			return
		case errors.Is(err, engine.ErrOnCooldown):
			if !waitMs(ctx, eng.RemainingCooldownMs(id)) {
				return
			}
		case errors.Is(err, engine.ErrImprisoned):
			if !waitMs(ctx, eng.Prison().RemainingMs(time.Now())) {
				return
			}
		default:
			fmt.Printf("%s: %v\n", id, err)
			return
		}
	}
}

func waitMs(ctx context.Context, ms int64) bool {
	if ms <= 0 {
		ms = 1000
	}
	fmt.Printf("Waiting %ds...\n", (ms+999)/1000)
	select {
	case <-ctx.Done():
		return false
	case <-time.After(time.Duration(ms)*time.Millisecond + 50*time.Millisecond):
		return true
	}
}

func loadCatalog(log zerolog.Logger) (*catalog.Catalog, error) {
	path := config.GetString("game.catalogPath")
	if path == "" {
		return catalog.Default(), nil
	}
	cat, err := catalog.LoadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			log.Warn().Str("path", path).Msg("Catalog file missing, using built-in missions")
			return catalog.Default(), nil
		}
		return nil, fmt.Errorf("load catalog: %w", err)
	}
	return cat, nil
}

func printStatus(eng *engine.Engine, cat *catalog.Catalog) {
	player := eng.Player()
	level := odds.Level(player.Balance)
	fmt.Printf("Balance: $%s (level %d)\n", util.FormatAmount(player.Balance), level)
	if releaseAt := eng.Prison().ReleaseAt(); releaseAt != nil {
		fmt.Printf("In prison until %s\n", releaseAt.Local().Format("15:04:05"))
	}
	for _, m := range cat.All() {
		status := "available"
		switch {
		case player.HasCompleted(m.ID):
			status = "completed"
		case eng.RemainingCooldownMs(m.ID) > 0:
			status = fmt.Sprintf("cooldown %ds", (eng.RemainingCooldownMs(m.ID)+999)/1000)
		}
		fmt.Printf("  %-12s $%-8s %3.0f%%  %s\n",
			m.ID, util.FormatAmount(m.Reward), odds.Probability(m, level)*100, status)
	}
}
