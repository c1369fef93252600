// Package store implements the persistence core: game-state load and
// the transactional save with bounded retry on transient conflicts.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/metric"
	"gorm.io/gorm"

	"github.com/mobwars/server/internal/model"
	"github.com/mobwars/server/pkg/core"
)

const (
	// DefaultMaxRetries bounds the save retry loop.
	DefaultMaxRetries = 5
	// DefaultBaseBackoff is the first retry delay; it doubles each attempt.
	DefaultBaseBackoff = 100 * time.Millisecond
)

// ErrUserNotFound is returned when the addressed user row does not exist.
var ErrUserNotFound = errors.New("user not found")

// ValidationError marks a save payload rejected before any
// transactional work.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

// ValidateState rejects malformed payloads. Called by the HTTP layer
// before a transaction is opened.
func ValidateState(state core.GameState) error {
	if state.Balance < 0 {
		return &ValidationError{Reason: "Invalid balance value"}
	}
	if state.CompletedMissions == nil {
		return &ValidationError{Reason: "Invalid completedMissions format"}
	}
	return nil
}

// Store persists per-user game state.
type Store struct {
	db          *gorm.DB
	log         zerolog.Logger
	maxRetries  int
	baseBackoff time.Duration
	txOptions   *sql.TxOptions

	conflicts metric.Int64Counter
	saves     metric.Int64Counter
}

// New creates a store. maxRetries and baseBackoff bound the conflict
// retry loop; pass 0 to use the defaults.
func New(db *gorm.DB, log zerolog.Logger, maxRetries int, baseBackoff time.Duration) *Store {
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}
	if baseBackoff <= 0 {
		baseBackoff = DefaultBaseBackoff
	}

	s := &Store{
		db:          db,
		log:         log,
		maxRetries:  maxRetries,
		baseBackoff: baseBackoff,
	}

	// snapshot reads for the read-modify-write; SQLite serializes
	// writers on its own and rejects explicit isolation options
	if db.Dialector.Name() == "postgres" {
		s.txOptions = &sql.TxOptions{Isolation: sql.LevelRepeatableRead}
	}

	var err error
	s.conflicts, err = meter().Int64Counter("save.conflicts")
	if err != nil {
		log.Warn().Err(err).Msg("Failed to create conflict counter")
	}
	s.saves, err = meter().Int64Counter("save.total")
	if err != nil {
		log.Warn().Err(err).Msg("Failed to create save counter")
	}

	return s
}

// LoadGame returns the stored game state for userID.
func (s *Store) LoadGame(ctx context.Context, userID uint) (core.GameState, error) {
	var user model.User
	err := s.db.WithContext(ctx).First(&user, userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return core.GameState{}, ErrUserNotFound
	}
	if err != nil {
		return core.GameState{}, fmt.Errorf("load user %d: %w", userID, err)
	}
	return user.GameState(time.Now())
}

// SaveGame atomically replaces the user's game state. The whole
// read-modify-write runs in one transaction and is retried with
// exponential backoff when the database reports a transient conflict
// from a concurrent writer. This is a last-writer-wins full replace:
// concurrent saves for the same user do not merge field-by-field.
func (s *Store) SaveGame(ctx context.Context, userID uint, state core.GameState) (core.GameState, error) {
	if s.saves != nil {
		s.saves.Add(ctx, 1)
	}

	var lastErr error
	for attempt := 1; attempt <= s.maxRetries; attempt++ {
		persisted, err := s.trySave(ctx, userID, state)
		if err == nil {
			return persisted, nil
		}
		lastErr = err

		if !IsTransientConflict(err) || attempt == s.maxRetries {
			break
		}

		if s.conflicts != nil {
			s.conflicts.Add(ctx, 1)
		}
		delay := s.baseBackoff << (attempt - 1)
		s.log.Warn().
			Uint("userId", userID).
			Int("attempt", attempt).
			Dur("backoff", delay).
			Msg("Transient conflict during save, retrying")

		select {
		case <-ctx.Done():
			return core.GameState{}, ctx.Err()
		case <-time.After(delay):
		}
	}

	s.log.Error().Err(lastErr).Uint("userId", userID).Msg("Save failed")
	return core.GameState{}, lastErr
}

// trySave runs a single transactional read-modify-write. gorm commits
// on nil return and rolls back on error or panic, so the session is
// released on every exit path.
func (s *Store) trySave(ctx context.Context, userID uint, state core.GameState) (core.GameState, error) {
	var persisted core.GameState

	run := func(tx *gorm.DB) error {
		var user model.User
		if err := tx.First(&user, userID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrUserNotFound
			}
			return fmt.Errorf("read user %d: %w", userID, err)
		}

		if err := user.ApplyGameState(state); err != nil {
			return err
		}
		if err := tx.Model(&user).
			Select("balance", "completed_missions", "prison_time", "cooldowns", "updated_at").
			Updates(map[string]interface{}{
				"balance":            user.Balance,
				"completed_missions": user.CompletedMissions,
				"prison_time":        user.PrisonTime,
				"cooldowns":          user.Cooldowns,
				"updated_at":         time.Now(),
			}).Error; err != nil {
			return fmt.Errorf("update user %d: %w", userID, err)
		}

		var err error
		persisted, err = user.GameState(time.Now())
		return err
	}

	var err error
	if s.txOptions != nil {
		err = s.db.WithContext(ctx).Transaction(run, s.txOptions)
	} else {
		err = s.db.WithContext(ctx).Transaction(run)
	}
	if err != nil {
		return core.GameState{}, err
	}
	return persisted, nil
}

// sqlStater is implemented by pgconn.PgError; matching on the interface
// avoids a direct driver dependency here.
type sqlStater interface {
	SQLState() string
}

// IsTransientConflict reports whether err is a retryable concurrency
// conflict: Postgres serialization failure or deadlock, or SQLite's
// busy/locked signals.
func IsTransientConflict(err error) bool {
	if err == nil {
		return false
	}

	var st sqlStater
	if errors.As(err, &st) {
		code := st.SQLState()
		return code == "40001" || code == "40P01"
	}

	msg := err.Error()
	return strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "database table is locked") ||
		strings.Contains(msg, "SQLITE_BUSY")
}
