package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/mobwars/server/internal/model"
	"github.com/mobwars/server/pkg/core"
)

func newTestStore(t *testing.T) (*Store, *gorm.DB) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	// a single connection keeps every session on the same in-memory db
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(model.DatabaseModels...))

	return New(db, zerolog.Nop(), 0, time.Millisecond), db
}

func seedUser(t *testing.T, db *gorm.DB) uint {
	t.Helper()
	user := model.User{
		Email:    "tony@example.com",
		Username: "tony",
		Name:     "Tony",
	}
	require.NoError(t, db.Create(&user).Error)
	return user.ID
}

func TestSaveGameRoundTrip(t *testing.T) {
	s, db := newTestStore(t)
	userID := seedUser(t, db)

	prison := time.Now().Add(4 * time.Minute).UnixMilli()
	state := core.GameState{
		Balance:           52_500,
		CompletedMissions: []string{"pickpocket", "heist"},
		PrisonTime:        &prison,
		Cooldowns: map[string]int64{
			"heist": time.Now().Add(5 * time.Minute).UnixMilli(),
		},
	}

	persisted, err := s.SaveGame(context.Background(), userID, state)
	require.NoError(t, err)
	assert.Equal(t, state.Balance, persisted.Balance)
	assert.Equal(t, state.CompletedMissions, persisted.CompletedMissions)
	require.NotNil(t, persisted.PrisonTime)
	assert.Equal(t, prison, *persisted.PrisonTime)

	loaded, err := s.LoadGame(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, state.Balance, loaded.Balance)
	assert.Equal(t, state.CompletedMissions, loaded.CompletedMissions)
	assert.Equal(t, state.Cooldowns, loaded.Cooldowns)
	require.NotNil(t, loaded.PrisonTime)
	assert.Equal(t, prison, *loaded.PrisonTime)
}

func TestSaveGameReplacesWholeState(t *testing.T) {
	s, db := newTestStore(t)
	userID := seedUser(t, db)

	prison := time.Now().Add(time.Minute).UnixMilli()
	_, err := s.SaveGame(context.Background(), userID, core.GameState{
		Balance:           1000,
		CompletedMissions: []string{"pickpocket"},
		PrisonTime:        &prison,
		Cooldowns:         map[string]int64{"pickpocket": prison},
	})
	require.NoError(t, err)

	// second save omits the prison time and cooldowns; the replace
	// clears them rather than merging
	_, err = s.SaveGame(context.Background(), userID, core.GameState{
		Balance:           500,
		CompletedMissions: []string{},
	})
	require.NoError(t, err)

	loaded, err := s.LoadGame(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, int64(500), loaded.Balance)
	assert.Empty(t, loaded.CompletedMissions)
	assert.Nil(t, loaded.PrisonTime)
	assert.Empty(t, loaded.Cooldowns)
}

func TestLoadGameNormalizesExpiredPrisonTime(t *testing.T) {
	s, db := newTestStore(t)
	userID := seedUser(t, db)

	past := time.Now().Add(-time.Minute)
	require.NoError(t, db.Model(&model.User{}).Where("id = ?", userID).
		Update("prison_time", &past).Error)

	loaded, err := s.LoadGame(context.Background(), userID)
	require.NoError(t, err)
	assert.Nil(t, loaded.PrisonTime)
}

func TestSaveGameUnknownUser(t *testing.T) {
	s, _ := newTestStore(t)

	_, err := s.SaveGame(context.Background(), 999, core.GameState{
		CompletedMissions: []string{},
	})
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestLoadGameUnknownUser(t *testing.T) {
	s, _ := newTestStore(t)

	_, err := s.LoadGame(context.Background(), 999)
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestValidateState(t *testing.T) {
	err := ValidateState(core.GameState{Balance: -1, CompletedMissions: []string{}})
	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "Invalid balance value", vErr.Reason)

	err = ValidateState(core.GameState{Balance: 100})
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "Invalid completedMissions format", vErr.Reason)

	assert.NoError(t, ValidateState(core.GameState{Balance: 0, CompletedMissions: []string{}}))
}

// injectConflicts makes the next n read queries on db fail with a
// SQLite busy error, simulating a concurrent writer.
func injectConflicts(t *testing.T, db *gorm.DB, n *int) {
	t.Helper()
	require.NoError(t, db.Callback().Query().Before("gorm:query").
		Register("test_conflict_injector", func(tx *gorm.DB) {
			if *n > 0 {
				*n--
				tx.AddError(errors.New("database is locked (5) (SQLITE_BUSY)"))
			}
		}))
	t.Cleanup(func() {
		_ = db.Callback().Query().Remove("test_conflict_injector")
	})
}

func TestSaveGameRetriesTransientConflict(t *testing.T) {
	s, db := newTestStore(t)
	userID := seedUser(t, db)

	// first two attempts collide, third goes through
	remaining := 2
	injectConflicts(t, db, &remaining)

	persisted, err := s.SaveGame(context.Background(), userID, core.GameState{
		Balance:           750,
		CompletedMissions: []string{"pickpocket"},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(750), persisted.Balance)
	assert.Equal(t, 0, remaining)

	loaded, err := s.LoadGame(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, int64(750), loaded.Balance)
	assert.Equal(t, []string{"pickpocket"}, loaded.CompletedMissions)
}

func TestSaveGameConflictExhaustion(t *testing.T) {
	s, db := newTestStore(t)
	userID := seedUser(t, db)

	// more conflicts than the retry budget; every attempt collides
	remaining := DefaultMaxRetries + 1
	injectConflicts(t, db, &remaining)

	_, err := s.SaveGame(context.Background(), userID, core.GameState{
		Balance:           100,
		CompletedMissions: []string{},
	})
	require.Error(t, err)
	assert.True(t, IsTransientConflict(err))
	assert.Contains(t, err.Error(), "database is locked")
	// exactly DefaultMaxRetries attempts were made
	assert.Equal(t, 1, remaining)
}

type fakePgError struct {
	code string
}

func (e *fakePgError) Error() string    { return "fake pg error " + e.code }
func (e *fakePgError) SQLState() string { return e.code }

func TestIsTransientConflict(t *testing.T) {
	assert.True(t, IsTransientConflict(&fakePgError{code: "40001"}))
	assert.True(t, IsTransientConflict(&fakePgError{code: "40P01"}))
	assert.False(t, IsTransientConflict(&fakePgError{code: "23505"}))

	assert.True(t, IsTransientConflict(errors.New("database is locked (5) (SQLITE_BUSY)")))
	assert.True(t, IsTransientConflict(errors.New("database table is locked")))
	assert.False(t, IsTransientConflict(errors.New("no such table: users")))
	assert.False(t, IsTransientConflict(nil))

	// wrapped errors still match on SQLSTATE
	wrapped := &fakePgError{code: "40001"}
	assert.True(t, IsTransientConflict(errors.Join(errors.New("update user 1"), wrapped)))
}
