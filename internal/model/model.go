package model

import (
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/datatypes"

	"github.com/mobwars/server/pkg/core"
)

////////////////////////
// DATABASE STRUCTURES //
////////////////////////

// DatabaseModels is a list of all the structs exported here which represent tables in the database schema
var DatabaseModels = []interface{}{
	&User{},
}

// User is an account row. Game-state columns are overwritten as a unit
// by the transactional save; collection-shaped fields are JSON columns.
type User struct {
	ID        uint `gorm:"primarykey"`
	CreatedAt time.Time
	UpdatedAt time.Time

	Email        string `gorm:"uniqueIndex;not null"`
	Username     string `gorm:"uniqueIndex;not null"`
	Name         string
	PasswordHash string
	GoogleID     string `gorm:"index"`

	Balance           int64 `gorm:"not null;default:0"`
	CompletedMissions datatypes.JSON
	PrisonTime        *time.Time
	Cooldowns         datatypes.JSON
}

// GameState converts the stored columns to the wire shape. A prison
// time already in the past is normalized to null on read.
func (u *User) GameState(now time.Time) (core.GameState, error) {
	state := core.GameState{
		Balance:           u.Balance,
		CompletedMissions: []string{},
		Cooldowns:         map[string]int64{},
	}

	if len(u.CompletedMissions) > 0 {
		if err := json.Unmarshal(u.CompletedMissions, &state.CompletedMissions); err != nil {
			return core.GameState{}, fmt.Errorf("decode completedMissions for user %d: %w", u.ID, err)
		}
	}
	if len(u.Cooldowns) > 0 {
		if err := json.Unmarshal(u.Cooldowns, &state.Cooldowns); err != nil {
			return core.GameState{}, fmt.Errorf("decode cooldowns for user %d: %w", u.ID, err)
		}
	}
	if u.PrisonTime != nil && now.Before(*u.PrisonTime) {
		ms := u.PrisonTime.UnixMilli()
		state.PrisonTime = &ms
	}
	return state, nil
}

// ApplyGameState overwrites the game-state columns from the wire shape.
func (u *User) ApplyGameState(state core.GameState) error {
	completed := state.CompletedMissions
	if completed == nil {
		completed = []string{}
	}
	completedJSON, err := json.Marshal(completed)
	if err != nil {
		return fmt.Errorf("encode completedMissions: %w", err)
	}

	cooldowns := state.Cooldowns
	if cooldowns == nil {
		cooldowns = map[string]int64{}
	}
	cooldownsJSON, err := json.Marshal(cooldowns)
	if err != nil {
		return fmt.Errorf("encode cooldowns: %w", err)
	}

	u.Balance = state.Balance
	u.CompletedMissions = completedJSON
	u.Cooldowns = cooldownsJSON
	if state.PrisonTime != nil {
		t := time.UnixMilli(*state.PrisonTime)
		u.PrisonTime = &t
	} else {
		u.PrisonTime = nil
	}
	return nil
}
