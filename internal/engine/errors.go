package engine

import "errors"

// Precondition errors returned by Execute. Each maps to one distinct
// rejection surfaced to the player; none of them mutates state.
var (
	ErrUnknownMission   = errors.New("mission not found")
	ErrOnCooldown       = errors.New("mission is on cooldown")
	ErrAlreadyCompleted = errors.New("mission already completed")
	ErrImprisoned       = errors.New("cannot execute missions while in prison")
)
