package engine

import (
	"sync"
	"time"
)

// CooldownTracker maps mission ids to cooldown expiry instants. Entries
// are pruned only by the tick loop, never by reads, so a read shortly
// after expiry may still see the entry until the next tick. Callers
// tolerate that one-tick staleness window.
type CooldownTracker struct {
	mu      sync.Mutex
	entries map[string]time.Time
}

// NewCooldownTracker creates an empty tracker.
func NewCooldownTracker() *CooldownTracker {
	return &CooldownTracker{
		entries: make(map[string]time.Time),
	}
}

// Set records a cooldown for missionID ending at expiry.
func (c *CooldownTracker) Set(missionID string, expiry time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[missionID] = expiry
}

// Active reports whether a cooldown entry exists for missionID. A
// present entry always blocks execution, even if its expiry has passed
// but the prune tick has not run yet.
func (c *CooldownTracker) Active(missionID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.entries[missionID]
	return ok
}

// RemainingMs returns max(0, expiry-now) in milliseconds without
// mutating the tracker. Returns 0 for missions with no entry.
func (c *CooldownTracker) RemainingMs(missionID string, now time.Time) int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	expiry, ok := c.entries[missionID]
	if !ok {
		return 0
	}
	remaining := expiry.Sub(now).Milliseconds()
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Prune removes entries whose expiry has passed. Called by the
// session's cooldown tick.
func (c *CooldownTracker) Prune(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, expiry := range c.entries {
		if !expiry.After(now) {
			delete(c.entries, id)
		}
	}
}

// Snapshot returns a copy of the current entries.
func (c *CooldownTracker) Snapshot() map[string]time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]time.Time, len(c.entries))
	for id, expiry := range c.entries {
		out[id] = expiry
	}
	return out
}

// Replace swaps all entries for the given map, dropping entries already
// expired at now. Used when refreshing state from the server.
func (c *CooldownTracker) Replace(entries map[string]time.Time, now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]time.Time, len(entries))
	for id, expiry := range entries {
		if expiry.After(now) {
			c.entries[id] = expiry
		}
	}
}
