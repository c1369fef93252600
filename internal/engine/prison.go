package engine

import (
	"sync"
	"time"
)

// Prison tracks the player-wide lockout after a failed mission. It has
// two states: free (releaseAt nil) and imprisoned (releaseAt in the
// future). Release is driven by wall-clock time via CheckRelease on the
// session's prison tick, not by a server push.
type Prison struct {
	mu        sync.Mutex
	releaseAt *time.Time
}

// NewPrison returns a prison in the free state.
func NewPrison() *Prison {
	return &Prison{}
}

// Imprison transitions to the imprisoned state until releaseAt.
func (p *Prison) Imprison(releaseAt time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	t := releaseAt
	p.releaseAt = &t
}

// Imprisoned reports whether the player is locked out at now.
func (p *Prison) Imprisoned(now time.Time) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.releaseAt != nil && now.Before(*p.releaseAt)
}

// ReleaseAt returns the release instant, or nil when free.
func (p *Prison) ReleaseAt() *time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.releaseAt == nil {
		return nil
	}
	t := *p.releaseAt
	return &t
}

// RemainingMs returns max(0, releaseAt-now) in milliseconds.
func (p *Prison) RemainingMs(now time.Time) int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.releaseAt == nil {
		return 0
	}
	remaining := p.releaseAt.Sub(now).Milliseconds()
	if remaining < 0 {
		return 0
	}
	return remaining
}

// CheckRelease clears the sentence once now has reached releaseAt and
// reports whether a release happened on this call. The caller must
// follow a release with a full state refresh from the server.
func (p *Prison) CheckRelease(now time.Time) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.releaseAt == nil {
		return false
	}
	if now.Before(*p.releaseAt) {
		return false
	}
	p.releaseAt = nil
	return true
}

// SetFromState applies a server-provided release instant. A past or nil
// instant leaves the prison free.
func (p *Prison) SetFromState(releaseAt *time.Time, now time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if releaseAt == nil || !now.Before(*releaseAt) {
		p.releaseAt = nil
		return
	}
	t := *releaseAt
	p.releaseAt = &t
}
