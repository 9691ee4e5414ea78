package capture

import (
	"sync"
	"time"
)

// cooldownKey identifies one (identity, zone) pair.
type cooldownKey struct {
	identity string
	zone     string
}

// CooldownGate suppresses repeated submissions of the same physical crossing
// when the external detector supplies stable identities. Only the producer
// writes; the lock exists for observers reading the map from other
// goroutines.
type CooldownGate struct {
	mu     sync.RWMutex
	window time.Duration
	last   map[cooldownKey]time.Time
}

func NewCooldownGate(window time.Duration) *CooldownGate {
	return &CooldownGate{
		window: window,
		last:   make(map[cooldownKey]time.Time),
	}
}

// Accept reports whether a submission for (identity, zone) at the given time
// should go through, and records it when it does. Submissions without an
// identity are always accepted: without tracking there is nothing to key the
// cooldown on. A non-positive window disables the gate.
func (g *CooldownGate) Accept(identity, zone string, at time.Time) bool {
	if identity == "" || g.window <= 0 {
		return true
	}
	key := cooldownKey{identity: identity, zone: zone}

	g.mu.Lock()
	defer g.mu.Unlock()
	if prev, ok := g.last[key]; ok && at.Sub(prev) < g.window {
		return false
	}
	g.last[key] = at
	return true
}

// OnCooldown reports whether the pair is currently suppressed, without
// mutating gate state.
func (g *CooldownGate) OnCooldown(identity, zone string, at time.Time) bool {
	if identity == "" || g.window <= 0 {
		return false
	}
	g.mu.RLock()
	defer g.mu.RUnlock()
	prev, ok := g.last[cooldownKey{identity: identity, zone: zone}]
	return ok && at.Sub(prev) < g.window
}

// Reset clears all cooldown state, e.g. when the source loops.
func (g *CooldownGate) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.last = make(map[cooldownKey]time.Time)
}
