package strategy

import (
	"sync"
	"time"

	"github.com/sleepydogo/peceto-trading-bot/internal/model"
)

// DefaultCooldown is the suppression window between alerts of one type.
const DefaultCooldown = 2 * time.Hour

// CooldownGate tracks the last delivered alert per signal type.
// State starts empty and changes only through RecordFired.
type CooldownGate struct {
	mu     sync.Mutex
	window time.Duration
	last   map[model.SignalType]time.Time
}

// NewCooldownGate creates a gate with the given window (DefaultCooldown if <= 0).
func NewCooldownGate(window time.Duration) *CooldownGate {
	if window <= 0 {
		window = DefaultCooldown
	}
	return &CooldownGate{
		window: window,
		last:   make(map[model.SignalType]time.Time, 2),
	}
}

// Window returns the configured cooldown duration.
func (g *CooldownGate) Window() time.Duration { return g.window }

// InCooldown reports whether an alert of type st delivered less than one
// window before now is on record.
func (g *CooldownGate) InCooldown(st model.SignalType, now time.Time) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	last, ok := g.last[st]
	if !ok {
		return false
	}
	return now.Sub(last) < g.window
}

// RecordFired stores now as the last delivery time for st.
func (g *CooldownGate) RecordFired(st model.SignalType, now time.Time) {
	g.mu.Lock()
	g.last[st] = now
	g.mu.Unlock()
}

// LastFired returns the last recorded delivery for st.
func (g *CooldownGate) LastFired(st model.SignalType) (time.Time, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	t, ok := g.last[st]
	return t, ok
}

// Remaining returns how long st stays suppressed after now (0 if not).
func (g *CooldownGate) Remaining(st model.SignalType, now time.Time) time.Duration {
	g.mu.Lock()
	defer g.mu.Unlock()
	last, ok := g.last[st]
	if !ok {
		return 0
	}
	if left := g.window - now.Sub(last); left > 0 {
		return left
	}
	return 0
}
