package strategy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/sleepydogo/peceto-trading-bot/internal/model"
)

func TestCooldown_FreshGateAllowsAll(t *testing.T) {
	g := NewCooldownGate(0)
	assert.Equal(t, DefaultCooldown, g.Window())
	assert.False(t, g.InCooldown(model.SignalBuy, ts))
	assert.False(t, g.InCooldown(model.SignalSell, ts))
	_, ok := g.LastFired(model.SignalBuy)
	assert.False(t, ok)
}

func TestCooldown_SuppressionWindow(t *testing.T) {
	g := NewCooldownGate(2 * time.Hour)
	g.RecordFired(model.SignalBuy, ts)

	assert.True(t, g.InCooldown(model.SignalBuy, ts.Add(30*time.Minute)))
	assert.Equal(t, 90*time.Minute, g.Remaining(model.SignalBuy, ts.Add(30*time.Minute)))

	assert.False(t, g.InCooldown(model.SignalBuy, ts.Add(2*time.Hour+time.Second)))
	assert.Zero(t, g.Remaining(model.SignalBuy, ts.Add(2*time.Hour+time.Second)))

	// The window is half-open: exactly two hours later is allowed again.
	assert.False(t, g.InCooldown(model.SignalBuy, ts.Add(2*time.Hour)))
}

func TestCooldown_TypesAreIndependent(t *testing.T) {
	g := NewCooldownGate(2 * time.Hour)
	g.RecordFired(model.SignalSell, ts)

	assert.False(t, g.InCooldown(model.SignalBuy, ts.Add(time.Minute)))
	assert.True(t, g.InCooldown(model.SignalSell, ts.Add(time.Minute)))
}

func TestCooldown_CheckDoesNotExtendWindow(t *testing.T) {
	g := NewCooldownGate(2 * time.Hour)
	g.RecordFired(model.SignalBuy, ts)

	// Suppressed checks must not move the recorded time.
	for m := 10; m < 120; m += 10 {
		assert.True(t, g.InCooldown(model.SignalBuy, ts.Add(time.Duration(m)*time.Minute)))
	}
	last, ok := g.LastFired(model.SignalBuy)
	assert.True(t, ok)
	assert.Equal(t, ts, last)
	assert.False(t, g.InCooldown(model.SignalBuy, ts.Add(2*time.Hour+time.Second)))
}
