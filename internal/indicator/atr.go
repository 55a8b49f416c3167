package indicator

import (
	"math"
	"strconv"

	"github.com/sleepydogo/peceto-trading-bot/internal/model"
)

// TrueRange returns max(high-low, |high-prevClose|, |low-prevClose|).
// Without a previous close it degenerates to high-low.
func TrueRange(c model.Candle, prevClose float64, hasPrev bool) float64 {
	hl := c.High - c.Low
	if !hasPrev {
		return hl
	}
	return math.Max(hl, math.Max(math.Abs(c.High-prevClose), math.Abs(c.Low-prevClose)))
}

// ATR is the simple moving average of true range over period bars.
type ATR struct {
	sma       *SMA
	prevClose float64
	hasPrev   bool
	lastTR    float64
}

// NewATR creates an ATR indicator with the given period (typically 14).
func NewATR(period int) *ATR {
	return &ATR{sma: NewSMA(period)}
}

func (a *ATR) Name() string { return "ATR_" + strconv.Itoa(a.sma.period) }

// UpdateBar feeds the next candle.
func (a *ATR) UpdateBar(c model.Candle) {
	a.lastTR = TrueRange(c, a.prevClose, a.hasPrev)
	a.prevClose = c.Close
	a.hasPrev = true
	a.sma.Update(a.lastTR)
}

// TR returns the true range of the last bar, NaN before the first bar.
func (a *ATR) TR() float64 {
	if !a.hasPrev {
		return nan
	}
	return a.lastTR
}

func (a *ATR) Value() float64 { return a.sma.Value() }
func (a *ATR) Ready() bool    { return a.sma.Ready() }

// Snapshot serializes the ATR state.
func (a *ATR) Snapshot() IndicatorSnapshot {
	snap := a.sma.Snapshot()
	snap.Type = TypeATR
	snap.PrevClose = a.prevClose
	snap.HasPrev = a.hasPrev
	snap.Current = a.lastTR
	return snap
}

// RestoreFromSnapshot restores the ATR state.
func (a *ATR) RestoreFromSnapshot(snap IndicatorSnapshot) error {
	if err := snap.expect(TypeATR); err != nil {
		return err
	}
	a.prevClose = snap.PrevClose
	a.hasPrev = snap.HasPrev
	a.lastTR = snap.Current
	snap.Type = TypeSMA
	return a.sma.RestoreFromSnapshot(snap)
}
