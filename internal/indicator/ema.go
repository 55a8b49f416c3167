package indicator

import "strconv"

// EMA calculates an exponential moving average without a warm-up window:
// the first output equals the first input and every later output follows
// ema = α·v + (1-α)·ema_prev with α = 2/(period+1).
// O(1) per update.
type EMA struct {
	period     int
	multiplier float64
	current    float64
	count      int
}

// NewEMA creates a new EMA indicator with the given period.
func NewEMA(period int) *EMA {
	return &EMA{
		period:     period,
		multiplier: 2.0 / float64(period+1),
	}
}

func (e *EMA) Name() string { return "EMA_" + strconv.Itoa(e.period) }

func (e *EMA) Update(v float64) {
	e.count++
	if e.count == 1 {
		e.current = v
		return
	}
	// α·v + (1-α)·prev, written so that v == prev leaves the value unchanged.
	e.current += e.multiplier * (v - e.current)
}

func (e *EMA) Value() float64 {
	if e.count == 0 {
		return nan
	}
	return e.current
}

func (e *EMA) Ready() bool { return e.count > 0 }

// Reset clears the EMA state for reuse.
func (e *EMA) Reset() {
	e.current = 0
	e.count = 0
}

// Snapshot serializes the EMA state for carry-over between batches.
func (e *EMA) Snapshot() IndicatorSnapshot {
	return IndicatorSnapshot{
		Type:       TypeEMA,
		Period:     e.period,
		Multiplier: e.multiplier,
		Current:    e.current,
		Count:      e.count,
	}
}

// RestoreFromSnapshot restores EMA state from a snapshot.
func (e *EMA) RestoreFromSnapshot(snap IndicatorSnapshot) error {
	if err := snap.expect(TypeEMA); err != nil {
		return err
	}
	e.period = snap.Period
	e.multiplier = snap.Multiplier
	e.current = snap.Current
	e.count = snap.Count
	return nil
}
