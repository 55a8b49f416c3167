package indicator

import (
	"math"
	"strconv"
)

// StdDev is the rolling sample standard deviation (n-1 denominator).
// Deviations are taken from the freshly computed window mean, so a window
// of equal values has a mean equal to them and a deviation of exactly zero.
type StdDev struct {
	sma *SMA
}

// NewStdDev creates a rolling standard deviation over period values.
func NewStdDev(period int) *StdDev {
	return &StdDev{sma: NewSMA(period)}
}

func (d *StdDev) Name() string { return "STDDEV_" + strconv.Itoa(d.sma.period) }

func (d *StdDev) Update(v float64) { d.sma.Update(v) }

func (d *StdDev) Ready() bool { return d.sma.Ready() && d.sma.period > 1 }

// Mean returns the rolling mean of the same window.
func (d *StdDev) Mean() float64 { return d.sma.Value() }

func (d *StdDev) Value() float64 {
	if !d.Ready() {
		return nan
	}
	mean := d.sma.Value()
	var ss float64
	d.sma.window(func(v float64) {
		diff := v - mean
		ss += diff * diff
	})
	return math.Sqrt(ss / float64(d.sma.period-1))
}

// Snapshot serializes the window state.
func (d *StdDev) Snapshot() IndicatorSnapshot {
	snap := d.sma.Snapshot()
	snap.Type = TypeStdDev
	return snap
}

// RestoreFromSnapshot restores the window state.
func (d *StdDev) RestoreFromSnapshot(snap IndicatorSnapshot) error {
	if err := snap.expect(TypeStdDev); err != nil {
		return err
	}
	snap.Type = TypeSMA
	return d.sma.RestoreFromSnapshot(snap)
}

// Bollinger holds one set of band values.
type Bollinger struct {
	Middle float64
	StdDev float64
	Upper  float64
	Lower  float64
}

// Bands returns the Bollinger bands at mult standard deviations.
// All fields are NaN until the window fills.
func (d *StdDev) Bands(mult float64) Bollinger {
	if !d.Ready() {
		return Bollinger{Middle: nan, StdDev: nan, Upper: nan, Lower: nan}
	}
	mid := d.Mean()
	sd := d.Value()
	return Bollinger{
		Middle: mid,
		StdDev: sd,
		Upper:  mid + mult*sd,
		Lower:  mid - mult*sd,
	}
}
