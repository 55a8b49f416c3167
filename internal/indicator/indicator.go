// Package indicator derives technical indicators from candle series.
//
// Every indicator exists in streaming form: it receives one value (or bar)
// at a time and keeps only the state its window needs. Compute runs the
// streaming indicators over a whole series and returns index-aligned rows,
// so batch and incremental evaluation produce identical numbers.
package indicator

import "math"

// Indicator is the interface for scalar streaming indicators.
type Indicator interface {
	// Name returns the indicator name (e.g., "EMA_9", "RSI_14").
	Name() string

	// Update feeds the next input value.
	Update(v float64)

	// Value returns the current value, NaN until Ready.
	Value() float64

	// Ready returns true when enough data has been accumulated.
	Ready() bool
}

var nan = math.NaN()
