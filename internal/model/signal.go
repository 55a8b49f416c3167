package model

import "time"

// SignalType identifies the direction of a signal.
type SignalType string

const (
	SignalBuy  SignalType = "BUY"
	SignalSell SignalType = "SELL"
)

// MaxStrength is the number of conditions in each rule set.
const MaxStrength = 5

// Condition is one named rule and whether the last two rows satisfy it.
type Condition struct {
	Name string `json:"name"`
	Met  bool   `json:"met"`
}

// NamedValue is one entry of the indicator snapshot attached to a signal.
type NamedValue struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
}

// SignalDetails is the result of evaluating one rule set on the latest bars.
// Conditions and Indicators keep their evaluation order.
type SignalDetails struct {
	Type        SignalType   `json:"type"`
	Symbol      string       `json:"symbol,omitempty"`
	Interval    string       `json:"interval,omitempty"`
	Price       float64      `json:"price"`
	Timestamp   time.Time    `json:"ts"`
	Strength    int          `json:"strength"`
	MaxStrength int          `json:"max_strength"`
	Conditions  []Condition  `json:"conditions"`
	Indicators  []NamedValue `json:"indicators"`
}

// Indicator returns the snapshot value stored under name.
func (d SignalDetails) Indicator(name string) (float64, bool) {
	for _, nv := range d.Indicators {
		if nv.Name == name {
			return nv.Value, true
		}
	}
	return 0, false
}

// Condition reports whether the named condition was met.
func (d SignalDetails) Condition(name string) (met, ok bool) {
	for _, c := range d.Conditions {
		if c.Name == name {
			return c.Met, true
		}
	}
	return false, false
}

// Active reports whether enough conditions hold for the signal to fire.
func (d SignalDetails) Active() bool { return d.Strength >= ActiveThreshold }

// ActiveThreshold is the minimum strength for a fired signal.
const ActiveThreshold = 3

// Marker is a chart point recorded when a signal fires.
type Marker struct {
	Timestamp time.Time `json:"ts"`
	Price     float64   `json:"price"`
	Strength  int       `json:"strength"`
}
