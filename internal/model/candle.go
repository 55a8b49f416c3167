package model

import "time"

// Candle is one OHLCV observation for the configured trading pair.
// Prices are quote-currency floats as delivered by the exchange.
type Candle struct {
	Timestamp time.Time `json:"ts"` // bar open time (UTC)
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    float64   `json:"volume"`
}

// SortedAscending reports whether the series timestamps are strictly increasing.
func SortedAscending(series []Candle) bool {
	for i := 1; i < len(series); i++ {
		if !series[i].Timestamp.After(series[i-1].Timestamp) {
			return false
		}
	}
	return true
}
