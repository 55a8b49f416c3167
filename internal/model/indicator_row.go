package model

import "math"

// IndicatorRow is a Candle enriched with every derived indicator value.
// Indicators whose window has not filled yet hold NaN.
type IndicatorRow struct {
	Candle

	EMAShort  float64
	EMAMedium float64
	EMALong   float64

	RSI float64

	MACD       float64
	MACDSignal float64
	MACDHist   float64

	SMA20     float64
	StdDev    float64
	UpperBand float64
	LowerBand float64

	TR  float64
	ATR float64
}

// Warm reports whether every indicator on the row has a defined value.
func (r IndicatorRow) Warm() bool {
	for _, v := range []float64{
		r.EMAShort, r.EMAMedium, r.EMALong, r.RSI,
		r.MACD, r.MACDSignal, r.MACDHist,
		r.SMA20, r.StdDev, r.UpperBand, r.LowerBand,
		r.TR, r.ATR,
	} {
		if math.IsNaN(v) {
			return false
		}
	}
	return true
}

// Field returns the named indicator value and whether the name is known.
// Names follow the snake_case keys used in alerts and chart payloads.
func (r IndicatorRow) Field(name string) (float64, bool) {
	switch name {
	case "open":
		return r.Open, true
	case "high":
		return r.High, true
	case "low":
		return r.Low, true
	case "close":
		return r.Close, true
	case "volume":
		return r.Volume, true
	case "ema_short":
		return r.EMAShort, true
	case "ema_medium":
		return r.EMAMedium, true
	case "ema_long":
		return r.EMALong, true
	case "rsi":
		return r.RSI, true
	case "macd":
		return r.MACD, true
	case "macd_signal":
		return r.MACDSignal, true
	case "macd_hist":
		return r.MACDHist, true
	case "sma20":
		return r.SMA20, true
	case "stddev":
		return r.StdDev, true
	case "upper_band":
		return r.UpperBand, true
	case "lower_band":
		return r.LowerBand, true
	case "tr":
		return r.TR, true
	case "atr":
		return r.ATR, true
	}
	return 0, false
}

// FieldNames lists the keys accepted by Field in display order.
var FieldNames = []string{
	"open", "high", "low", "close", "volume",
	"ema_short", "ema_medium", "ema_long",
	"rsi", "macd", "macd_signal", "macd_hist",
	"sma20", "stddev", "upper_band", "lower_band",
	"tr", "atr",
}

// Wire returns the row as a flat map keyed by FieldNames plus "ts" (unix
// milliseconds). Undefined values become nil so the map always encodes to
// valid JSON.
func (r IndicatorRow) Wire() map[string]interface{} {
	m := make(map[string]interface{}, len(FieldNames)+1)
	m["ts"] = r.Timestamp.UnixMilli()
	for _, name := range FieldNames {
		v, _ := r.Field(name)
		if math.IsNaN(v) || math.IsInf(v, 0) {
			m[name] = nil
			continue
		}
		m[name] = v
	}
	return m
}
