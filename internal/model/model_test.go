package model

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func warmRow() IndicatorRow {
	return IndicatorRow{
		Candle:     Candle{Timestamp: time.UnixMilli(1715349600000).UTC(), Open: 1, High: 2, Low: 0.5, Close: 1.5, Volume: 10},
		EMAShort:   1.4,
		EMAMedium:  1.3,
		EMALong:    1.2,
		RSI:        55,
		MACD:       0.1,
		MACDSignal: 0.05,
		MACDHist:   0.05,
		SMA20:      1.25,
		StdDev:     0.1,
		UpperBand:  1.45,
		LowerBand:  1.05,
		TR:         1.5,
		ATR:        1.1,
	}
}

func TestIndicatorRow_Field(t *testing.T) {
	r := warmRow()
	for _, name := range FieldNames {
		_, ok := r.Field(name)
		assert.True(t, ok, name)
	}
	v, ok := r.Field("lower_band")
	require.True(t, ok)
	assert.Equal(t, 1.05, v)

	_, ok = r.Field("vwap")
	assert.False(t, ok)
}

func TestIndicatorRow_Warm(t *testing.T) {
	r := warmRow()
	assert.True(t, r.Warm())
	r.ATR = math.NaN()
	assert.False(t, r.Warm())
}

func TestIndicatorRow_Wire(t *testing.T) {
	r := warmRow()
	r.RSI = math.NaN()
	m := r.Wire()

	assert.Len(t, m, len(FieldNames)+1)
	assert.Equal(t, int64(1715349600000), m["ts"])
	assert.Nil(t, m["rsi"])
	assert.Equal(t, 1.5, m["close"])
}

func TestSortedAscending(t *testing.T) {
	t0 := time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC)
	series := []Candle{
		{Timestamp: t0, Close: 1},
		{Timestamp: t0.Add(time.Minute), Close: 2},
		{Timestamp: t0.Add(2 * time.Minute), Close: 3},
	}
	assert.True(t, SortedAscending(series))

	series[2].Timestamp = series[1].Timestamp
	assert.False(t, SortedAscending(series), "duplicate timestamp")

	series[2].Timestamp = t0
	assert.False(t, SortedAscending(series))
}

func TestSignalDetails_Lookups(t *testing.T) {
	d := SignalDetails{
		Strength:   3,
		Conditions: []Condition{{Name: "ema_cross_up", Met: true}, {Name: "near_support", Met: false}},
		Indicators: []NamedValue{{Name: "rsi", Value: 31.5}},
	}
	assert.True(t, d.Active())

	met, ok := d.Condition("ema_cross_up")
	assert.True(t, ok)
	assert.True(t, met)
	_, ok = d.Condition("missing")
	assert.False(t, ok)

	v, ok := d.Indicator("rsi")
	assert.True(t, ok)
	assert.Equal(t, 31.5, v)

	d.Strength = 2
	assert.False(t, d.Active())
}
