// Package chart holds the data behind the live price chart: the marker logs
// of fired signals, a websocket hub streaming indicator rows and markers to
// viewers, and the workbook export written on shutdown.
package chart

import (
	"sync"

	"github.com/sleepydogo/peceto-trading-bot/internal/model"
)

// MarkerLog records buy and sell markers for the chart. Markers are never
// evicted; the log lives as long as the process.
type MarkerLog struct {
	mu    sync.RWMutex
	buys  []model.Marker
	sells []model.Marker
}

// NewMarkerLog creates an empty log.
func NewMarkerLog() *MarkerLog {
	return &MarkerLog{}
}

// Record appends a marker for the given signal type.
func (l *MarkerLog) Record(st model.SignalType, m model.Marker) {
	l.mu.Lock()
	defer l.mu.Unlock()
	switch st {
	case model.SignalBuy:
		l.buys = append(l.buys, m)
	case model.SignalSell:
		l.sells = append(l.sells, m)
	}
}

// Buys returns a copy of the buy markers in recording order.
func (l *MarkerLog) Buys() []model.Marker {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]model.Marker(nil), l.buys...)
}

// Sells returns a copy of the sell markers in recording order.
func (l *MarkerLog) Sells() []model.Marker {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]model.Marker(nil), l.sells...)
}

// Len returns the number of buy and sell markers.
func (l *MarkerLog) Len() (buys, sells int) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.buys), len(l.sells)
}
