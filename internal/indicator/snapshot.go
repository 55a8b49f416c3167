package indicator

import (
	"fmt"
	"time"

	"github.com/bytedance/sonic"
	"github.com/pkg/errors"
)

// Snapshot type tags.
const (
	TypeEMA    = "EMA"
	TypeSMA    = "SMA"
	TypeStdDev = "STDDEV"
	TypeRSI    = "RSI"
	TypeATR    = "ATR"
)

// Snapshottable is implemented by indicators that support state serialization.
type Snapshottable interface {
	Snapshot() IndicatorSnapshot
	RestoreFromSnapshot(snap IndicatorSnapshot) error
}

// IndicatorSnapshot holds the serialized state of a single indicator instance.
type IndicatorSnapshot struct {
	Type   string `json:"type"`
	Period int    `json:"period"`

	// Window fields (SMA, STDDEV, ATR, RSI gains)
	Buf   []float64 `json:"buf,omitempty"`
	Idx   int       `json:"idx,omitempty"`
	Count int       `json:"count"`

	Current    float64 `json:"current,omitempty"`
	Multiplier float64 `json:"multiplier,omitempty"`

	// RSI losses window
	LossBuf []float64 `json:"loss_buf,omitempty"`

	PrevClose float64 `json:"prev_close,omitempty"`
	HasPrev   bool    `json:"has_prev,omitempty"`
}

func (s IndicatorSnapshot) expect(typ string) error {
	if s.Type != typ {
		return fmt.Errorf("indicator: snapshot type %q, want %q", s.Type, typ)
	}
	if s.Period <= 0 {
		return fmt.Errorf("indicator: snapshot %s has invalid period %d", s.Type, s.Period)
	}
	return nil
}

// PipelineSnapshot holds the full state of a Pipeline.
type PipelineSnapshot struct {
	Version    int                 `json:"version"`
	Config     Config              `json:"config"`
	LastTS     int64               `json:"last_ts,omitempty"` // unix ms of the last candle fed
	Indicators []IndicatorSnapshot `json:"indicators"`
}

const snapshotVersion = 1

func (p *Pipeline) parts() []Snapshottable {
	return []Snapshottable{p.emaShort, p.emaMedium, p.emaLong, p.macdSignal, p.rsi, p.boll, p.atr}
}

// Snapshot captures the pipeline state so a later batch can continue it.
func (p *Pipeline) Snapshot() PipelineSnapshot {
	parts := p.parts()
	snap := PipelineSnapshot{
		Version:    snapshotVersion,
		Config:     p.cfg,
		Indicators: make([]IndicatorSnapshot, 0, len(parts)),
	}
	if !p.lastTS.IsZero() {
		snap.LastTS = p.lastTS.UnixMilli()
	}
	for _, ind := range parts {
		snap.Indicators = append(snap.Indicators, ind.Snapshot())
	}
	return snap
}

// RestorePipeline rebuilds a Pipeline from a snapshot.
func RestorePipeline(snap PipelineSnapshot) (*Pipeline, error) {
	if snap.Version != snapshotVersion {
		return nil, fmt.Errorf("indicator: unsupported snapshot version %d", snap.Version)
	}
	p := NewPipeline(snap.Config)
	parts := p.parts()
	if len(snap.Indicators) != len(parts) {
		return nil, fmt.Errorf("indicator: snapshot has %d indicators, want %d", len(snap.Indicators), len(parts))
	}
	for i, ind := range parts {
		if err := ind.RestoreFromSnapshot(snap.Indicators[i]); err != nil {
			return nil, errors.Wrapf(err, "restore indicator %d", i)
		}
	}
	if snap.LastTS != 0 {
		p.lastTS = time.UnixMilli(snap.LastTS).UTC()
	}
	return p, nil
}

// EncodeSnapshot serializes a pipeline snapshot to JSON.
func EncodeSnapshot(snap PipelineSnapshot) ([]byte, error) {
	b, err := sonic.Marshal(snap)
	if err != nil {
		return nil, errors.Wrap(err, "encode pipeline snapshot")
	}
	return b, nil
}

// DecodeSnapshot parses a pipeline snapshot from JSON.
func DecodeSnapshot(data []byte) (PipelineSnapshot, error) {
	var snap PipelineSnapshot
	if err := sonic.Unmarshal(data, &snap); err != nil {
		return snap, errors.Wrap(err, "decode pipeline snapshot")
	}
	return snap, nil
}
