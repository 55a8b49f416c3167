package indicator

import "strconv"

// SMA calculates Simple Moving Average over a rolling window.
// Uses a preallocated circular buffer; the window is shared with StdDev.
type SMA struct {
	period int
	buf    []float64 // circular buffer of the last period values
	idx    int       // next write position
	count  int       // total values received
}

// NewSMA creates a new SMA indicator with the given period.
func NewSMA(period int) *SMA {
	return &SMA{
		period: period,
		buf:    make([]float64, period),
	}
}

func (s *SMA) Name() string { return "SMA_" + strconv.Itoa(s.period) }

func (s *SMA) Update(v float64) {
	s.buf[s.idx] = v
	s.idx = (s.idx + 1) % s.period
	s.count++
}

// Value is the window mean, taken fresh over the buffer as offsets from the
// oldest value. A window of equal values averages to exactly that value.
func (s *SMA) Value() float64 {
	if !s.Ready() {
		return nan
	}
	ref := s.buf[s.idx]
	var off float64
	s.window(func(v float64) { off += v - ref })
	return ref + off/float64(s.period)
}

func (s *SMA) Ready() bool { return s.count >= s.period }

// window calls fn for every value currently in the full window.
func (s *SMA) window(fn func(v float64)) {
	for _, v := range s.buf {
		fn(v)
	}
}

// Reset clears the SMA state for reuse.
func (s *SMA) Reset() {
	s.idx = 0
	s.count = 0
	for i := range s.buf {
		s.buf[i] = 0
	}
}

// Snapshot serializes the SMA state.
func (s *SMA) Snapshot() IndicatorSnapshot {
	bufCopy := make([]float64, len(s.buf))
	copy(bufCopy, s.buf)
	return IndicatorSnapshot{
		Type:   TypeSMA,
		Period: s.period,
		Buf:    bufCopy,
		Idx:    s.idx,
		Count:  s.count,
	}
}

// RestoreFromSnapshot restores SMA state from a snapshot.
func (s *SMA) RestoreFromSnapshot(snap IndicatorSnapshot) error {
	if err := snap.expect(TypeSMA); err != nil {
		return err
	}
	s.period = snap.Period
	s.idx = snap.Idx
	s.count = snap.Count
	s.buf = make([]float64, snap.Period)
	copy(s.buf, snap.Buf)
	return nil
}
