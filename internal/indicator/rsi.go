package indicator

import "strconv"

// RSI calculates the Relative Strength Index from simple (non-exponential)
// rolling means of gains and losses over the trailing period deltas.
//
// Degenerate windows are defined explicitly:
//   - no losses, some gains: 100
//   - no gains and no losses (flat window): 50
type RSI struct {
	period    int
	count     int // closes received
	prevClose float64
	gains     []float64
	losses    []float64
	idx       int
}

// NeutralRSI is the value reported for a window with no price movement.
const NeutralRSI = 50.0

// NewRSI creates a new RSI indicator with the given period (typically 14).
func NewRSI(period int) *RSI {
	return &RSI{
		period: period,
		gains:  make([]float64, period),
		losses: make([]float64, period),
	}
}

func (r *RSI) Name() string { return "RSI_" + strconv.Itoa(r.period) }

func (r *RSI) Update(v float64) {
	r.count++
	if r.count == 1 {
		r.prevClose = v
		return
	}

	delta := v - r.prevClose
	r.prevClose = v

	gain, loss := 0.0, 0.0
	if delta > 0 {
		gain = delta
	} else {
		loss = -delta
	}
	r.gains[r.idx] = gain
	r.losses[r.idx] = loss
	r.idx = (r.idx + 1) % r.period
}

// Ready returns true once period deltas (period+1 closes) have been seen.
func (r *RSI) Ready() bool { return r.count > r.period }

func (r *RSI) Value() float64 {
	if !r.Ready() {
		return nan
	}
	// Sums are taken over the window each time; a running sum would leave
	// rounding residue where the window holds only zeros.
	var sumGain, sumLoss float64
	for i := 0; i < r.period; i++ {
		sumGain += r.gains[i]
		sumLoss += r.losses[i]
	}
	return rsiFromAverages(sumGain/float64(r.period), sumLoss/float64(r.period))
}

func rsiFromAverages(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		if avgGain == 0 {
			return NeutralRSI
		}
		return 100.0
	}
	rs := avgGain / avgLoss
	return 100.0 - (100.0 / (1.0 + rs))
}

// Snapshot serializes the RSI state.
func (r *RSI) Snapshot() IndicatorSnapshot {
	gains := make([]float64, len(r.gains))
	losses := make([]float64, len(r.losses))
	copy(gains, r.gains)
	copy(losses, r.losses)
	return IndicatorSnapshot{
		Type:      TypeRSI,
		Period:    r.period,
		Count:     r.count,
		Idx:       r.idx,
		PrevClose: r.prevClose,
		Buf:       gains,
		LossBuf:   losses,
	}
}

// RestoreFromSnapshot restores RSI state from a snapshot.
func (r *RSI) RestoreFromSnapshot(snap IndicatorSnapshot) error {
	if err := snap.expect(TypeRSI); err != nil {
		return err
	}
	r.period = snap.Period
	r.count = snap.Count
	r.idx = snap.Idx
	r.prevClose = snap.PrevClose
	r.gains = make([]float64, snap.Period)
	r.losses = make([]float64, snap.Period)
	copy(r.gains, snap.Buf)
	copy(r.losses, snap.LossBuf)
	return nil
}
