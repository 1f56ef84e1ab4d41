package dsp

import (
	"math"
	"sort"
)

// CFARParams configures the order-statistic CFAR detector.
type CFARParams struct {
	Train    int     // training cells on each side of the cell under test
	Guard    int     // guard cells on each side, excluded from training
	Quantile float64 // order statistic taken over the training cells
	AlphaDB  float64 // threshold scaling above the local noise estimate
}

// WindowSize returns the full CFAR window span in bins.
func (p CFARParams) WindowSize() int {
	return 2*p.Train + 2*p.Guard + 1
}

// OSCFARMask runs an order-statistic CFAR over a PSD in dB.
//
// For each bin, the local noise is the Quantile-th quantile of the
// 2*Train training cells around it (Guard cells adjacent to the cell
// under test excluded, edges handled by clamped padding), computed in
// linear power. The bin is above iff its linear power exceeds
// localNoise * 10^(AlphaDB/10). Returns the mask and the per-bin noise
// estimate in dB.
//
// ok is false when the window is degenerate for the given PSD (no
// training cells, or fewer bins than one full window); callers should
// fall back to the global robust floor in that case.
func OSCFARMask(psdDB []float64, p CFARParams) (above []bool, noiseDB []float64, ok bool) {
	n := len(psdDB)
	win := p.WindowSize()
	if n == 0 || win <= 1 || n < win {
		return nil, nil, false
	}

	lin := make([]float64, n)
	for i, db := range psdDB {
		lin[i] = math.Pow(10.0, db/10.0)
	}

	// Edge bins reuse the nearest in-range cells.
	pad := p.Train + p.Guard
	padded := make([]float64, n+2*pad)
	for i := range padded {
		j := i - pad
		if j < 0 {
			j = 0
		} else if j >= n {
			j = n - 1
		}
		padded[i] = lin[j]
	}

	q := math.Min(math.Max(p.Quantile, 1e-6), 1.0-1e-6)
	alpha := math.Pow(10.0, p.AlphaDB/10.0)

	above = make([]bool, n)
	noiseDB = make([]float64, n)
	train := make([]float64, 0, 2*p.Train)
	for i := 0; i < n; i++ {
		// The window for bin i spans padded[i : i+win]; the guard cells
		// and the cell under test occupy its middle 2*Guard+1 entries.
		train = train[:0]
		train = append(train, padded[i:i+p.Train]...)
		train = append(train, padded[i+p.Train+2*p.Guard+1:i+win]...)
		sort.Float64s(train)

		localNoise := quantileSorted(q, train)
		above[i] = lin[i] > localNoise*alpha
		noiseDB[i] = DB10(localNoise)
	}

	return above, noiseDB, true
}
