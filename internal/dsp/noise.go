package dsp

import (
	"math"
	"sort"
)

// madScale makes the median absolute deviation a consistent estimator of
// the standard deviation for Gaussian noise.
const madScale = 1.4826

// Median returns the median of xs, averaging the two middle order
// statistics for even lengths. Returns NaN for empty input.
func Median(xs []float64) float64 {
	if len(xs) == 0 {
		return math.NaN()
	}
	sorted := make([]float64, len(xs))
	copy(sorted, xs)
	sort.Float64s(sorted)

	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}

// RobustFloorDB estimates the noise floor of a PSD in dB as
// median + 1.4826*MAD. The estimator tolerates up to half the bins being
// occupied by signal without the floor chasing them.
func RobustFloorDB(psdDB []float64) float64 {
	med := Median(psdDB)
	dev := make([]float64, len(psdDB))
	for i, p := range psdDB {
		dev[i] = math.Abs(p - med)
	}
	return med + madScale*Median(dev)
}

// GlobalMask thresholds a PSD against the global robust floor. It returns
// the above-threshold mask and the scalar floor estimate; a bin is above
// iff psdDB[i] > floor + thresholdDB.
func GlobalMask(psdDB []float64, thresholdDB float64) ([]bool, float64) {
	floor := RobustFloorDB(psdDB)
	dynamic := floor + thresholdDB

	above := make([]bool, len(psdDB))
	for i, p := range psdDB {
		above[i] = p > dynamic
	}
	return above, floor
}

// quantileSorted returns the q-th quantile of a sorted slice using linear
// interpolation between order statistics.
func quantileSorted(q float64, sorted []float64) float64 {
	if len(sorted) == 0 {
		return math.NaN()
	}
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}
