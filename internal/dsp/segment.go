package dsp

import (
	"gonum.org/v1/gonum/floats"
)

// Segment is one contiguous run of above-threshold bins.
//
// CenterHz is the frequency of the peak-power bin, not the geometric
// midpoint of the run; SNR is measured against the noise estimate at
// that same bin.
type Segment struct {
	LowHz    float64
	CenterHz float64
	HighHz   float64
	PeakBin  int
	PeakDB   float64
	NoiseDB  float64
	SNRDB    float64
}

// ExtractSegments scans the above/below mask left to right and groups
// above-threshold bins into segments, ordered by ascending frequency.
//
// A run is extended across gaps of up to guardBins consecutive below
// bins; it closes once the gap exceeds guardBins or the array ends. Runs
// shorter than minWidthBins are discarded. noiseDB supplies the per-bin
// noise reference (a scalar floor is expanded by the caller); it must be
// the same length as psdDB.
func ExtractSegments(freqsHz, psdDB []float64, above []bool, noiseDB []float64, guardBins, minWidthBins int) []Segment {
	n := len(psdDB)
	var segs []Segment

	i := 0
	for i < n {
		if !above[i] {
			i++
			continue
		}

		start := i
		j := i + 1
		gap := 0
		for j < n && (above[j] || gap < guardBins) {
			if above[j] {
				gap = 0
			} else {
				gap++
			}
			j++
		}
		end := j // exclusive

		if end-start >= minWidthBins {
			peak := start + floats.MaxIdx(psdDB[start:end])
			segs = append(segs, Segment{
				LowHz:    freqsHz[start],
				CenterHz: freqsHz[peak],
				HighHz:   freqsHz[end-1],
				PeakBin:  peak,
				PeakDB:   psdDB[peak],
				NoiseDB:  noiseDB[peak],
				SNRDB:    psdDB[peak] - noiseDB[peak],
			})
		}
		i = j
	}

	return segs
}

// ExpandNoise returns a per-bin noise slice filled with the scalar
// global floor, so segment extraction can treat both noise models
// uniformly.
func ExpandNoise(floorDB float64, n int) []float64 {
	noise := make([]float64, n)
	for i := range noise {
		noise[i] = floorDB
	}
	return noise
}
