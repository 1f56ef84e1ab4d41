package dsp

import (
	"math"
	"math/cmplx"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gonum.org/v1/gonum/floats"
)

// tone synthesizes a unit complex exponential at freqHz.
func tone(freqHz, sampleRate float64, n int) []complex64 {
	samples := make([]complex64, n)
	for i := range samples {
		phase := 2 * math.Pi * freqHz * float64(i) / sampleRate
		samples[i] = complex64(cmplx.Exp(complex(0, phase)))
	}
	return samples
}

func TestEstimatorFrequencyAxis(t *testing.T) {
	const sampleRate = 1.024e6
	const fftSize = 256

	e := NewEstimator(sampleRate, fftSize)
	freqs := e.Freqs()

	require.Len(t, freqs, fftSize)
	assert.Equal(t, 0.0, freqs[fftSize/2], "zero frequency must sit at the array center")
	assert.Equal(t, -sampleRate/2, freqs[0])

	binWidth := sampleRate / fftSize
	for i := 1; i < len(freqs); i++ {
		assert.InDelta(t, binWidth, freqs[i]-freqs[i-1], 1e-9)
	}
}

func TestPSDLocatesTone(t *testing.T) {
	const sampleRate = 1.024e6
	const fftSize = 256
	const avg = 8

	e := NewEstimator(sampleRate, fftSize)
	binWidth := sampleRate / fftSize

	for _, bin := range []int{-40, -1, 0, 1, 37} {
		freq := float64(bin) * binWidth
		psd := e.PSD(tone(freq, sampleRate, fftSize*avg))

		require.Len(t, psd, fftSize)
		peak := floats.MaxIdx(psd)
		assert.Equal(t, fftSize/2+bin, peak, "tone at %0.f Hz landed in the wrong bin", freq)
	}
}

func TestPSDDeterministic(t *testing.T) {
	const sampleRate = 2.4e6
	const fftSize = 128

	samples := tone(3*sampleRate/fftSize, sampleRate, fftSize*4)

	e := NewEstimator(sampleRate, fftSize)
	first := e.PSD(samples)
	second := e.PSD(samples)

	assert.Equal(t, first, second)
}

func TestPSDPartialSegment(t *testing.T) {
	const sampleRate = 2.4e6
	const fftSize = 256

	e := NewEstimator(sampleRate, fftSize)

	// Fewer samples than one full segment: the single truncated segment
	// is used, and the result must still cover every bin with finite dB.
	psd := e.PSD(tone(0, sampleRate, fftSize/3))

	require.Len(t, psd, fftSize)
	for i, p := range psd {
		assert.False(t, math.IsNaN(p) || math.IsInf(p, 0), "bin %d is not finite", i)
	}
}

func TestPSDSilenceHitsFloor(t *testing.T) {
	const fftSize = 64

	e := NewEstimator(1e6, fftSize)
	psd := e.PSD(make([]complex64, fftSize*2))

	want := DB10(0)
	for _, p := range psd {
		assert.Equal(t, want, p, "zero input must clamp at the dB floor, not -Inf")
	}
}
