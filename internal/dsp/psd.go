package dsp

import (
	"math"

	"gonum.org/v1/gonum/dsp/fourier"
)

// minPower is the floor applied before converting linear power to dB,
// so a zeroed bin never produces -Inf.
const minPower = 1e-20

// DB10 converts linear power to dB with a floor at minPower.
func DB10(p float64) float64 {
	return 10.0 * math.Log10(math.Max(p, minPower))
}

// Estimator computes averaged-periodogram power spectral densities over
// complex baseband samples. The window, FFT plan and frequency axis are
// built once per (sampleRate, fftSize) pair and reused across sweep
// windows.
type Estimator struct {
	sampleRate float64
	fftSize    int

	fft    *fourier.CmplxFFT
	window []float64 // Hann
	freqs  []float64 // baseband bin centers, ascending, zero at fftSize/2

	seg     []complex128 // windowed segment scratch
	coeff   []complex128 // FFT output scratch
	accum   []float64    // summed periodograms, natural FFT order
	shifted []float64    // zero-frequency-centered linear PSD
}

// NewEstimator builds an estimator for the given sample rate and FFT size.
func NewEstimator(sampleRate float64, fftSize int) *Estimator {
	e := &Estimator{
		sampleRate: sampleRate,
		fftSize:    fftSize,
		fft:        fourier.NewCmplxFFT(fftSize),
		window:     make([]float64, fftSize),
		freqs:      make([]float64, fftSize),
		seg:        make([]complex128, fftSize),
		coeff:      make([]complex128, fftSize),
		accum:      make([]float64, fftSize),
		shifted:    make([]float64, fftSize),
	}

	for i := range e.window {
		e.window[i] = 0.5 * (1.0 - math.Cos(2.0*math.Pi*float64(i)/float64(fftSize-1)))
	}

	binWidth := sampleRate / float64(fftSize)
	for i := range e.freqs {
		e.freqs[i] = float64(i-fftSize/2) * binWidth
	}

	return e
}

// FFTSize returns the configured FFT size.
func (e *Estimator) FFTSize() int { return e.fftSize }

// BinWidth returns the frequency spacing between adjacent bins in Hz.
func (e *Estimator) BinWidth() float64 { return e.sampleRate / float64(e.fftSize) }

// Freqs returns the baseband frequency axis: ascending, spaced by
// sampleRate/fftSize, with 0 Hz at index fftSize/2. The returned slice is
// shared; callers must not modify it.
func (e *Estimator) Freqs() []float64 { return e.freqs }

// PSD computes the power spectral density of samples in dB.
//
// The input is split into fftSize-length segments advancing by fftSize/2
// (50% overlap), each Hann-windowed, transformed and scaled by
// 1/(fftSize*sampleRate); the periodograms are averaged and the result
// shifted so the zero-frequency bin sits at the array center. If the
// input is shorter than one full segment, the single truncated segment
// is used as-is, zero-padded to the FFT size with no correction.
func (e *Estimator) PSD(samples []complex64) []float64 {
	for i := range e.accum {
		e.accum[i] = 0
	}

	hop := e.fftSize / 2
	count := 0
	for start := 0; start+e.fftSize <= len(samples); start += hop {
		e.accumulate(samples[start : start+e.fftSize])
		count++
	}
	if count == 0 {
		e.accumulate(samples)
		count = 1
	}

	scale := 1.0 / (float64(count) * float64(e.fftSize) * e.sampleRate)
	half := e.fftSize / 2
	for i := range e.shifted {
		e.shifted[i] = e.accum[(i+half)%e.fftSize] * scale
	}

	psdDB := make([]float64, e.fftSize)
	for i, p := range e.shifted {
		psdDB[i] = DB10(p)
	}
	return psdDB
}

func (e *Estimator) accumulate(seg []complex64) {
	for i := range e.seg {
		if i < len(seg) {
			e.seg[i] = complex(float64(real(seg[i]))*e.window[i], float64(imag(seg[i]))*e.window[i])
		} else {
			e.seg[i] = 0
		}
	}

	e.fft.Coefficients(e.coeff, e.seg)
	for i, c := range e.coeff {
		re, im := real(c), imag(c)
		e.accum[i] += re*re + im*im
	}
}
