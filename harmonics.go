package powermeter

import (
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"
)

// DefaultMaxHarmonic is the highest analyzed harmonic order, per IEC
// 61000-4-7.
const DefaultMaxHarmonic = 50

// Harmonic is the peak magnitude and phase of one spectral component.
type Harmonic struct {
	Magnitude float64
	Phase     float64 // radians
}

// HarmonicSet maps harmonic order to magnitude and phase. Index 0 holds the
// fundamental, so the set is total over 1..MaxHarmonic with no missing
// entries.
type HarmonicSet []Harmonic

// At returns the harmonic of order h (1 = fundamental).
func (s HarmonicSet) At(h int) Harmonic {
	return s[h-1]
}

// Fundamental returns harmonic 1.
func (s HarmonicSet) Fundamental() Harmonic {
	return s[0]
}

// MaxHarmonic returns the highest order in the set.
func (s HarmonicSet) MaxHarmonic() int {
	return len(s)
}

// AnalyzeHarmonics extracts per-harmonic magnitude and phase from a real
// signal via the one-sided FFT. Magnitudes are scaled by 2/N to recover the
// peak amplitude of a real sinusoid. Each harmonic reads the bin whose center
// frequency is nearest h*fundamentalFreq; window sizing is expected to make
// fundamentalFreq an exact multiple of the bin resolution, so the nearest bin
// is the exact one.
func AnalyzeHarmonics(signal []float64, samplingFreq, fundamentalFreq float64, maxHarmonic int) HarmonicSet {
	n := len(signal)
	fft := fourier.NewFFT(n)
	coeffs := fft.Coefficients(nil, signal)

	scale := 2.0 / float64(n)
	resolution := samplingFreq / float64(n)

	set := make(HarmonicSet, maxHarmonic)
	for h := 1; h <= maxHarmonic; h++ {
		target := fundamentalFreq * float64(h)
		idx := int(math.Round(target / resolution))
		if idx >= len(coeffs) {
			idx = len(coeffs) - 1
		}
		c := coeffs[idx]
		set[h-1] = Harmonic{
			Magnitude: scale * cmplx.Abs(c),
			Phase:     cmplx.Phase(c),
		}
	}
	return set
}
