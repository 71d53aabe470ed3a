package powermeter

import "math"

// GenerateSine synthesizes a sinusoid with optional harmonic content. The
// harmonics map keys are harmonic orders; each Harmonic carries the amplitude
// as a fraction of the fundamental and its phase offset. Used by the
// simulator and as a test-signal source; it is not part of the analysis core.
func GenerateSine(amplitude, frequency, phase, samplingFreq float64, numSamples int, harmonics map[int]Harmonic) []float64 {
	return generateSineAt(0, amplitude, frequency, phase, samplingFreq, numSamples, harmonics)
}

// generateSineAt synthesizes numSamples starting at time offset t0 so a
// transmitter can keep the waveform continuous across packets.
func generateSineAt(t0, amplitude, frequency, phase, samplingFreq float64, numSamples int, harmonics map[int]Harmonic) []float64 {
	signal := make([]float64, numSamples)
	for i := range signal {
		t := t0 + float64(i)/samplingFreq
		v := amplitude * math.Sin(2*math.Pi*frequency*t+phase)
		for order, h := range harmonics {
			if h.Magnitude == 0 {
				continue
			}
			v += amplitude * h.Magnitude * math.Sin(2*math.Pi*frequency*float64(order)*t+h.Phase)
		}
		signal[i] = v
	}
	return signal
}
