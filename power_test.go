package powermeter

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mainsVoltage() []float64 {
	return GenerateSine(230*math.Sqrt2, testMainsFreq, 0, testSamplingFreq, testWindowLen, nil)
}

func loadCurrent(rms, phase float64, harmonics map[int]Harmonic) []float64 {
	return GenerateSine(rms*math.Sqrt2, testMainsFreq, phase, testSamplingFreq, testWindowLen, harmonics)
}

func TestRMS(t *testing.T) {
	assert.Zero(t, RMS(nil))
	assert.InDelta(t, 230.0, RMS(mainsVoltage()), 1e-6)
	assert.InDelta(t, 5.0, RMS([]float64{5, -5, 5, -5}), 1e-12)
}

func TestActivePowerResistive(t *testing.T) {
	v := mainsVoltage()
	i := loadCurrent(2, 0, nil)
	assert.InDelta(t, 460.0, ActivePower(v, i), 1e-6)
}

func TestCrestFactorSine(t *testing.T) {
	assert.InDelta(t, math.Sqrt2, CrestFactor(mainsVoltage()), 1e-6)
	assert.Zero(t, CrestFactor([]float64{0, 0, 0}))
}

func TestCalculatePowerMetricsResistive(t *testing.T) {
	v := mainsVoltage()
	i := loadCurrent(2, 0, nil)

	m := CalculatePowerMetrics(v, i, DefaultAnalysisConfig())
	assert.InDelta(t, 230.0, m.VRms, 1e-6)
	assert.InDelta(t, 2.0, m.IRms, 1e-6)
	assert.InDelta(t, 460.0, m.P, 1e-6)
	assert.InDelta(t, 460.0, m.S, 1e-6)
	assert.InDelta(t, 0.0, m.Q, 1e-3)
	assert.InDelta(t, 1.0, m.PF, 1e-9)
	assert.InDelta(t, math.Sqrt2, m.CrestVoltage, 1e-6)
	assert.Less(t, m.THDVoltage, 1e-3)
	assert.Less(t, m.THDCurrent, 1e-3)
	assert.InDelta(t, 1.0, m.KFactor, 1e-6)
}

func TestCalculatePowerMetricsLaggingLoad(t *testing.T) {
	v := mainsVoltage()
	i := loadCurrent(2, -math.Pi/6, nil) // 30 degrees lagging

	m := CalculatePowerMetrics(v, i, DefaultAnalysisConfig())
	assert.InDelta(t, 460.0*math.Cos(math.Pi/6), m.P, 1e-6)
	assert.InDelta(t, 460.0, m.S, 1e-6)
	assert.InDelta(t, 230.0, m.Q, 1e-3)
	assert.InDelta(t, math.Cos(math.Pi/6), m.PF, 1e-9)
}

func TestCalculatePowerMetricsDistortedCurrent(t *testing.T) {
	v := mainsVoltage()
	i := loadCurrent(2, 0, map[int]Harmonic{3: {Magnitude: 0.2}})

	m := CalculatePowerMetrics(v, i, DefaultAnalysisConfig())
	assert.InDelta(t, 0.2, m.THDCurrent, 1e-6)

	// Third harmonic RMS is 0.2 * 2 A = 0.4 A against 10 A rated.
	assert.InDelta(t, 0.04, m.TDD, 1e-6)

	// K = sum((I_h_rms * h)^2) / I_rms^2 = (4 + 0.16*9) / 4.16.
	assert.InDelta(t, 5.44/4.16, m.KFactor, 1e-6)
}

func TestKFactorZeroCurrent(t *testing.T) {
	set := make(HarmonicSet, 50)
	assert.Equal(t, 1.0, KFactor(set, 0))
}

func TestTDDUnconfiguredRatedCurrent(t *testing.T) {
	set := make(HarmonicSet, 50)
	assert.Zero(t, TDD(set, 0))
}

func TestHarmonicPowersSumMatchesActivePower(t *testing.T) {
	v := mainsVoltage()
	i := loadCurrent(2, -math.Pi/6, map[int]Harmonic{3: {Magnitude: 0.2}})

	vh := AnalyzeHarmonics(v, testSamplingFreq, testMainsFreq, 50)
	ih := AnalyzeHarmonics(i, testSamplingFreq, testMainsFreq, 50)

	powers := HarmonicPowers(vh, ih)
	require.Len(t, powers, 50)

	var sum float64
	for _, p := range powers {
		sum += p
	}
	assert.InDelta(t, ActivePower(v, i), sum, 1e-3)

	// The voltage is clean, so only the fundamental carries power.
	assert.InDelta(t, sum, powers[0], 1e-3)
}
