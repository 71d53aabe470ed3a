package powermeter

import "math"

// AnalysisConfig holds the parameters of the numeric analysis stage.
type AnalysisConfig struct {
	SamplingFreq    float64
	FundamentalFreq float64
	MaxHarmonic     int
	// RatedCurrent normalizes TDD per IEEE 519. It is an external
	// configuration value, in the same unit as the current samples.
	RatedCurrent float64
}

// DefaultAnalysisConfig returns 50 Hz mains sampled at 10 kHz with harmonics
// up to order 50.
func DefaultAnalysisConfig() AnalysisConfig {
	return AnalysisConfig{
		SamplingFreq:    10000,
		FundamentalFreq: 50,
		MaxHarmonic:     DefaultMaxHarmonic,
		RatedCurrent:    10,
	}
}

// PowerMetrics are the scalar power-quality aggregates of one analysis
// window.
type PowerMetrics struct {
	VRms float64
	IRms float64
	P    float64 // active power, W
	S    float64 // apparent power, VA
	Q    float64 // reactive power, VAR
	PF   float64

	THDVoltage   float64
	THDCurrent   float64
	TDD          float64
	CrestVoltage float64
	CrestCurrent float64
	KFactor      float64
}

// RMS returns the root-mean-square value of x.
func RMS(x []float64) float64 {
	if len(x) == 0 {
		return 0
	}
	var sum float64
	for _, v := range x {
		sum += v * v
	}
	return math.Sqrt(sum / float64(len(x)))
}

// ActivePower returns the mean instantaneous power of a voltage-current pair.
func ActivePower(v, i []float64) float64 {
	n := len(v)
	if len(i) < n {
		n = len(i)
	}
	if n == 0 {
		return 0
	}
	var sum float64
	for k := 0; k < n; k++ {
		sum += v[k] * i[k]
	}
	return sum / float64(n)
}

// CrestFactor returns the peak-to-RMS ratio of x.
func CrestFactor(x []float64) float64 {
	rms := RMS(x)
	if rms == 0 {
		return 0
	}
	var peak float64
	for _, v := range x {
		if a := math.Abs(v); a > peak {
			peak = a
		}
	}
	return peak / rms
}

// THD returns the total harmonic distortion ratio: distortion energy over the
// fundamental. Returns 0 when the fundamental is absent or zero.
func THD(harmonics HarmonicSet) float64 {
	if len(harmonics) == 0 || harmonics.Fundamental().Magnitude == 0 {
		return 0
	}
	var sumSq float64
	for h := 2; h <= harmonics.MaxHarmonic(); h++ {
		m := harmonics.At(h).Magnitude
		sumSq += m * m
	}
	return math.Sqrt(sumSq) / harmonics.Fundamental().Magnitude
}

// TDD returns the total demand distortion of a current spectrum: harmonic RMS
// content normalized to the rated current per IEEE 519.
func TDD(harmonics HarmonicSet, ratedCurrent float64) float64 {
	if ratedCurrent <= 0 {
		return 0
	}
	var sumSq float64
	for h := 2; h <= harmonics.MaxHarmonic(); h++ {
		m := harmonics.At(h).Magnitude
		sumSq += m * m
	}
	return math.Sqrt(sumSq) / math.Sqrt2 / ratedCurrent
}

// KFactor returns the transformer derating index, weighting each harmonic
// current by the square of its order. Returns 1 for zero current.
func KFactor(harmonics HarmonicSet, iRms float64) float64 {
	if iRms <= 0 {
		return 1
	}
	var sum float64
	for h := 1; h <= harmonics.MaxHarmonic(); h++ {
		ihRms := harmonics.At(h).Magnitude / math.Sqrt2
		sum += ihRms * ihRms * float64(h) * float64(h)
	}
	return sum / (iRms * iRms)
}

// HarmonicPowers returns the per-harmonic active power P_h = V_h * I_h *
// cos(phase difference) with both magnitudes converted to RMS. The sum over
// all orders approximates the time-domain active power and serves as a
// consistency check.
func HarmonicPowers(voltage, current HarmonicSet) []float64 {
	n := voltage.MaxHarmonic()
	if current.MaxHarmonic() < n {
		n = current.MaxHarmonic()
	}
	powers := make([]float64, n)
	for h := 1; h <= n; h++ {
		vh := voltage.At(h)
		ih := current.At(h)
		powers[h-1] = (vh.Magnitude / math.Sqrt2) * (ih.Magnitude / math.Sqrt2) *
			math.Cos(vh.Phase-ih.Phase)
	}
	return powers
}

// CalculatePowerMetrics computes all scalar aggregates for one window of
// voltage and current samples in physical units.
func CalculatePowerMetrics(v, i []float64, cfg AnalysisConfig) PowerMetrics {
	m := PowerMetrics{
		VRms: RMS(v),
		IRms: RMS(i),
		P:    ActivePower(v, i),
	}
	m.S = m.VRms * m.IRms
	m.Q = math.Sqrt(math.Max(0, m.S*m.S-m.P*m.P))
	if m.S > 0 {
		m.PF = m.P / m.S
	}

	vHarm := AnalyzeHarmonics(v, cfg.SamplingFreq, cfg.FundamentalFreq, cfg.MaxHarmonic)
	iHarm := AnalyzeHarmonics(i, cfg.SamplingFreq, cfg.FundamentalFreq, cfg.MaxHarmonic)

	m.THDVoltage = THD(vHarm)
	m.THDCurrent = THD(iHarm)
	m.TDD = TDD(iHarm, cfg.RatedCurrent)
	m.CrestVoltage = CrestFactor(v)
	m.CrestCurrent = CrestFactor(i)
	m.KFactor = KFactor(iHarm, m.IRms)

	return m
}
