package powermeter

import "math"

// CPCComponents is Czarnecki's Currents' Physical Components decomposition of
// one voltage-current pair: active, reactive, scattered and generated current
// with their power-side duals. The four components are only approximately
// orthogonal for arbitrary waveforms, so IA^2+IR^2+IS^2+IG^2 matches IRms^2
// within a numeric tolerance, not exactly.
type CPCComponents struct {
	IA   float64 // active current RMS
	IR   float64 // reactive current RMS
	IS   float64 // scattered current RMS
	IG   float64 // generated current RMS
	IRms float64

	P  float64 // active power
	Q1 float64 // fundamental reactive power
	DS float64 // scattered power
	DG float64 // generated power
	S  float64 // apparent power

	LambdaA float64
	LambdaR float64
	LambdaS float64
	LambdaG float64

	PF  float64
	DPF float64 // displacement power factor, fundamental only
	DF  float64 // distortion factor

	// Time-domain component waveforms, same length as the input window.
	ActiveCurrent    []float64
	ReactiveCurrent  []float64
	ScatteredCurrent []float64
	GeneratedCurrent []float64
}

// CalculateCPC decomposes one window's current against its voltage. Inputs
// are time-domain samples in physical units.
func CalculateCPC(v, i []float64, samplingFreq, fundamentalFreq float64) CPCComponents {
	n := len(v)
	c := CPCComponents{
		IRms: RMS(i),
		P:    ActivePower(v, i),
	}
	vRms := RMS(v)
	c.S = vRms * c.IRms

	vHarm := AnalyzeHarmonics(v, samplingFreq, fundamentalFreq, DefaultMaxHarmonic)
	iHarm := AnalyzeHarmonics(i, samplingFreq, fundamentalFreq, DefaultMaxHarmonic)

	v1 := vHarm.Fundamental()
	i1 := iHarm.Fundamental()
	v1Rms := v1.Magnitude / math.Sqrt2
	i1Rms := i1.Magnitude / math.Sqrt2
	phaseDiff := v1.Phase - i1.Phase

	// Active current: the portion a purely resistive load of equivalent
	// conductance G = P/Vrms^2 would draw.
	c.ActiveCurrent = make([]float64, n)
	if vRms > 0 {
		g := c.P / (vRms * vRms)
		for k, vk := range v {
			c.ActiveCurrent[k] = g * vk
		}
	}
	c.IA = RMS(c.ActiveCurrent)

	// Reactive current: fundamental quadrature component, reconstructed from
	// the fundamental voltage phasor.
	c.Q1 = v1Rms * i1Rms * math.Sin(phaseDiff)
	c.ReactiveCurrent = make([]float64, n)
	if math.Abs(c.Q1) > 1e-6 && v1Rms > 0 {
		b := c.Q1 / (v1Rms * v1Rms)
		for k := range c.ReactiveCurrent {
			t := float64(k) / samplingFreq
			v1t := v1.Magnitude * math.Sin(2*math.Pi*fundamentalFreq*t+v1.Phase)
			c.ReactiveCurrent[k] = b * v1t
		}
		c.IR = RMS(c.ReactiveCurrent)
	}

	// Scattered current: the conductance response to the voltage distortion,
	// reconstructed from harmonics 2..50.
	c.ScatteredCurrent = make([]float64, n)
	if vRms > 0 && v1Rms > 0 {
		ratio := i1Rms / v1Rms
		for k := range c.ScatteredCurrent {
			t := float64(k) / samplingFreq
			var vh float64
			for h := 2; h <= vHarm.MaxHarmonic(); h++ {
				harm := vHarm.At(h)
				vh += harm.Magnitude * math.Sin(2*math.Pi*fundamentalFreq*float64(h)*t+harm.Phase)
			}
			c.ScatteredCurrent[k] = ratio * vh
		}
	}
	c.IS = RMS(c.ScatteredCurrent)

	// Generated current: the residual the load injects beyond what the
	// voltage shape requires.
	c.GeneratedCurrent = make([]float64, n)
	for k := range c.GeneratedCurrent {
		c.GeneratedCurrent[k] = i[k] - c.ActiveCurrent[k] - c.ReactiveCurrent[k] - c.ScatteredCurrent[k]
	}
	c.IG = RMS(c.GeneratedCurrent)

	c.DS = vRms * c.IS
	c.DG = vRms * c.IG

	if c.IRms > 0 {
		c.LambdaA = c.IA / c.IRms
		c.LambdaR = c.IR / c.IRms
		c.LambdaS = c.IS / c.IRms
		c.LambdaG = c.IG / c.IRms
		c.DF = i1Rms / c.IRms
	}
	if c.S > 0 {
		c.PF = c.P / c.S
	}
	c.DPF = math.Cos(phaseDiff)

	return c
}
