package powermeter

import (
	"math"
	"math/cmplx"
)

// ThreePhasePower holds per-phase and aggregate power metrics for a
// three-phase system. Totals are arithmetic sums, which stays valid for
// unbalanced systems.
type ThreePhasePower struct {
	VRms [3]float64
	IRms [3]float64
	P    [3]float64
	Q    [3]float64
	S    [3]float64

	PTotal float64
	QTotal float64
	STotal float64
	PF     float64

	// Unbalance indicators: max absolute RMS deviation from the phase
	// average, divided by the average.
	VUnbalance float64
	IUnbalance float64
}

// CalculateThreePhasePower computes power metrics for three voltage-current
// phase pairs.
func CalculateThreePhasePower(v1, v2, v3, i1, i2, i3 []float64) ThreePhasePower {
	voltages := [3][]float64{v1, v2, v3}
	currents := [3][]float64{i1, i2, i3}

	var tp ThreePhasePower
	for p := 0; p < 3; p++ {
		tp.VRms[p] = RMS(voltages[p])
		tp.IRms[p] = RMS(currents[p])
		tp.P[p] = ActivePower(voltages[p], currents[p])
		tp.S[p] = tp.VRms[p] * tp.IRms[p]
		tp.Q[p] = math.Sqrt(math.Max(0, tp.S[p]*tp.S[p]-tp.P[p]*tp.P[p]))

		tp.PTotal += tp.P[p]
		tp.QTotal += tp.Q[p]
		tp.STotal += tp.S[p]
	}
	if tp.STotal > 0 {
		tp.PF = tp.PTotal / tp.STotal
	}

	tp.VUnbalance = rmsUnbalance(tp.VRms)
	tp.IUnbalance = rmsUnbalance(tp.IRms)
	return tp
}

func rmsUnbalance(rms [3]float64) float64 {
	avg := (rms[0] + rms[1] + rms[2]) / 3
	if avg <= 0 {
		return 0
	}
	maxDev := 0.0
	for _, r := range rms {
		if d := math.Abs(r - avg); d > maxDev {
			maxDev = d
		}
	}
	return maxDev / avg
}

// SequenceComponents is the Fortescue decomposition of three fundamental
// phasors into zero, positive and negative sequence sets.
type SequenceComponents struct {
	V0   float64 // zero-sequence magnitude
	VPos float64 // positive-sequence magnitude
	VNeg float64 // negative-sequence magnitude

	VUF      float64 // voltage unbalance factor |Vneg|/|Vpos|
	V0Factor float64 // |V0|/|Vpos|

	V0Phase   float64
	VPosPhase float64
	VNegPhase float64
}

// CalculateSequenceComponents resolves three per-phase fundamental RMS
// magnitudes and phase angles (radians) into symmetrical components.
func CalculateSequenceComponents(v1Rms, v2Rms, v3Rms, phase1, phase2, phase3 float64) SequenceComponents {
	p1 := cmplx.Rect(v1Rms, phase1)
	p2 := cmplx.Rect(v2Rms, phase2)
	p3 := cmplx.Rect(v3Rms, phase3)

	// Rotation operator a = e^(j*120 deg).
	a := cmplx.Rect(1, 2*math.Pi/3)
	a2 := a * a

	v0 := (p1 + p2 + p3) / 3
	vPos := (p1 + a*p2 + a2*p3) / 3
	vNeg := (p1 + a2*p2 + a*p3) / 3

	sc := SequenceComponents{
		V0:        cmplx.Abs(v0),
		VPos:      cmplx.Abs(vPos),
		VNeg:      cmplx.Abs(vNeg),
		V0Phase:   cmplx.Phase(v0),
		VPosPhase: cmplx.Phase(vPos),
		VNegPhase: cmplx.Phase(vNeg),
	}
	if sc.VPos > 0 {
		sc.VUF = sc.VNeg / sc.VPos
		sc.V0Factor = sc.V0 / sc.VPos
	}
	return sc
}

// ThreePhaseCPC aggregates three single-phase CPC decompositions plus the
// unbalance component computed from per-phase equivalent conductance
// deviation.
type ThreePhaseCPC struct {
	Phases [3]CPCComponents

	IATotal   float64
	IRTotal   float64
	ISTotal   float64
	IUTotal   float64 // unbalance current
	IGTotal   float64
	IRmsTotal float64

	PTotal  float64
	Q1Total float64
	DSTotal float64
	DUTotal float64 // unbalance power
	DGTotal float64
	STotal  float64

	LambdaA float64
	LambdaR float64
	LambdaS float64
	LambdaU float64
	LambdaG float64

	PF  float64
	DPF float64
	DF  float64
}

// CalculateThreePhaseCPC runs the CPC decomposition per phase and aggregates
// each component as the RMS sum across phases.
func CalculateThreePhaseCPC(v1, v2, v3, i1, i2, i3 []float64, samplingFreq, fundamentalFreq float64) ThreePhaseCPC {
	voltages := [3][]float64{v1, v2, v3}
	currents := [3][]float64{i1, i2, i3}

	var tc ThreePhaseCPC
	var vRms [3]float64
	for p := 0; p < 3; p++ {
		tc.Phases[p] = CalculateCPC(voltages[p], currents[p], samplingFreq, fundamentalFreq)
		vRms[p] = RMS(voltages[p])
	}

	rmsSum := func(pick func(CPCComponents) float64) float64 {
		var sumSq float64
		for p := 0; p < 3; p++ {
			x := pick(tc.Phases[p])
			sumSq += x * x
		}
		return math.Sqrt(sumSq)
	}

	tc.IATotal = rmsSum(func(c CPCComponents) float64 { return c.IA })
	tc.IRTotal = rmsSum(func(c CPCComponents) float64 { return c.IR })
	tc.ISTotal = rmsSum(func(c CPCComponents) float64 { return c.IS })
	tc.IGTotal = rmsSum(func(c CPCComponents) float64 { return c.IG })
	tc.IRmsTotal = rmsSum(func(c CPCComponents) float64 { return c.IRms })

	// Unbalance current: deviation of each phase from the balanced load with
	// the average equivalent conductance.
	var gAvg float64
	minV := math.Min(vRms[0], math.Min(vRms[1], vRms[2]))
	if minV > 0 {
		for p := 0; p < 3; p++ {
			gAvg += tc.Phases[p].IRms / vRms[p]
		}
		gAvg /= 3
	}
	var iu [3]float64
	var iuSumSq, duSumSq float64
	for p := 0; p < 3; p++ {
		if vRms[p] > 0 {
			iu[p] = math.Abs(tc.Phases[p].IRms - gAvg*vRms[p])
		}
		iuSumSq += iu[p] * iu[p]
		duSumSq += (vRms[p] * iu[p]) * (vRms[p] * iu[p])
	}
	tc.IUTotal = math.Sqrt(iuSumSq)
	tc.DUTotal = math.Sqrt(duSumSq)

	for p := 0; p < 3; p++ {
		tc.PTotal += tc.Phases[p].P
		tc.Q1Total += tc.Phases[p].Q1
		tc.STotal += tc.Phases[p].S
	}
	tc.DSTotal = rmsSum(func(c CPCComponents) float64 { return c.DS })
	tc.DGTotal = rmsSum(func(c CPCComponents) float64 { return c.DG })

	if tc.IRmsTotal > 0 {
		tc.LambdaA = tc.IATotal / tc.IRmsTotal
		tc.LambdaR = tc.IRTotal / tc.IRmsTotal
		tc.LambdaS = tc.ISTotal / tc.IRmsTotal
		tc.LambdaU = tc.IUTotal / tc.IRmsTotal
		tc.LambdaG = tc.IGTotal / tc.IRmsTotal
	}
	if tc.STotal > 0 {
		tc.PF = tc.PTotal / tc.STotal
	}
	tc.DPF = (tc.Phases[0].DPF + tc.Phases[1].DPF + tc.Phases[2].DPF) / 3
	tc.DF = (tc.Phases[0].DF + tc.Phases[1].DF + tc.Phases[2].DF) / 3

	return tc
}
