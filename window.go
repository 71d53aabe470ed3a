package powermeter

import "math"

// ADCConfig describes the converter on the transmitting device. It must
// match the hardware for unit conversion to be meaningful.
type ADCConfig struct {
	Bits             int
	SamplingFreq     float64
	SamplesPerPacket int
}

// DefaultADCConfig returns the 16-bit, 10 kHz configuration of the reference
// hardware.
func DefaultADCConfig() ADCConfig {
	return ADCConfig{
		Bits:             16,
		SamplingFreq:     10000,
		SamplesPerPacket: 1000,
	}
}

// MaxValue returns the full-scale ADC code, 2^bits - 1.
func (c ADCConfig) MaxValue() float64 {
	return math.Pow(2, float64(c.Bits)) - 1
}

// ToVolts converts one ADC code to volts at the converter input using the
// per-frame reference voltage. The conversion is linear, so it may equally be
// applied to RMS or mean aggregates computed in code domain.
func (c ADCConfig) ToVolts(code float64, vrefMv uint16) float64 {
	return (code / c.MaxValue()) * (float64(vrefMv) / 1000.0)
}

// AnalysisWindow is one fixed-size, gap-free run of samples in ADC-code
// domain, tagged with the reference voltage of the most recent contributing
// frame. Current is nil for single-channel layouts.
type AnalysisWindow struct {
	Voltage []float64
	Current []float64
	VrefMv  uint16
}

// Volts returns both channels converted to volts at the ADC input. Sensor
// scaling to mains volts and amperes is the caller's calibration concern.
func (w AnalysisWindow) Volts(adc ADCConfig) (voltage, current []float64) {
	voltage = make([]float64, len(w.Voltage))
	for i, code := range w.Voltage {
		voltage[i] = adc.ToVolts(code, w.VrefMv)
	}
	if w.Current != nil {
		current = make([]float64, len(w.Current))
		for i, code := range w.Current {
			current[i] = adc.ToVolts(code, w.VrefMv)
		}
	}
	return voltage, current
}

// WindowAssembler accumulates validated frames into fixed-size analysis
// windows, carrying remainder samples across frame boundaries. No sample is
// ever dropped or duplicated; sequence gaps are a statistic, not a data gate.
type WindowAssembler struct {
	size     int
	channels int
	voltage  []float64
	current  []float64
	vrefMv   uint16
}

// NewWindowAssembler creates an assembler emitting windows of size samples
// per channel.
func NewWindowAssembler(size, channels int) *WindowAssembler {
	return &WindowAssembler{size: size, channels: channels}
}

// Buffered returns the number of samples retained for the next window.
func (a *WindowAssembler) Buffered() int {
	return len(a.voltage)
}

// Reset discards any partially assembled window.
func (a *WindowAssembler) Reset() {
	a.voltage = nil
	a.current = nil
}

// Push appends one frame's samples and returns the windows completed by it,
// in acquisition order.
func (a *WindowAssembler) Push(f *Frame) []AnalysisWindow {
	for _, s := range f.Voltage {
		a.voltage = append(a.voltage, float64(s))
	}
	if a.channels == 2 {
		for _, s := range f.Current {
			a.current = append(a.current, float64(s))
		}
	}
	a.vrefMv = f.VrefMv

	var windows []AnalysisWindow
	for len(a.voltage) >= a.size {
		w := AnalysisWindow{
			Voltage: append([]float64(nil), a.voltage[:a.size]...),
			VrefMv:  a.vrefMv,
		}
		a.voltage = a.voltage[a.size:]
		if a.channels == 2 {
			w.Current = append([]float64(nil), a.current[:a.size]...)
			a.current = a.current[a.size:]
		}
		windows = append(windows, w)
	}
	return windows
}
