package powermeter

import (
	"context"
	"io"
	"math"
	"time"

	log "github.com/sirupsen/logrus"
)

// ChannelSpec describes one synthesized analog channel in sensor-output
// volts.
type ChannelSpec struct {
	AmplitudeRMS float64 // RMS of the fundamental at the sensor output
	PhaseShift   float64 // radians; negative = lagging
	DCBias       float64 // sensor output bias, typically VCC/2
	// Harmonics maps harmonic order to amplitude as a fraction of the
	// fundamental.
	Harmonics map[int]float64
}

// TransmitterConfig describes the synthetic stream: waveforms, ADC model and
// wire layout.
type TransmitterConfig struct {
	Layout    Layout
	ADC       ADCConfig
	MainsFreq float64
	VrefMv    uint16
	Voltage   ChannelSpec
	Current   ChannelSpec
}

// DefaultTransmitterConfig returns a resistive 230 V / 2 A load as seen
// through ZMPT101B and ACS712-05B sensors: 1.0 V RMS voltage channel, 0.37 V
// RMS current channel, both biased at 1.65 V.
func DefaultTransmitterConfig() TransmitterConfig {
	return TransmitterConfig{
		Layout:    LayoutDual,
		ADC:       DefaultADCConfig(),
		MainsFreq: 50,
		VrefMv:    3300,
		Voltage:   ChannelSpec{AmplitudeRMS: 1.0, DCBias: 1.65},
		Current:   ChannelSpec{AmplitudeRMS: 0.37, DCBias: 1.65},
	}
}

// Transmitter synthesizes ADC frames and writes them to a port at the packet
// rate. It exists to exercise the receiver without real hardware and mirrors
// the firmware's transmit path exactly.
type Transmitter struct {
	w          io.Writer
	cfg        TransmitterConfig
	sequence   uint16
	timeOffset float64
	logger     *log.Logger
	metrics    MetricsRecorder
}

// NewTransmitter creates a transmitter writing wire frames to w.
func NewTransmitter(w io.Writer, cfg TransmitterConfig) *Transmitter {
	return &Transmitter{w: w, cfg: cfg}
}

// SetLogger sets the logger for the transmitter.
func (t *Transmitter) SetLogger(logger *log.Logger) {
	t.logger = logger
}

// SetMetrics sets the metrics recorder for the transmitter.
func (t *Transmitter) SetMetrics(m MetricsRecorder) {
	t.metrics = m
}

func (t *Transmitter) log() *log.Logger {
	if t.logger == nil {
		t.logger = log.New()
	}
	return t.logger
}

// voltsToCode converts a sensor voltage to an ADC code, clipped to the
// converter range.
func (t *Transmitter) voltsToCode(volts float64) uint16 {
	vref := float64(t.cfg.VrefMv) / 1000.0
	code := math.Round(volts / vref * t.cfg.ADC.MaxValue())
	if code < 0 {
		code = 0
	}
	if full := t.cfg.ADC.MaxValue(); code > full {
		code = full
	}
	return uint16(code)
}

func (t *Transmitter) channelSamples(spec ChannelSpec) []uint16 {
	harmonics := make(map[int]Harmonic, len(spec.Harmonics))
	for order, frac := range spec.Harmonics {
		harmonics[order] = Harmonic{Magnitude: frac}
	}
	signal := generateSineAt(
		t.timeOffset,
		spec.AmplitudeRMS*math.Sqrt2,
		t.cfg.MainsFreq,
		spec.PhaseShift,
		t.cfg.ADC.SamplingFreq,
		t.cfg.ADC.SamplesPerPacket,
		harmonics,
	)
	codes := make([]uint16, len(signal))
	for k, v := range signal {
		codes[k] = t.voltsToCode(spec.DCBias + v)
	}
	return codes
}

// BuildFrame synthesizes the next frame and advances the sequence number and
// waveform time so consecutive packets form a continuous signal.
func (t *Transmitter) BuildFrame() *Frame {
	frame := &Frame{
		Sequence:    t.sequence,
		SampleCount: uint16(t.cfg.ADC.SamplesPerPacket),
		VrefMv:      t.cfg.VrefMv,
		Voltage:     t.channelSamples(t.cfg.Voltage),
	}
	if t.cfg.Layout.Channels == 2 {
		frame.Current = t.channelSamples(t.cfg.Current)
	}

	t.sequence++
	t.timeOffset += float64(t.cfg.ADC.SamplesPerPacket) / t.cfg.ADC.SamplingFreq
	return frame
}

// Send builds, packs and writes one frame.
func (t *Transmitter) Send() error {
	frame := t.BuildFrame()
	data, err := frame.Pack(t.cfg.Layout)
	if err != nil {
		return err
	}
	if _, err := t.w.Write(data); err != nil {
		return err
	}
	if t.metrics != nil {
		t.metrics.RecordFrame(len(data))
	}
	return nil
}

// Run transmits frames at the packet rate until ctx is cancelled. A packet
// carries SamplesPerPacket/SamplingFreq seconds of signal, which sets the
// tick period.
func (t *Transmitter) Run(ctx context.Context) error {
	period := time.Duration(float64(t.cfg.ADC.SamplesPerPacket) / t.cfg.ADC.SamplingFreq * float64(time.Second))
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	t.log().WithFields(log.Fields{
		"layout":  t.cfg.Layout.Name,
		"samples": t.cfg.ADC.SamplesPerPacket,
		"period":  period,
	}).Info("Transmitter started")

	sent := 0
	for {
		select {
		case <-ctx.Done():
			t.log().WithField("frames", sent).Info("Transmitter stopped")
			return nil
		case <-ticker.C:
			if err := t.Send(); err != nil {
				t.log().WithError(err).Error("Error sending frame")
				return err
			}
			sent++
		}
	}
}
