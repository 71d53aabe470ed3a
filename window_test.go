package powermeter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rampFrame(seq uint16, start, n int) *Frame {
	voltage := make([]uint16, n)
	current := make([]uint16, n)
	for i := 0; i < n; i++ {
		voltage[i] = uint16(start + i)
		current[i] = uint16(start + i + 10000)
	}
	return &Frame{
		Sequence:    seq,
		SampleCount: uint16(n),
		VrefMv:      3300,
		Voltage:     voltage,
		Current:     current,
	}
}

func TestWindowAssemblerEmitCount(t *testing.T) {
	// n frames of k samples yield floor(n*k/W) windows with the remainder
	// buffered.
	const k, w = 300, 1000
	a := NewWindowAssembler(w, 2)

	emitted := 0
	for i := 0; i < 7; i++ {
		emitted += len(a.Push(rampFrame(uint16(i), i*k, k)))
	}
	assert.Equal(t, 2, emitted) // floor(7*300/1000)
	assert.Equal(t, 7*k-2*w, a.Buffered())
}

func TestWindowAssemblerSampleContinuity(t *testing.T) {
	const k, w = 300, 1000
	a := NewWindowAssembler(w, 2)

	var windows []AnalysisWindow
	for i := 0; i < 7; i++ {
		windows = append(windows, a.Push(rampFrame(uint16(i), i*k, k))...)
	}
	require.Len(t, windows, 2)

	// The ramp must continue unbroken across frame and window boundaries.
	for wi, win := range windows {
		require.Len(t, win.Voltage, w)
		require.Len(t, win.Current, w)
		for si, v := range win.Voltage {
			expected := float64(wi*w + si)
			assert.Equal(t, expected, v)
			assert.Equal(t, expected+10000, win.Current[si])
		}
	}
}

func TestWindowAssemblerVrefTag(t *testing.T) {
	a := NewWindowAssembler(4, 2)

	f1 := rampFrame(0, 0, 2)
	f1.VrefMv = 3300
	f2 := rampFrame(1, 2, 2)
	f2.VrefMv = 3150

	require.Empty(t, a.Push(f1))
	windows := a.Push(f2)
	require.Len(t, windows, 1)
	assert.Equal(t, uint16(3150), windows[0].VrefMv)
}

func TestWindowAssemblerSingleChannel(t *testing.T) {
	a := NewWindowAssembler(4, 1)

	f := rampFrame(0, 0, 4)
	f.Current = nil
	windows := a.Push(f)
	require.Len(t, windows, 1)
	assert.Nil(t, windows[0].Current)
}

func TestWindowAssemblerReset(t *testing.T) {
	a := NewWindowAssembler(10, 2)
	a.Push(rampFrame(0, 0, 4))
	require.Equal(t, 4, a.Buffered())

	a.Reset()
	assert.Zero(t, a.Buffered())
}

func TestADCToVolts(t *testing.T) {
	adc := DefaultADCConfig()
	assert.Equal(t, 65535.0, adc.MaxValue())
	assert.InDelta(t, 0.0, adc.ToVolts(0, 3300), 1e-12)
	assert.InDelta(t, 3.3, adc.ToVolts(65535, 3300), 1e-12)
	assert.InDelta(t, 1.65, adc.ToVolts(65535.0/2.0, 3300), 1e-4)

	// Conversion scales with the per-frame reference voltage.
	assert.InDelta(t, 3.0, adc.ToVolts(65535, 3000), 1e-12)
}

func TestAnalysisWindowVolts(t *testing.T) {
	adc := DefaultADCConfig()
	w := AnalysisWindow{
		Voltage: []float64{0, 65535},
		Current: []float64{65535.0 / 2.0},
		VrefMv:  3300,
	}

	voltage, current := w.Volts(adc)
	require.Len(t, voltage, 2)
	assert.InDelta(t, 0.0, voltage[0], 1e-12)
	assert.InDelta(t, 3.3, voltage[1], 1e-12)
	require.Len(t, current, 1)
	assert.InDelta(t, 1.65, current[0], 1e-4)
}
