// Package powermeter implements the serial frame protocol and power-quality
// analysis pipeline for a dual-channel ADC power meter.
package powermeter

import (
	"bytes"
	"errors"
	"fmt"
)

// Custom error types
var (
	ErrSyncNotFound       = errors.New("start marker not found")
	ErrInvalidSampleCount = errors.New("invalid sample count")
	ErrTruncatedFrame     = errors.New("truncated frame")
	ErrInvalidTrailer     = errors.New("invalid end marker")
	ErrInvalidSize        = errors.New("invalid size")
)

// ChecksumError reports a CRC mismatch with both values for diagnostics.
type ChecksumError struct {
	Expected uint16 // CRC transmitted in the frame
	Computed uint16 // CRC computed over the received bytes
}

func (e *ChecksumError) Error() string {
	return fmt.Sprintf("checksum mismatch (0x%04X vs 0x%04X)", e.Expected, e.Computed)
}

// Layout describes one version of the wire frame format. The firmware went
// through incompatible protocol revisions; the receiver is configured with the
// layout matching the transmitting device.
type Layout struct {
	Name        string
	StartMarker uint16
	EndMarker   uint16
	Channels    int  // 1 = voltage only, 2 = voltage + current
	HasVref     bool // header carries a per-frame vref_mv field
}

// LayoutDual is the canonical dual-channel layout: voltage and current sample
// arrays, a per-frame ADC reference in millivolts, CRC16 over every header
// field after the start marker plus both sample arrays.
var LayoutDual = Layout{
	Name:        "dual",
	StartMarker: 0xFFFF,
	EndMarker:   0xFFFE,
	Channels:    2,
	HasVref:     true,
}

// LayoutLegacy is the original single-channel layout without a vref field.
var LayoutLegacy = Layout{
	Name:        "legacy",
	StartMarker: 0xAA55,
	EndMarker:   0x55AA,
	Channels:    1,
	HasVref:     false,
}

// headerSize returns the byte count of the header fields after the start
// marker (sequence, sample count and, for layouts that carry it, vref_mv).
func (l Layout) headerSize() int {
	if l.HasVref {
		return 6
	}
	return 4
}

// payloadSize returns the byte count of the sample arrays for n samples per
// channel.
func (l Layout) payloadSize(n int) int {
	return l.Channels * n * 2
}

// frameSize returns the total frame size including markers, CRC and trailer.
func (l Layout) frameSize(n int) int {
	return 2 + l.headerSize() + l.payloadSize(n) + 4
}

// markerBytes returns the start marker in wire (little-endian) order.
func (l Layout) markerBytes() [2]byte {
	return [2]byte{byte(l.StartMarker), byte(l.StartMarker >> 8)}
}

// Frame is one validated sample packet. Immutable once constructed.
type Frame struct {
	Sequence    uint16
	SampleCount uint16
	VrefMv      uint16
	Voltage     []uint16
	Current     []uint16
	CRC         uint16
}

// Pack converts the frame to wire bytes. Packing exists to support the
// simulator and test fixtures; the receiver only decodes.
func (f *Frame) Pack(layout Layout) ([]byte, error) {
	if int(f.SampleCount) != len(f.Voltage) {
		return nil, ErrInvalidSampleCount
	}
	if layout.Channels == 2 && len(f.Current) != len(f.Voltage) {
		return nil, ErrInvalidSampleCount
	}

	body := new(bytes.Buffer)
	if layout.HasVref {
		if err := writeBinary(body, f.Sequence, f.SampleCount, f.VrefMv); err != nil {
			return nil, err
		}
	} else {
		if err := writeBinary(body, f.Sequence, f.SampleCount); err != nil {
			return nil, err
		}
	}
	if err := writeBinary(body, f.Voltage); err != nil {
		return nil, err
	}
	if layout.Channels == 2 {
		if err := writeBinary(body, f.Current); err != nil {
			return nil, err
		}
	}

	f.CRC = CalcCRC(body.Bytes())

	buf := new(bytes.Buffer)
	if err := writeBinary(buf, layout.StartMarker); err != nil {
		return nil, err
	}
	buf.Write(body.Bytes())
	if err := writeBinary(buf, f.CRC, layout.EndMarker); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// Unpack parses wire bytes starting at the start marker into the frame. The
// buffer must contain the complete frame, ErrInvalidSize otherwise;
// expectedSamples guards the payload length before anything past the header is
// trusted.
func (f *Frame) Unpack(data []byte, layout Layout, expectedSamples int) error {
	if len(data) < 2+layout.headerSize() {
		return ErrInvalidSize
	}

	buf := bytes.NewReader(data)

	var marker uint16
	if err := readBinary(buf, &marker); err != nil {
		return err
	}
	if marker != layout.StartMarker {
		return ErrSyncNotFound
	}

	if err := readBinary(buf, &f.Sequence, &f.SampleCount); err != nil {
		return err
	}
	if layout.HasVref {
		if err := readBinary(buf, &f.VrefMv); err != nil {
			return err
		}
	}

	if int(f.SampleCount) != expectedSamples {
		return ErrInvalidSampleCount
	}
	if len(data) < layout.frameSize(expectedSamples) {
		return ErrInvalidSize
	}

	f.Voltage = make([]uint16, expectedSamples)
	if err := readBinary(buf, f.Voltage); err != nil {
		return err
	}
	if layout.Channels == 2 {
		f.Current = make([]uint16, expectedSamples)
		if err := readBinary(buf, f.Current); err != nil {
			return err
		}
	}

	var endMarker uint16
	if err := readBinary(buf, &f.CRC, &endMarker); err != nil {
		return err
	}
	if endMarker != layout.EndMarker {
		return ErrInvalidTrailer
	}

	// CRC covers the header fields after the start marker plus the payload.
	crcEnd := 2 + layout.headerSize() + layout.payloadSize(expectedSamples)
	computed := CalcCRC(data[2:crcEnd])
	if computed != f.CRC {
		return &ChecksumError{Expected: f.CRC, Computed: computed}
	}

	return nil
}
