package powermeter

import (
	"fmt"
	"io"
	"time"

	"go.bug.st/serial"
)

// ByteSource is the transport boundary: read up to len(p) bytes with the
// configured timeout (a timeout returns 0 bytes and a nil error), plus buffer
// reset and release. go.bug.st/serial ports satisfy it directly.
type ByteSource interface {
	io.Reader
	io.Closer
	ResetInputBuffer() error
}

// SerialConfig holds the port parameters the receiver cares about. Framing is
// fixed at 8N1 to match the firmware UART.
type SerialConfig struct {
	BaudRate    int
	ReadTimeout time.Duration
}

// DefaultSerialConfig returns the firmware's UART settings.
func DefaultSerialConfig() SerialConfig {
	return SerialConfig{
		BaudRate:    921600,
		ReadTimeout: time.Second,
	}
}

// OpenSerial opens the named serial port as a ByteSource, applies the read
// timeout and flushes stale input.
func OpenSerial(portName string, cfg SerialConfig) (ByteSource, error) {
	mode := &serial.Mode{
		BaudRate: cfg.BaudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	port, err := serial.Open(portName, mode)
	if err != nil {
		return nil, fmt.Errorf("open serial port %s: %w", portName, err)
	}
	if err := port.SetReadTimeout(cfg.ReadTimeout); err != nil {
		_ = port.Close()
		return nil, fmt.Errorf("set read timeout: %w", err)
	}
	if err := port.ResetInputBuffer(); err != nil {
		_ = port.Close()
		return nil, fmt.Errorf("reset input buffer: %w", err)
	}

	return port, nil
}
