package powermeter

import (
	"context"
	"encoding/binary"
	"errors"
	"sync/atomic"

	log "github.com/sirupsen/logrus"
)

// ReceiverConfig holds the stream parameters that must match the transmitting
// device.
type ReceiverConfig struct {
	Layout          Layout
	ExpectedSamples int
	WindowSize      int
	// SyncByteBudget bounds the marker search per frame; <= 0 scans without
	// limit (continuous mode).
	SyncByteBudget int
	// WindowQueueSize is the capacity of the window handoff channel. When the
	// queue is full the oldest pending window is dropped so a slow consumer
	// cannot stall frame reception.
	WindowQueueSize int
	// DefaultVrefMv substitutes for layouts whose header carries no vref
	// field.
	DefaultVrefMv uint16
}

// DefaultReceiverConfig returns the canonical dual-channel stream settings:
// 1000 samples per packet at 10 kHz, 2000-sample analysis windows (200 ms, 10
// mains cycles at 50 Hz per IEC 61000-4-7).
func DefaultReceiverConfig() ReceiverConfig {
	return ReceiverConfig{
		Layout:          LayoutDual,
		ExpectedSamples: 1000,
		WindowSize:      2000,
		SyncByteBudget:  10000,
		WindowQueueSize: 8,
		DefaultVrefMv:   3300,
	}
}

// Stats is a read-only snapshot of the receiver counters.
type Stats struct {
	PacketsTotal       uint64
	PacketsDropped     uint64
	ChecksumErrors     uint64
	TruncatedFrames    uint64
	InvalidSampleCount uint64
	InvalidTrailer     uint64
	WindowsEmitted     uint64
	WindowsDiscarded   uint64
}

// sequenceTracker detects dropped packets from sequence discontinuities. It
// is purely observational and never rejects a frame.
type sequenceTracker struct {
	last uint16
	has  bool
}

// Observe returns how many packets were dropped before seq arrived.
func (t *sequenceTracker) Observe(seq uint16) int {
	dropped := 0
	if t.has {
		expected := t.last + 1
		if seq != expected {
			dropped = int(seq - expected)
		}
	}
	t.last = seq
	t.has = true
	return dropped
}

// Receiver owns one serial stream: marker synchronization, frame validation,
// sequence tracking and window assembly. All of its state is confined to the
// goroutine running the decode loop.
type Receiver struct {
	cfg       ReceiverConfig
	src       ByteSource
	sync      *Synchronizer
	assembler *WindowAssembler
	tracker   sequenceTracker
	windows   chan AnalysisWindow
	logger    *log.Logger
	metrics   MetricsRecorder

	packetsTotal       atomic.Uint64
	packetsDropped     atomic.Uint64
	checksumErrors     atomic.Uint64
	truncatedFrames    atomic.Uint64
	invalidSampleCount atomic.Uint64
	invalidTrailer     atomic.Uint64
	windowsEmitted     atomic.Uint64
	windowsDiscarded   atomic.Uint64
}

// NewReceiver creates a receiver reading from src. The source is owned by the
// receiver once Run is called and is closed on exit.
func NewReceiver(src ByteSource, cfg ReceiverConfig) *Receiver {
	if cfg.WindowQueueSize <= 0 {
		cfg.WindowQueueSize = 1
	}
	return &Receiver{
		cfg:       cfg,
		src:       src,
		sync:      NewSynchronizer(src, cfg.Layout),
		assembler: NewWindowAssembler(cfg.WindowSize, cfg.Layout.Channels),
		windows:   make(chan AnalysisWindow, cfg.WindowQueueSize),
	}
}

// SetLogger sets the logger for the receiver.
func (r *Receiver) SetLogger(logger *log.Logger) {
	r.logger = logger
}

// SetMetrics sets the metrics recorder for the receiver.
func (r *Receiver) SetMetrics(m MetricsRecorder) {
	r.metrics = m
}

// log returns the logger or creates a default one
func (r *Receiver) log() *log.Logger {
	if r.logger == nil {
		r.logger = log.New()
	}
	return r.logger
}

// Windows returns the channel of completed analysis windows, emitted in
// strict acquisition order.
func (r *Receiver) Windows() <-chan AnalysisWindow {
	return r.windows
}

// Stats returns a snapshot of the receiver counters. Safe to call from any
// goroutine while the decode loop runs.
func (r *Receiver) Stats() Stats {
	return Stats{
		PacketsTotal:       r.packetsTotal.Load(),
		PacketsDropped:     r.packetsDropped.Load(),
		ChecksumErrors:     r.checksumErrors.Load(),
		TruncatedFrames:    r.truncatedFrames.Load(),
		InvalidSampleCount: r.invalidSampleCount.Load(),
		InvalidTrailer:     r.invalidTrailer.Load(),
		WindowsEmitted:     r.windowsEmitted.Load(),
		WindowsDiscarded:   r.windowsDiscarded.Load(),
	}
}

// IsFrameReject reports whether err is a recoverable per-frame rejection: the
// candidate is discarded, scanning resumes, acquisition continues.
func IsFrameReject(err error) bool {
	var crcErr *ChecksumError
	return errors.Is(err, ErrSyncNotFound) ||
		errors.Is(err, ErrInvalidSampleCount) ||
		errors.Is(err, ErrTruncatedFrame) ||
		errors.Is(err, ErrInvalidTrailer) ||
		errors.As(err, &crcErr)
}

func (r *Receiver) recordError(errorType string) {
	if r.metrics != nil {
		r.metrics.RecordFrameError(errorType)
	}
}

// ReadFrame reads and validates the next frame from the stream. Rejected
// candidates return a typed error satisfying IsFrameReject; scanning resumes
// from the byte after the rejected candidate's first marker byte, since a
// genuine marker could sit inside the failed payload. Transport errors and
// context cancellation are returned as-is.
func (r *Receiver) ReadFrame(ctx context.Context) (*Frame, error) {
	layout := r.cfg.Layout
	expected := r.cfg.ExpectedSamples

	scanned, err := r.sync.FindSync(ctx, r.cfg.SyncByteBudget)
	if err != nil {
		if errors.Is(err, ErrSyncNotFound) {
			r.recordError("sync")
		}
		return nil, err
	}
	if r.metrics != nil {
		r.metrics.RecordBytesRead(scanned)
	}

	marker := layout.markerBytes()
	candidate := make([]byte, layout.frameSize(expected))
	candidate[0] = marker[0]
	candidate[1] = marker[1]

	// Header first: the sample count must be validated before the payload
	// length can be trusted.
	headerEnd := 2 + layout.headerSize()
	n, err := r.sync.ReadFull(ctx, candidate[2:headerEnd])
	if err != nil {
		if errors.Is(err, ErrTruncatedFrame) {
			r.truncatedFrames.Add(1)
			r.recordError("truncated")
			r.sync.Unread(candidate[1 : 2+n])
		}
		return nil, err
	}

	sampleCount := binary.LittleEndian.Uint16(candidate[4:6])
	if int(sampleCount) != expected {
		r.invalidSampleCount.Add(1)
		r.recordError("sample_count")
		r.log().WithFields(log.Fields{
			"sample_count": sampleCount,
			"expected":     expected,
		}).Warn("Unexpected sample count, resynchronizing")
		r.sync.Unread(candidate[1:headerEnd])
		return nil, ErrInvalidSampleCount
	}

	n, err = r.sync.ReadFull(ctx, candidate[headerEnd:])
	if err != nil {
		if errors.Is(err, ErrTruncatedFrame) {
			r.truncatedFrames.Add(1)
			r.recordError("truncated")
			r.sync.Unread(candidate[1 : headerEnd+n])
		}
		return nil, err
	}
	if r.metrics != nil {
		r.metrics.RecordBytesRead(len(candidate) - 2)
	}

	frame := &Frame{}
	if err := frame.Unpack(candidate, layout, expected); err != nil {
		var crcErr *ChecksumError
		switch {
		case errors.As(err, &crcErr):
			r.checksumErrors.Add(1)
			r.recordError("checksum")
			r.log().WithFields(log.Fields{
				"expected": crcErr.Expected,
				"computed": crcErr.Computed,
			}).Warn("Checksum mismatch")
		case errors.Is(err, ErrInvalidTrailer):
			r.invalidTrailer.Add(1)
			r.recordError("trailer")
			r.log().Warn("Invalid end marker")
		}
		r.sync.Unread(candidate[1:])
		return nil, err
	}
	if !layout.HasVref {
		frame.VrefMv = r.cfg.DefaultVrefMv
	}

	if dropped := r.tracker.Observe(frame.Sequence); dropped > 0 {
		r.packetsDropped.Add(uint64(dropped))
		if r.metrics != nil {
			r.metrics.RecordSequenceGap(dropped)
		}
		r.log().WithFields(log.Fields{
			"dropped":  dropped,
			"sequence": frame.Sequence,
		}).Warn("Dropped packets detected")
	}

	r.packetsTotal.Add(1)
	if r.metrics != nil {
		r.metrics.RecordFrame(len(candidate))
	}

	return frame, nil
}

// emit hands a window to the consumer, dropping the oldest pending window
// when the queue is full. Real-time telemetry favors recency over
// completeness.
func (r *Receiver) emit(w AnalysisWindow) {
	for {
		select {
		case r.windows <- w:
			r.windowsEmitted.Add(1)
			if r.metrics != nil {
				r.metrics.RecordWindowEmitted()
			}
			return
		default:
		}
		select {
		case <-r.windows:
			r.windowsDiscarded.Add(1)
			if r.metrics != nil {
				r.metrics.RecordWindowDiscarded()
			}
		default:
		}
	}
}

// Run executes the decode loop until ctx is cancelled (returns nil) or the
// transport fails (returns the error). The transport is released and partial
// window buffers are discarded on exit; per-frame rejections never terminate
// the loop.
func (r *Receiver) Run(ctx context.Context) error {
	defer func() {
		r.assembler.Reset()
		close(r.windows)
		_ = r.src.Close()
	}()

	for {
		if err := ctx.Err(); err != nil {
			return nil
		}

		frame, err := r.ReadFrame(ctx)
		if err != nil {
			if IsFrameReject(err) {
				continue
			}
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			r.log().WithError(err).Error("Transport failure, stopping receiver")
			return err
		}

		for _, w := range r.assembler.Push(frame) {
			r.emit(w)
		}

		if total := r.packetsTotal.Load(); total%100 == 0 {
			stats := r.Stats()
			sampleStats := CalculateStats(frame.Voltage)
			r.log().WithFields(log.Fields{
				"packets":  stats.PacketsTotal,
				"dropped":  stats.PacketsDropped,
				"checksum": stats.ChecksumErrors,
				"windows":  stats.WindowsEmitted,
				"v_mean":   sampleStats.Mean,
				"v_std":    sampleStats.Std,
			}).Debug("Receiver status")
		}
	}
}
