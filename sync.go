package powermeter

import (
	"context"
	"fmt"
)

// Synchronizer locates frame start markers in a live byte stream. It reads
// one byte at a time so that every byte is considered as a potential marker
// start, including bytes that failed to complete a previous candidate.
type Synchronizer struct {
	src     ByteSource
	marker  [2]byte
	pending []byte
	one     [1]byte
}

// NewSynchronizer creates a synchronizer scanning for the layout's start
// marker in wire (little-endian) order.
func NewSynchronizer(src ByteSource, layout Layout) *Synchronizer {
	return &Synchronizer{
		src:    src,
		marker: layout.markerBytes(),
	}
}

// Unread pushes bytes back to the front of the stream. The receiver uses this
// to resume scanning from the byte after a rejected candidate's first marker
// byte.
func (s *Synchronizer) Unread(data []byte) {
	if len(data) == 0 {
		return
	}
	buf := make([]byte, 0, len(data)+len(s.pending))
	buf = append(buf, data...)
	buf = append(buf, s.pending...)
	s.pending = buf
}

// readByte returns the next stream byte. A timeout on the underlying source
// yields (0, false, nil).
func (s *Synchronizer) readByte() (byte, bool, error) {
	if len(s.pending) > 0 {
		b := s.pending[0]
		s.pending = s.pending[1:]
		return b, true, nil
	}
	n, err := s.src.Read(s.one[:])
	if err != nil {
		return 0, false, fmt.Errorf("transport read: %w", err)
	}
	if n == 0 {
		return 0, false, nil
	}
	return s.one[0], true, nil
}

// FindSync scans the stream until the two-byte start marker is found and
// returns the number of bytes consumed, marker included. With budget > 0 the
// scan gives up with ErrSyncNotFound once the budget is exhausted or the
// source times out; with budget <= 0 it waits through timeouts until the
// marker appears or ctx is cancelled.
func (s *Synchronizer) FindSync(ctx context.Context, budget int) (int, error) {
	scanned := 0
	matched := false

	for {
		if err := ctx.Err(); err != nil {
			return scanned, err
		}
		if budget > 0 && scanned >= budget {
			return scanned, ErrSyncNotFound
		}

		b, ok, err := s.readByte()
		if err != nil {
			return scanned, err
		}
		if !ok {
			if budget > 0 {
				return scanned, ErrSyncNotFound
			}
			continue
		}
		scanned++

		if matched {
			if b == s.marker[1] {
				return scanned, nil
			}
			// The failed second byte may itself start an overlapping marker.
			matched = b == s.marker[0]
			continue
		}
		matched = b == s.marker[0]
	}
}

// ReadFull reads exactly len(p) bytes after a located marker. A source
// timeout before the buffer is filled reports ErrTruncatedFrame; the partial
// byte count read so far is returned either way.
func (s *Synchronizer) ReadFull(ctx context.Context, p []byte) (int, error) {
	total := 0

	for len(s.pending) > 0 && total < len(p) {
		n := copy(p[total:], s.pending)
		s.pending = s.pending[n:]
		total += n
	}

	for total < len(p) {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		n, err := s.src.Read(p[total:])
		if err != nil {
			return total, fmt.Errorf("transport read: %w", err)
		}
		if n == 0 {
			return total, ErrTruncatedFrame
		}
		total += n
	}
	return total, nil
}
