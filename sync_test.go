package powermeter

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindSyncAfterNoise(t *testing.T) {
	noise := make([]byte, 37)
	for i := range noise {
		noise[i] = byte(i) // no 0xFF pairs
	}
	frame, err := testFrame(4).Pack(LayoutDual)
	require.NoError(t, err)

	src := &mockSource{data: append(noise, frame...)}
	sync := NewSynchronizer(src, LayoutDual)

	scanned, err := sync.FindSync(context.Background(), 10000)
	require.NoError(t, err)
	assert.Equal(t, len(noise)+2, scanned)
}

func TestFindSyncOverlappingMarker(t *testing.T) {
	// The byte that fails to complete a candidate marker must itself be
	// considered as a new marker start.
	src := &mockSource{data: []byte{0x55, 0x55, 0xAA}}
	sync := NewSynchronizer(src, LayoutLegacy)

	scanned, err := sync.FindSync(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, 3, scanned)
}

func TestFindSyncRepeatedFirstByte(t *testing.T) {
	// 0xFF 0xFF marker found immediately inside a run of 0xFF bytes.
	src := &mockSource{data: []byte{0x01, 0xFF, 0xFF, 0xFF}}
	sync := NewSynchronizer(src, LayoutDual)

	scanned, err := sync.FindSync(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, 3, scanned)
}

func TestFindSyncBudgetExhausted(t *testing.T) {
	noise := make([]byte, 64)
	src := &mockSource{data: noise}
	sync := NewSynchronizer(src, LayoutDual)

	_, err := sync.FindSync(context.Background(), 10)
	assert.ErrorIs(t, err, ErrSyncNotFound)
}

func TestFindSyncTimeoutInBoundedMode(t *testing.T) {
	src := &mockSource{} // immediate timeout
	sync := NewSynchronizer(src, LayoutDual)

	_, err := sync.FindSync(context.Background(), 10000)
	assert.ErrorIs(t, err, ErrSyncNotFound)
}

func TestFindSyncContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	src := &mockSource{}
	sync := NewSynchronizer(src, LayoutDual)

	_, err := sync.FindSync(ctx, 0)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestReadFullTruncated(t *testing.T) {
	src := &mockSource{data: []byte{1, 2, 3}}
	sync := NewSynchronizer(src, LayoutDual)

	buf := make([]byte, 6)
	n, err := sync.ReadFull(context.Background(), buf)
	assert.ErrorIs(t, err, ErrTruncatedFrame)
	assert.Equal(t, 3, n)
}

func TestReadFullAcrossChunks(t *testing.T) {
	src := &mockSource{data: []byte{1, 2, 3, 4, 5, 6}, chunk: 2}
	sync := NewSynchronizer(src, LayoutDual)

	buf := make([]byte, 6)
	n, err := sync.ReadFull(context.Background(), buf)
	require.NoError(t, err)
	assert.Equal(t, 6, n)
	assert.Equal(t, []byte{1, 2, 3, 4, 5, 6}, buf)
}

func TestUnreadRescanned(t *testing.T) {
	src := &mockSource{data: []byte{0xAA}}
	sync := NewSynchronizer(src, LayoutLegacy)

	// Pushed-back bytes are scanned before fresh stream bytes; 0x55 from the
	// pushback plus 0xAA from the source completes the legacy marker.
	sync.Unread([]byte{0x01, 0x55})

	scanned, err := sync.FindSync(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, 3, scanned)
}
