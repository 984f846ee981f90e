package fb

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeDevice writes a regular file standing in for a framebuffer: it is
// re-readable at offset zero, which is all the grabber relies on.
func fakeDevice(t *testing.T, content []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fb0")
	require.NoError(t, os.WriteFile(path, content, 0o644))
	return path
}

func testGeom(path string) Geometry {
	// 4x2 @ 16bpp = 16 bytes per frame
	return Geometry{Width: 4, Height: 2, Depth: 16, DevicePath: path}
}

func TestOpenAndCapture(t *testing.T) {
	content := bytes.Repeat([]byte{0xAB, 0xCD}, 8)
	g, err := Open(testGeom(fakeDevice(t, content)))
	require.NoError(t, err)
	defer func() { _ = g.Close() }()

	raw, err := g.Capture(context.Background())
	require.NoError(t, err)
	assert.Equal(t, content, raw)
}

func TestCaptureSeesDeviceUpdates(t *testing.T) {
	path := fakeDevice(t, bytes.Repeat([]byte{0x00}, 16))
	g, err := Open(testGeom(path))
	require.NoError(t, err)
	defer func() { _ = g.Close() }()

	_, err = g.Capture(context.Background())
	require.NoError(t, err)

	next := bytes.Repeat([]byte{0xFF}, 16)
	require.NoError(t, os.WriteFile(path, next, 0o644))

	raw, err := g.Capture(context.Background())
	require.NoError(t, err)
	assert.Equal(t, next, raw)
}

func TestCaptureShortReadFallsBackToPreviousFrame(t *testing.T) {
	content := bytes.Repeat([]byte{0x42}, 16)
	path := fakeDevice(t, content)
	g, err := Open(testGeom(path))
	require.NoError(t, err)
	defer func() { _ = g.Close() }()

	first, err := g.Capture(context.Background())
	require.NoError(t, err)
	want := append([]byte(nil), first...)

	// Device suddenly yields fewer bytes than one frame.
	require.NoError(t, os.Truncate(path, 4))

	raw, err := g.Capture(context.Background())
	require.NoError(t, err, "short read must be recovered, not propagated")
	assert.Equal(t, want, raw, "previous frame must be re-served unchanged")
}

func TestOpenRejectsTooSmallDevice(t *testing.T) {
	_, err := Open(testGeom(fakeDevice(t, make([]byte, 4))))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "requires")
}

func TestOpenRejectsMissingDevice(t *testing.T) {
	_, err := Open(testGeom("/nonexistent/fb9"))
	assert.Error(t, err)
}

func TestOpenRejectsInvalidGeometry(t *testing.T) {
	g := testGeom("/dev/fb0")
	g.Depth = 12
	_, err := Open(g)
	assert.Error(t, err)
}

func TestCaptureAfterCloseIsPermanent(t *testing.T) {
	g, err := Open(testGeom(fakeDevice(t, make([]byte, 16))))
	require.NoError(t, err)
	require.NoError(t, g.Close())

	_, err = g.Capture(context.Background())
	assert.Error(t, err, "closed device is a permanent failure")
}

func TestCaptureHonorsContextDuringBackoff(t *testing.T) {
	path := fakeDevice(t, make([]byte, 16))
	g, err := Open(testGeom(path))
	require.NoError(t, err)
	defer func() { _ = g.Close() }()
	g.backoff = time.Hour

	require.NoError(t, os.Truncate(path, 0))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = g.Capture(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
