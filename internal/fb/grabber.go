// SPDX-License-Identifier: MIT

package fb

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/fbmirror/fbmirror/internal/log"
	"github.com/fbmirror/fbmirror/internal/metrics"
)

const (
	defaultMaxRetries = 3
	defaultBackoff    = 10 * time.Millisecond
)

// ErrNoFrame is returned when a capture fails and no previous good frame
// exists to fall back on.
var ErrNoFrame = errors.New("no frame available")

// Grabber owns the framebuffer device handle. It is driven by the single
// capture loop and must never be used concurrently.
type Grabber struct {
	geom       Geometry
	f          *os.File
	scratch    []byte // read target for the in-flight capture
	last       []byte // most recent complete frame
	haveLast   bool
	maxRetries int
	backoff    time.Duration
	logger     zerolog.Logger
}

// Open opens the device and performs a priming read to verify that the
// device actually holds one frame of the configured geometry. A device
// smaller than the geometry is a configuration error, not a transient one.
func Open(geom Geometry) (*Grabber, error) {
	if err := geom.Validate(); err != nil {
		return nil, fmt.Errorf("invalid geometry: %w", err)
	}

	f, err := os.Open(geom.DevicePath)
	if err != nil {
		return nil, fmt.Errorf("open framebuffer device: %w", err)
	}

	g := &Grabber{
		geom:       geom,
		f:          f,
		scratch:    make([]byte, geom.FrameSize()),
		last:       make([]byte, geom.FrameSize()),
		maxRetries: defaultMaxRetries,
		backoff:    defaultBackoff,
		logger:     log.WithComponent("grabber"),
	}

	n, err := f.ReadAt(g.scratch, 0)
	if n < len(g.scratch) {
		_ = f.Close()
		if err == nil || errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, fmt.Errorf("device %s holds %d bytes, geometry %s requires %d",
				geom.DevicePath, n, geom, len(g.scratch))
		}
		return nil, fmt.Errorf("priming read of %s: %w", geom.DevicePath, err)
	}
	g.scratch, g.last = g.last, g.scratch
	g.haveLast = true

	g.logger.Info().
		Str("event", "grabber.opened").
		Str("device", geom.DevicePath).
		Int("frame_bytes", len(g.last)).
		Msg("framebuffer device opened")
	return g, nil
}

// Geometry returns the device geometry the grabber was opened with.
func (g *Grabber) Geometry() Geometry {
	return g.geom
}

// Capture reads one raw frame. Short reads are retried with a small backoff;
// if the read still comes up short the previous complete frame is returned
// unchanged, so callers never see a partial frame. Permanent device errors
// (device gone, permission lost) are returned as-is and are fatal to the
// capture loop.
//
// The returned slice is owned by the grabber and valid until the next call.
func (g *Grabber) Capture(ctx context.Context) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt <= g.maxRetries; attempt++ {
		if attempt > 0 {
			metrics.IncCaptureRetry()
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(g.backoff):
			}
		}

		n, err := g.f.ReadAt(g.scratch, 0)
		if n == len(g.scratch) {
			g.scratch, g.last = g.last, g.scratch
			g.haveLast = true
			metrics.IncFramesCaptured()
			return g.last, nil
		}

		if err != nil && isPermanent(err) {
			return nil, fmt.Errorf("read framebuffer %s: %w", g.geom.DevicePath, err)
		}
		if err == nil {
			err = io.ErrUnexpectedEOF
		}
		lastErr = err
	}

	if g.haveLast {
		metrics.IncCaptureError("short_read")
		g.logger.Warn().
			Err(lastErr).
			Str("event", "grabber.short_read").
			Str("device", g.geom.DevicePath).
			Int("retries", g.maxRetries).
			Msg("capture kept coming up short, re-serving previous frame")
		return g.last, nil
	}
	return nil, fmt.Errorf("%w: %w", ErrNoFrame, lastErr)
}

// Close releases the device handle.
func (g *Grabber) Close() error {
	g.logger.Debug().Str("event", "grabber.closed").Msg("closing framebuffer device")
	return g.f.Close()
}

// isPermanent separates errors no retry can fix from transient read
// failures. EOF-style errors are short reads and therefore transient.
func isPermanent(err error) bool {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return false
	}
	return errors.Is(err, fs.ErrNotExist) ||
		errors.Is(err, fs.ErrPermission) ||
		errors.Is(err, fs.ErrClosed)
}
