// SPDX-License-Identifier: MIT

// Package daemon runs the fbmirror process: the single capture loop and
// the HTTP servers, with graceful shutdown tying them together.
package daemon

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/fbmirror/fbmirror/internal/broadcast"
	"github.com/fbmirror/fbmirror/internal/fb"
	"github.com/fbmirror/fbmirror/internal/health"
	"github.com/fbmirror/fbmirror/internal/log"
	"github.com/fbmirror/fbmirror/internal/metrics"
)

// FrameSource produces raw frames. The fb.Grabber is the production
// implementation; tests substitute their own.
type FrameSource interface {
	Capture(ctx context.Context) ([]byte, error)
	Geometry() fb.Geometry
}

// CaptureLoop drives the capture→decode→encode→publish pipeline on a fixed
// cadence. It is the only component that touches the frame source; client
// handlers consume published frames exclusively through the broadcaster.
type CaptureLoop struct {
	source      FrameSource
	broadcaster *broadcast.Broadcaster
	gate        *health.FirstFrameGate
	interval    atomic.Int64 // nanoseconds, hot-reloadable
	logger      zerolog.Logger
}

// NewCaptureLoop creates a capture loop. gate may be nil when readiness
// signalling is not wired (tests).
func NewCaptureLoop(source FrameSource, b *broadcast.Broadcaster, gate *health.FirstFrameGate, interval time.Duration) *CaptureLoop {
	c := &CaptureLoop{
		source:      source,
		broadcaster: b,
		gate:        gate,
		logger:      log.WithComponent("capture"),
	}
	c.interval.Store(int64(interval))
	return c
}

// SetInterval changes the capture cadence; takes effect from the next tick.
func (c *CaptureLoop) SetInterval(d time.Duration) {
	if d > 0 {
		c.interval.Store(int64(d))
		c.logger.Info().
			Str("event", "capture.interval_changed").
			Dur("interval", d).
			Msg("capture interval updated")
	}
}

// Interval returns the current capture cadence.
func (c *CaptureLoop) Interval() time.Duration {
	return time.Duration(c.interval.Load())
}

// Run captures frames until ctx is cancelled. It sleeps before each
// capture so the frame is at most one interval old when it is served. A
// fatal source error (device gone) terminates the loop with that error;
// everything recoverable is already absorbed inside the source.
func (c *CaptureLoop) Run(ctx context.Context) error {
	c.logger.Info().
		Str("event", "capture.started").
		Str("geometry", c.source.Geometry().String()).
		Dur("interval", c.Interval()).
		Msg("capture loop running")

	for {
		select {
		case <-ctx.Done():
			c.logger.Info().Str("event", "capture.stopped").Msg("capture loop stopped")
			return nil
		case <-time.After(c.Interval()):
		}

		raw, err := c.source.Capture(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("capture: %w", err)
		}

		start := time.Now()
		frame, err := fb.Decode(raw, c.source.Geometry())
		if err != nil {
			// Clients keep the previous frame; nothing partial goes out.
			metrics.IncCaptureError("decode")
			c.logger.Warn().Err(err).Str("event", "capture.decode_failed").Msg("skipping frame")
			continue
		}
		if err := frame.EncodePNG(); err != nil {
			metrics.IncCaptureError("encode")
			c.logger.Warn().Err(err).Str("event", "capture.encode_failed").Msg("skipping frame")
			continue
		}

		c.broadcaster.Publish(frame)
		if c.gate != nil {
			c.gate.MarkPublished()
		}
		metrics.ObservePublish(len(frame.PNG), time.Since(start))
	}
}
