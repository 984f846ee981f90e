// Package metrics provides Prometheus metrics for the fbmirror capture and
// streaming subsystems.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// FramesCapturedTotal counts complete raw frames read from the device.
	FramesCapturedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fbmirror_frames_captured_total",
		Help: "Total number of complete raw frames read from the framebuffer device.",
	})

	// CaptureRetriesTotal counts short reads that were retried.
	CaptureRetriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fbmirror_capture_retries_total",
		Help: "Total number of retried framebuffer reads after a short read.",
	})

	// CaptureErrorsTotal counts recoverable capture failures by reason.
	CaptureErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fbmirror_capture_errors_total",
		Help: "Total number of recoverable capture failures, by reason.",
	}, []string{"reason"})

	// FramesPublishedTotal counts decoded frames handed to the broadcaster.
	FramesPublishedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fbmirror_frames_published_total",
		Help: "Total number of decoded frames published to subscribers.",
	})

	// EncodeDuration tracks the decode+PNG-encode time per frame.
	EncodeDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "fbmirror_frame_encode_duration_seconds",
		Help:    "Time spent decoding and PNG-encoding one captured frame.",
		Buckets: []float64{0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
	})

	// FrameBytes tracks the encoded size of published frames.
	FrameBytes = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "fbmirror_frame_bytes",
		Help:    "PNG-encoded size of published frames in bytes.",
		Buckets: prometheus.ExponentialBuckets(1024, 2, 10),
	})
)

// IncFramesCaptured records one complete device read.
func IncFramesCaptured() {
	FramesCapturedTotal.Inc()
}

// IncCaptureRetry records one retried short read.
func IncCaptureRetry() {
	CaptureRetriesTotal.Inc()
}

// IncCaptureError records a recoverable capture failure.
func IncCaptureError(reason string) {
	CaptureErrorsTotal.WithLabelValues(reason).Inc()
}

// ObservePublish records one published frame and its encoded size.
func ObservePublish(encodedBytes int, encodeTime time.Duration) {
	FramesPublishedTotal.Inc()
	EncodeDuration.Observe(encodeTime.Seconds())
	FrameBytes.Observe(float64(encodedBytes))
}
