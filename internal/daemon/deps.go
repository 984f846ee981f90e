// SPDX-License-Identifier: MIT

package daemon

import (
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/fbmirror/fbmirror/internal/broadcast"
)

// Deps carries everything the manager needs to run the daemon.
type Deps struct {
	Logger zerolog.Logger

	// StreamHandler serves the stream, index and probe routes.
	StreamHandler http.Handler

	// MetricsHandler and MetricsAddr configure the optional Prometheus
	// listener; an empty addr disables it.
	MetricsHandler http.Handler
	MetricsAddr    string

	// Capture is the single capture loop.
	Capture *CaptureLoop

	// Broadcaster is closed during shutdown to wake every streaming client
	// before the HTTP server drains.
	Broadcaster *broadcast.Broadcaster
}

// Validate checks that all required dependencies are present.
func (d Deps) Validate() error {
	var errs []error
	if d.StreamHandler == nil {
		errs = append(errs, errors.New("stream handler is required"))
	}
	if d.Capture == nil {
		errs = append(errs, errors.New("capture loop is required"))
	}
	if d.Broadcaster == nil {
		errs = append(errs, errors.New("broadcaster is required"))
	}
	return errors.Join(errs...)
}
