// SPDX-License-Identifier: MIT

package stream

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"

	"github.com/fbmirror/fbmirror/internal/broadcast"
	"github.com/fbmirror/fbmirror/internal/fb"
)

const boundary = "frame"

// handleStream serves one client for the lifetime of its connection:
// acquire a worker slot, subscribe, then push every new frame as one
// multipart part until the client goes away. The handler never touches the
// device; it only consumes frames the capture loop already produced.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	reason, ok := s.monitor.Acquire()
	if !ok {
		s.logger.Debug().
			Str("event", "stream.rejected").
			Str("reason", string(reason)).
			Str("remote", r.RemoteAddr).
			Int("active", s.monitor.Active()).
			Msg("client rejected at capacity")
		w.Header().Set("Retry-After", "5")
		http.Error(w, "stream capacity exceeded", http.StatusServiceUnavailable)
		return
	}
	defer s.monitor.Release()

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	sub := s.broadcaster.Subscribe()
	logger := s.logger.With().
		Str("client", sub.ID).
		Str("remote", r.RemoteAddr).
		Logger()
	logger.Info().
		Str("event", "stream.connected").
		Int("active", s.monitor.Active()).
		Msg("client connected")

	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary="+boundary)
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.Header().Set("Pragma", "no-cache")
	w.Header().Set("Connection", "close")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ctx := r.Context()
	frames := 0
	for {
		frame, err := sub.Next(ctx)
		if err != nil {
			event := "stream.disconnected"
			if errors.Is(err, broadcast.ErrClosed) {
				event = "stream.server_shutdown"
			}
			logger.Info().
				Str("event", event).
				Int("frames", frames).
				Msg("stream ended")
			return
		}

		if err := s.writePart(w, frame); err != nil {
			// A failed write is the disconnect signal; expected, not an error.
			logger.Info().
				Str("event", "stream.disconnected").
				Int("frames", frames).
				Msg("client write failed, closing stream")
			return
		}
		flusher.Flush()
		frames++
	}
}

// writePart emits one multipart part: boundary, part headers with the exact
// payload length, the PNG bytes, and the trailing CRLF.
func (s *Server) writePart(w http.ResponseWriter, f *fb.Frame) error {
	buf := s.headerPool.Get().(*bytes.Buffer)
	defer s.headerPool.Put(buf)
	buf.Reset()

	fmt.Fprintf(buf, "--%s\r\nContent-Type: image/png\r\nContent-Length: %d\r\n\r\n", boundary, len(f.PNG))
	if _, err := w.Write(buf.Bytes()); err != nil {
		return err
	}
	if _, err := w.Write(f.PNG); err != nil {
		return err
	}
	_, err := w.Write([]byte("\r\n"))
	return err
}
