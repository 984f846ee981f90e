// SPDX-License-Identifier: MIT

// Package stream serves the live framebuffer mirror over HTTP as a
// multipart/x-mixed-replace PNG stream.
package stream

import (
	"bytes"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/fbmirror/fbmirror/internal/admission"
	"github.com/fbmirror/fbmirror/internal/broadcast"
	"github.com/fbmirror/fbmirror/internal/health"
	"github.com/fbmirror/fbmirror/internal/log"
)

// Server wires the broadcaster, admission control and probe endpoints into
// one HTTP handler.
type Server struct {
	broadcaster *broadcast.Broadcaster
	monitor     *admission.Monitor
	health      *health.Manager
	logger      zerolog.Logger
	headerPool  sync.Pool
}

// New creates a stream server. The monitor's pre-warm hint sizes the pool
// of part-header buffers kept ready for new clients.
func New(b *broadcast.Broadcaster, mon *admission.Monitor, hm *health.Manager) *Server {
	s := &Server{
		broadcaster: b,
		monitor:     mon,
		health:      hm,
		logger:      log.WithComponent("stream"),
	}
	s.headerPool.New = func() any { return new(bytes.Buffer) }
	for i := 0; i < mon.Min(); i++ {
		s.headerPool.Put(new(bytes.Buffer))
	}
	return s
}

// Handler builds the router. The stream route deliberately bypasses the
// rate limiter and HTTP metrics: one connection per client is the norm and
// admission control is its gatekeeper.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(Recoverer)
	r.Use(RequestLogger)

	r.Group(func(r chi.Router) {
		r.Use(Metrics)
		r.Use(RateLimit(60, time.Minute))
		r.Get("/", s.handleIndex)
		r.Get("/healthz", s.health.ServeHealth)
		r.Get("/readyz", s.health.ServeReady)
	})

	r.Get("/stream", s.handleStream)
	return r
}

const indexPage = `<!DOCTYPE html>
<html>
<head><title>fbmirror</title></head>
<body style="margin:0;background:#000;display:flex;justify-content:center;align-items:center;height:100vh">
<img src="/stream" alt="framebuffer stream">
</body>
</html>
`

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(indexPage))
}
