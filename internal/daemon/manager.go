// SPDX-License-Identifier: MIT

package daemon

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/fbmirror/fbmirror/internal/config"
)

// ShutdownHook is a cleanup function run during graceful shutdown. Hooks
// execute in reverse registration order (LIFO).
type ShutdownHook func(ctx context.Context) error

// Manager manages the daemon lifecycle: capture loop, HTTP servers,
// graceful shutdown.
type Manager interface {
	// Start starts everything and blocks until shutdown.
	Start(ctx context.Context) error

	// Shutdown gracefully stops the capture loop and servers.
	Shutdown(ctx context.Context) error

	// RegisterShutdownHook registers a cleanup function for shutdown.
	RegisterShutdownHook(name string, hook ShutdownHook)
}

type manager struct {
	serverCfg config.ServerConfig
	deps      Deps

	streamServer  *http.Server
	metricsServer *http.Server
	captureCancel context.CancelFunc
	captureDone   chan struct{}

	shutdownHooks []namedHook

	started  bool
	stopping bool
	mu       sync.Mutex

	logger zerolog.Logger
}

type namedHook struct {
	name string
	hook ShutdownHook
}

// NewManager creates a daemon manager.
func NewManager(serverCfg config.ServerConfig, deps Deps) (Manager, error) {
	if err := deps.Validate(); err != nil {
		return nil, fmt.Errorf("invalid dependencies: %w", err)
	}
	return &manager{
		serverCfg:   serverCfg,
		deps:        deps,
		logger:      deps.Logger.With().Str("component", "manager").Logger(),
		captureDone: make(chan struct{}),
	}, nil
}

// Start starts the capture loop and servers, then blocks until the context
// is cancelled or a component fails.
func (m *manager) Start(ctx context.Context) error {
	if ctx == nil {
		return fmt.Errorf("start context is nil")
	}

	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return fmt.Errorf("manager already started")
	}
	m.started = true
	m.mu.Unlock()

	m.logger.Info().
		Str("listen", m.serverCfg.ListenAddr).
		Dur("shutdown_timeout", m.serverCfg.ShutdownTimeout).
		Msg("starting daemon manager")

	errChan := make(chan error, 3)

	m.startCaptureLoop(ctx, errChan)

	if m.deps.MetricsHandler != nil && m.deps.MetricsAddr != "" {
		m.startMetricsServer(errChan)
	}

	m.startStreamServer(errChan)

	select {
	case err := <-errChan:
		m.logger.Error().Err(err).Msg("component failed, initiating shutdown")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
		defer cancel()
		if shutdownErr := m.Shutdown(shutdownCtx); shutdownErr != nil {
			return fmt.Errorf("component failure and shutdown failure: %w", errors.Join(err, shutdownErr))
		}
		return err
	case <-ctx.Done():
		m.logger.Info().Msg("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
		defer cancel()
		return m.Shutdown(shutdownCtx)
	}
}

func (m *manager) startCaptureLoop(ctx context.Context, errChan chan<- error) {
	captureCtx, cancel := context.WithCancel(ctx)
	m.captureCancel = cancel

	go func() {
		defer close(m.captureDone)
		if err := m.deps.Capture.Run(captureCtx); err != nil {
			m.logger.Error().
				Err(err).
				Str("event", "capture.failed").
				Msg("capture loop failed")
			errChan <- fmt.Errorf("capture loop: %w", err)
		}
	}()
}

func (m *manager) startStreamServer(errChan chan<- error) {
	m.streamServer = &http.Server{
		Addr:              m.serverCfg.ListenAddr,
		Handler:           m.deps.StreamHandler,
		ReadTimeout:       m.serverCfg.ReadTimeout,
		ReadHeaderTimeout: m.serverCfg.ReadTimeout / 2,
		WriteTimeout:      m.serverCfg.WriteTimeout,
		IdleTimeout:       m.serverCfg.IdleTimeout,
		MaxHeaderBytes:    m.serverCfg.MaxHeaderBytes,
	}

	go func() {
		m.logger.Info().
			Str("addr", m.serverCfg.ListenAddr).
			Msg("stream server listening")
		if err := m.streamServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			m.logger.Error().
				Err(err).
				Str("event", "stream.server.failed").
				Msg("stream server failed")
			errChan <- fmt.Errorf("stream server: %w", err)
		}
	}()
}

func (m *manager) startMetricsServer(errChan chan<- error) {
	m.metricsServer = &http.Server{
		Addr:              m.deps.MetricsAddr,
		Handler:           m.deps.MetricsHandler,
		ReadHeaderTimeout: m.serverCfg.ReadTimeout / 2,
	}

	go func() {
		m.logger.Info().
			Str("addr", m.deps.MetricsAddr).
			Msg("metrics server listening")
		if err := m.metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			m.logger.Error().
				Err(err).
				Str("event", "metrics.server.failed").
				Msg("metrics server failed")
			errChan <- fmt.Errorf("metrics server: %w", err)
		}
	}()
}

// Shutdown stops the capture loop, wakes all streaming clients by closing
// the broadcaster, drains the HTTP servers and finally runs the shutdown
// hooks in reverse order. Waking the clients first matters: server drain
// would otherwise wait on handlers parked in Next until the timeout.
func (m *manager) Shutdown(ctx context.Context) error {
	if ctx == nil {
		return fmt.Errorf("shutdown context is nil")
	}

	m.mu.Lock()
	if m.stopping {
		m.mu.Unlock()
		return nil
	}
	if !m.started {
		m.mu.Unlock()
		return ErrNotStarted
	}
	m.stopping = true
	m.mu.Unlock()

	m.logger.Info().Msg("shutting down daemon manager")

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.serverCfg.ShutdownTimeout)
	defer cancel()

	var errs []error

	if m.captureCancel != nil {
		m.captureCancel()
		select {
		case <-m.captureDone:
		case <-shutdownCtx.Done():
			errs = append(errs, errors.New("capture loop did not stop in time"))
		}
	}

	m.deps.Broadcaster.Close()

	if m.streamServer != nil {
		m.logger.Debug().Msg("shutting down stream server")
		if err := m.streamServer.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("stream server shutdown: %w", err))
		}
	}

	if m.metricsServer != nil {
		m.logger.Debug().Msg("shutting down metrics server")
		if err := m.metricsServer.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("metrics server shutdown: %w", err))
		}
	}

	m.mu.Lock()
	hooks := make([]namedHook, len(m.shutdownHooks))
	copy(hooks, m.shutdownHooks)
	m.mu.Unlock()

	for i := len(hooks) - 1; i >= 0; i-- {
		h := hooks[i]
		start := time.Now()
		if err := h.hook(shutdownCtx); err != nil {
			m.logger.Error().
				Err(err).
				Str("hook", h.name).
				Dur("duration", time.Since(start)).
				Msg("shutdown hook failed")
			errs = append(errs, fmt.Errorf("hook %s: %w", h.name, err))
		} else {
			m.logger.Debug().
				Str("hook", h.name).
				Dur("duration", time.Since(start)).
				Msg("shutdown hook completed")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %w", errors.Join(errs...))
	}

	m.logger.Info().Msg("daemon manager stopped cleanly")
	return nil
}

// RegisterShutdownHook registers a cleanup function, run LIFO on shutdown.
func (m *manager) RegisterShutdownHook(name string, hook ShutdownHook) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.shutdownHooks = append(m.shutdownHooks, namedHook{name: name, hook: hook})
	m.logger.Debug().Str("hook", name).Msg("registered shutdown hook")
}
