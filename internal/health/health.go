// SPDX-License-Identifier: MIT

// Package health provides liveness and readiness checks for the fbmirror
// daemon, suitable for Docker HEALTHCHECK and Kubernetes probes.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"sync/atomic"
	"time"

	"github.com/fbmirror/fbmirror/internal/log"
)

// Status represents the overall health/readiness status.
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusUnhealthy Status = "unhealthy"
)

// CheckResult represents the result of a component health check.
type CheckResult struct {
	Status  Status `json:"status"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Response is the payload for both probe endpoints.
type Response struct {
	Status    Status                 `json:"status"`
	Ready     bool                   `json:"ready"`
	Version   string                 `json:"version,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	Checks    map[string]CheckResult `json:"checks,omitempty"`
}

// Checker defines the interface for readiness checks.
type Checker interface {
	Name() string
	Check(ctx context.Context) CheckResult
}

// Manager aggregates checkers behind the probe endpoints.
type Manager struct {
	version  string
	checkers []Checker
}

// NewManager creates a health check manager.
func NewManager(version string) *Manager {
	return &Manager{version: version}
}

// RegisterChecker adds a readiness checker.
func (m *Manager) RegisterChecker(c Checker) {
	m.checkers = append(m.checkers, c)
}

// ServeHealth handles the liveness probe: always 200 while the process is
// up, regardless of component state.
func (m *Manager) ServeHealth(w http.ResponseWriter, r *http.Request) {
	resp := Response{
		Status:    StatusHealthy,
		Ready:     true,
		Version:   m.version,
		Timestamp: time.Now(),
	}
	writeJSON(w, http.StatusOK, resp)
}

// ServeReady handles the readiness probe: 503 until every registered
// checker passes.
func (m *Manager) ServeReady(w http.ResponseWriter, r *http.Request) {
	resp := Response{
		Status:    StatusHealthy,
		Ready:     true,
		Version:   m.version,
		Timestamp: time.Now(),
		Checks:    make(map[string]CheckResult, len(m.checkers)),
	}

	for _, c := range m.checkers {
		result := c.Check(r.Context())
		resp.Checks[c.Name()] = result
		if result.Status == StatusUnhealthy {
			resp.Status = StatusUnhealthy
			resp.Ready = false
		}
	}

	code := http.StatusOK
	if !resp.Ready {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, resp)
}

func writeJSON(w http.ResponseWriter, code int, resp Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		logger := log.WithComponent("health")
		logger.Error().
			Err(err).
			Str("event", "health.encode_error").
			Msg("failed to encode health response")
	}
}

// DeviceChecker verifies that the framebuffer device node still exists.
type DeviceChecker struct {
	path string
}

// NewDeviceChecker creates a checker for the device node.
func NewDeviceChecker(path string) *DeviceChecker {
	return &DeviceChecker{path: path}
}

func (c *DeviceChecker) Name() string { return "framebuffer_device" }

func (c *DeviceChecker) Check(ctx context.Context) CheckResult {
	if _, err := os.Stat(c.path); err != nil {
		return CheckResult{
			Status:  StatusUnhealthy,
			Error:   err.Error(),
			Message: c.path,
		}
	}
	return CheckResult{Status: StatusHealthy, Message: c.path}
}

// FirstFrameGate reports unready until the capture loop has published its
// first frame. Clients connecting before that would block with nothing to
// stream.
type FirstFrameGate struct {
	published atomic.Bool
}

// NewFirstFrameGate creates a gate in the unready state.
func NewFirstFrameGate() *FirstFrameGate {
	return &FirstFrameGate{}
}

// MarkPublished flips the gate to ready. Safe to call repeatedly.
func (g *FirstFrameGate) MarkPublished() {
	g.published.Store(true)
}

func (g *FirstFrameGate) Name() string { return "first_frame" }

func (g *FirstFrameGate) Check(ctx context.Context) CheckResult {
	if !g.published.Load() {
		return CheckResult{
			Status:  StatusUnhealthy,
			Message: "no frame published yet",
		}
	}
	return CheckResult{Status: StatusHealthy, Message: "frames flowing"}
}
