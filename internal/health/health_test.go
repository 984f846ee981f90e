package health

import (
	"encoding/json"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServeHealthAlwaysOK(t *testing.T) {
	m := NewManager("v1.0.0")
	m.RegisterChecker(NewDeviceChecker("/nonexistent"))

	rec := httptest.NewRecorder()
	m.ServeHealth(rec, httptest.NewRequest("GET", "/healthz", nil))

	assert.Equal(t, 200, rec.Code, "liveness ignores component state")

	var resp Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, StatusHealthy, resp.Status)
	assert.Equal(t, "v1.0.0", resp.Version)
}

func TestServeReadyReflectsCheckers(t *testing.T) {
	dir := t.TempDir()
	device := filepath.Join(dir, "fb0")
	require.NoError(t, os.WriteFile(device, []byte{0}, 0o644))

	gate := NewFirstFrameGate()
	m := NewManager("v1.0.0")
	m.RegisterChecker(NewDeviceChecker(device))
	m.RegisterChecker(gate)

	rec := httptest.NewRecorder()
	m.ServeReady(rec, httptest.NewRequest("GET", "/readyz", nil))
	assert.Equal(t, 503, rec.Code, "unready before first published frame")

	gate.MarkPublished()
	rec = httptest.NewRecorder()
	m.ServeReady(rec, httptest.NewRequest("GET", "/readyz", nil))
	assert.Equal(t, 200, rec.Code)

	var resp Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Ready)
	assert.Len(t, resp.Checks, 2)
}

func TestServeReadyDeviceGone(t *testing.T) {
	gate := NewFirstFrameGate()
	gate.MarkPublished()

	m := NewManager("v1.0.0")
	m.RegisterChecker(NewDeviceChecker("/nonexistent/fb9"))
	m.RegisterChecker(gate)

	rec := httptest.NewRecorder()
	m.ServeReady(rec, httptest.NewRequest("GET", "/readyz", nil))
	assert.Equal(t, 503, rec.Code)

	var resp Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, StatusUnhealthy, resp.Checks["framebuffer_device"].Status)
}
