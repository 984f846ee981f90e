package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fbmirror.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	s, err := NewLoader("").Load()
	require.NoError(t, err)

	assert.Equal(t, "fb1", s.Device)
	assert.Equal(t, "/dev/fb1", s.DevicePath())
	assert.Equal(t, "/sys/class/graphics/fb1", s.SysfsDir())
	assert.Zero(t, s.Width, "width defaults to auto")
	assert.Equal(t, 100*time.Millisecond, s.Interval)
	assert.Equal(t, 1, s.MinWorkers)
	assert.Equal(t, 4, s.MaxWorkers)
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
device: fb0
width: 128
height: 64
depth: 16
interval: 250ms
maxWorkers: 8
logLevel: debug
`)

	s, err := NewLoader(path).Load()
	require.NoError(t, err)

	assert.Equal(t, "fb0", s.Device)
	assert.Equal(t, 128, s.Width)
	assert.Equal(t, 64, s.Height)
	assert.Equal(t, 16, s.Depth)
	assert.Equal(t, 250*time.Millisecond, s.Interval)
	assert.Equal(t, 8, s.MaxWorkers)
	assert.Equal(t, "debug", s.LogLevel)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "device: fb0\nwidth: 128\n")

	t.Setenv("FBMIRROR_DEVICE", "fb7")
	t.Setenv("FBMIRROR_WIDTH", "320")
	t.Setenv("FBMIRROR_INTERVAL", "50ms")

	s, err := NewLoader(path).Load()
	require.NoError(t, err)

	assert.Equal(t, "fb7", s.Device)
	assert.Equal(t, 320, s.Width)
	assert.Equal(t, 50*time.Millisecond, s.Interval)
}

func TestLoadAutoKeyword(t *testing.T) {
	path := writeConfig(t, "width: auto\nheight: auto\ndepth: auto\n")

	s, err := NewLoader(path).Load()
	require.NoError(t, err)

	assert.Zero(t, s.Width)
	assert.Zero(t, s.Height)
	assert.Zero(t, s.Depth)
}

func TestLoadRejectsBadValues(t *testing.T) {
	cases := map[string]string{
		"negative width":   "width: -5\n",
		"garbage depth":    "depth: sixteen\n",
		"bad interval":     "interval: soon\n",
		"workers inverted": "minWorkers: 4\nmaxWorkers: 2\n",
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			path := writeConfig(t, content)
			_, err := NewLoader(path).Load()
			assert.Error(t, err)
		})
	}
}

func TestValidate(t *testing.T) {
	s := Defaults()
	require.NoError(t, s.Validate())

	s.Device = ""
	s.MinWorkers = 0
	err := s.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "device")
	assert.Contains(t, err.Error(), "minWorkers")
}

func TestRequiresRestart(t *testing.T) {
	cur := Defaults()

	next := cur
	next.Interval = time.Second
	next.LogLevel = "debug"
	assert.False(t, cur.RequiresRestart(next), "interval and log level are hot-reloadable")

	next = cur
	next.Width = 640
	assert.True(t, cur.RequiresRestart(next))

	next = cur
	next.Listen = ":9999"
	assert.True(t, cur.RequiresRestart(next))
}

func TestParseBool(t *testing.T) {
	assert.False(t, ParseBool("FBMIRROR_DEBUG", false))

	t.Setenv("FBMIRROR_DEBUG", "true")
	assert.True(t, ParseBool("FBMIRROR_DEBUG", false))

	t.Setenv("FBMIRROR_DEBUG", "not-a-bool")
	assert.False(t, ParseBool("FBMIRROR_DEBUG", false), "invalid value falls back to the default")
}

func TestParseServerConfig(t *testing.T) {
	cfg := ParseServerConfig(":8808")
	assert.Equal(t, ":8808", cfg.ListenAddr)
	assert.Zero(t, cfg.WriteTimeout, "streaming responses must not have a write timeout")
	assert.GreaterOrEqual(t, cfg.ShutdownTimeout, 3*time.Second)
}
