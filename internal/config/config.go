// SPDX-License-Identifier: MIT

// Package config resolves fbmirror settings with precedence
// ENV > YAML file > defaults, and probes framebuffer geometry from sysfs
// when width, height or depth are left on auto.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Dimensions or depth set to zero mean "auto": resolved from sysfs before
// the settings are handed to the capture engine.
type Settings struct {
	Device        string        // framebuffer name under /dev (e.g. "fb1") or absolute path
	Width         int           // pixels, 0 = auto
	Height        int           // pixels, 0 = auto
	Depth         int           // bits per pixel, 0 = auto
	Depth16Layout string        // "565" (default) or "555"
	Listen        string        // stream server listen address
	MetricsListen string        // Prometheus listen address, empty disables
	Interval      time.Duration // capture cadence
	MinWorkers    int           // pre-warm hint for stream workers
	MaxWorkers    int           // hard admission limit for concurrent clients
	LogLevel      string
}

// Defaults mirror the shipped fbmirror.yaml.
func Defaults() Settings {
	return Settings{
		Device:        "fb1",
		Depth16Layout: "565",
		Listen:        ":8808",
		Interval:      100 * time.Millisecond,
		MinWorkers:    1,
		MaxWorkers:    4,
		LogLevel:      "info",
	}
}

// DevicePath returns the absolute device node path.
func (s Settings) DevicePath() string {
	if strings.HasPrefix(s.Device, "/") {
		return s.Device
	}
	return "/dev/" + s.Device
}

// SysfsDir returns the sysfs attribute directory for the device.
func (s Settings) SysfsDir() string {
	return "/sys/class/graphics/" + filepath.Base(s.DevicePath())
}

// Validate checks settings that do not depend on geometry resolution.
// Geometry itself is validated by the fb package once resolved.
func (s Settings) Validate() error {
	var errs []error
	if strings.TrimSpace(s.Device) == "" {
		errs = append(errs, errors.New("no framebuffer device specified"))
	}
	if s.MinWorkers < 1 {
		errs = append(errs, fmt.Errorf("minWorkers must be >= 1, got %d", s.MinWorkers))
	}
	if s.MaxWorkers < s.MinWorkers {
		errs = append(errs, fmt.Errorf("maxWorkers (%d) must be >= minWorkers (%d)", s.MaxWorkers, s.MinWorkers))
	}
	if s.Interval <= 0 {
		errs = append(errs, fmt.Errorf("interval must be positive, got %s", s.Interval))
	}
	if s.Depth16Layout != "565" && s.Depth16Layout != "555" {
		errs = append(errs, fmt.Errorf("depth16Layout must be 565 or 555, got %q", s.Depth16Layout))
	}
	return errors.Join(errs...)
}

// RequiresRestart reports whether switching to next cannot be applied by a
// hot reload. Device and geometry are bound at startup; only the capture
// interval and log level are reloadable.
func (s Settings) RequiresRestart(next Settings) bool {
	return s.Device != next.Device ||
		s.Width != next.Width ||
		s.Height != next.Height ||
		s.Depth != next.Depth ||
		s.Depth16Layout != next.Depth16Layout ||
		s.Listen != next.Listen ||
		s.MetricsListen != next.MetricsListen ||
		s.MinWorkers != next.MinWorkers ||
		s.MaxWorkers != next.MaxWorkers
}

// fileConfig is the YAML representation. Width, height and depth accept
// "auto" or a number, matching the historical ini file.
type fileConfig struct {
	Device        string `yaml:"device"`
	Width         string `yaml:"width"`
	Height        string `yaml:"height"`
	Depth         string `yaml:"depth"`
	Depth16Layout string `yaml:"depth16Layout"`
	Listen        string `yaml:"listen"`
	MetricsListen string `yaml:"metricsListen"`
	Interval      string `yaml:"interval"`
	MinWorkers    *int   `yaml:"minWorkers"`
	MaxWorkers    *int   `yaml:"maxWorkers"`
	LogLevel      string `yaml:"logLevel"`
}

// searchPaths is the config file lookup order when --config is not given.
var searchPaths = []string{
	"fbmirror.yaml",
	"/usr/local/etc/fbmirror.yaml",
	"/etc/fbmirror.yaml",
	"/conf/fbmirror.yaml",
}

// FindConfigFile returns the first existing config file from the search
// paths, or empty if none exists.
func FindConfigFile() string {
	for _, p := range searchPaths {
		if info, err := os.Stat(p); err == nil && !info.IsDir() {
			return p
		}
	}
	return ""
}

// Loader resolves settings from a config file and the environment.
type Loader struct {
	path string
}

// NewLoader creates a loader for the given config file path. An empty path
// skips the file layer.
func NewLoader(path string) *Loader {
	return &Loader{path: path}
}

// Load resolves settings with precedence ENV > file > defaults.
func (l *Loader) Load() (Settings, error) {
	s := Defaults()

	if l.path != "" {
		if err := mergeFile(&s, l.path); err != nil {
			return Settings{}, err
		}
	}
	mergeEnv(&s)

	if err := s.Validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}

func mergeFile(s *Settings, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file %s: %w", path, err)
	}
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	if fc.Device != "" {
		s.Device = fc.Device
	}
	if err := mergeAutoInt(&s.Width, "width", fc.Width); err != nil {
		return err
	}
	if err := mergeAutoInt(&s.Height, "height", fc.Height); err != nil {
		return err
	}
	if err := mergeAutoInt(&s.Depth, "depth", fc.Depth); err != nil {
		return err
	}
	if fc.Depth16Layout != "" {
		s.Depth16Layout = fc.Depth16Layout
	}
	if fc.Listen != "" {
		s.Listen = fc.Listen
	}
	if fc.MetricsListen != "" {
		s.MetricsListen = fc.MetricsListen
	}
	if fc.Interval != "" {
		d, err := time.ParseDuration(fc.Interval)
		if err != nil {
			return fmt.Errorf("parse interval %q: %w", fc.Interval, err)
		}
		s.Interval = d
	}
	if fc.MinWorkers != nil {
		s.MinWorkers = *fc.MinWorkers
	}
	if fc.MaxWorkers != nil {
		s.MaxWorkers = *fc.MaxWorkers
	}
	if fc.LogLevel != "" {
		s.LogLevel = fc.LogLevel
	}
	return nil
}

func mergeAutoInt(dst *int, name, raw string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "auto" {
		return nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		return fmt.Errorf("%s must be \"auto\" or a positive integer, got %q", name, raw)
	}
	*dst = v
	return nil
}

func mergeEnv(s *Settings) {
	s.Device = ParseString("FBMIRROR_DEVICE", s.Device)
	s.Width = ParseInt("FBMIRROR_WIDTH", s.Width)
	s.Height = ParseInt("FBMIRROR_HEIGHT", s.Height)
	s.Depth = ParseInt("FBMIRROR_DEPTH", s.Depth)
	s.Depth16Layout = ParseString("FBMIRROR_DEPTH16_LAYOUT", s.Depth16Layout)
	s.Listen = ParseString("FBMIRROR_LISTEN", s.Listen)
	s.MetricsListen = ParseString("FBMIRROR_METRICS_LISTEN", s.MetricsListen)
	s.Interval = ParseDuration("FBMIRROR_INTERVAL", s.Interval)
	s.MinWorkers = ParseInt("FBMIRROR_MIN_WORKERS", s.MinWorkers)
	s.MaxWorkers = ParseInt("FBMIRROR_MAX_WORKERS", s.MaxWorkers)
	s.LogLevel = ParseString("FBMIRROR_LOG_LEVEL", s.LogLevel)
}
