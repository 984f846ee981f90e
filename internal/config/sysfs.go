// SPDX-License-Identifier: MIT

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/fbmirror/fbmirror/internal/log"
)

// ResolveGeometry fills width, height and depth from the device's sysfs
// attributes for any of the three still on auto. Explicit values win over
// probe results. The kernel exposes virtual_size as "WIDTH,HEIGHT" and
// bits_per_pixel as a bare integer.
func ResolveGeometry(s *Settings, sysfsDir string) error {
	logger := log.WithComponent("config")

	if s.Width == 0 || s.Height == 0 {
		w, h, err := readVirtualSize(filepath.Join(sysfsDir, "virtual_size"))
		if err != nil {
			return fmt.Errorf("auto-detect size: %w", err)
		}
		if s.Width == 0 {
			s.Width = w
		}
		if s.Height == 0 {
			s.Height = h
		}
		logger.Debug().
			Str("event", "config.probe.size").
			Int("width", s.Width).
			Int("height", s.Height).
			Msg("resolved framebuffer size from sysfs")
	}

	if s.Depth == 0 {
		d, err := readBitsPerPixel(filepath.Join(sysfsDir, "bits_per_pixel"))
		if err != nil {
			return fmt.Errorf("auto-detect depth: %w", err)
		}
		s.Depth = d
		logger.Debug().
			Str("event", "config.probe.depth").
			Int("depth", s.Depth).
			Msg("resolved framebuffer depth from sysfs")
	}

	return nil
}

func readVirtualSize(path string) (int, int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, 0, err
	}
	parts := strings.Split(strings.TrimSpace(string(data)), ",")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("malformed virtual_size %q", strings.TrimSpace(string(data)))
	}
	w, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return 0, 0, fmt.Errorf("malformed virtual_size width: %w", err)
	}
	h, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return 0, 0, fmt.Errorf("malformed virtual_size height: %w", err)
	}
	return w, h, nil
}

func readBitsPerPixel(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	d, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("malformed bits_per_pixel: %w", err)
	}
	return d, nil
}
