// SPDX-License-Identifier: MIT

// Package fb reads and decodes Linux framebuffer devices. The device is a
// flat byte sequence of packed pixels that can be re-read repeatedly at
// offset zero; geometry (size and bit depth) is fixed for the lifetime of
// the process.
package fb

import (
	"errors"
	"fmt"
)

// Layout16 selects the bit-field layout of 16bpp pixels.
type Layout16 uint8

const (
	// Layout565 is 5 red, 6 green, 5 blue bits (the common RGB565 case).
	Layout565 Layout16 = iota
	// Layout555 is 5 bits per channel with the top bit unused.
	Layout555
)

// Geometry describes a framebuffer device. Immutable after resolution.
type Geometry struct {
	Width      int
	Height     int
	Depth      int // bits per pixel: 1, 8, 16, 24 or 32
	DevicePath string
	Layout16   Layout16 // only consulted when Depth == 16
}

var supportedDepths = map[int]bool{1: true, 8: true, 16: true, 24: true, 32: true}

// Validate reports configuration errors. These are fatal at startup.
func (g Geometry) Validate() error {
	var errs []error
	if g.Width <= 0 {
		errs = append(errs, fmt.Errorf("width must be positive, got %d", g.Width))
	}
	if g.Height <= 0 {
		errs = append(errs, fmt.Errorf("height must be positive, got %d", g.Height))
	}
	if !supportedDepths[g.Depth] {
		errs = append(errs, fmt.Errorf("unsupported depth %d (supported: 1, 8, 16, 24, 32)", g.Depth))
	}
	if g.DevicePath == "" {
		errs = append(errs, errors.New("device path is empty"))
	}
	return errors.Join(errs...)
}

// FrameSize returns the number of bytes one raw frame occupies on the
// device. 1bpp frames are packed eight pixels per byte.
func (g Geometry) FrameSize() int {
	if g.Depth == 1 {
		return (g.Width*g.Height + 7) / 8
	}
	return g.Width * g.Height * (g.Depth / 8)
}

func (g Geometry) String() string {
	return fmt.Sprintf("%dx%d@%dbpp (%s)", g.Width, g.Height, g.Depth, g.DevicePath)
}
