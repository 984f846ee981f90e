// SPDX-License-Identifier: MIT

package fb

import (
	"encoding/binary"
	"fmt"
)

// Decode unpacks one raw frame into 8-bit RGB triples. It is stateless and
// performs a single linear pass with no allocation beyond the output frame.
//
// Depth handling:
//   - 32/24 bpp: pixels are stored B,G,R(,X) as on little-endian fbdev;
//     channels are reordered to R,G,B.
//   - 16 bpp: little-endian 5-6-5 or 5-5-5 bit fields, each channel
//     linearly rescaled to 0-255 (v * 255 / (2^bits - 1)).
//   - 8/1 bpp: gray-scale reconstruction only. The single intensity value
//     is replicated across R,G,B. Palette (CLUT) resolution for these
//     depths is a known limitation and deliberately not guessed at.
func Decode(raw []byte, g Geometry) (*Frame, error) {
	if want := g.FrameSize(); len(raw) != want {
		return nil, fmt.Errorf("raw frame is %d bytes, geometry %s requires %d", len(raw), g, want)
	}

	f := &Frame{
		Width:  g.Width,
		Height: g.Height,
		Pix:    make([]byte, g.Width*g.Height*3),
	}

	switch g.Depth {
	case 32:
		decodePacked(f.Pix, raw, 4)
	case 24:
		decodePacked(f.Pix, raw, 3)
	case 16:
		decode16(f.Pix, raw, g.Layout16)
	case 8:
		for i, v := range raw {
			o := i * 3
			f.Pix[o], f.Pix[o+1], f.Pix[o+2] = v, v, v
		}
	case 1:
		decodeMono(f.Pix, raw, g.Width*g.Height)
	default:
		return nil, fmt.Errorf("unsupported depth %d", g.Depth)
	}

	return f, nil
}

// decodePacked handles 24/32bpp: first three bytes of each pixel are B,G,R.
func decodePacked(dst, src []byte, stride int) {
	for i, o := 0, 0; i+stride <= len(src); i, o = i+stride, o+3 {
		dst[o] = src[i+2]
		dst[o+1] = src[i+1]
		dst[o+2] = src[i]
	}
}

func decode16(dst, src []byte, layout Layout16) {
	for i, o := 0, 0; i+2 <= len(src); i, o = i+2, o+3 {
		v := binary.LittleEndian.Uint16(src[i:])
		var r, g, b uint16
		if layout == Layout555 {
			r = (v >> 10) & 0x1F
			g = (v >> 5) & 0x1F
			b = v & 0x1F
			dst[o] = uint8(r * 255 / 31)
			dst[o+1] = uint8(g * 255 / 31)
			dst[o+2] = uint8(b * 255 / 31)
		} else {
			r = (v >> 11) & 0x1F
			g = (v >> 5) & 0x3F
			b = v & 0x1F
			dst[o] = uint8(r * 255 / 31)
			dst[o+1] = uint8(g * 255 / 63)
			dst[o+2] = uint8(b * 255 / 31)
		}
	}
}

// decodeMono expands 1bpp frames, LSB first within each byte as fbdev packs
// them. A set bit is white.
func decodeMono(dst, src []byte, pixels int) {
	for idx := 0; idx < pixels; idx++ {
		var v byte
		if src[idx>>3]>>(idx&7)&1 == 1 {
			v = 0xFF
		}
		o := idx * 3
		dst[o], dst[o+1], dst[o+2] = v, v, v
	}
}
