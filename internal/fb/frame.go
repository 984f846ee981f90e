// SPDX-License-Identifier: MIT

package fb

import (
	"bytes"
	"image"
	"image/png"
)

// Frame is one decoded framebuffer snapshot: interleaved 8-bit RGB triples
// plus the PNG encoding served to stream clients. Frames are immutable once
// published and shared read-only by all subscribers.
type Frame struct {
	Width  int
	Height int
	Seq    uint64 // stamped by the broadcaster on publish
	Pix    []byte // len = Width*Height*3, R G B order
	PNG    []byte // encoded part payload, filled by EncodePNG
}

// EncodePNG renders the frame's pixels as PNG into f.PNG. Encoding happens
// once per captured frame in the capture loop, never per client.
func (f *Frame) EncodePNG() error {
	img := image.NewNRGBA(image.Rect(0, 0, f.Width, f.Height))
	for i, o := 0, 0; i < len(f.Pix); i, o = i+3, o+4 {
		img.Pix[o] = f.Pix[i]
		img.Pix[o+1] = f.Pix[i+1]
		img.Pix[o+2] = f.Pix[i+2]
		img.Pix[o+3] = 0xFF
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return err
	}
	f.PNG = buf.Bytes()
	return nil
}
