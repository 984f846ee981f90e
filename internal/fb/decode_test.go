package fb

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func geom(w, h, depth int) Geometry {
	return Geometry{Width: w, Height: h, Depth: depth, DevicePath: "/dev/fb0"}
}

func TestDecode32BGRReorder(t *testing.T) {
	// One pixel, stored B,G,R,X.
	raw := []byte{0x10, 0x20, 0x30, 0x00}
	f, err := Decode(raw, geom(1, 1, 32))
	require.NoError(t, err)
	assert.Equal(t, []byte{0x30, 0x20, 0x10}, f.Pix)
}

func TestDecode24BGRReorder(t *testing.T) {
	raw := []byte{0x01, 0x02, 0x03, 0xAA, 0xBB, 0xCC}
	f, err := Decode(raw, geom(2, 1, 24))
	require.NoError(t, err)
	assert.Equal(t, []byte{0x03, 0x02, 0x01, 0xCC, 0xBB, 0xAA}, f.Pix)
}

func TestDecode565PureRed(t *testing.T) {
	// 0xF800 is pure red in 5-6-5; rescale must yield full 8-bit red.
	g := geom(128, 64, 16)
	raw := make([]byte, g.FrameSize())
	binary.LittleEndian.PutUint16(raw, 0xF800)

	f, err := Decode(raw, g)
	require.NoError(t, err)
	assert.Equal(t, []byte{255, 0, 0}, f.Pix[:3])
}

func TestDecode565Rescale(t *testing.T) {
	// Green is 6 bits wide: 0x07E0 = full green.
	g := geom(1, 1, 16)
	raw := make([]byte, 2)
	binary.LittleEndian.PutUint16(raw, 0x07E0)

	f, err := Decode(raw, g)
	require.NoError(t, err)
	assert.Equal(t, []byte{0, 255, 0}, f.Pix)

	// Mid-scale values rescale linearly: r=16/31, g=32/63, b=8/31.
	binary.LittleEndian.PutUint16(raw, 16<<11|32<<5|8)
	f, err = Decode(raw, g)
	require.NoError(t, err)
	assert.Equal(t, []byte{16 * 255 / 31, 32 * 255 / 63, 8 * 255 / 31}, f.Pix)
}

func TestDecode555(t *testing.T) {
	g := geom(1, 1, 16)
	g.Layout16 = Layout555
	raw := make([]byte, 2)
	binary.LittleEndian.PutUint16(raw, 0x7C00) // pure red in 5-5-5

	f, err := Decode(raw, g)
	require.NoError(t, err)
	assert.Equal(t, []byte{255, 0, 0}, f.Pix)
}

func TestDecode8GrayReplication(t *testing.T) {
	f, err := Decode([]byte{0x00, 0x7F, 0xFF}, geom(3, 1, 8))
	require.NoError(t, err)
	assert.Equal(t, []byte{0, 0, 0, 0x7F, 0x7F, 0x7F, 0xFF, 0xFF, 0xFF}, f.Pix)
}

func TestDecode1BitLSBFirst(t *testing.T) {
	// 0b00000101: pixels 0 and 2 set.
	f, err := Decode([]byte{0x05}, geom(8, 1, 1))
	require.NoError(t, err)
	assert.Equal(t, []byte{0xFF, 0xFF, 0xFF}, f.Pix[0:3])
	assert.Equal(t, []byte{0, 0, 0}, f.Pix[3:6])
	assert.Equal(t, []byte{0xFF, 0xFF, 0xFF}, f.Pix[6:9])
}

func TestDecodeSizeMismatch(t *testing.T) {
	_, err := Decode(make([]byte, 3), geom(2, 2, 16))
	assert.Error(t, err)
}

func TestGeometryValidate(t *testing.T) {
	assert.NoError(t, geom(128, 64, 16).Validate())

	bad := geom(0, 64, 12)
	bad.DevicePath = ""
	err := bad.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "width")
	assert.Contains(t, err.Error(), "depth")
	assert.Contains(t, err.Error(), "device path")
}

func TestGeometryFrameSize(t *testing.T) {
	assert.Equal(t, 128*64*2, geom(128, 64, 16).FrameSize())
	assert.Equal(t, 128*64*4, geom(128, 64, 32).FrameSize())
	assert.Equal(t, 128*64/8, geom(128, 64, 1).FrameSize())
	assert.Equal(t, 2, geom(3, 4, 1).FrameSize(), "1bpp rounds up to whole bytes")
}

func TestEncodePNGRoundTrip(t *testing.T) {
	f, err := Decode([]byte{0x00, 0x00, 0xF8, 0x00}, geom(1, 1, 32)) // pure red BGRX
	require.NoError(t, err)
	require.NoError(t, f.EncodePNG())
	assert.NotEmpty(t, f.PNG)
	// PNG signature
	assert.Equal(t, []byte{0x89, 'P', 'N', 'G'}, f.PNG[:4])
}
