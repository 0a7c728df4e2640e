package content

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/VisionServe/pkg/errors"
)

func solidFrame(w, h int, r, g, b byte) *Frame {
	f := &Frame{Width: w, Height: h, Pix: make([]byte, w*h*3)}
	for i := 0; i < len(f.Pix); i += 3 {
		f.Pix[i], f.Pix[i+1], f.Pix[i+2] = r, g, b
	}
	return f
}

func TestFrameRoundTripPNG(t *testing.T) {
	orig := solidFrame(8, 6, 200, 50, 25)

	encoded, err := EncodeFrame(orig, MIMEPNG)
	require.NoError(t, err)

	decoded, err := DecodeFrame(encoded)
	require.NoError(t, err)
	assert.Equal(t, 8, decoded.Width)
	assert.Equal(t, 6, decoded.Height)
	// png is lossless
	assert.Equal(t, orig.Pix, decoded.Pix)
}

func TestFrameJPEGRoundTripGeometry(t *testing.T) {
	orig := solidFrame(16, 16, 128, 128, 128)

	encoded, err := EncodeFrame(orig, MIMEJPEG)
	require.NoError(t, err)

	decoded, err := DecodeFrame(encoded)
	require.NoError(t, err)
	assert.Equal(t, 16, decoded.Width)
	assert.Equal(t, 16, decoded.Height)
}

func TestDecodeFrameGarbage(t *testing.T) {
	_, err := DecodeFrame([]byte("not an image"))
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeMediaDecodeFailed))
}

func TestEncodeFrameUnsupportedType(t *testing.T) {
	_, err := EncodeFrame(solidFrame(2, 2, 0, 0, 0), "image/tiff")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeMediaTypeUnsupported))
}

func TestEncodeFrameBadGeometry(t *testing.T) {
	f := &Frame{Width: 4, Height: 4, Pix: make([]byte, 5)}
	_, err := EncodeFrame(f, MIMEPNG)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeMediaEncodeFailed))
}

func TestExt(t *testing.T) {
	assert.Equal(t, ".jpg", Ext("image/jpeg"))
	assert.Equal(t, ".mp4", Ext("video/mp4"))
	assert.Equal(t, ".csv", Ext("text/csv; charset=utf-8"))
	assert.Equal(t, ".bin", Ext("application/x-unknown"))
	// only png/jpeg/gif are advertised image types
	assert.Equal(t, ".bin", Ext("image/bmp"))
}
