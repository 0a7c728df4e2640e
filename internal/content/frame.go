package content

import (
	"bytes"
	"image"
	"image/jpeg"
	"image/png"

	_ "image/gif"

	"github.com/turtacn/VisionServe/pkg/errors"
)

// Frame is one decoded raster in packed RGB24 layout, the format exchanged
// with predictors and the video codec processes.
type Frame struct {
	Width  int
	Height int
	Pix    []byte
}

// Size returns the byte length of one frame at the given geometry.
func frameSize(width, height int) int {
	return width * height * 3
}

// DecodeFrame decodes an encoded still image into a Frame.
func DecodeFrame(data []byte) (*Frame, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeMediaDecodeFailed, "image decode failed")
	}
	bounds := img.Bounds()
	f := &Frame{
		Width:  bounds.Dx(),
		Height: bounds.Dy(),
		Pix:    make([]byte, frameSize(bounds.Dx(), bounds.Dy())),
	}
	i := 0
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, _ := img.At(x, y).RGBA()
			f.Pix[i] = byte(r >> 8)
			f.Pix[i+1] = byte(g >> 8)
			f.Pix[i+2] = byte(b >> 8)
			i += 3
		}
	}
	return f, nil
}

// EncodeFrame encodes a Frame to the requested image MIME type.
func EncodeFrame(f *Frame, mimeType string) ([]byte, error) {
	if len(f.Pix) != frameSize(f.Width, f.Height) {
		return nil, errors.New(errors.ErrCodeMediaEncodeFailed, "frame buffer does not match geometry")
	}
	img := image.NewNRGBA(image.Rect(0, 0, f.Width, f.Height))
	for p, q := 0, 0; p < len(f.Pix); p, q = p+3, q+4 {
		img.Pix[q] = f.Pix[p]
		img.Pix[q+1] = f.Pix[p+1]
		img.Pix[q+2] = f.Pix[p+2]
		img.Pix[q+3] = 0xff
	}

	var buf bytes.Buffer
	var err error
	switch normalizeMIME(mimeType) {
	case MIMEPNG:
		err = png.Encode(&buf, img)
	case MIMEJPEG, "":
		err = jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90})
	default:
		return nil, errors.New(errors.ErrCodeMediaTypeUnsupported, "unsupported image encode type").
			WithDetail(mimeType)
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeMediaEncodeFailed, "image encode failed")
	}
	return buf.Bytes(), nil
}
