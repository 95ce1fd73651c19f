package rimage

import (
	"math"

	"github.com/pkg/errors"
)

// ErrUnsupportedEncoding is returned for raw pixel encodings that cannot be decoded.
var ErrUnsupportedEncoding = errors.New("unsupported image encoding")

// Raw pixel encodings, named as sensor_msgs/Image names them.
const (
	EncodingRGB8  = "rgb8"
	EncodingBGR8  = "bgr8"
	EncodingRGBA8 = "rgba8"
	EncodingBGRA8 = "bgra8"
	EncodingMono8 = "mono8"
)

type channelLayout struct {
	channels int
	r, g, b  int
}

var layouts = map[string]channelLayout{
	EncodingRGB8:  {3, 0, 1, 2},
	EncodingBGR8:  {3, 2, 1, 0},
	EncodingRGBA8: {4, 0, 1, 2},
	EncodingBGRA8: {4, 2, 1, 0},
	EncodingMono8: {1, 0, 0, 0},
}

// DecodeRaw decodes an uncompressed pixel buffer. step is the row length in bytes; 0 means
// tightly packed.
func DecodeRaw(width, height, step int, encoding string, data []byte) (*Image, error) {
	layout, ok := layouts[encoding]
	if !ok {
		return nil, errors.Wrapf(ErrUnsupportedEncoding, "%q", encoding)
	}
	if width <= 0 || height <= 0 {
		return nil, errors.Wrapf(ErrBufferSize, "invalid dimensions %dx%d", width, height)
	}
	if width > math.MaxInt/4/height {
		return nil, errors.Wrapf(ErrBufferSize, "dimensions %dx%d are too large", width, height)
	}
	rowBytes := width * layout.channels
	if step == 0 {
		step = rowBytes
	}
	if step < rowBytes {
		return nil, errors.Wrapf(ErrBufferSize, "step %d shorter than a %d byte row", step, rowBytes)
	}
	if height > 1 && step > (math.MaxInt-rowBytes)/(height-1) {
		return nil, errors.Wrapf(ErrBufferSize, "step %d is too large for %d rows", step, height)
	}
	if len(data) < step*(height-1)+rowBytes {
		return nil, errors.Wrapf(ErrBufferSize, "%d bytes for a %dx%d %s image with step %d",
			len(data), width, height, encoding, step)
	}

	pixels := make([]Color, width*height)
	for y := 0; y < height; y++ {
		row := data[y*step : y*step+rowBytes]
		for x := 0; x < width; x++ {
			px := row[x*layout.channels : (x+1)*layout.channels]
			pixels[y*width+x] = Color{px[layout.r], px[layout.g], px[layout.b]}
		}
	}
	return NewImageFromBuffer(width, height, pixels)
}

// EncodeRaw is the inverse of DecodeRaw for the tightly packed color encodings.
func EncodeRaw(img *Image, encoding string) ([]byte, error) {
	layout, ok := layouts[encoding]
	if !ok || encoding == EncodingMono8 {
		return nil, errors.Wrapf(ErrUnsupportedEncoding, "%q", encoding)
	}
	out := make([]byte, len(img.data)*layout.channels)
	for i, c := range img.data {
		px := out[i*layout.channels : (i+1)*layout.channels]
		px[layout.r], px[layout.g], px[layout.b] = c.R, c.G, c.B
		if layout.channels == 4 {
			px[3] = 255
		}
	}
	return out, nil
}
