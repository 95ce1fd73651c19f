// Package rimage holds the in-memory image buffer colors are sampled from, along with decoding
// from raw sensor encodings and image files.
package rimage

import (
	"image"
	"image/color"

	"github.com/pkg/errors"
)

// ErrBufferSize is returned when a buffer does not hold exactly width*height pixels.
var ErrBufferSize = errors.New("image buffer size does not match dimensions")

// Image is a row-major buffer of colors. It implements image.Image and is safe for concurrent
// reads once constructed.
type Image struct {
	data          []Color
	width, height int
}

// NewImage returns a black image of the given size.
func NewImage(width, height int) *Image {
	return &Image{
		data:   make([]Color, width*height),
		width:  width,
		height: height,
	}
}

// NewImageFromBuffer wraps a row-major buffer. The buffer is not copied.
func NewImageFromBuffer(width, height int, data []Color) (*Image, error) {
	if width < 0 || height < 0 || width*height != len(data) {
		return nil, errors.Wrapf(ErrBufferSize, "%dx%d image with %d pixels", width, height, len(data))
	}
	return &Image{data: data, width: width, height: height}, nil
}

// NewUniformImage returns an image filled with a single color.
func NewUniformImage(width, height int, c Color) *Image {
	img := NewImage(width, height)
	for i := range img.data {
		img.data[i] = c
	}
	return img
}

// ConvertImage copies any image.Image into a new Image; the bounds' origin becomes (0,0).
func ConvertImage(img image.Image) *Image {
	if ri, ok := img.(*Image); ok {
		return ri
	}
	bounds := img.Bounds()
	out := NewImage(bounds.Dx(), bounds.Dy())
	for y := 0; y < out.height; y++ {
		for x := 0; x < out.width; x++ {
			out.data[out.kxy(x, y)] = NewColorFromColor(img.At(bounds.Min.X+x, bounds.Min.Y+y))
		}
	}
	return out
}

func (i *Image) kxy(x, y int) int {
	return (y * i.width) + x
}

// In returns whether (x, y) is a pixel of the image.
func (i *Image) In(x, y int) bool {
	return x >= 0 && y >= 0 && x < i.width && y < i.height
}

// Width returns the width in pixels.
func (i *Image) Width() int {
	return i.width
}

// Height returns the height in pixels.
func (i *Image) Height() int {
	return i.height
}

// ColorModel implements image.Image.
func (i *Image) ColorModel() color.Model {
	return color.NRGBAModel
}

// Bounds implements image.Image.
func (i *Image) Bounds() image.Rectangle {
	return image.Rect(0, 0, i.width, i.height)
}

// At implements image.Image.
func (i *Image) At(x, y int) color.Color {
	if !i.In(x, y) {
		return color.NRGBA{}
	}
	return i.data[i.kxy(x, y)]
}

// GetXY returns the color at column x and row y. It panics outside the image.
func (i *Image) GetXY(x, y int) Color {
	return i.data[i.kxy(x, y)]
}

// SetXY sets the color at column x and row y. It panics outside the image.
func (i *Image) SetXY(x, y int, c Color) {
	i.data[i.kxy(x, y)] = c
}
