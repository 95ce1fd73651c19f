package rimage

import (
	"math"

	"github.com/pkg/errors"
)

// SamplingMode selects how a color is read at fractional pixel coordinates.
type SamplingMode string

const (
	// SamplingBilinear blends the four pixel centers around the coordinate, clamped at the edges.
	SamplingBilinear SamplingMode = "bilinear"
	// SamplingNearest returns the pixel containing the coordinate.
	SamplingNearest SamplingMode = "nearest"
)

// ParseSamplingMode parses a mode name; empty means bilinear.
func ParseSamplingMode(s string) (SamplingMode, error) {
	switch SamplingMode(s) {
	case SamplingBilinear, "":
		return SamplingBilinear, nil
	case SamplingNearest:
		return SamplingNearest, nil
	default:
		return "", errors.Errorf("unknown sampling mode %q, expected %q or %q", s, SamplingNearest, SamplingBilinear)
	}
}

// Sample returns the color at fractional pixel coordinates (col, row), where pixel (x, y) spans
// [x, x+1) × [y, y+1) and its center is at (x+0.5, y+0.5). Coordinates outside the image are
// clamped to the nearest edge pixel; coverage is decided by the caller.
func Sample(img *Image, col, row float64, mode SamplingMode) Color {
	if mode == SamplingNearest {
		return img.GetXY(clamp(int(math.Floor(col)), img.width), clamp(int(math.Floor(row)), img.height))
	}
	return bilinear(img, col, row)
}

func bilinear(img *Image, col, row float64) Color {
	x := col - 0.5
	y := row - 0.5
	x0f, y0f := math.Floor(x), math.Floor(y)
	fx, fy := x-x0f, y-y0f

	x0 := clamp(int(x0f), img.width)
	x1 := clamp(int(x0f)+1, img.width)
	y0 := clamp(int(y0f), img.height)
	y1 := clamp(int(y0f)+1, img.height)

	top := img.GetXY(x0, y0).toColorful().BlendRgb(img.GetXY(x1, y0).toColorful(), fx)
	bottom := img.GetXY(x0, y1).toColorful().BlendRgb(img.GetXY(x1, y1).toColorful(), fx)
	return NewColorFromColorful(top.BlendRgb(bottom, fy))
}

func clamp(v, size int) int {
	if v < 0 {
		return 0
	}
	if v >= size {
		return size - 1
	}
	return v
}
