// Package transform maps camera-frame points to panoramic image pixels and back.
//
// Camera convention: +Z is the front camera's optical axis, +X points right and +Y points up, so
// image row 0 is the top of the view. The rear camera looks along -Z; its local frame is the camera
// frame rotated by π about +Y, so its local +X is camera -X and the vertical axis is shared.
package transform

import (
	"math"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
)

// Mount identifies which of the two panoramic images a direction belongs to.
type Mount string

const (
	// MountFront is the camera looking along +Z.
	MountFront Mount = "front"
	// MountRear is the camera looking along -Z.
	MountRear Mount = "rear"
)

// Opposite returns the other mount.
func (m Mount) Opposite() Mount {
	if m == MountFront {
		return MountRear
	}
	return MountFront
}

// Direction is a viewing direction relative to one camera's optical axis.
type Direction struct {
	Mount Mount
	// Yaw is the horizontal angle from the optical axis, positive toward the camera's +X, in (-π, π].
	Yaw float64
	// Pitch is the vertical angle from the optical axis, positive toward +Y (up), in [-π/2, π/2].
	Pitch float64
}

// Project computes the direction of a camera-frame point and selects the image that observes it:
// front when z >= 0, rear otherwise. ok is false for a point at the origin, whose direction is
// undefined.
func Project(p r3.Vector) (dir Direction, ok bool) {
	mount := MountFront
	if p.Z < 0 {
		mount = MountRear
	}
	return DirectionFor(p, mount)
}

// DirectionFor computes the direction of a camera-frame point relative to the given mount's own
// optical axis, regardless of which hemisphere the point is in.
func DirectionFor(p r3.Vector, mount Mount) (dir Direction, ok bool) {
	if p.X == 0 && p.Y == 0 && p.Z == 0 {
		return Direction{}, false
	}
	x, z := p.X, p.Z
	if mount == MountRear {
		x, z = -x, -z
	}
	return Direction{
		Mount: mount,
		Yaw:   math.Atan2(x, z),
		Pitch: math.Atan2(p.Y, math.Hypot(x, z)),
	}, true
}

// Unit returns the camera-frame unit vector pointing along the direction.
func (d Direction) Unit() r3.Vector {
	cosPitch := math.Cos(d.Pitch)
	x := cosPitch * math.Sin(d.Yaw)
	z := cosPitch * math.Cos(d.Yaw)
	if d.Mount == MountRear {
		x, z = -x, -z
	}
	return r3.Vector{X: x, Y: math.Sin(d.Pitch), Z: z}
}

// FieldOfView is the angular extent an image covers, in radians.
type FieldOfView struct {
	Horizontal float64
	Vertical   float64
}

// DefaultFieldOfView is the full hemisphere, 180° by 180°.
func DefaultFieldOfView() FieldOfView {
	return FieldOfView{Horizontal: math.Pi, Vertical: math.Pi}
}

// NewFieldOfViewDegrees builds a field of view from degrees.
func NewFieldOfViewDegrees(horizontal, vertical float64) FieldOfView {
	return FieldOfView{Horizontal: horizontal / 180 * math.Pi, Vertical: vertical / 180 * math.Pi}
}

// Validate checks both extents are in (0, 2π] horizontally and (0, π] vertically.
func (fov FieldOfView) Validate() error {
	if !(fov.Horizontal > 0 && fov.Horizontal <= 2*math.Pi) {
		return errors.Errorf("horizontal field of view %f rad must be in (0, 2π]", fov.Horizontal)
	}
	if !(fov.Vertical > 0 && fov.Vertical <= math.Pi) {
		return errors.Errorf("vertical field of view %f rad must be in (0, π]", fov.Vertical)
	}
	return nil
}

// ToPixel maps a direction to fractional pixel coordinates of a width×height image spanning fov:
//
//	col = (yaw + H/2) / H * width
//	row = (V/2 - pitch) / V * height
//
// ok is false when the coordinates fall outside [0,width)×[0,height).
func ToPixel(dir Direction, fov FieldOfView, width, height int) (col, row float64, ok bool) {
	col = (dir.Yaw + fov.Horizontal/2) / fov.Horizontal * float64(width)
	row = (fov.Vertical/2 - dir.Pitch) / fov.Vertical * float64(height)
	ok = col >= 0 && col < float64(width) && row >= 0 && row < float64(height)
	return col, row, ok
}

// FromPixel is the inverse of ToPixel.
func FromPixel(col, row float64, fov FieldOfView, width, height int, mount Mount) Direction {
	return Direction{
		Mount: mount,
		Yaw:   col/float64(width)*fov.Horizontal - fov.Horizontal/2,
		Pitch: fov.Vertical/2 - row/float64(height)*fov.Vertical,
	}
}
