package spatialmath

import (
	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/num/quat"
)

// Pose represents a rigid transform: a translation and an orientation. Applied to a point it
// rotates first and then translates.
type Pose interface {
	Point() r3.Vector
	Orientation() Orientation
}

type basicPose struct {
	point       r3.Vector
	orientation quat.Number
}

// NewZeroPose returns the identity pose.
func NewZeroPose() Pose {
	return &basicPose{orientation: quat.Number{Real: 1}}
}

// NewPose returns a pose with the given translation and orientation. A nil orientation is no rotation.
func NewPose(point r3.Vector, orientation Orientation) Pose {
	if orientation == nil {
		return NewPoseFromPoint(point)
	}
	return &basicPose{point: point, orientation: Normalize(orientation.Quaternion())}
}

// NewPoseFromPoint returns a pure translation.
func NewPoseFromPoint(point r3.Vector) Pose {
	return &basicPose{point: point, orientation: quat.Number{Real: 1}}
}

// NewPoseFromOrientation returns a pure rotation.
func NewPoseFromOrientation(orientation Orientation) Pose {
	return NewPose(r3.Vector{}, orientation)
}

func (p *basicPose) Point() r3.Vector {
	return p.point
}

func (p *basicPose) Orientation() Orientation {
	q := Quaternion(p.orientation)
	return &q
}

// Compose returns the pose a*b: applying the result to a point applies b, then a.
func Compose(a, b Pose) Pose {
	qa := a.Orientation().Quaternion()
	qb := b.Orientation().Quaternion()
	return &basicPose{
		point:       a.Point().Add(rotate(qa, b.Point())),
		orientation: Normalize(quat.Mul(qa, qb)),
	}
}

// PoseInverse returns the pose that undoes p.
func PoseInverse(p Pose) Pose {
	qInv := quat.Conj(p.Orientation().Quaternion())
	return &basicPose{
		point:       rotate(qInv, p.Point()).Mul(-1),
		orientation: qInv,
	}
}

// PoseBetween returns the pose that takes a to b, i.e. inverse(a)*b.
func PoseBetween(a, b Pose) Pose {
	return Compose(PoseInverse(a), b)
}

// TransformPoint applies the pose to a point.
func TransformPoint(p Pose, pt r3.Vector) r3.Vector {
	return rotate(p.Orientation().Quaternion(), pt).Add(p.Point())
}

// PoseAlmostEqual returns whether two poses are equal within tol (mm or m, whatever the caller uses)
// and within a fixed orientation tolerance.
func PoseAlmostEqual(a, b Pose, tol float64) bool {
	return a.Point().Sub(b.Point()).Norm() < tol && OrientationAlmostEqual(a.Orientation(), b.Orientation())
}

// IsIdentity returns whether the pose neither rotates nor translates.
func IsIdentity(p Pose) bool {
	return PoseAlmostEqual(p, NewZeroPose(), 1e-12)
}

func rotate(q quat.Number, v r3.Vector) r3.Vector {
	if q.Imag == 0 && q.Jmag == 0 && q.Kmag == 0 {
		return v
	}
	rotated := quat.Mul(quat.Mul(q, quat.Number{Imag: v.X, Jmag: v.Y, Kmag: v.Z}), quat.Conj(q))
	return r3.Vector{X: rotated.Imag, Y: rotated.Jmag, Z: rotated.Kmag}
}

// Degrees converts radians to degrees.
func Degrees(rad float64) float64 {
	return rad * radToDeg
}

// Radians converts degrees to radians.
func Radians(deg float64) float64 {
	return deg * degToRad
}
