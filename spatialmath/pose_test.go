package spatialmath

import (
	"math"
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"
)

func TestTransformPoint(t *testing.T) {
	// quarter turn about +Z, then 1 along +X
	pose := NewPose(r3.Vector{X: 1}, &R4AA{Theta: math.Pi / 2, RZ: 1})
	out := TransformPoint(pose, r3.Vector{X: 1})
	test.That(t, out.X, test.ShouldAlmostEqual, 1)
	test.That(t, out.Y, test.ShouldAlmostEqual, 1)
	test.That(t, out.Z, test.ShouldAlmostEqual, 0)
}

func TestPoseInverse(t *testing.T) {
	pose := NewPose(r3.Vector{X: 3, Y: -2, Z: 0.5}, &EulerAngles{Roll: 0.3, Pitch: -0.7, Yaw: 2.1})
	pt := r3.Vector{X: 0.25, Y: 7, Z: -4}

	roundTrip := TransformPoint(PoseInverse(pose), TransformPoint(pose, pt))
	test.That(t, roundTrip.Sub(pt).Norm(), test.ShouldBeLessThan, 1e-9)

	test.That(t, PoseAlmostEqual(Compose(pose, PoseInverse(pose)), NewZeroPose(), 1e-9), test.ShouldBeTrue)
}

func TestCompose(t *testing.T) {
	a := NewPose(r3.Vector{Z: 1}, &R4AA{Theta: math.Pi, RY: 1})
	b := NewPose(r3.Vector{X: 2}, &R4AA{Theta: math.Pi / 2, RX: 1})
	pt := r3.Vector{X: 1, Y: 2, Z: 3}

	expected := TransformPoint(a, TransformPoint(b, pt))
	actual := TransformPoint(Compose(a, b), pt)
	test.That(t, actual.Sub(expected).Norm(), test.ShouldBeLessThan, 1e-9)

	between := PoseBetween(a, Compose(a, b))
	test.That(t, PoseAlmostEqual(between, b, 1e-9), test.ShouldBeTrue)
}

func TestOrientationConversions(t *testing.T) {
	ea := &EulerAngles{Roll: 0.1, Pitch: 0.2, Yaw: -0.3}
	back := QuatToEulerAngles(ea.Quaternion())
	test.That(t, back.Roll, test.ShouldAlmostEqual, ea.Roll)
	test.That(t, back.Pitch, test.ShouldAlmostEqual, ea.Pitch)
	test.That(t, back.Yaw, test.ShouldAlmostEqual, ea.Yaw)

	aa := NewR4AAFromDegrees(90, 0, 0, 2)
	test.That(t, aa.Theta, test.ShouldAlmostEqual, math.Pi/2)
	test.That(t, OrientationAlmostEqual(aa, aa.EulerAngles()), test.ShouldBeTrue)
	test.That(t, aa.EulerAngles().Yaw, test.ShouldAlmostEqual, math.Pi/2)

	// zero axis means no rotation
	test.That(t, OrientationAlmostEqual(&R4AA{Theta: 1}, NewZeroOrientation()), test.ShouldBeTrue)
	test.That(t, QuatToR4AA(NewZeroOrientation().Quaternion()), test.ShouldResemble, NewR4AA())
}

func TestNilOrientation(t *testing.T) {
	pose := NewPose(r3.Vector{Y: 4}, nil)
	test.That(t, TransformPoint(pose, r3.Vector{}), test.ShouldResemble, r3.Vector{Y: 4})
}
