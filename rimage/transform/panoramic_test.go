package transform

import (
	"math"
	"math/rand"
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"

	"go.viam.com/painter/rimage"
)

func TestProjectPartition(t *testing.T) {
	//nolint:gosec
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 1000; i++ {
		p := r3.Vector{X: rng.NormFloat64(), Y: rng.NormFloat64(), Z: rng.NormFloat64()}
		if i%10 == 0 {
			p.Z = 0
		}
		dir, ok := Project(p)
		test.That(t, ok, test.ShouldBeTrue)
		if p.Z >= 0 {
			test.That(t, dir.Mount, test.ShouldEqual, MountFront)
		} else {
			test.That(t, dir.Mount, test.ShouldEqual, MountRear)
		}
		// every routed direction lies in its own image's hemisphere
		test.That(t, math.Abs(dir.Yaw), test.ShouldBeLessThanOrEqualTo, math.Pi/2)
		test.That(t, math.Abs(dir.Pitch), test.ShouldBeLessThanOrEqualTo, math.Pi/2)
	}
	test.That(t, MountFront.Opposite(), test.ShouldEqual, MountRear)
	test.That(t, MountRear.Opposite(), test.ShouldEqual, MountFront)
}

func TestProjectAngles(t *testing.T) {
	dir, ok := Project(r3.Vector{X: 1, Z: 1})
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, dir.Yaw, test.ShouldAlmostEqual, math.Pi/4)
	test.That(t, dir.Pitch, test.ShouldAlmostEqual, 0)

	dir, _ = Project(r3.Vector{Y: 1, Z: 1})
	test.That(t, dir.Yaw, test.ShouldAlmostEqual, 0)
	test.That(t, dir.Pitch, test.ShouldAlmostEqual, math.Pi/4)

	// the rear camera sees camera +X on its left
	dir, _ = Project(r3.Vector{X: 1, Z: -1})
	test.That(t, dir.Mount, test.ShouldEqual, MountRear)
	test.That(t, dir.Yaw, test.ShouldAlmostEqual, -math.Pi/4)

	// straight behind is the center of the rear image
	dir, _ = Project(r3.Vector{Z: -5})
	test.That(t, dir.Yaw, test.ShouldAlmostEqual, 0)
	test.That(t, dir.Pitch, test.ShouldAlmostEqual, 0)

	_, ok = Project(r3.Vector{})
	test.That(t, ok, test.ShouldBeFalse)
}

func TestUnitRoundTrip(t *testing.T) {
	for _, p := range []r3.Vector{{X: 1, Y: 2, Z: 3}, {X: -4, Y: -1, Z: -0.5}, {X: 0, Y: 0, Z: -1}} {
		dir, ok := Project(p)
		test.That(t, ok, test.ShouldBeTrue)
		test.That(t, dir.Unit().Sub(p.Normalize()).Norm(), test.ShouldBeLessThan, 1e-12)
	}
}

func TestToPixel(t *testing.T) {
	fov := DefaultFieldOfView()

	// the optical axis lands in the image center
	col, row, ok := ToPixel(Direction{Mount: MountFront}, fov, 2, 2)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, col, test.ShouldAlmostEqual, 1)
	test.That(t, row, test.ShouldAlmostEqual, 1)

	// left and top edges are inclusive
	col, row, ok = ToPixel(Direction{Yaw: -math.Pi / 2, Pitch: math.Pi / 2}, fov, 100, 50)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, col, test.ShouldAlmostEqual, 0)
	test.That(t, row, test.ShouldAlmostEqual, 0)

	// right and bottom edges are not
	_, _, ok = ToPixel(Direction{Yaw: math.Pi / 2}, fov, 100, 50)
	test.That(t, ok, test.ShouldBeFalse)
	_, _, ok = ToPixel(Direction{Pitch: -math.Pi / 2}, fov, 100, 50)
	test.That(t, ok, test.ShouldBeFalse)

	// with a 180° vertical extent the zenith is on the top row and the nadir is past the bottom one
	zenith, ok := Project(r3.Vector{Y: 1})
	test.That(t, ok, test.ShouldBeTrue)
	_, row, ok = ToPixel(zenith, fov, 100, 50)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, row, test.ShouldAlmostEqual, 0)
	nadir, ok := Project(r3.Vector{Y: -1})
	test.That(t, ok, test.ShouldBeTrue)
	_, row, ok = ToPixel(nadir, fov, 100, 50)
	test.That(t, ok, test.ShouldBeFalse)
	test.That(t, row, test.ShouldAlmostEqual, 50)

	// a narrower lens does not cover 80°
	narrow := NewFieldOfViewDegrees(120, 90)
	_, _, ok = ToPixel(Direction{Yaw: 80 * math.Pi / 180}, narrow, 100, 50)
	test.That(t, ok, test.ShouldBeFalse)
	_, _, ok = ToPixel(Direction{Yaw: 50 * math.Pi / 180}, narrow, 100, 50)
	test.That(t, ok, test.ShouldBeTrue)

	_, _, ok = ToPixel(Direction{Yaw: math.NaN()}, fov, 100, 50)
	test.That(t, ok, test.ShouldBeFalse)
}

func TestFromPixelInverse(t *testing.T) {
	fov := NewFieldOfViewDegrees(190, 170)
	for _, px := range [][2]float64{{0, 0}, {12.25, 3.5}, {639.9, 479.9}} {
		dir := FromPixel(px[0], px[1], fov, 640, 480, MountRear)
		col, row, ok := ToPixel(dir, fov, 640, 480)
		test.That(t, ok, test.ShouldBeTrue)
		test.That(t, col, test.ShouldAlmostEqual, px[0])
		test.That(t, row, test.ShouldAlmostEqual, px[1])
	}
}

func TestFieldOfViewValidate(t *testing.T) {
	test.That(t, DefaultFieldOfView().Validate(), test.ShouldBeNil)
	test.That(t, NewFieldOfViewDegrees(360, 180).Validate(), test.ShouldBeNil)
	test.That(t, NewFieldOfViewDegrees(0, 180).Validate(), test.ShouldNotBeNil)
	test.That(t, NewFieldOfViewDegrees(180, 181).Validate(), test.ShouldNotBeNil)
	test.That(t, FieldOfView{Horizontal: math.NaN(), Vertical: 1}.Validate(), test.ShouldNotBeNil)
}

func TestPanoramicImage(t *testing.T) {
	_, err := NewPanoramicImage(nil, MountFront, DefaultFieldOfView())
	test.That(t, err, test.ShouldNotBeNil)
	_, err = NewPanoramicImage(rimage.NewImage(2, 2), "side", DefaultFieldOfView())
	test.That(t, err, test.ShouldNotBeNil)
	_, err = NewPanoramicImage(rimage.NewImage(2, 2), MountFront, FieldOfView{})
	test.That(t, err, test.ShouldNotBeNil)

	img, err := rimage.NewImageFromBuffer(2, 1, []rimage.Color{rimage.Red, rimage.Blue})
	test.That(t, err, test.ShouldBeNil)
	pano, err := NewPanoramicImage(img, MountRear, DefaultFieldOfView())
	test.That(t, err, test.ShouldBeNil)

	_, _, ok := pano.PixelFor(Direction{Mount: MountFront})
	test.That(t, ok, test.ShouldBeFalse)
	col, _, ok := pano.PixelFor(Direction{Mount: MountRear, Yaw: -0.1})
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, col, test.ShouldBeLessThan, 1)

	sphere := pano.SphereCloud("camera", 5)
	test.That(t, sphere.Size(), test.ShouldEqual, 2)
	test.That(t, sphere.FrameID, test.ShouldEqual, "camera")
	for i := 0; i < sphere.Size(); i++ {
		p, d := sphere.At(i)
		test.That(t, p.Norm(), test.ShouldAlmostEqual, 5)
		test.That(t, p.Z, test.ShouldBeLessThan, 0)
		test.That(t, d.HasColor(), test.ShouldBeTrue)
	}
	// the left pixel of the rear image sits on camera +X
	p, d := sphere.At(0)
	test.That(t, p.X, test.ShouldBeGreaterThan, 0)
	r, _, _ := d.RGB255()
	test.That(t, r, test.ShouldEqual, 255)
}
