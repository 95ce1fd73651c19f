package transform

import (
	"github.com/pkg/errors"

	"go.viam.com/painter/pointcloud"
	"go.viam.com/painter/rimage"
)

// PanoramicImage is a decoded image together with the mount it was taken from and the field of
// view it spans.
type PanoramicImage struct {
	*rimage.Image
	Mount Mount
	FOV   FieldOfView
}

// NewPanoramicImage validates and bundles an image with its mount and field of view.
func NewPanoramicImage(img *rimage.Image, mount Mount, fov FieldOfView) (*PanoramicImage, error) {
	if img == nil || img.Width() == 0 || img.Height() == 0 {
		return nil, errors.Errorf("%s image is empty", mount)
	}
	if mount != MountFront && mount != MountRear {
		return nil, errors.Errorf("unknown mount %q", mount)
	}
	if err := fov.Validate(); err != nil {
		return nil, errors.Wrapf(err, "%s image", mount)
	}
	return &PanoramicImage{Image: img, Mount: mount, FOV: fov}, nil
}

// PixelFor maps a direction relative to this image's mount to fractional pixel coordinates.
// ok is false when the direction is outside the image.
func (pi *PanoramicImage) PixelFor(dir Direction) (col, row float64, ok bool) {
	if dir.Mount != pi.Mount {
		return 0, 0, false
	}
	return ToPixel(dir, pi.FOV, pi.Width(), pi.Height())
}

// SphereCloud places every pixel center on a sphere of the given radius around the camera, colored
// with the pixel. It is a debugging view of how the image wraps around the camera frame.
func (pi *PanoramicImage) SphereCloud(frameID string, radius float64) *pointcloud.PointCloud {
	w, h := pi.Width(), pi.Height()
	pc := pointcloud.NewWithPrealloc(frameID, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			dir := FromPixel(float64(x)+0.5, float64(y)+0.5, pi.FOV, w, h, pi.Mount)
			pc.Append(dir.Unit().Mul(radius), pointcloud.NewColoredData(pi.GetXY(x, y).NRGBA()))
		}
	}
	return pc
}
