package referenceframe

import (
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"go.viam.com/painter/spatialmath"
)

// Translation is the offset of a frame's origin in its parent, in meters.
type Translation struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Orientation is a rotation about the axis (X, Y, Z) by TH degrees.
type Orientation struct {
	X  float64 `json:"x"`
	Y  float64 `json:"y"`
	Z  float64 `json:"z"`
	TH float64 `json:"th"`
}

// LinkConfig attaches a named frame to its parent with a static pose.
type LinkConfig struct {
	Name        string      `json:"name"`
	Parent      string      `json:"parent"`
	Translation Translation `json:"translation"`
	Orientation Orientation `json:"orientation"`
}

// Validate checks the link names a frame and a parent.
func (cfg *LinkConfig) Validate(path string) error {
	if cfg.Name == "" {
		return errors.Errorf("%s: frame name is required", path)
	}
	if cfg.Parent == "" {
		return errors.Errorf("%s: parent of frame %q is required", path, cfg.Name)
	}
	if cfg.Name == cfg.Parent {
		return errors.Errorf("%s: frame %q cannot be its own parent", path, cfg.Name)
	}
	return nil
}

// Pose returns the pose of the frame in its parent.
func (cfg *LinkConfig) Pose() spatialmath.Pose {
	o := cfg.Orientation
	return spatialmath.NewPose(
		r3.Vector{X: cfg.Translation.X, Y: cfg.Translation.Y, Z: cfg.Translation.Z},
		spatialmath.NewR4AAFromDegrees(o.TH, o.X, o.Y, o.Z),
	)
}
