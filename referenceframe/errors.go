package referenceframe

import "github.com/pkg/errors"

// ErrTransformUnavailable is returned when the relation between two frames could not be resolved
// before the deadline.
var ErrTransformUnavailable = errors.New("transform unavailable")

// NewCycleError returns an error indicating that attaching name to parent would create a loop.
func NewCycleError(name, parent string) error {
	return errors.Errorf("cannot attach frame %q to %q: %q is its own ancestor", name, parent, name)
}

func newUnavailableError(src, dst string, cause error) error {
	if cause == nil {
		return errors.Wrapf(ErrTransformUnavailable, "%q -> %q", src, dst)
	}
	return errors.Wrapf(ErrTransformUnavailable, "%q -> %q: %v", src, dst, cause)
}
