package referenceframe

import (
	"context"
	"time"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	goutils "go.viam.com/utils"

	"go.viam.com/painter/pointcloud"
	"go.viam.com/painter/spatialmath"
)

// LookupTransformWithTimeout asks the resolver for the latest src->dst pose and gives up after
// timeout, even if the resolver does not honor its context. A non-positive timeout only bounds
// the lookup by ctx.
func LookupTransformWithTimeout(
	ctx context.Context,
	resolver TransformResolver,
	src, dst string,
	timeout time.Duration,
) (spatialmath.Pose, error) {
	if src == dst {
		return spatialmath.NewZeroPose(), nil
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	type lookupResult struct {
		pose spatialmath.Pose
		err  error
	}
	// buffered so an abandoned lookup can still finish
	resultCh := make(chan lookupResult, 1)
	goutils.PanicCapturingGo(func() {
		pose, err := resolver.LookupTransform(ctx, src, dst, time.Time{})
		resultCh <- lookupResult{pose, err}
	})

	select {
	case <-ctx.Done():
		return nil, newUnavailableError(src, dst, ctx.Err())
	case res := <-resultCh:
		switch {
		case res.err != nil && errors.Is(res.err, ErrTransformUnavailable):
			return nil, res.err
		case res.err != nil:
			return nil, newUnavailableError(src, dst, res.err)
		case res.pose == nil:
			return nil, newUnavailableError(src, dst, errors.New("resolver returned no pose"))
		}
		return res.pose, nil
	}
}

// TransformPointCloud returns a new cloud with every point of cloud expressed in dst, in the same
// order and with the same data. The input is never modified.
func TransformPointCloud(
	ctx context.Context,
	resolver TransformResolver,
	cloud *pointcloud.PointCloud,
	dst string,
	timeout time.Duration,
) (*pointcloud.PointCloud, error) {
	if cloud.FrameID == dst {
		return cloud.Map(dst, func(p r3.Vector) r3.Vector { return p }), nil
	}
	pose, err := LookupTransformWithTimeout(ctx, resolver, cloud.FrameID, dst, timeout)
	if err != nil {
		return nil, err
	}
	return cloud.Map(dst, func(p r3.Vector) r3.Vector {
		return spatialmath.TransformPoint(pose, p)
	}), nil
}
