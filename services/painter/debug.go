package painter

import (
	goutils "go.viam.com/utils"

	"go.viam.com/painter/pointcloud"
	"go.viam.com/painter/rimage/transform"
)

// Names of the debug artifacts handed to a DebugHook.
const (
	ArtifactCameraCloud        = "camera_cloud"
	ArtifactColoredCameraCloud = "colored_camera_cloud"
	ArtifactFrontSphere        = "front_sphere"
	ArtifactRearSphere         = "rear_sphere"
)

// DebugArtifact is an intermediate cloud of a paint request.
type DebugArtifact struct {
	RequestID string
	Name      string
	Cloud     *pointcloud.PointCloud
}

// DebugHook receives debug artifacts. It runs on its own goroutine, after the request that
// produced the artifacts has been answered or while it is finishing.
type DebugHook func(DebugArtifact)

func (p *Painter) publishDebug(
	requestID string,
	cameraCloud, colored *pointcloud.PointCloud,
	front, rear *transform.PanoramicImage,
) {
	hook := p.debugHook
	if hook == nil {
		return
	}
	radius := p.cfg.SphereRadius
	goutils.PanicCapturingGo(func() {
		hook(DebugArtifact{RequestID: requestID, Name: ArtifactCameraCloud, Cloud: cameraCloud})
		hook(DebugArtifact{RequestID: requestID, Name: ArtifactColoredCameraCloud, Cloud: colored})
		hook(DebugArtifact{RequestID: requestID, Name: ArtifactFrontSphere, Cloud: front.SphereCloud(cameraCloud.FrameID, radius)})
		hook(DebugArtifact{RequestID: requestID, Name: ArtifactRearSphere, Cloud: rear.SphereCloud(cameraCloud.FrameID, radius)})
	})
}
