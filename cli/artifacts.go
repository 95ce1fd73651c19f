package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/pkg/errors"

	"go.viam.com/painter/logging"
	"go.viam.com/painter/pointcloud"
	"go.viam.com/painter/services/painter"
	"go.viam.com/painter/utils"
)

// artifactWriter saves debug artifacts as <request id>_<name>.pcd files.
type artifactWriter struct {
	dir    string
	logger logging.Logger
	// finished receives a request id once its last artifact is written.
	finished chan string
}

func newArtifactWriter(dir string, logger logging.Logger) (*artifactWriter, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, errors.Wrapf(err, "creating debug directory %s", dir)
	}
	return &artifactWriter{dir: dir, logger: logger, finished: make(chan string, 1)}, nil
}

func (w *artifactWriter) write(artifact painter.DebugArtifact) {
	defer func() {
		if artifact.Name != painter.ArtifactRearSphere {
			return
		}
		select {
		case w.finished <- artifact.RequestID:
		default:
		}
	}()

	path, err := utils.SafeJoinDir(w.dir, fmt.Sprintf("%s_%s.pcd", artifact.RequestID, artifact.Name))
	if err != nil {
		w.logger.Warnw("skipping debug artifact", "name", artifact.Name, "error", err)
		return
	}
	if err := pointcloud.WriteToPCDFile(artifact.Cloud, path, pointcloud.PCDBinary); err != nil {
		w.logger.Warnw("failed to write debug artifact", "path", path, "error", err)
		return
	}
	w.logger.Debugw("wrote debug artifact", "path", path, "points", artifact.Cloud.Size())
}

// wait blocks until the artifacts of requestID are written or ctx is done.
func (w *artifactWriter) wait(ctx context.Context, requestID string) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case id := <-w.finished:
			if id == requestID {
				return nil
			}
		}
	}
}
