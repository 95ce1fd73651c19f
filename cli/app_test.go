package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang/geo/r3"
	"go.viam.com/test"

	"go.viam.com/painter/config"
	"go.viam.com/painter/logging"
	"go.viam.com/painter/pointcloud"
	"go.viam.com/painter/referenceframe"
	"go.viam.com/painter/rimage"
	"go.viam.com/painter/services/painter"
)

// writeInputs writes a two point cloud in the camera frame and a red front and blue rear image.
func writeInputs(t *testing.T, dir string) (cloudPath, frontPath, rearPath string) {
	t.Helper()
	cloud, err := pointcloud.NewFromSlices("camera", []r3.Vector{{Z: 5}, {Z: -5}}, nil)
	test.That(t, err, test.ShouldBeNil)
	cloudPath = filepath.Join(dir, "cloud.pcd")
	test.That(t, pointcloud.WriteToPCDFile(cloud, cloudPath, pointcloud.PCDAscii), test.ShouldBeNil)

	frontPath = filepath.Join(dir, "front.png")
	test.That(t, rimage.WriteImageToFile(frontPath, rimage.NewUniformImage(4, 4, rimage.Red)), test.ShouldBeNil)
	rearPath = filepath.Join(dir, "rear.ppm")
	test.That(t, rimage.WriteImageToFile(rearPath, rimage.NewUniformImage(4, 4, rimage.Blue)), test.ShouldBeNil)
	return cloudPath, frontPath, rearPath
}

func TestColorize(t *testing.T) {
	dir := t.TempDir()
	cloudPath, frontPath, rearPath := writeInputs(t, dir)
	output := filepath.Join(dir, "painted.pcd")
	debugDir := filepath.Join(dir, "debug")

	var out, errOut bytes.Buffer
	app := NewApp(&out, &errOut)
	err := app.Run([]string{
		"painter", "colorize",
		"--cloud", cloudPath,
		"--front", frontPath,
		"--rear", rearPath,
		"--output", output,
		"--debug-dir", debugDir,
	})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, errOut.String(), test.ShouldContainSubstring, "wrote painted cloud")
	test.That(t, out.String(), test.ShouldContainSubstring, "no coverage")

	painted, err := pointcloud.NewFromFile(output, "camera", logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, painted.Size(), test.ShouldEqual, 2)
	for i, expected := range []rimage.Color{rimage.Red, rimage.Blue} {
		_, d := painted.At(i)
		test.That(t, d.HasColor(), test.ShouldBeTrue)
		test.That(t, rimage.NewColorFromColor(d.Color()), test.ShouldResemble, expected)
	}

	entries, err := os.ReadDir(debugDir)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, len(entries), test.ShouldEqual, 4)
}

func TestColorizeErrors(t *testing.T) {
	dir := t.TempDir()
	cloudPath, frontPath, _ := writeInputs(t, dir)

	var out, errOut bytes.Buffer
	err := NewApp(&out, &errOut).Run([]string{"painter", "colorize", "--cloud", cloudPath})
	test.That(t, err, test.ShouldNotBeNil)

	err = NewApp(&out, &errOut).Run([]string{
		"painter", "colorize",
		"--cloud", cloudPath,
		"--front", frontPath,
		"--rear", filepath.Join(dir, "missing.png"),
		"--output", filepath.Join(dir, "out.pcd"),
	})
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "reading rear image")
}

func TestPaintRequiresBags(t *testing.T) {
	var out, errOut bytes.Buffer
	err := NewApp(&out, &errOut).Run([]string{"painter", "paint"})
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "bags.cloud_bag is required")
}

func TestServeStopsWithContext(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	var out, errOut bytes.Buffer
	err := NewApp(&out, &errOut).RunContext(ctx, []string{"painter", "serve", "--address", "localhost:0"})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, errOut.String(), test.ShouldContainSubstring, "serving painter")
	test.That(t, errOut.String(), test.ShouldContainSubstring, "frames loaded")
}

func TestBadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "painter.json5")
	test.That(t, os.WriteFile(path, []byte(`{workers: -1}`), 0o600), test.ShouldBeNil)
	var out, errOut bytes.Buffer
	err := NewApp(&out, &errOut).Run([]string{"painter", "--config", path, "paint"})
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "workers")
}

func TestArtifactWriter(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "artifacts")
	w, err := newArtifactWriter(dir, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)

	cloud := pointcloud.New("camera")
	cloud.Append(r3.Vector{X: 1}, pointcloud.NewColoredDataRGB(1, 2, 3))
	w.write(painter.DebugArtifact{RequestID: "abc", Name: painter.ArtifactCameraCloud, Cloud: cloud})
	w.write(painter.DebugArtifact{RequestID: "abc", Name: painter.ArtifactRearSphere, Cloud: cloud})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	test.That(t, w.wait(ctx, "abc"), test.ShouldBeNil)
	_, err = os.Stat(filepath.Join(dir, "abc_camera_cloud.pcd"))
	test.That(t, err, test.ShouldBeNil)

	// names that escape the directory are skipped
	w.write(painter.DebugArtifact{RequestID: "../../x", Name: "y", Cloud: cloud})
	_, err = os.Stat(filepath.Join(dir, "..", "..", "x_y.pcd"))
	test.That(t, os.IsNotExist(err), test.ShouldBeTrue)

	short, shortCancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer shortCancel()
	test.That(t, w.wait(short, "other"), test.ShouldNotBeNil)
}

func TestApplyFrames(t *testing.T) {
	logger := logging.NewTestLogger(t)
	frames, err := referenceframe.NewBufferFromConfig([]referenceframe.LinkConfig{{Name: "camera", Parent: "base"}}, logger)
	test.That(t, err, test.ShouldBeNil)

	configs := make(chan *config.Config, 1)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		applyFrames(ctx, configs, frames, logger)
	}()

	cfg := config.Default()
	cfg.Frames = []referenceframe.LinkConfig{
		{Name: "camera", Parent: "base"},
		{Name: "lidar", Parent: "base"},
	}
	configs <- cfg
	lookupCtx, lookupCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer lookupCancel()
	_, err = frames.LookupTransform(lookupCtx, "lidar", "camera", time.Time{})
	test.That(t, err, test.ShouldBeNil)

	cancel()
	<-done
}
