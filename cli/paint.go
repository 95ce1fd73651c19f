package cli

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"

	"go.viam.com/painter/config"
	"go.viam.com/painter/logging"
	"go.viam.com/painter/pointcloud"
	"go.viam.com/painter/rimage"
	"go.viam.com/painter/ros"
	"go.viam.com/painter/services/painter"
	"go.viam.com/painter/utils"
)

func isBag(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".bag")
}

// loadBagRequest reads the latest cloud and images of the configured topics in parallel.
func loadBagRequest(ctx context.Context, bags config.Bags, cameraFrame string, logger logging.Logger) (painter.Request, error) {
	for _, required := range []struct{ key, path string }{
		{"cloud_bag", bags.CloudBag},
		{"front_bag", bags.FrontBag},
		{"rear_bag", bags.RearBag},
	} {
		if required.path == "" {
			return painter.Request{}, errors.Errorf("bags.%s is required", required.key)
		}
	}
	req := painter.Request{CameraFrame: cameraFrame}
	elapsed, err := utils.RunInParallel(ctx, []utils.SimpleFunc{
		func(context.Context) error {
			cloud, err := ros.PointCloudFromBag(bags.CloudBag, bags.CloudTopic)
			req.Cloud = cloud
			return errors.Wrapf(err, "cloud from %s", bags.CloudBag)
		},
		func(context.Context) error {
			img, err := ros.ImageFromBag(bags.FrontBag, bags.FrontTopic)
			req.Front = img
			return errors.Wrapf(err, "front image from %s", bags.FrontBag)
		},
		func(context.Context) error {
			img, err := ros.ImageFromBag(bags.RearBag, bags.RearTopic)
			req.Rear = img
			return errors.Wrapf(err, "rear image from %s", bags.RearBag)
		},
	})
	if err != nil {
		return painter.Request{}, err
	}
	logger.Debugw("read bags", "elapsed", elapsed, "points", req.Cloud.Size())
	return req, nil
}

// loadImage reads an image file, or the latest image on topic when path is a bag.
func loadImage(path, topic string) (*rimage.Image, error) {
	if isBag(path) {
		return ros.ImageFromBag(path, topic)
	}
	return rimage.ReadImageFromFile(path)
}

// PaintAction sends the configured bags to a running service and logs what comes back.
func PaintAction(c *cli.Context) error {
	e, err := fromContext(c)
	if err != nil {
		return err
	}
	bags := e.cfg.Bags
	for flag, field := range map[string]*string{
		flagCloudBag: &bags.CloudBag,
		flagFrontBag: &bags.FrontBag,
		flagRearBag:  &bags.RearBag,
	} {
		if c.IsSet(flag) {
			*field = c.String(flag)
		}
	}
	cameraFrame := e.cfg.CameraFrame
	if c.IsSet(flagCameraFrame) {
		cameraFrame = c.String(flagCameraFrame)
	}
	req, err := loadBagRequest(c.Context, bags, cameraFrame, e.logger)
	if err != nil {
		return err
	}

	address := e.cfg.ServiceAddress
	if c.IsSet(flagAddress) {
		address = c.String(flagAddress)
	}
	client, err := painter.NewClient(address, e.logger.Sublogger("client"), painter.MessageSizeDialOption(e.cfg.MaxMessageBytes))
	if err != nil {
		return err
	}
	defer func() {
		if err := client.Close(); err != nil {
			e.logger.Warnw("failed to close client", "error", err)
		}
	}()

	policy := e.cfg.RetryPolicy()
	if c.Bool(flagLoop) {
		policy.Loop = true
	}
	output := c.String(flagOutput)
	e.logger.Infow("painting", "address", address, "points", req.Cloud.Size(), "loop", policy.Loop)
	return client.PaintLoop(c.Context, req, policy, func(resp *painter.Response) {
		e.logger.Infow("received painted cloud",
			"request_id", resp.RequestID,
			"points", resp.Cloud.Size(),
			"no_coverage", resp.Stats.NoCoverage,
		)
		if output == "" {
			return
		}
		if err := pointcloud.WriteToPCDFile(resp.Cloud, output, pointcloud.PCDBinary); err != nil {
			e.logger.Errorw("failed to write painted cloud", "path", output, "error", err)
		}
	})
}
