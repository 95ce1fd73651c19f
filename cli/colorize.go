package cli

import (
	"context"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"

	"go.viam.com/painter/pointcloud"
	"go.viam.com/painter/ros"
	"go.viam.com/painter/services/painter"
	"go.viam.com/painter/utils"
)

// ColorizeAction paints one cloud in process and writes it as PCD.
func ColorizeAction(c *cli.Context) error {
	e, err := fromContext(c)
	if err != nil {
		return err
	}
	req := painter.Request{CameraFrame: e.cfg.CameraFrame}
	if c.IsSet(flagCameraFrame) {
		req.CameraFrame = c.String(flagCameraFrame)
	}
	cloudFrame := req.CameraFrame
	if c.IsSet(flagCloudFrame) {
		cloudFrame = c.String(flagCloudFrame)
	}

	bags := e.cfg.Bags
	cloudPath, frontPath, rearPath := c.String(flagCloud), c.String(flagFront), c.String(flagRear)
	if _, err := utils.RunInParallel(c.Context, []utils.SimpleFunc{
		func(context.Context) error {
			var err error
			if isBag(cloudPath) {
				req.Cloud, err = ros.PointCloudFromBag(cloudPath, bags.CloudTopic)
			} else {
				req.Cloud, err = pointcloud.NewFromFile(cloudPath, cloudFrame, e.logger)
			}
			return errors.Wrapf(err, "reading cloud %s", cloudPath)
		},
		func(context.Context) error {
			var err error
			req.Front, err = loadImage(frontPath, bags.FrontTopic)
			return errors.Wrapf(err, "reading front image %s", frontPath)
		},
		func(context.Context) error {
			var err error
			req.Rear, err = loadImage(rearPath, bags.RearTopic)
			return errors.Wrapf(err, "reading rear image %s", rearPath)
		},
	}); err != nil {
		return err
	}

	frames, err := newFrames(e)
	if err != nil {
		return err
	}
	p, artifacts, err := newPainter(c, e, frames)
	if err != nil {
		return err
	}
	resp, err := p.Paint(c.Context, req)
	if err != nil {
		return err
	}
	output := c.String(flagOutput)
	if err := pointcloud.WriteToPCDFile(resp.Cloud, output, pointcloud.PCDBinary); err != nil {
		return errors.Wrapf(err, "writing %s", output)
	}
	e.logger.Infow("wrote painted cloud",
		"path", output,
		"points", resp.Stats.Points,
		"front", resp.Stats.Front,
		"rear", resp.Stats.Rear,
		"fallback", resp.Stats.Fallback,
		"no_coverage", resp.Stats.NoCoverage,
	)
	printStats(c.App.Writer, resp.Stats)
	if artifacts != nil {
		return artifacts.wait(c.Context, resp.RequestID)
	}
	return nil
}

// printStats writes how many points each source colored.
func printStats(w io.Writer, stats painter.Stats) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"Source", "Points"})
	t.AppendRows([]table.Row{
		{"front", stats.Front},
		{"rear", stats.Rear},
		{"fallback", stats.Fallback},
		{"no coverage", stats.NoCoverage},
		{"degenerate", stats.Degenerate},
	})
	t.AppendFooter(table.Row{"total", stats.Points})
	t.Render()
}
