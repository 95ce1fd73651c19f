// Package cli contains the painter command line.
package cli

import (
	"io"

	"github.com/urfave/cli/v2"
	"go.uber.org/multierr"

	"go.viam.com/painter/config"
	"go.viam.com/painter/logging"
	"go.viam.com/painter/utils"
)

const (
	// Flags.
	flagConfig      = "config"
	flagDebug       = "debug"
	flagAddress     = "address"
	flagOutput      = "output"
	flagDebugDir    = "debug-dir"
	flagLoop        = "loop"
	flagCloud       = "cloud"
	flagCloudFrame  = "cloud-frame"
	flagFront       = "front"
	flagRear        = "rear"
	flagCloudBag    = "cloud-bag"
	flagFrontBag    = "front-bag"
	flagRearBag     = "rear-bag"
	flagCameraFrame = "camera-frame"

	metadataKey = "painter"
)

// env holds what every command needs once flags and config are read.
type env struct {
	cfg     *config.Config
	logger  logging.Logger
	closers []io.Closer
}

func fromContext(c *cli.Context) (*env, error) {
	e, ok := c.App.Metadata[metadataKey].(*env)
	if !ok {
		return nil, utils.NewUnexpectedTypeError(&env{}, c.App.Metadata[metadataKey])
	}
	return e, nil
}

// setup reads the config and builds the logger before any command runs.
func setup(c *cli.Context) error {
	logger := logging.NewBlankLogger("painter")
	logger.AddAppender(logging.NewWriterAppender(c.App.ErrWriter))

	cfg, err := config.Read(c.String(flagConfig), logger)
	if err != nil {
		return err
	}
	logger.SetLevel(cfg.Level())
	if c.Bool(flagDebug) {
		logger.SetLevel(logging.DEBUG)
	}

	e := &env{cfg: cfg, logger: logger}
	if cfg.LogFile != "" {
		appender, closer := logging.NewFileAppender(cfg.LogFile)
		logger.AddAppender(appender)
		e.closers = append(e.closers, closer)
	}
	if c.App.Metadata == nil {
		c.App.Metadata = map[string]interface{}{}
	}
	c.App.Metadata[metadataKey] = e
	return nil
}

func teardown(c *cli.Context) error {
	e, err := fromContext(c)
	if err != nil {
		// setup failed; nothing to release
		return nil
	}
	// syncing a terminal reports spurious errors
	//nolint:errcheck
	e.logger.Sync()
	return closeAll(e.closers...)
}

var (
	cameraFrameFlag = &cli.StringFlag{
		Name:  flagCameraFrame,
		Usage: "frame the images are taken in, overriding camera_frame",
	}
	debugDirFlag = &cli.StringFlag{
		Name:  flagDebugDir,
		Usage: "write the debug clouds of every request as PCD files under `DIR`",
	}
)

// NewApp returns the painter command line writing to out and errOut.
func NewApp(out, errOut io.Writer) *cli.App {
	return &cli.App{
		Name:            "painter",
		Usage:           "color lidar point clouds from a front and a rear panoramic camera",
		HideHelpCommand: true,
		Writer:          out,
		ErrWriter:       errOut,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    flagConfig,
				Aliases: []string{"c"},
				Usage:   "load configuration from `FILE`",
			},
			&cli.BoolFlag{
				Name:    flagDebug,
				Aliases: []string{"vvv"},
				Usage:   "enable debug logging",
			},
		},
		Before: setup,
		After:  teardown,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "serve the paint service",
				Action: ServeAction,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  flagAddress,
						Usage: "listen on `HOST:PORT`, overriding service_address",
					},
					debugDirFlag,
				},
			},
			{
				Name:   "paint",
				Usage:  "send the latest cloud and images of the configured bags to a running service",
				Action: PaintAction,
				Flags: []cli.Flag{
					&cli.StringFlag{Name: flagAddress, Usage: "service `HOST:PORT`, overriding service_address"},
					&cli.StringFlag{Name: flagCloudBag, Usage: "bag holding the cloud, overriding bags.cloud_bag"},
					&cli.StringFlag{Name: flagFrontBag, Usage: "bag holding the front image, overriding bags.front_bag"},
					&cli.StringFlag{Name: flagRearBag, Usage: "bag holding the rear image, overriding bags.rear_bag"},
					cameraFrameFlag,
					&cli.BoolFlag{Name: flagLoop, Usage: "keep repainting, as retry_loop_enabled"},
					&cli.StringFlag{Name: flagOutput, Usage: "write each painted cloud to `FILE` as PCD"},
				},
			},
			{
				Name:   "colorize",
				Usage:  "paint a cloud in process from files or bags",
				Action: ColorizeAction,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     flagCloud,
						Required: true,
						Usage:    "cloud `FILE` (.pcd, .las or .bag)",
					},
					&cli.StringFlag{
						Name:  flagCloudFrame,
						Usage: "frame of a .pcd or .las cloud; defaults to the camera frame",
					},
					&cli.StringFlag{
						Name:     flagFront,
						Required: true,
						Usage:    "front image `FILE` (image or .bag)",
					},
					&cli.StringFlag{
						Name:     flagRear,
						Required: true,
						Usage:    "rear image `FILE` (image or .bag)",
					},
					&cli.StringFlag{
						Name:     flagOutput,
						Required: true,
						Usage:    "write the painted cloud to `FILE` as PCD",
					},
					cameraFrameFlag,
					debugDirFlag,
				},
			},
		},
	}
}

// closeAll closes every closer and reports all failures.
func closeAll(closers ...io.Closer) error {
	var errs error
	for _, c := range closers {
		errs = multierr.Append(errs, c.Close())
	}
	return errs
}
