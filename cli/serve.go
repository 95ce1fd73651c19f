package cli

import (
	"context"

	"github.com/urfave/cli/v2"
	goutils "go.viam.com/utils"

	"go.viam.com/painter/config"
	"go.viam.com/painter/logging"
	"go.viam.com/painter/referenceframe"
	"go.viam.com/painter/services/painter"
	"go.viam.com/painter/tracing"
)

const serviceName = "painter"

func newFrames(e *env) (*referenceframe.Buffer, error) {
	frames, err := referenceframe.NewBufferFromConfig(e.cfg.Frames, e.logger.Sublogger("frames"))
	if err != nil {
		return nil, err
	}
	e.logger.Infow("frames loaded", "frames", frames.FrameNames())
	e.logger.Debugf("frame tree\n%s", frames)
	return frames, nil
}

// newPainter builds a painter resolving transforms through frames.
func newPainter(c *cli.Context, e *env, frames *referenceframe.Buffer) (*painter.Painter, *artifactWriter, error) {
	pcfg, err := e.cfg.PainterConfig()
	if err != nil {
		return nil, nil, err
	}

	var (
		opts      []painter.Option
		artifacts *artifactWriter
	)
	if dir := c.String(flagDebugDir); dir != "" {
		artifacts, err = newArtifactWriter(dir, e.logger.Sublogger("debug"))
		if err != nil {
			return nil, nil, err
		}
		opts = append(opts, painter.WithDebugHook(artifacts.write))
	}
	p, err := painter.New(pcfg, frames, e.logger.Sublogger("painter"), opts...)
	if err != nil {
		return nil, nil, err
	}
	return p, artifacts, nil
}

// applyFrames swaps in the frames of every reloaded config until ctx is done. Other settings
// take effect on restart.
func applyFrames(ctx context.Context, configs <-chan *config.Config, frames *referenceframe.Buffer, logger logging.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case cfg := <-configs:
			if err := frames.ApplyConfig(cfg.Frames); err != nil {
				logger.Errorw("keeping previous frames", "error", err)
				continue
			}
			logger.Debugf("frames reloaded\n%s", frames)
		}
	}
}

// ServeAction serves the paint service until interrupted. When started from a config file, frame
// edits to the file apply without a restart.
func ServeAction(c *cli.Context) error {
	e, err := fromContext(c)
	if err != nil {
		return err
	}
	shutdown, err := tracing.Setup(c.Context, serviceName, e.cfg.OTelEndpoint)
	if err != nil {
		return err
	}
	defer func() {
		if err := shutdown(context.Background()); err != nil {
			e.logger.Warnw("failed to flush traces", "error", err)
		}
	}()

	frames, err := newFrames(e)
	if err != nil {
		return err
	}
	p, _, err := newPainter(c, e, frames)
	if err != nil {
		return err
	}

	if path := c.String(flagConfig); path != "" {
		watcher, err := config.NewWatcher(path, config.DefaultReloadDelay, e.logger.Sublogger("config"))
		if err != nil {
			return err
		}
		ctx, cancel := context.WithCancel(c.Context)
		done := make(chan struct{})
		goutils.PanicCapturingGo(func() {
			defer close(done)
			applyFrames(ctx, watcher.Configs(), frames, e.logger)
		})
		defer func() {
			cancel()
			<-done
			if err := watcher.Close(); err != nil {
				e.logger.Warnw("failed to stop config watcher", "error", err)
			}
		}()
	}

	address := e.cfg.ServiceAddress
	if c.IsSet(flagAddress) {
		address = c.String(flagAddress)
	}
	server := painter.NewServer(p, e.logger.Sublogger("server"), painter.MessageSizeServerOptions(e.cfg.MaxMessageBytes)...)
	e.logger.Infow("serving", "address", address, "service", e.cfg.ServiceName)
	return server.ListenAndServe(c.Context, address)
}
