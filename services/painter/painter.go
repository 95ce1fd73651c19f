// Package painter colorizes point clouds from a pair of front and rear panoramic images.
//
// A request moves through RECEIVED, TRANSFORMING_IN, PROJECTING, TRANSFORMING_OUT and DONE. Only
// the two transforms can fail once the inputs are accepted; a point that no image covers is
// painted with the sentinel color and counted, never rejected.
package painter

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/golang/geo/r3"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"go.viam.com/painter/logging"
	"go.viam.com/painter/pointcloud"
	"go.viam.com/painter/referenceframe"
	"go.viam.com/painter/rimage"
	"go.viam.com/painter/rimage/transform"
	"go.viam.com/painter/utils"
)

const tracerName = "go.viam.com/painter/services/painter"

var (
	// ErrTransformTimeout is returned when either frame transform could not be resolved in time.
	ErrTransformTimeout = errors.New("transform timed out")
	// ErrImageDecode is returned when an image cannot be decoded into pixels.
	ErrImageDecode = errors.New("image decode failed")
	// ErrInvalidRequest is returned for requests missing a cloud or a camera frame.
	ErrInvalidRequest = errors.New("invalid paint request")
)

// State is a stage of a paint request.
type State string

// The stages of a paint request, in order. StateFailed is terminal.
const (
	StateReceived        State = "RECEIVED"
	StateTransformingIn  State = "TRANSFORMING_IN"
	StateProjecting      State = "PROJECTING"
	StateTransformingOut State = "TRANSFORMING_OUT"
	StateDone            State = "DONE"
	StateFailed          State = "FAILED"
)

// RequestError is returned by Paint when a request fails. Stage is the state the request was in
// when it failed; State is always StateFailed.
type RequestError struct {
	RequestID string
	Stage     State
	State     State
	Err       error
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("paint request %s failed in %s: %v", e.RequestID, e.Stage, e.Err)
}

// Unwrap returns the underlying error.
func (e *RequestError) Unwrap() error {
	return e.Err
}

// Request is a cloud to paint and the two images to paint it from. The cloud's points are
// expressed in Cloud.FrameID; the images were taken in CameraFrame.
type Request struct {
	Cloud       *pointcloud.PointCloud
	Front       *rimage.Image
	Rear        *rimage.Image
	CameraFrame string
}

// Stats counts how each point was painted. Front + Rear + Fallback + NoCoverage + Degenerate
// equals Points.
type Stats struct {
	Points int `json:"points"`
	// Front and Rear count points colored by the image facing them.
	Front int `json:"front"`
	Rear  int `json:"rear"`
	// Fallback counts points outside their own image but inside the opposite one.
	Fallback   int `json:"fallback"`
	NoCoverage int `json:"no_coverage"`
	// Degenerate counts points at the camera origin, whose direction is undefined.
	Degenerate int `json:"degenerate"`
}

func (s *Stats) add(other Stats) {
	s.Points += other.Points
	s.Front += other.Front
	s.Rear += other.Rear
	s.Fallback += other.Fallback
	s.NoCoverage += other.NoCoverage
	s.Degenerate += other.Degenerate
}

// Response is a painted cloud, point for point the request's cloud, in the request cloud's frame.
type Response struct {
	RequestID string
	State     State
	Cloud     *pointcloud.PointCloud
	Stats     Stats
}

// Config holds the projection settings shared by all requests.
type Config struct {
	FrontFOV transform.FieldOfView
	RearFOV  transform.FieldOfView
	Sampling rimage.SamplingMode
	// Sentinel paints points no image covers.
	Sentinel rimage.Color
	// FallbackToOpposite samples the opposite image when a point is outside its own.
	FallbackToOpposite bool
	TransformTimeout   time.Duration
	// Workers bounds the projection goroutines; 0 means one per CPU.
	Workers int
	// SphereRadius is the radius of the debug image spheres, in cloud units.
	SphereRadius float64
}

// DefaultConfig returns hemispherical images, bilinear sampling, a black sentinel and a half
// second transform timeout.
func DefaultConfig() Config {
	return Config{
		FrontFOV:           transform.DefaultFieldOfView(),
		RearFOV:            transform.DefaultFieldOfView(),
		Sampling:           rimage.SamplingBilinear,
		Sentinel:           rimage.Black,
		FallbackToOpposite: true,
		TransformTimeout:   500 * time.Millisecond,
		SphereRadius:       5,
	}
}

// Validate checks the config is usable.
func (cfg *Config) Validate() error {
	if err := cfg.FrontFOV.Validate(); err != nil {
		return errors.Wrap(err, "front")
	}
	if err := cfg.RearFOV.Validate(); err != nil {
		return errors.Wrap(err, "rear")
	}
	if _, err := rimage.ParseSamplingMode(string(cfg.Sampling)); err != nil {
		return err
	}
	if cfg.TransformTimeout <= 0 {
		return errors.Errorf("transform timeout must be positive, got %s", cfg.TransformTimeout)
	}
	if cfg.Workers < 0 {
		return errors.Errorf("workers must not be negative, got %d", cfg.Workers)
	}
	if cfg.SphereRadius <= 0 {
		return errors.Errorf("sphere radius must be positive, got %f", cfg.SphereRadius)
	}
	return nil
}

// Painter serves paint requests. It is safe for concurrent use; requests share nothing but the
// config and the transform resolver.
type Painter struct {
	cfg       Config
	resolver  referenceframe.TransformResolver
	logger    logging.Logger
	tracer    trace.Tracer
	debugHook DebugHook
}

// Option configures a Painter.
type Option func(*Painter)

// WithDebugHook registers a hook that receives the intermediate clouds of every request.
func WithDebugHook(hook DebugHook) Option {
	return func(p *Painter) {
		p.debugHook = hook
	}
}

// WithTracerProvider traces requests with the given provider instead of the global one.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(p *Painter) {
		p.tracer = tp.Tracer(tracerName)
	}
}

// New returns a Painter resolving frames with resolver.
func New(cfg Config, resolver referenceframe.TransformResolver, logger logging.Logger, opts ...Option) (*Painter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid painter config")
	}
	if resolver == nil {
		return nil, errors.New("a transform resolver is required")
	}
	p := &Painter{
		cfg:      cfg,
		resolver: resolver,
		logger:   logger,
		tracer:   otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Paint colorizes req.Cloud. On failure the returned error is a *RequestError and no cloud is
// returned.
func (p *Painter) Paint(ctx context.Context, req Request) (*Response, error) {
	requestID := uuid.NewString()
	ctx, span := p.tracer.Start(ctx, "painter::Paint", trace.WithAttributes(attribute.String("painter.request_id", requestID)))
	defer span.End()

	resp, err := p.paint(ctx, requestID, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		p.logger.Warnw("paint request failed", "request_id", requestID, "error", err)
		return nil, err
	}
	span.SetAttributes(
		attribute.Int("painter.points", resp.Stats.Points),
		attribute.Int("painter.no_coverage", resp.Stats.NoCoverage),
	)
	return resp, nil
}

func (p *Painter) paint(ctx context.Context, requestID string, req Request) (*Response, error) {
	fail := func(stage State, err error) error {
		p.logger.Debugw("paint request state", "request_id", requestID, "state", StateFailed, "stage", stage)
		return &RequestError{RequestID: requestID, Stage: stage, State: StateFailed, Err: err}
	}
	transition := func(state State) {
		p.logger.Debugw("paint request state", "request_id", requestID, "state", state)
	}

	transition(StateReceived)
	if req.Cloud == nil {
		return nil, fail(StateReceived, errors.Wrap(ErrInvalidRequest, "no cloud"))
	}
	if req.CameraFrame == "" {
		return nil, fail(StateReceived, errors.Wrap(ErrInvalidRequest, "no camera frame"))
	}
	front, err := transform.NewPanoramicImage(req.Front, transform.MountFront, p.cfg.FrontFOV)
	if err != nil {
		return nil, fail(StateReceived, fmt.Errorf("%w: %w", ErrImageDecode, err))
	}
	rear, err := transform.NewPanoramicImage(req.Rear, transform.MountRear, p.cfg.RearFOV)
	if err != nil {
		return nil, fail(StateReceived, fmt.Errorf("%w: %w", ErrImageDecode, err))
	}
	p.logger.Infow("received paint request",
		"request_id", requestID,
		"cloud_frame", req.Cloud.FrameID,
		"camera_frame", req.CameraFrame,
		"points", req.Cloud.Size(),
		"front", fmt.Sprintf("%dx%d", front.Height(), front.Width()),
		"rear", fmt.Sprintf("%dx%d", rear.Height(), rear.Width()),
	)

	transition(StateTransformingIn)
	cameraCloud, err := referenceframe.TransformPointCloud(ctx, p.resolver, req.Cloud, req.CameraFrame, p.cfg.TransformTimeout)
	if err != nil {
		return nil, fail(StateTransformingIn, fmt.Errorf("%w: %w", ErrTransformTimeout, err))
	}

	transition(StateProjecting)
	colored, stats, err := p.project(ctx, cameraCloud, front, rear)
	if err != nil {
		return nil, fail(StateProjecting, err)
	}

	transition(StateTransformingOut)
	out, err := referenceframe.TransformPointCloud(ctx, p.resolver, colored, req.Cloud.FrameID, p.cfg.TransformTimeout)
	if err != nil {
		return nil, fail(StateTransformingOut, fmt.Errorf("%w: %w", ErrTransformTimeout, err))
	}

	p.publishDebug(requestID, cameraCloud, colored, front, rear)

	transition(StateDone)
	p.logger.Infow("painted cloud",
		"request_id", requestID,
		"points", stats.Points,
		"front", stats.Front,
		"rear", stats.Rear,
		"fallback", stats.Fallback,
		"no_coverage", stats.NoCoverage,
		"degenerate", stats.Degenerate,
	)
	return &Response{RequestID: requestID, State: StateDone, Cloud: out, Stats: stats}, nil
}

// project paints every point of a camera-frame cloud. Slot i of the result is point i.
func (p *Painter) project(
	ctx context.Context,
	cloud *pointcloud.PointCloud,
	front, rear *transform.PanoramicImage,
) (*pointcloud.PointCloud, Stats, error) {
	points := cloud.Points()
	data := make([]pointcloud.Data, len(points))

	var (
		statsMu sync.Mutex
		stats   Stats
	)
	err := utils.ChunkedParallel(ctx, len(points), p.cfg.Workers, func(_ context.Context, _, from, to int) error {
		var chunk Stats
		for i := from; i < to; i++ {
			c, outcome := p.colorPoint(points[i], front, rear)
			data[i] = pointcloud.NewColoredData(c.NRGBA())
			chunk.count(outcome)
		}
		statsMu.Lock()
		stats.add(chunk)
		statsMu.Unlock()
		return nil
	})
	if err != nil {
		return nil, Stats{}, err
	}

	colored, err := pointcloud.NewFromSlices(cloud.FrameID, points, data)
	if err != nil {
		return nil, Stats{}, err
	}
	return colored, stats, nil
}

type outcome int

const (
	outcomeFront outcome = iota
	outcomeRear
	outcomeFallback
	outcomeNoCoverage
	outcomeDegenerate
)

func (s *Stats) count(o outcome) {
	s.Points++
	switch o {
	case outcomeFront:
		s.Front++
	case outcomeRear:
		s.Rear++
	case outcomeFallback:
		s.Fallback++
	case outcomeNoCoverage:
		s.NoCoverage++
	case outcomeDegenerate:
		s.Degenerate++
	}
}

func (p *Painter) colorPoint(pt r3.Vector, front, rear *transform.PanoramicImage) (rimage.Color, outcome) {
	dir, ok := transform.Project(pt)
	if !ok {
		return p.cfg.Sentinel, outcomeDegenerate
	}
	primary, opposite := front, rear
	hit := outcomeFront
	if dir.Mount == transform.MountRear {
		primary, opposite = rear, front
		hit = outcomeRear
	}
	if col, row, ok := primary.PixelFor(dir); ok {
		return rimage.Sample(primary.Image, col, row, p.cfg.Sampling), hit
	}
	if p.cfg.FallbackToOpposite {
		oppositeDir, _ := transform.DirectionFor(pt, dir.Mount.Opposite())
		if col, row, ok := opposite.PixelFor(oppositeDir); ok {
			return rimage.Sample(opposite.Image, col, row, p.cfg.Sampling), outcomeFallback
		}
	}
	return p.cfg.Sentinel, outcomeNoCoverage
}
