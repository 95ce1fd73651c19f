// Package config defines the painter's configuration and how it is read.
package config

import (
	"fmt"
	"net"
	"time"

	"github.com/pkg/errors"
	"github.com/samber/lo"
	"go.uber.org/multierr"

	"go.viam.com/painter/logging"
	"go.viam.com/painter/referenceframe"
	"go.viam.com/painter/rimage"
	"go.viam.com/painter/rimage/transform"
	"go.viam.com/painter/services/painter"
)

// FieldOfView is the angular extent of one image, in degrees.
type FieldOfView struct {
	HorizontalDegrees float64 `json:"horizontal_degrees" env:"HORIZONTAL_DEGREES"`
	VerticalDegrees   float64 `json:"vertical_degrees" env:"VERTICAL_DEGREES"`
}

// Bags names the recordings and topics the paint and colorize commands read their inputs from.
type Bags struct {
	CloudBag   string `json:"cloud_bag" env:"CLOUD_BAG"`
	FrontBag   string `json:"front_bag" env:"FRONT_BAG"`
	RearBag    string `json:"rear_bag" env:"REAR_BAG"`
	CloudTopic string `json:"cloud_topic" env:"CLOUD_TOPIC"`
	FrontTopic string `json:"front_topic" env:"FRONT_TOPIC"`
	RearTopic  string `json:"rear_topic" env:"REAR_TOPIC"`
}

// Settings holds every scalar setting. Each can be overridden from the environment.
type Settings struct {
	ServiceAddress string `json:"service_address" env:"SERVICE_ADDRESS"`
	// ServiceName is informational; the gRPC method name is fixed.
	ServiceName string `json:"service_name" env:"SERVICE_NAME"`
	// MaxMessageBytes bounds a Paint message on both the server and the client.
	MaxMessageBytes int `json:"max_message_bytes" env:"MAX_MESSAGE_BYTES"`

	RetryLoopEnabled         bool    `json:"retry_loop_enabled" env:"RETRY_LOOP_ENABLED"`
	RetryInitialDelaySeconds float64 `json:"retry_initial_delay_seconds" env:"RETRY_INITIAL_DELAY_SECONDS"`
	RetryIntervalSeconds     float64 `json:"retry_interval_seconds" env:"RETRY_INTERVAL_SECONDS"`
	RetryMaxAttempts         int     `json:"retry_max_attempts" env:"RETRY_MAX_ATTEMPTS"`

	TransformTimeoutSeconds float64     `json:"transform_timeout_seconds" env:"TRANSFORM_TIMEOUT_SECONDS"`
	FrontFOV                FieldOfView `json:"front_fov" envPrefix:"FRONT_FOV_"`
	RearFOV                 FieldOfView `json:"rear_fov" envPrefix:"REAR_FOV_"`
	SamplingMode            string      `json:"sampling_mode" env:"SAMPLING_MODE"`
	SentinelColor           string      `json:"sentinel_color" env:"SENTINEL_COLOR"`
	FallbackToOpposite      bool        `json:"fallback_to_opposite" env:"FALLBACK_TO_OPPOSITE"`
	Workers                 int         `json:"workers" env:"WORKERS"`
	SphereRadius            float64     `json:"sphere_radius" env:"SPHERE_RADIUS"`
	CameraFrame             string      `json:"camera_frame" env:"CAMERA_FRAME"`

	Bags Bags `json:"bags" envPrefix:"BAGS_"`

	LogLevel     string `json:"log_level" env:"LOG_LEVEL"`
	LogFile      string `json:"log_file" env:"LOG_FILE"`
	OTelEndpoint string `json:"otel_endpoint" env:"OTEL_ENDPOINT"`
}

// Config is the full painter configuration.
type Config struct {
	Settings `json:",squash"`
	Frames   []referenceframe.LinkConfig `json:"frames"`
}

// Default returns the configuration used for any key a file leaves out.
func Default() *Config {
	return &Config{Settings: Settings{
		ServiceAddress:           "localhost:8085",
		ServiceName:              "/pointcloud_painter/paint",
		MaxMessageBytes:          painter.DefaultMaxMessageBytes,
		RetryInitialDelaySeconds: 2,
		RetryIntervalSeconds:     0.5,
		TransformTimeoutSeconds:  0.5,
		FrontFOV:                 FieldOfView{HorizontalDegrees: 180, VerticalDegrees: 180},
		RearFOV:                  FieldOfView{HorizontalDegrees: 180, VerticalDegrees: 180},
		SamplingMode:             string(rimage.SamplingBilinear),
		SentinelColor:            "#000000",
		FallbackToOpposite:       true,
		SphereRadius:             5,
		CameraFrame:              "camera",
		Bags: Bags{
			CloudTopic: "/laser_stitcher/local_dense_cloud",
			FrontTopic: "front_camera/image_raw",
			RearTopic:  "rear_camera/image_raw",
		},
		LogLevel: "info",
	}}
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

func (fov FieldOfView) toTransform() transform.FieldOfView {
	return transform.NewFieldOfViewDegrees(fov.HorizontalDegrees, fov.VerticalDegrees)
}

// Validate reports every problem with the config at once.
func (cfg *Config) Validate() error {
	var errs error
	if _, _, err := net.SplitHostPort(cfg.ServiceAddress); err != nil {
		errs = multierr.Append(errs, errors.Wrap(err, "service_address"))
	}
	if cfg.MaxMessageBytes <= 0 {
		errs = multierr.Append(errs, errors.Errorf("max_message_bytes must be positive, got %d", cfg.MaxMessageBytes))
	}
	if cfg.RetryInitialDelaySeconds < 0 {
		errs = multierr.Append(errs, errors.Errorf("retry_initial_delay_seconds must not be negative, got %v", cfg.RetryInitialDelaySeconds))
	}
	if cfg.RetryIntervalSeconds <= 0 {
		errs = multierr.Append(errs, errors.Errorf("retry_interval_seconds must be positive, got %v", cfg.RetryIntervalSeconds))
	}
	if cfg.RetryMaxAttempts < 0 {
		errs = multierr.Append(errs, errors.Errorf("retry_max_attempts must not be negative, got %d", cfg.RetryMaxAttempts))
	}
	if cfg.TransformTimeoutSeconds <= 0 {
		errs = multierr.Append(errs, errors.Errorf("transform_timeout_seconds must be positive, got %v", cfg.TransformTimeoutSeconds))
	}
	if err := cfg.FrontFOV.toTransform().Validate(); err != nil {
		errs = multierr.Append(errs, errors.Wrap(err, "front_fov"))
	}
	if err := cfg.RearFOV.toTransform().Validate(); err != nil {
		errs = multierr.Append(errs, errors.Wrap(err, "rear_fov"))
	}
	if _, err := rimage.ParseSamplingMode(cfg.SamplingMode); err != nil {
		errs = multierr.Append(errs, errors.Wrap(err, "sampling_mode"))
	}
	if _, err := rimage.NewColorFromHex(cfg.SentinelColor); err != nil {
		errs = multierr.Append(errs, errors.Wrap(err, "sentinel_color"))
	}
	if cfg.Workers < 0 {
		errs = multierr.Append(errs, errors.Errorf("workers must not be negative, got %d", cfg.Workers))
	}
	if cfg.SphereRadius <= 0 {
		errs = multierr.Append(errs, errors.Errorf("sphere_radius must be positive, got %v", cfg.SphereRadius))
	}
	if cfg.CameraFrame == "" {
		errs = multierr.Append(errs, errors.New("camera_frame is required"))
	}
	if _, err := logging.LevelFromString(cfg.LogLevel); err != nil {
		errs = multierr.Append(errs, errors.Wrap(err, "log_level"))
	}
	for i := range cfg.Frames {
		errs = multierr.Append(errs, cfg.Frames[i].Validate(fmt.Sprintf("frames.%d", i)))
	}
	names := lo.Map(cfg.Frames, func(f referenceframe.LinkConfig, _ int) string { return f.Name })
	for _, dup := range lo.FindDuplicates(names) {
		errs = multierr.Append(errs, errors.Errorf("frame %q is configured more than once", dup))
	}
	return errs
}

// PainterConfig converts the colorization settings.
func (cfg *Config) PainterConfig() (painter.Config, error) {
	sampling, err := rimage.ParseSamplingMode(cfg.SamplingMode)
	if err != nil {
		return painter.Config{}, err
	}
	sentinel, err := rimage.NewColorFromHex(cfg.SentinelColor)
	if err != nil {
		return painter.Config{}, err
	}
	out := painter.Config{
		FrontFOV:           cfg.FrontFOV.toTransform(),
		RearFOV:            cfg.RearFOV.toTransform(),
		Sampling:           sampling,
		Sentinel:           sentinel,
		FallbackToOpposite: cfg.FallbackToOpposite,
		TransformTimeout:   seconds(cfg.TransformTimeoutSeconds),
		Workers:            cfg.Workers,
		SphereRadius:       cfg.SphereRadius,
	}
	return out, out.Validate()
}

// RetryPolicy converts the client retry settings.
func (cfg *Config) RetryPolicy() painter.RetryPolicy {
	return painter.RetryPolicy{
		InitialDelay: seconds(cfg.RetryInitialDelaySeconds),
		Interval:     seconds(cfg.RetryIntervalSeconds),
		Loop:         cfg.RetryLoopEnabled,
		MaxAttempts:  cfg.RetryMaxAttempts,
	}
}

// Level returns the configured log level.
func (cfg *Config) Level() logging.Level {
	level, err := logging.LevelFromString(cfg.LogLevel)
	if err != nil {
		return logging.INFO
	}
	return level
}
