package config

import (
	"bytes"
	"io"

	"github.com/a8m/envsubst"
	"github.com/caarlos0/env/v11"
	"github.com/go-viper/mapstructure/v2"
	"github.com/pkg/errors"
	"github.com/yosuke-furukawa/json5/encoding/json5"

	"go.viam.com/painter/logging"
)

// EnvPrefix prefixes every environment override, e.g. PAINTER_SERVICE_ADDRESS.
const EnvPrefix = "PAINTER_"

// Read reads a config from the given file. ${VAR} references in the file are expanded before
// parsing. An empty path reads only defaults and environment overrides.
func Read(filePath string, logger logging.Logger) (*Config, error) {
	if filePath == "" {
		return FromReader("", bytes.NewReader(nil), logger)
	}
	buf, err := envsubst.ReadFile(filePath)
	if err != nil {
		return nil, errors.Wrapf(err, "reading config %s", filePath)
	}
	return FromReader(filePath, bytes.NewReader(buf), logger)
}

// FromReader reads a JSON5 config from r. originalPath names the source in errors and logs.
// Keys the file leaves out keep their defaults; PAINTER_* variables override both.
func FromReader(originalPath string, r io.Reader, logger logging.Logger) (*Config, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	attributes := map[string]interface{}{}
	if len(bytes.TrimSpace(raw)) > 0 {
		if err := json5.Unmarshal(raw, &attributes); err != nil {
			return nil, errors.Wrapf(err, "failed to decode config %q", originalPath)
		}
	}

	cfg := Default()
	var md mapstructure.Metadata
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:  "json",
		Result:   cfg,
		Metadata: &md,
	})
	if err != nil {
		return nil, err
	}
	if err := decoder.Decode(attributes); err != nil {
		return nil, errors.Wrapf(err, "failed to decode config %q", originalPath)
	}
	if len(md.Unused) > 0 {
		logger.Warnw("ignoring unknown config keys", "path", originalPath, "keys", md.Unused)
	}

	if err := env.ParseWithOptions(&cfg.Settings, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, errors.Wrap(err, "failed to read environment overrides")
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrapf(err, "invalid config %q", originalPath)
	}
	return cfg, nil
}
