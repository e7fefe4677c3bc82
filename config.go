package binx

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/blang/semver/v4"
	"github.com/hengadev/errsx"

	"github.com/hengadev/binx/internal/monitoring"
)

// Config holds the settings shared by writers and readers built from configuration.
//
// This struct contains only data, no behavior. Configuration can be loaded from the
// environment, a .env file, a YAML or TOML file, or built in code, and is turned into
// options with Options.
//
// Example usage:
//
//	cfg := binx.Config{BlobCodec: "cbor", LogLevel: "debug"}
//	if err := cfg.Validate(); err != nil {
//	    log.Fatal(err)
//	}
//	opts, err := cfg.Options()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	w, err := binx.NewWriter(opts...)
type Config struct {
	// Version is the configuration schema version. Only major version 1 is understood.
	//
	// Optional field. Default: 1.0.0
	Version string `yaml:"version" toml:"version"`

	// BlobCodec names the codec for the opaque fallback: "gob", or any name
	// registered with RegisterBlobCodec (importing providers/cbor adds "cbor").
	//
	// Optional field. Default: gob
	BlobCodec string `yaml:"blob_codec" toml:"blob_codec"`

	// MaxFrameSize bounds what ReadFrom buffers from a source, in bytes.
	//
	// Optional field. Default: DefaultMaxFrameSize
	MaxFrameSize int64 `yaml:"max_frame_size" toml:"max_frame_size"`

	// LogLevel is one of debug, info, warn, error.
	//
	// Optional field. Default: info
	LogLevel string `yaml:"log_level" toml:"log_level"`

	// LogFormat is one of json, text, console.
	//
	// Optional field. Default: json
	LogFormat string `yaml:"log_format" toml:"log_format"`

	// MetricsNamespace prefixes exported metric names.
	//
	// Optional field. Default: binx
	MetricsNamespace string `yaml:"metrics_namespace" toml:"metrics_namespace"`
}

// Validate applies defaults to empty fields and reports every invalid field at once.
// The returned error wraps ErrInvalidConfiguration and an errsx.Map keyed by field.
func (c *Config) Validate() error {
	if c.Version == "" {
		c.Version = DefaultConfigVersion
	}
	if c.BlobCodec == "" {
		c.BlobCodec = BlobCodecGob
	}
	if c.MaxFrameSize == 0 {
		c.MaxFrameSize = DefaultMaxFrameSize
	}
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
	if c.LogFormat == "" {
		c.LogFormat = DefaultLogFormat
	}
	if c.MetricsNamespace == "" {
		c.MetricsNamespace = DefaultMetricsNamespace
	}

	var errs errsx.Map
	if v, err := semver.ParseTolerant(c.Version); err != nil {
		errs.Set("version", err)
	} else if v.Major != SupportedConfigMajor {
		errs.Set("version", fmt.Errorf("major version %d is not supported, want %d", v.Major, SupportedConfigMajor))
	}
	if _, err := LookupBlobCodec(c.BlobCodec); err != nil {
		errs.Set("blob_codec", err)
	}
	if c.MaxFrameSize < 0 {
		errs.Set("max_frame_size", fmt.Errorf("must be positive, got %d", c.MaxFrameSize))
	}
	if _, err := monitoring.ParseLevel(c.LogLevel); err != nil {
		errs.Set("log_level", err)
	}
	if _, err := monitoring.ParseFormat(c.LogFormat); err != nil {
		errs.Set("log_format", err)
	}

	if !errs.IsEmpty() {
		return fmt.Errorf("%w: %w", ErrInvalidConfiguration, errs.AsError())
	}
	return nil
}

// Logger builds the structured logger described by the configuration.
func (c *Config) Logger(component string) (*slog.Logger, error) {
	level, err := monitoring.ParseLevel(c.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfiguration, err)
	}
	format, err := monitoring.ParseFormat(c.LogFormat)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfiguration, err)
	}
	return monitoring.NewLogger(monitoring.LoggerConfig{
		Level:     level,
		Format:    format,
		Output:    os.Stderr,
		Component: component,
	}), nil
}

// Options validates the configuration and converts it into Writer/Reader options.
func (c *Config) Options() ([]Option, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	logger, err := c.Logger("codec")
	if err != nil {
		return nil, err
	}
	return []Option{
		WithBlobCodecName(c.BlobCodec),
		WithMaxFrameSize(c.MaxFrameSize),
		WithLogger(logger),
	}, nil
}
