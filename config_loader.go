package binx

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// LoadConfigFromEnvironment loads configuration from BINX_* environment variables.
//
// All variables are optional; defaults are applied by Validate:
//   - BINX_CONFIG_VERSION (default: 1.0.0)
//   - BINX_BLOB_CODEC (default: gob)
//   - BINX_MAX_FRAME_SIZE (default: 64 MiB)
//   - BINX_LOG_LEVEL (default: info)
//   - BINX_LOG_FORMAT (default: json)
//   - BINX_METRICS_NAMESPACE (default: binx)
func LoadConfigFromEnvironment() (Config, error) {
	cfg := Config{
		Version:          os.Getenv(EnvConfigVersion),
		BlobCodec:        os.Getenv(EnvBlobCodec),
		LogLevel:         os.Getenv(EnvLogLevel),
		LogFormat:        os.Getenv(EnvLogFormat),
		MetricsNamespace: os.Getenv(EnvMetricsNamespace),
	}
	if raw := os.Getenv(EnvMaxFrameSize); raw != "" {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return Config{}, fmt.Errorf("%w: %s: %w", ErrInvalidConfiguration, EnvMaxFrameSize, err)
		}
		cfg.MaxFrameSize = n
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// LoadConfigFromDotEnv loads the given .env files into the process environment, without
// overriding variables that are already set, then reads the configuration from it.
// With no paths, ./.env is used.
func LoadConfigFromDotEnv(paths ...string) (Config, error) {
	if err := godotenv.Load(paths...); err != nil {
		return Config{}, fmt.Errorf("%w: load env file: %w", ErrInvalidConfiguration, err)
	}
	return LoadConfigFromEnvironment()
}

// LoadConfigFile reads a YAML (.yaml, .yml) or TOML (.toml) configuration file.
func LoadConfigFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
			return Config{}, fmt.Errorf("%w: parse %s: %w", ErrInvalidConfiguration, path, err)
		}
	case ".toml":
		md, err := toml.Decode(string(data), &cfg)
		if err != nil {
			return Config{}, fmt.Errorf("%w: parse %s: %w", ErrInvalidConfiguration, path, err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			return Config{}, fmt.Errorf("%w: %s: unknown keys %v", ErrInvalidConfiguration, path, undecoded)
		}
	default:
		return Config{}, fmt.Errorf("%w: unsupported config file extension %q", ErrInvalidConfiguration, ext)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
