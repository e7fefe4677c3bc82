package main

import (
	"errors"
	"fmt"
	"go/token"
	"os"

	"github.com/blang/semver/v4"
	"github.com/hengadev/errsx"
	"gopkg.in/yaml.v3"

	"github.com/hengadev/binx/internal/codegen"
)

// DefaultConfigPath is where init writes and the other commands look by default.
const DefaultConfigPath = "binx.yaml"

// Config represents the configuration for the code generator
type Config struct {
	Version    string                   `yaml:"version"`
	Generation GenerationConfig         `yaml:"generation"`
	Packages   map[string]PackageConfig `yaml:"packages"`
}

// GenerationConfig holds general generation settings
type GenerationConfig struct {
	OutputSuffix   string   `yaml:"output_suffix"`
	FunctionPrefix string   `yaml:"function_prefix"`
	RegisterInInit bool     `yaml:"register_in_init"`
	SkipSuffixes   []string `yaml:"skip_suffixes,omitempty"`
}

// PackageConfig holds per-package overrides
type PackageConfig struct {
	OutputDir string `yaml:"output_dir,omitempty"`
	Skip      bool   `yaml:"skip"`
}

// LoadConfig loads configuration from a YAML file
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("config file not found: %s", path)
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Start with empty config, not defaults
	config := &Config{
		Packages: make(map[string]PackageConfig),
	}
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	return config, nil
}

// LoadConfigOrDefault loads path, falling back to DefaultConfig when it does not exist.
func LoadConfigOrDefault(path string) (*Config, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return DefaultConfig(), nil
	}
	return LoadConfig(path)
}

// SaveConfig saves configuration to a YAML file
func SaveConfig(config *Config, path string) error {
	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// DefaultConfig returns a default configuration
func DefaultConfig() *Config {
	return &Config{
		Version: "1.0.0",
		Generation: GenerationConfig{
			OutputSuffix:   "_binx",
			FunctionPrefix: "Register",
			RegisterInInit: true,
		},
		Packages: make(map[string]PackageConfig),
	}
}

// Validate checks if the configuration is valid. Problems are reported together, keyed by
// the yaml path of the offending setting.
func (c *Config) Validate() error {
	var errs errsx.Map

	// Version is optional
	if c.Version == "" {
		c.Version = "1.0.0"
	}
	if v, err := semver.ParseTolerant(c.Version); err != nil {
		errs.Set("version", err)
	} else if v.Major != 1 {
		errs.Set("version", fmt.Errorf("unsupported config version %s", c.Version))
	}

	if c.Generation.OutputSuffix == "" {
		errs.Set("generation.output_suffix", errors.New("cannot be empty"))
	} else if !isValidOutputSuffix(c.Generation.OutputSuffix) {
		errs.Set("generation.output_suffix", errors.New("must start with underscore or letter and contain only identifier characters"))
	}

	if c.Generation.FunctionPrefix == "" {
		errs.Set("generation.function_prefix", errors.New("cannot be empty"))
	} else if !token.IsIdentifier(c.Generation.FunctionPrefix) || !token.IsExported(c.Generation.FunctionPrefix) {
		errs.Set("generation.function_prefix", errors.New("must be an exported Go identifier"))
	}

	for pkg, pkgConfig := range c.Packages {
		if pkg == "" {
			errs.Set("packages", errors.New("empty package path"))
		}
		if pkgConfig.Skip && pkgConfig.OutputDir != "" {
			errs.Set("packages."+pkg, errors.New("output_dir has no effect on a skipped package"))
		}
	}

	if !errs.IsEmpty() {
		return errs.AsError()
	}
	return nil
}

// DiscoveryConfig returns the codegen discovery settings.
func (c *Config) DiscoveryConfig() *codegen.DiscoveryConfig {
	return &codegen.DiscoveryConfig{
		SkipSuffixes: c.Generation.SkipSuffixes,
		OutputSuffix: c.Generation.OutputSuffix,
	}
}

// ToCodegenConfig converts the YAML config to the codegen GenerationConfig
func (gc GenerationConfig) ToCodegenConfig() codegen.GenerationConfig {
	return codegen.GenerationConfig{
		OutputSuffix:   gc.OutputSuffix,
		FunctionPrefix: gc.FunctionPrefix,
		RegisterInInit: gc.RegisterInInit,
	}
}

// isValidOutputSuffix checks if output suffix is valid
func isValidOutputSuffix(s string) bool {
	if s == "" {
		return false
	}
	first := rune(s[0])
	if !((first >= 'a' && first <= 'z') || (first >= 'A' && first <= 'Z') || first == '_') {
		return false
	}
	for _, r := range s[1:] {
		if !((r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '_') {
			return false
		}
	}
	return true
}
