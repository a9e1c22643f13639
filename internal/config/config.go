// Package config loads the YAML configuration of the dxa command.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

const (
	defaultLineSmoothingLevel    = 1
	defaultLinePointInterval     = 2.5
	defaultProbeRadius           = 4
	defaultSurfaceSmoothingLevel = 8
	defaultOutputDir             = "."
)

// Config is the top level configuration.
type Config struct {
	Version int `yaml:"version"`
	// Environment selects the logger: "production" or "development".
	Environment string        `yaml:"environment"`
	Network     NetworkConfig `yaml:"network"`
	Surface     SurfaceConfig `yaml:"surface"`
	Output      OutputConfig  `yaml:"output"`
}

// NetworkConfig controls dislocation line post-processing.
type NetworkConfig struct {
	LineSmoothingLevel int     `yaml:"line_smoothing_level"`
	LinePointInterval  float64 `yaml:"line_point_interval"`
	DisableSmoothing   bool    `yaml:"disable_smoothing,omitempty"`
	DisableCoarsening  bool    `yaml:"disable_coarsening,omitempty"`
}

// SurfaceConfig controls alpha-shape surface construction.
type SurfaceConfig struct {
	ProbeRadius            float64 `yaml:"probe_radius"`
	SmoothingLevel         int     `yaml:"smoothing_level"`
	SelectSurfaceParticles bool    `yaml:"select_surface_particles,omitempty"`
}

// OutputConfig controls where results are written.
type OutputConfig struct {
	Dir string `yaml:"dir"`
	// STL is the file name of the surface mesh. Empty disables STL export.
	STL string `yaml:"stl,omitempty"`
}

// Default returns the default configuration.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// LoadFromPath loads config from a specific path
func LoadFromPath(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Save writes config to the specified path
func (c *Config) Save(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config dir: %w", err)
		}
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// applyDefaults fills in missing values with defaults
func (c *Config) applyDefaults() {
	if c.Version == 0 {
		c.Version = 1
	}
	if c.Environment == "" {
		c.Environment = "development"
	}
	if c.Network.LineSmoothingLevel == 0 {
		c.Network.LineSmoothingLevel = defaultLineSmoothingLevel
	}
	if c.Network.LinePointInterval == 0 {
		c.Network.LinePointInterval = defaultLinePointInterval
	}
	if c.Surface.ProbeRadius == 0 {
		c.Surface.ProbeRadius = defaultProbeRadius
	}
	if c.Surface.SmoothingLevel == 0 {
		c.Surface.SmoothingLevel = defaultSurfaceSmoothingLevel
	}
	if c.Output.Dir == "" {
		c.Output.Dir = defaultOutputDir
	}
}

// Validate reports configuration values that cannot be used.
func (c *Config) Validate() error {
	var errs []error
	if c.Environment != "production" && c.Environment != "development" {
		errs = append(errs, fmt.Errorf("unknown environment %q", c.Environment))
	}
	if c.Network.LineSmoothingLevel < 0 {
		errs = append(errs, errors.New("line smoothing level must not be negative"))
	}
	if c.Network.LinePointInterval < 0 {
		errs = append(errs, errors.New("line point interval must not be negative"))
	}
	if c.Surface.ProbeRadius <= 0 {
		errs = append(errs, errors.New("probe radius must be positive"))
	}
	if c.Surface.SmoothingLevel < 0 {
		errs = append(errs, errors.New("surface smoothing level must not be negative"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// EffectiveLineSmoothingLevel returns the smoothing level to use, zero when disabled.
func (c *Config) EffectiveLineSmoothingLevel() int {
	if c.Network.DisableSmoothing {
		return 0
	}
	return c.Network.LineSmoothingLevel
}

// EffectiveLinePointInterval returns the coarsening interval to use, zero when disabled.
func (c *Config) EffectiveLinePointInterval() float64 {
	if c.Network.DisableCoarsening {
		return 0
	}
	return c.Network.LinePointInterval
}

// STLPath returns the path of the STL output, or "" if disabled.
func (c *Config) STLPath() string {
	if c.Output.STL == "" {
		return ""
	}
	return filepath.Join(c.Output.Dir, c.Output.STL)
}

// NewLogger creates the logger selected by Environment.
func (c *Config) NewLogger() (*zap.Logger, error) {
	if c.Environment == "production" {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}
