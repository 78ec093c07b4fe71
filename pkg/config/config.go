// Package config provides configuration loading and management for volscan.
// It handles loading configuration from YAML files and provides default values.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"volscan/internal/models"
	"volscan/pkg/geometry"
	"volscan/pkg/scan"
)

// Config represents the application configuration loaded from YAML
type Config struct {
	// Scan parameters
	Scan struct {
		// Offset shifts the scan minimum, in (z, y, x) voxels
		Offset []float64 `yaml:"offset"`

		// Stride is the absolute stride or overlap ratio per dimension;
		// 0 selects the non-overlapping default
		Stride []float64 `yaml:"stride"`

		// Grid is the number of scan coordinates per dimension; 0 spans
		// the whole volume
		Grid []float64 `yaml:"grid"`

		// Blend names the blending mode for overlapping scans
		Blend string `yaml:"blend"`
	} `yaml:"scan"`

	// Outputs maps each output head to its patch shape, e.g. [3, 18, 256, 256]
	Outputs map[string][]int `yaml:"outputs"`

	// Input parameters
	Input struct {
		// Key is the name of the input head
		Key string `yaml:"key"`

		// Patch is the input patch shape
		Patch []int `yaml:"patch"`
	} `yaml:"input"`

	// Output parameters
	Output struct {
		// Format is the slice export format: "tiff" or "jpeg"
		Format string `yaml:"format"`

		// Channel is the output channel exported as slices
		Channel int `yaml:"channel"`

		// Verbose controls per-location progress logging
		Verbose bool `yaml:"verbose"`
	} `yaml:"output"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Scan.Offset = []float64{0, 0, 0}
	cfg.Scan.Stride = []float64{0, 0, 0}
	cfg.Scan.Grid = []float64{0, 0, 0}
	cfg.Scan.Blend = ""

	cfg.Outputs = map[string][]int{
		"output": {1, 8, 64, 64},
	}

	cfg.Input.Key = "input"
	cfg.Input.Patch = []int{8, 64, 64}

	cfg.Output.Format = "tiff"
	cfg.Output.Channel = 0
	cfg.Output.Verbose = true

	return cfg
}

// LoadConfig loads configuration from a YAML file
// If the file doesn't exist, it returns the default configuration
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	// Check if config file exists
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	// Read config file
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	// A file listing its own outputs replaces the default head
	var probe struct {
		Outputs map[string][]int `yaml:"outputs"`
	}
	if err := yaml.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}
	if len(probe.Outputs) > 0 {
		cfg.Outputs = nil
	}

	// Parse YAML
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file: %w", err)
	}

	return cfg, nil
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(cfg *Config, configPath string) error {
	// Create directory if it doesn't exist
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	// Marshal config to YAML
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	// Write to file
	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	return nil
}

// CreateDefaultConfigFile creates a default configuration file at the specified path
func CreateDefaultConfigFile(configPath string) error {
	cfg := DefaultConfig()
	return SaveConfig(cfg, configPath)
}

// Validate checks the configuration for values the scanner cannot use
func (c *Config) Validate() error {
	if _, err := c.ScanParams(); err != nil {
		return err
	}
	if err := c.ScanSpec().Validate(); err != nil {
		return err
	}
	if c.Input.Key == "" {
		return fmt.Errorf("input key must not be empty")
	}
	if err := c.InputSpec().Validate(); err != nil {
		return fmt.Errorf("input patch: %w", err)
	}
	switch c.Output.Format {
	case "tiff", "jpeg":
	default:
		return fmt.Errorf("unsupported output format %q", c.Output.Format)
	}
	return nil
}

// ScanParams converts the scan section into scanner parameters
func (c *Config) ScanParams() (scan.Params, error) {
	var p scan.Params
	var err error
	if p.Offset, err = geometry.FromSlice(c.Scan.Offset); err != nil {
		return p, fmt.Errorf("scan offset: %w", err)
	}
	if p.Stride, err = geometry.FromSlice(c.Scan.Stride); err != nil {
		return p, fmt.Errorf("scan stride: %w", err)
	}
	if p.Grid, err = geometry.FromSlice(c.Scan.Grid); err != nil {
		return p, fmt.Errorf("scan grid: %w", err)
	}
	p.Blend = c.Scan.Blend
	return p, nil
}

// ScanSpec returns the output heads as a scan spec
func (c *Config) ScanSpec() models.ScanSpec {
	spec := make(models.ScanSpec, len(c.Outputs))
	for key, shape := range c.Outputs {
		spec[key] = models.PatchShape(shape)
	}
	return spec
}

// InputSpec returns the input head as a single-entry spec
func (c *Config) InputSpec() models.ScanSpec {
	return models.ScanSpec{c.Input.Key: models.PatchShape(c.Input.Patch)}
}
