// Package config provides configuration loading and management for the
// Winston-Lutz analysis. It handles loading configuration from YAML files
// and provides default values matching the documented detection contracts.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"winstonlutz/pkg/detection"
)

// Config represents the application configuration loaded from YAML
type Config struct {
	// Detection parameters
	Detection struct {
		// EdgeWindow is the border band width in pixels inspected when
		// cleaning image edges
		EdgeWindow int `yaml:"edgeWindow"`

		// BoxMargin is the margin in pixels added to the field bounding box
		BoxMargin int `yaml:"boxMargin"`

		// RoundnessTolerance is the allowed relative deviation of the BB
		// fill ratio from that of a circle
		RoundnessTolerance float64 `yaml:"roundnessTolerance"`

		// MinFieldFraction and MaxFieldFraction bound the BB pixel count
		// relative to the field bounding box area
		MinFieldFraction float64 `yaml:"minFieldFraction"`
		MaxFieldFraction float64 `yaml:"maxFieldFraction"`

		// SymmetryRatio and SymmetryPixels bound the BB bounding-box
		// aspect difference; the looser of the two applies
		SymmetryRatio  float64 `yaml:"symmetryRatio"`
		SymmetryPixels int     `yaml:"symmetryPixels"`

		// ThresholdStep is the fraction of the intensity spread the BB
		// search threshold drops by per iteration
		ThresholdStep float64 `yaml:"thresholdStep"`
	} `yaml:"detection"`

	// Output parameters
	Output struct {
		// Verbose controls the level of logging output
		Verbose bool `yaml:"verbose"`
	} `yaml:"output"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	p := detection.DefaultParams()
	cfg.Detection.EdgeWindow = p.EdgeWindow
	cfg.Detection.BoxMargin = p.BoxMargin
	cfg.Detection.RoundnessTolerance = p.RoundnessTolerance
	cfg.Detection.MinFieldFraction = p.MinFieldFraction
	cfg.Detection.MaxFieldFraction = p.MaxFieldFraction
	cfg.Detection.SymmetryRatio = p.SymmetryRatio
	cfg.Detection.SymmetryPixels = p.SymmetryPixels
	cfg.Detection.ThresholdStep = p.ThresholdStep

	cfg.Output.Verbose = true

	return cfg
}

// DetectionParams converts the configuration to the detection parameter set.
func (cfg *Config) DetectionParams() detection.Params {
	return detection.Params{
		EdgeWindow:         cfg.Detection.EdgeWindow,
		BoxMargin:          cfg.Detection.BoxMargin,
		RoundnessTolerance: cfg.Detection.RoundnessTolerance,
		MinFieldFraction:   cfg.Detection.MinFieldFraction,
		MaxFieldFraction:   cfg.Detection.MaxFieldFraction,
		SymmetryRatio:      cfg.Detection.SymmetryRatio,
		SymmetryPixels:     cfg.Detection.SymmetryPixels,
		ThresholdStep:      cfg.Detection.ThresholdStep,
	}
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

	// Parse YAML
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
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
	return SaveConfig(DefaultConfig(), configPath)
}
