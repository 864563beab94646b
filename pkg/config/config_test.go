package config

import (
	"os"
	"path/filepath"
	"testing"

	"winstonlutz/pkg/detection"
)

// TestDefaultConfig verifies the defaults match the detection contracts
func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	want := detection.DefaultParams()
	if got := cfg.DetectionParams(); got != want {
		t.Errorf("Expected default detection params %+v, got %+v", want, got)
	}
	if !cfg.Output.Verbose {
		t.Errorf("Expected verbose output by default")
	}
}

// TestLoadConfigMissingFile verifies that a missing file yields defaults
func TestLoadConfigMissingFile(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if got := cfg.DetectionParams(); got != detection.DefaultParams() {
		t.Errorf("Expected defaults for missing file, got %+v", got)
	}
}

// TestConfigRoundTrip verifies save and reload preserve values
func TestConfigRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg", "winstonlutz.yaml")

	cfg := DefaultConfig()
	cfg.Detection.BoxMargin = 15
	cfg.Detection.ThresholdStep = 0.1
	cfg.Output.Verbose = false

	if err := SaveConfig(cfg, path); err != nil {
		t.Fatalf("SaveConfig failed: %v", err)
	}
	loaded, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if loaded.Detection.BoxMargin != 15 {
		t.Errorf("Expected box margin 15, got %d", loaded.Detection.BoxMargin)
	}
	if loaded.Detection.ThresholdStep != 0.1 {
		t.Errorf("Expected threshold step 0.1, got %g", loaded.Detection.ThresholdStep)
	}
	if loaded.Output.Verbose {
		t.Errorf("Expected verbose false after reload")
	}
}

// TestLoadConfigInvalidYAML verifies parse errors are reported
func TestLoadConfigInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("detection: ["), 0644); err != nil {
		t.Fatalf("Failed to write file: %v", err)
	}
	if _, err := LoadConfig(path); err == nil {
		t.Errorf("Expected error for invalid YAML")
	}
}
