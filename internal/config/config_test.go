package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	// Compute defaults
	if cfg.Compute.Workers != 0 {
		t.Errorf("expected worker count 0 (auto), got %d", cfg.Compute.Workers)
	}
	if !cfg.Compute.UseWorkers {
		t.Error("expected use_workers to be true by default")
	}

	// Playback defaults
	if cfg.Playback.Rate != 1.0 {
		t.Errorf("expected playback rate 1.0, got %f", cfg.Playback.Rate)
	}
	if !cfg.Playback.Loop {
		t.Error("expected loop to be true by default")
	}

	// Specular defaults
	if cfg.Specular.Shininess != 32 {
		t.Errorf("expected shininess 32, got %f", cfg.Specular.Shininess)
	}
	if cfg.Specular.Intensity != 1.0 {
		t.Errorf("expected specular intensity 1.0, got %f", cfg.Specular.Intensity)
	}
	if cfg.Specular.Debug {
		t.Error("expected specular debug to be false by default")
	}

	// Viewer defaults
	if cfg.Viewer.Width != 1280 {
		t.Errorf("expected width 1280, got %d", cfg.Viewer.Width)
	}
	if cfg.Viewer.Height != 720 {
		t.Errorf("expected height 720, got %d", cfg.Viewer.Height)
	}
	if !cfg.Viewer.VSync {
		t.Error("expected vsync to be true by default")
	}

	// Logging defaults
	if cfg.Logging.Level != "info" {
		t.Errorf("expected log level 'info', got %s", cfg.Logging.Level)
	}
	if cfg.Logging.LogFile != "" {
		t.Errorf("expected empty log file, got %s", cfg.Logging.LogFile)
	}
}

func TestLoadFromFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "skinforge.yaml")

	yamlContent := `
compute:
  workers: 4
  use_workers: false

playback:
  rate: 2.5
  loop: false

specular:
  shininess: 64
  intensity: 0.5
  debug: true

logging:
  level: "debug"
  log_file: "engine.log"
`

	if err := os.WriteFile(configPath, []byte(yamlContent), 0644); err != nil {
		t.Fatalf("writing temp config: %v", err)
	}

	cfg := Default()
	if err := loadFromFile(cfg, configPath); err != nil {
		t.Fatalf("loading config: %v", err)
	}

	if cfg.Compute.Workers != 4 {
		t.Errorf("expected workers 4, got %d", cfg.Compute.Workers)
	}
	if cfg.Compute.UseWorkers {
		t.Error("expected use_workers false")
	}
	if cfg.Playback.Rate != 2.5 {
		t.Errorf("expected rate 2.5, got %f", cfg.Playback.Rate)
	}
	if cfg.Playback.Loop {
		t.Error("expected loop false")
	}
	if cfg.Specular.Shininess != 64 {
		t.Errorf("expected shininess 64, got %f", cfg.Specular.Shininess)
	}
	if cfg.Specular.Intensity != 0.5 {
		t.Errorf("expected specular intensity 0.5, got %f", cfg.Specular.Intensity)
	}
	if !cfg.Specular.Debug {
		t.Error("expected specular debug true")
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("expected log level 'debug', got %s", cfg.Logging.Level)
	}
	if cfg.Logging.LogFile != "engine.log" {
		t.Errorf("expected log file 'engine.log', got %s", cfg.Logging.LogFile)
	}
}

func TestLoadFromFilePartial(t *testing.T) {
	// Unspecified sections keep default values.
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "skinforge.yaml")

	yamlContent := "compute:\n  workers: 2\n"

	if err := os.WriteFile(configPath, []byte(yamlContent), 0644); err != nil {
		t.Fatalf("writing temp config: %v", err)
	}

	cfg := Default()
	if err := loadFromFile(cfg, configPath); err != nil {
		t.Fatalf("loading config: %v", err)
	}

	if cfg.Compute.Workers != 2 {
		t.Errorf("expected workers 2, got %d", cfg.Compute.Workers)
	}
	if cfg.Playback.Rate != 1.0 {
		t.Errorf("expected default rate preserved, got %f", cfg.Playback.Rate)
	}
	if cfg.Specular.Shininess != 32 {
		t.Errorf("expected default shininess preserved, got %f", cfg.Specular.Shininess)
	}
}

func TestLoadFromFileMissing(t *testing.T) {
	cfg := Default()
	if err := loadFromFile(cfg, "/nonexistent/path/skinforge.yaml"); err == nil {
		t.Error("expected error for missing config file")
	}
}

func TestSaveRoundTrip(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "sub", "skinforge.yaml")

	cfg := Default()
	cfg.Compute.Workers = 6
	cfg.Specular.Shininess = 16

	if err := cfg.SaveTo(configPath); err != nil {
		t.Fatalf("saving config: %v", err)
	}

	loaded := Default()
	if err := loadFromFile(loaded, configPath); err != nil {
		t.Fatalf("reloading config: %v", err)
	}

	if loaded.Compute.Workers != 6 {
		t.Errorf("expected workers 6 after round trip, got %d", loaded.Compute.Workers)
	}
	if loaded.Specular.Shininess != 16 {
		t.Errorf("expected shininess 16 after round trip, got %f", loaded.Specular.Shininess)
	}
}
