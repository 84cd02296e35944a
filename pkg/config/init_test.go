package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestInitConfigToPath_CreatesFile(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "blink", "config.yaml")

	if err := InitConfigToPath(path, false); err != nil {
		t.Fatalf("InitConfigToPath failed: %v", err)
	}

	// The generated file must load and validate
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Generated config does not load: %v", err)
	}
	if cfg.HTTP.Port != 8080 {
		t.Errorf("Expected port 8080 in generated config, got %d", cfg.HTTP.Port)
	}
}

func TestInitConfigToPath_RefusesOverwrite(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.yaml")

	if err := os.WriteFile(path, []byte("logging:\n  level: DEBUG\n"), 0600); err != nil {
		t.Fatalf("Failed to seed file: %v", err)
	}

	if err := InitConfigToPath(path, false); err == nil {
		t.Fatal("Expected error when overwriting without --force")
	}

	if err := InitConfigToPath(path, true); err != nil {
		t.Fatalf("InitConfigToPath with force failed: %v", err)
	}
}
