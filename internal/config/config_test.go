package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.Server.Port != 8424 {
		t.Errorf("Port = %d, want 8424", cfg.Server.Port)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("Level = %q, want info", cfg.Logging.Level)
	}
	if !cfg.Watcher.Enabled {
		t.Error("expected watcher enabled by default")
	}
	if cfg.Backup.Retention != 7 {
		t.Errorf("Retention = %d, want 7", cfg.Backup.Retention)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Database.Path != "data/armory.db" {
		t.Errorf("Path = %q, want default", cfg.Database.Path)
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte("server:\n  port: 9001\n  base_path: /armory/\nlogging:\n  level: debug\n")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 9001 {
		t.Errorf("Port = %d, want 9001", cfg.Server.Port)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Level = %q, want debug", cfg.Logging.Level)
	}
	// Trailing slash is trimmed by validation.
	if cfg.Server.BasePath != "/armory" {
		t.Errorf("BasePath = %q, want /armory", cfg.Server.BasePath)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("server:\n  port: 9001\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("ARMORY_PORT", "9002")
	t.Setenv("ARMORY_LOG_FORMAT", "text")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 9002 {
		t.Errorf("Port = %d, want 9002 (env wins)", cfg.Server.Port)
	}
	if cfg.Logging.Format != "text" {
		t.Errorf("Format = %q, want text", cfg.Logging.Format)
	}
}

func TestInvalidBackupInterval(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("backup:\n  enabled: true\n  interval_hours: 0\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for zero backup interval")
	}
}

func TestInvalidPort(t *testing.T) {
	t.Setenv("ARMORY_PORT", "99999")
	if _, err := Load(""); err == nil {
		t.Fatal("expected error for out-of-range port")
	}
}
