package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Environment != "development" {
		t.Errorf("Environment = %q, expected development", cfg.Environment)
	}
	if cfg.DisableDatabase {
		t.Error("DisableDatabase should default to false")
	}
	if !cfg.CacheEnabled {
		t.Error("CacheEnabled should default to true")
	}
	if cfg.SnapshotTopN != 10 {
		t.Errorf("SnapshotTopN = %d, expected 10", cfg.SnapshotTopN)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("DISABLE_DATABASE", "true")
	t.Setenv("SNAPSHOT_TOP_N", "25")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Environment != "production" {
		t.Errorf("Environment = %q, expected production", cfg.Environment)
	}
	if !cfg.DisableDatabase {
		t.Error("DISABLE_DATABASE=true should disable the database")
	}
	if cfg.SnapshotTopN != 25 {
		t.Errorf("SnapshotTopN = %d, expected 25", cfg.SnapshotTopN)
	}
}

func TestLoadEnvIgnoresInvalidValues(t *testing.T) {
	t.Setenv("SNAPSHOT_TOP_N", "not-a-number")
	t.Setenv("CACHE_ENABLED", "maybe")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.SnapshotTopN != 10 {
		t.Errorf("SnapshotTopN = %d, expected default 10", cfg.SnapshotTopN)
	}
	if !cfg.CacheEnabled {
		t.Error("invalid CACHE_ENABLED should keep the default")
	}
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte("environment: staging\nsnapshot_hour_utc: 3\ncache_key_prefix: pulse-test\n")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write config file: %v", err)
	}
	t.Setenv("CONFIG_FILE", path)
	// Env still wins over the file.
	t.Setenv("ENVIRONMENT", "production")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Environment != "production" {
		t.Errorf("Environment = %q, expected env override to win", cfg.Environment)
	}
	if cfg.SnapshotHourUTC != 3 {
		t.Errorf("SnapshotHourUTC = %d, expected 3 from file", cfg.SnapshotHourUTC)
	}
	if cfg.CacheKeyPrefix != "pulse-test" {
		t.Errorf("CacheKeyPrefix = %q, expected pulse-test from file", cfg.CacheKeyPrefix)
	}
}

func TestLoadConfigFileMissing(t *testing.T) {
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "missing.yaml"))

	if _, err := Load(); err == nil {
		t.Error("Load() should fail when CONFIG_FILE points to a missing file")
	}
}
