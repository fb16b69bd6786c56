package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_DefaultsWhenFileMissing(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("missing config file must not fail: %v", err)
	}
	if cfg.Refresh.IntervalSeconds != 30 {
		t.Errorf("default interval: %d", cfg.Refresh.IntervalSeconds)
	}
	if cfg.Market.Timezone != "Asia/Shanghai" {
		t.Errorf("default timezone: %s", cfg.Market.Timezone)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults must validate: %v", err)
	}
}

func TestLoad_FileAndEnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := []byte("refresh:\n  interval_seconds: 60\ndatabase:\n  sqlite_path: /tmp/a.db\n")
	if err := os.WriteFile(path, body, 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("SQLITE_PATH", "/tmp/env.db")

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Refresh.IntervalSeconds != 60 {
		t.Errorf("file value not applied: %d", cfg.Refresh.IntervalSeconds)
	}
	if cfg.Database.SQLitePath != "/tmp/env.db" {
		t.Errorf("env override not applied: %s", cfg.Database.SQLitePath)
	}
}

func TestValidate_RejectsTooShortInterval(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	cfg.Refresh.IntervalSeconds = 2
	if err := cfg.Validate(); err == nil {
		t.Error("expected sub-floor interval to be rejected")
	}
}
