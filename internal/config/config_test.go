package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadDefaultsAndOverrides(t *testing.T) {
	t.Setenv("PRICETOOL_BACKEND_URL", "http://override:9000")
	t.Setenv("PRICETOOL_REFRESH_INTERVAL", "30m")

	path := writeConfig(t, `
backendURL: "http://localhost:8000"
logLevel: "debug"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.BackendURL != "http://override:9000" {
		t.Fatalf("backendURL = %q, want env override", cfg.BackendURL)
	}
	if cfg.DataDir != "data" {
		t.Fatalf("dataDir = %q, want default data", cfg.DataDir)
	}

	interval, err := ParseRefreshInterval(cfg.RefreshInterval)
	if err != nil {
		t.Fatalf("parse refresh interval: %v", err)
	}
	if interval != 30*time.Minute {
		t.Fatalf("refresh interval = %s, want 30m", interval)
	}
}

func TestRefreshIntervalDefaultsTo45Minutes(t *testing.T) {
	interval, err := ParseRefreshInterval("")
	if err != nil {
		t.Fatalf("parse empty interval: %v", err)
	}
	if interval != 45*time.Minute {
		t.Fatalf("interval = %s, want 45m", interval)
	}
}

func TestLoadRequiresBackendURL(t *testing.T) {
	path := writeConfig(t, `logLevel: "info"`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for missing backendURL")
	}
}

func TestLoadRejectsBadDurations(t *testing.T) {
	path := writeConfig(t, `
backendURL: "http://localhost:8000"
refreshInterval: "soon"
`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for bad refreshInterval")
	}
}
