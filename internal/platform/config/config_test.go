package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
api:
  base_url: http://localhost:9000/api
  timeout: 3s
push:
  url: ws://localhost:9000/app/local
credentials:
  backend: sqlite
log:
  level: debug
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.API.BaseURL != "http://localhost:9000/api/" {
		t.Fatalf("base url not normalised: %q", cfg.API.BaseURL)
	}
	if cfg.API.Timeout != 3*time.Second || cfg.Log.Level != "debug" {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if cfg.Push.Channel != DefaultPushChannel || cfg.Push.Event != DefaultPushEvent {
		t.Fatalf("push defaults lost: %+v", cfg.Push)
	}
	if cfg.StateDir != filepath.Dir(path) || cfg.Credentials.Path != filepath.Join(cfg.StateDir, "dispatchdesk.db") {
		t.Fatalf("unexpected paths: %q %q", cfg.StateDir, cfg.Credentials.Path)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	path := writeConfig(t, "log:\n  level: info\n")
	t.Setenv("DISPATCHDESK_LOG_LEVEL", "warn")
	t.Setenv("DISPATCHDESK_API_TIMEOUT", "7s")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Log.Level != "warn" || cfg.API.Timeout != 7*time.Second {
		t.Fatalf("env overrides not applied: %+v", cfg)
	}
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	tests := map[string]string{
		"unknown backend":  "credentials:\n  backend: etcd\n",
		"redis needs addr": "credentials:\n  backend: redis\n",
		"bad log level":    "log:\n  level: loud\n",
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, body)); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected error for a missing explicit config")
	}
}
