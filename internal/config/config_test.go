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
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoaderDefaults(t *testing.T) {
	l, err := NewLoader("", nil)
	if err != nil {
		t.Fatalf("NewLoader() error = %v", err)
	}

	cfg := l.Current()
	if cfg != DefaultConfig() {
		t.Errorf("Current() = %+v, want defaults", cfg)
	}
}

func TestLoaderReadsFile(t *testing.T) {
	path := writeConfig(t, `
api_base_url: http://backend:9000
monitor_interval: 10s
auto_fix: false
actor: ci
`)
	l, err := NewLoader(path, nil)
	if err != nil {
		t.Fatalf("NewLoader() error = %v", err)
	}

	cfg := l.Current()
	if cfg.APIBaseURL != "http://backend:9000" {
		t.Errorf("APIBaseURL = %q", cfg.APIBaseURL)
	}
	if cfg.MonitorInterval != 10*time.Second {
		t.Errorf("MonitorInterval = %v, want 10s", cfg.MonitorInterval)
	}
	if cfg.AutoFix {
		t.Errorf("AutoFix should be disabled")
	}
	if cfg.Actor != "ci" {
		t.Errorf("Actor = %q, want ci", cfg.Actor)
	}
	// Unset keys keep their defaults.
	if cfg.HealthTimeout != DefaultConfig().HealthTimeout {
		t.Errorf("HealthTimeout = %v, want default", cfg.HealthTimeout)
	}
}

func TestLoaderRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"empty base url", "api_base_url: \"\"\n"},
		{"negative interval", "monitor_interval: -5s\n"},
		{"zero timeout", "health_timeout: 0s\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewLoader(writeConfig(t, tt.body), nil); err == nil {
				t.Errorf("expected validation error")
			}
		})
	}
}

func TestLoaderMissingFile(t *testing.T) {
	if _, err := NewLoader(filepath.Join(t.TempDir(), "absent.yaml"), nil); err == nil {
		t.Errorf("missing file should error")
	}
}

func TestWatchReload(t *testing.T) {
	path := writeConfig(t, "actor: before\n")
	l, err := NewLoader(path, nil)
	if err != nil {
		t.Fatalf("NewLoader() error = %v", err)
	}

	changed := make(chan Config, 1)
	l.Watch(func(cfg Config) {
		select {
		case changed <- cfg:
		default:
		}
	})

	if err := os.WriteFile(path, []byte("actor: after\n"), 0644); err != nil {
		t.Fatalf("rewrite config: %v", err)
	}

	select {
	case cfg := <-changed:
		if cfg.Actor != "after" {
			t.Errorf("reloaded Actor = %q, want after", cfg.Actor)
		}
		if l.Current().Actor != "after" {
			t.Errorf("Current() not updated after reload")
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("config change never observed")
	}
}
