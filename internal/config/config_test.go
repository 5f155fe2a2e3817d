package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Session.MailboxBuffer < 1 {
		t.Errorf("default mailbox buffer must be positive, got %d", cfg.Session.MailboxBuffer)
	}
	if cfg.Session.SubscriberBuffer < 1 {
		t.Errorf("default subscriber buffer must be positive, got %d", cfg.Session.SubscriberBuffer)
	}
	if cfg.Termination.GetGrace() != 2*time.Second {
		t.Errorf("default grace = %s, want 2s", cfg.Termination.GetGrace())
	}
	if cfg.Sim.GetStepDelay() <= 0 || cfg.Sim.GetDeviceLatency() <= 0 {
		t.Error("default sim delays must be positive")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config must validate: %v", err)
	}
}

func TestLoadFromAppliesDefaults(t *testing.T) {
	path := writeConfig(t, map[string]any{
		"session": map[string]any{"mailbox_buffer": 128},
	})

	cfg, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}

	if cfg.Session.MailboxBuffer != 128 {
		t.Errorf("mailbox_buffer = %d, want 128", cfg.Session.MailboxBuffer)
	}
	if cfg.Session.SubscriberBuffer != DefaultConfig().Session.SubscriberBuffer {
		t.Errorf("subscriber_buffer not defaulted, got %d", cfg.Session.SubscriberBuffer)
	}
	if cfg.Termination.Grace != DefaultConfig().Termination.Grace {
		t.Errorf("grace not defaulted, got %q", cfg.Termination.Grace)
	}
}

func TestLoadFromRejectsInvalidConfig(t *testing.T) {
	tests := []struct {
		name string
		cfg  map[string]any
	}{
		{
			name: "negative mailbox buffer",
			cfg:  map[string]any{"session": map[string]any{"mailbox_buffer": -1}},
		},
		{
			name: "negative subscriber buffer",
			cfg:  map[string]any{"session": map[string]any{"subscriber_buffer": -2}},
		},
		{
			name: "bad grace duration",
			cfg:  map[string]any{"termination": map[string]any{"grace": "soon"}},
		},
		{
			name: "bad sim step delay",
			cfg:  map[string]any{"sim": map[string]any{"step_delay": "fast"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, tt.cfg)
			if _, err := LoadFrom(path); err == nil {
				t.Fatal("expected validation error, got nil")
			}
		})
	}
}

func TestLoadFromRejectsMalformedJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFrom(path); err == nil {
		t.Fatal("expected parse error, got nil")
	}
}

func TestLoadFallsBackToDefaultsWhenFileMissing(t *testing.T) {
	t.Setenv(ConfigEnvVar, filepath.Join(t.TempDir(), "missing.json"))

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Session.MailboxBuffer != DefaultConfig().Session.MailboxBuffer {
		t.Error("expected defaults when config file is missing")
	}
}

func TestLoadHonorsEnvOverride(t *testing.T) {
	path := writeConfig(t, map[string]any{
		"termination": map[string]any{"grace": "5s"},
	})
	t.Setenv(ConfigEnvVar, path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Termination.GetGrace() != 5*time.Second {
		t.Errorf("grace = %s, want 5s", cfg.Termination.GetGrace())
	}
}

func TestGetCachesAndResetClears(t *testing.T) {
	t.Setenv(ConfigEnvVar, filepath.Join(t.TempDir(), "missing.json"))
	Reset()
	t.Cleanup(Reset)

	first, err := Get()
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	second, _ := Get()
	if first != second {
		t.Error("Get should return the cached config")
	}

	Reset()
	third, _ := Get()
	if first == third {
		t.Error("Reset should force a reload")
	}
}

func writeConfig(t *testing.T, cfg map[string]any) string {
	t.Helper()
	data, err := json.Marshal(cfg)
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}
