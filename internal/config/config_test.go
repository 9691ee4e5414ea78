package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Server.Addr != ":8080" {
		t.Errorf("Server.Addr = %q, want :8080", cfg.Server.Addr)
	}
	if cfg.Pipeline.Policy != "session" {
		t.Errorf("Pipeline.Policy = %q, want session", cfg.Pipeline.Policy)
	}
	if cfg.Pipeline.SessionTimeout != 2500*time.Millisecond {
		t.Errorf("SessionTimeout = %v, want 2.5s", cfg.Pipeline.SessionTimeout)
	}
	if cfg.Pipeline.LineTolerance != 0.6 {
		t.Errorf("LineTolerance = %v, want 0.6", cfg.Pipeline.LineTolerance)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
server:
  addr: ":9090"
pipeline:
  policy: identity
  cooldown: 5s
  drop_policy: oldest
zones:
  mode: dual
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Server.Addr != ":9090" {
		t.Errorf("Server.Addr = %q, want :9090", cfg.Server.Addr)
	}
	if cfg.Pipeline.Policy != "identity" {
		t.Errorf("Pipeline.Policy = %q, want identity", cfg.Pipeline.Policy)
	}
	if cfg.Pipeline.Cooldown != 5*time.Second {
		t.Errorf("Cooldown = %v, want 5s", cfg.Pipeline.Cooldown)
	}
	if cfg.Zones.Mode != "dual" {
		t.Errorf("Zones.Mode = %q, want dual", cfg.Zones.Mode)
	}
}

func TestLoadRejectsUnknownPolicy(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("pipeline:\n  policy: both\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("expected error for unknown policy")
	}
}
