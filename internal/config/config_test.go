package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.test.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestDefaultsWithoutFile(t *testing.T) {
	cfg, err := load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != 8080 || cfg.SpeakerCapacity != 5 || cfg.PingPeriod != 54*time.Second {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.SlowConsumerPolicy != "drop" || cfg.Snapshot.Backend != "none" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.HostLoginEnabled() {
		t.Fatalf("host login should be off by default")
	}
}

func TestFileAndEnvOverrides(t *testing.T) {
	path := writeFile(t, `
mode: debug
port: 9000
speaker_capacity: 3
host_password: door
secret: s3cret
allowed_origins:
  - https://venue.example
snapshot:
  backend: sqlite
  path: /tmp/venue.db
  interval: 5s
`)
	t.Setenv("VENUE_PORT", "9100")
	t.Setenv("VENUE_SNAPSHOT_INTERVAL", "10s")

	cfg, err := load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Mode != "debug" || cfg.SpeakerCapacity != 3 {
		t.Fatalf("file values not applied: %+v", cfg)
	}
	if cfg.Port != 9100 {
		t.Fatalf("env override ignored: port=%d", cfg.Port)
	}
	if cfg.Snapshot.Backend != "sqlite" || cfg.Snapshot.Interval != 10*time.Second {
		t.Fatalf("snapshot config: %+v", cfg.Snapshot)
	}
	if !cfg.HostLoginEnabled() {
		t.Fatalf("host login should be enabled")
	}
	if len(cfg.AllowedOrigins) != 1 || cfg.AllowedOrigins[0] != "https://venue.example" {
		t.Fatalf("allowed origins: %v", cfg.AllowedOrigins)
	}
}

func TestValidation(t *testing.T) {
	path := writeFile(t, `
port: 0
slow_consumer_policy: panic
host_password: door
snapshot:
  backend: tape
`)
	_, err := load(path)
	if err == nil {
		t.Fatalf("want validation error")
	}
	for _, want := range []string{"port", "slow_consumer_policy", "snapshot.backend", "secret"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("error %q does not mention %s", err, want)
		}
	}
}
