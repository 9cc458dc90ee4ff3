package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

const validYAML = `
environment: production
server:
  host: "127.0.0.1"
  port: 8080
storage:
  data_dir: "/var/lib/ringvault"
  file_name: "ring.json"
  compress: true
cors:
  origins: ["https://dash.example.com"]
cache:
  enabled: true
  size_mb: 8
  ttl: 10s
log:
  level: debug
`

var envNames = []string{
	"RINGVAULT_ENV", "RINGVAULT_SERVER_HOST", "RINGVAULT_SERVER_PORT", "RINGVAULT_DATA_DIR",
	"RINGVAULT_STORAGE_FILE", "RINGVAULT_STORAGE_COMPRESS", "RINGVAULT_CORS_ORIGINS",
	"RINGVAULT_CACHE_ENABLED", "RINGVAULT_METRICS_ENABLED", "RINGVAULT_TAILSCALE_ENABLED",
	"RINGVAULT_TAILSCALE_HOSTNAME", "RINGVAULT_TAILSCALE_STATE_DIR", "RINGVAULT_LOG_LEVEL",
	"HOST", "PORT", "DATA_DIR", "RAILWAY_VOLUME_MOUNT_PATH", "CORS_ORIGINS",
}

// clearEnv blanks every variable Load reads so the host environment cannot
// leak into a test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, n := range envNames {
		t.Setenv(n, "")
	}
}

func writeTemp(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

// TestLoadValid verifies that a well-formed YAML config loads with all fields populated.
func TestLoadValid(t *testing.T) {
	clearEnv(t)
	cfg, err := Load(writeTemp(t, validYAML))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !cfg.Production() {
		t.Errorf("environment = %q, want production", cfg.Environment)
	}
	if cfg.Server.Host != "127.0.0.1" || cfg.Server.Port != 8080 {
		t.Errorf("server = %s:%d, want 127.0.0.1:8080", cfg.Server.Host, cfg.Server.Port)
	}
	if got := cfg.SnapshotPath(); got != "/var/lib/ringvault/ring.json" {
		t.Errorf("SnapshotPath() = %q", got)
	}
	if !cfg.Storage.Compress {
		t.Error("storage.compress = false, want true")
	}
	if len(cfg.CORS.Origins) != 1 || cfg.CORS.Origins[0] != "https://dash.example.com" {
		t.Errorf("cors.origins = %v", cfg.CORS.Origins)
	}
	if cfg.Cache.TTL != 10*time.Second || cfg.Cache.SizeMB != 8 {
		t.Errorf("cache = %+v", cfg.Cache)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("log.level = %q, want debug", cfg.Log.Level)
	}
	// Sections absent from the file keep their defaults
	if !cfg.Metrics.Enabled {
		t.Error("metrics.enabled default lost")
	}
}

// TestLoadDefaults verifies that an empty path yields the built-in defaults.
func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Port != 5002 {
		t.Errorf("server.port = %d, want 5002", cfg.Server.Port)
	}
	if cfg.Production() {
		t.Error("default environment should be development")
	}
	if got := cfg.SnapshotPath(); got != filepath.Join("data", "qring_data.json") {
		t.Errorf("SnapshotPath() = %q", got)
	}
	if len(cfg.CORS.Origins) != 1 || cfg.CORS.Origins[0] != "*" {
		t.Errorf("cors.origins = %v, want [*]", cfg.CORS.Origins)
	}
}

// TestEnvOverride verifies that RINGVAULT_ env vars take precedence over YAML values.
func TestEnvOverride(t *testing.T) {
	clearEnv(t)
	t.Setenv("RINGVAULT_SERVER_PORT", "9999")
	t.Setenv("RINGVAULT_DATA_DIR", "/data")
	t.Setenv("RINGVAULT_CORS_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("RINGVAULT_ENV", "Development")

	cfg, err := Load(writeTemp(t, validYAML))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Port != 9999 {
		t.Errorf("server.port = %d, want 9999", cfg.Server.Port)
	}
	if cfg.Storage.DataDir != "/data" {
		t.Errorf("storage.data_dir = %q, want /data", cfg.Storage.DataDir)
	}
	if len(cfg.CORS.Origins) != 2 || cfg.CORS.Origins[1] != "https://b.example" {
		t.Errorf("cors.origins = %v", cfg.CORS.Origins)
	}
	if cfg.Production() {
		t.Error("RINGVAULT_ENV should switch to development")
	}
	if cfg.Storage.FileName != "ring.json" {
		t.Errorf("storage.file_name = %q, want ring.json", cfg.Storage.FileName)
	}
}

// TestLegacyEnv verifies the unprefixed deployment variables, and that the
// prefixed form wins when both are set.
func TestLegacyEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "7000")
	t.Setenv("RAILWAY_VOLUME_MOUNT_PATH", "/mnt/vol")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Port != 7000 {
		t.Errorf("server.port = %d, want 7000", cfg.Server.Port)
	}
	if cfg.Storage.DataDir != "/mnt/vol" {
		t.Errorf("storage.data_dir = %q, want /mnt/vol", cfg.Storage.DataDir)
	}

	t.Setenv("RINGVAULT_SERVER_PORT", "7001")
	cfg, err = Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Port != 7001 {
		t.Errorf("server.port = %d, want 7001", cfg.Server.Port)
	}
}

// TestValidationBadEnvironment verifies unknown environments are rejected.
func TestValidationBadEnvironment(t *testing.T) {
	clearEnv(t)
	_, err := Load(writeTemp(t, "environment: staging\n"))
	if err == nil {
		t.Fatal("expected validation error for environment")
	}
}

// TestValidationMissingPort verifies that a zeroed port is rejected.
func TestValidationMissingPort(t *testing.T) {
	clearEnv(t)
	_, err := Load(writeTemp(t, "server:\n  port: 0\n"))
	if err == nil {
		t.Fatal("expected validation error for missing port")
	}
}

// TestValidationLogLevel verifies the level must be one zerolog understands.
func TestValidationLogLevel(t *testing.T) {
	clearEnv(t)
	_, err := Load(writeTemp(t, "log:\n  level: verbose\n"))
	if err == nil {
		t.Fatal("expected validation error for log level")
	}
}

// TestValidationTailscaleHostname verifies tsnet needs a hostname.
func TestValidationTailscaleHostname(t *testing.T) {
	clearEnv(t)
	_, err := Load(writeTemp(t, "tailscale:\n  enabled: true\n  hostname: \"\"\n"))
	if err == nil {
		t.Fatal("expected validation error for tailscale hostname")
	}
}

func TestParseOrigins(t *testing.T) {
	got := ParseOrigins(" https://a , ,https://b")
	if len(got) != 2 || got[0] != "https://a" || got[1] != "https://b" {
		t.Errorf("ParseOrigins = %v", got)
	}
}

// TestLoadMissingFile verifies that a missing config file returns a clear error.
func TestLoadMissingFile(t *testing.T) {
	clearEnv(t)
	_, err := Load("/nonexistent/config.yaml")
	if err == nil {
		t.Fatal("expected error for missing file")
	}
}
