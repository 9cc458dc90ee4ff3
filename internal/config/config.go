package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gookit/validate"
	"gopkg.in/yaml.v3"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Environment string          `yaml:"environment" validate:"required|in:development,production"`
	Server      ServerConfig    `yaml:"server"`
	Storage     StorageConfig   `yaml:"storage"`
	CORS        CORSConfig      `yaml:"cors"`
	Cache       CacheConfig     `yaml:"cache"`
	Metrics     MetricsConfig   `yaml:"metrics"`
	Tailscale   TailscaleConfig `yaml:"tailscale"`
	Log         LogConfig       `yaml:"log"`
}

type ServerConfig struct {
	Host string `yaml:"host" validate:"required"`
	Port int    `yaml:"port" validate:"required|uint|min:1|max:65535"`
}

type StorageConfig struct {
	DataDir  string `yaml:"data_dir" validate:"required"`
	FileName string `yaml:"file_name" validate:"required"`
	Compress bool   `yaml:"compress"`
}

type CORSConfig struct {
	Origins []string `yaml:"origins"`
}

type CacheConfig struct {
	Enabled bool          `yaml:"enabled"`
	SizeMB  int           `yaml:"size_mb" validate:"uint"`
	TTL     time.Duration `yaml:"ttl"`
}

type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

type TailscaleConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Hostname string `yaml:"hostname"`
	StateDir string `yaml:"state_dir"`
}

type LogConfig struct {
	Level string `yaml:"level" validate:"required|in:trace,debug,info,warn,error"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Environment: EnvDevelopment,
		Server:      ServerConfig{Host: "0.0.0.0", Port: 5002},
		Storage:     StorageConfig{DataDir: "data", FileName: "qring_data.json"},
		CORS:        CORSConfig{Origins: []string{"*"}},
		Cache:       CacheConfig{Enabled: true, SizeMB: 16, TTL: 5 * time.Second},
		Metrics:     MetricsConfig{Enabled: true},
		Tailscale:   TailscaleConfig{Hostname: "ringvault", StateDir: "tsnet-state"},
		Log:         LogConfig{Level: "info"},
	}
}

// SnapshotPath is the full path of the persisted store.
func (c *Config) SnapshotPath() string {
	return filepath.Join(c.Storage.DataDir, c.Storage.FileName)
}

// Production reports whether internal error detail must be hidden.
func (c *Config) Production() bool {
	return c.Environment == EnvProduction
}

// Load starts from Default, overlays the YAML file at path (skipped when
// path is empty), then applies environment variable overrides.
// Env vars use the prefix RINGVAULT_:
//
//	RINGVAULT_ENV, RINGVAULT_SERVER_HOST, RINGVAULT_SERVER_PORT,
//	RINGVAULT_DATA_DIR, RINGVAULT_STORAGE_FILE, RINGVAULT_STORAGE_COMPRESS,
//	RINGVAULT_CORS_ORIGINS, RINGVAULT_CACHE_ENABLED, RINGVAULT_METRICS_ENABLED,
//	RINGVAULT_TAILSCALE_ENABLED, RINGVAULT_TAILSCALE_HOSTNAME,
//	RINGVAULT_TAILSCALE_STATE_DIR, RINGVAULT_LOG_LEVEL
//
// The unprefixed HOST, PORT, DATA_DIR, RAILWAY_VOLUME_MOUNT_PATH and
// CORS_ORIGINS used by existing deployments are honored with lower priority.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := firstEnv("RINGVAULT_ENV"); v != "" {
		cfg.Environment = strings.ToLower(v)
	}
	if v := firstEnv("RINGVAULT_SERVER_HOST", "HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := firstEnv("RINGVAULT_SERVER_PORT", "PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := firstEnv("RINGVAULT_DATA_DIR", "DATA_DIR", "RAILWAY_VOLUME_MOUNT_PATH"); v != "" {
		cfg.Storage.DataDir = v
	}
	if v := firstEnv("RINGVAULT_STORAGE_FILE"); v != "" {
		cfg.Storage.FileName = v
	}
	if v := firstEnv("RINGVAULT_STORAGE_COMPRESS"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Storage.Compress = b
		}
	}
	if v := firstEnv("RINGVAULT_CORS_ORIGINS", "CORS_ORIGINS"); v != "" {
		cfg.CORS.Origins = ParseOrigins(v)
	}
	if v := firstEnv("RINGVAULT_CACHE_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Cache.Enabled = b
		}
	}
	if v := firstEnv("RINGVAULT_METRICS_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Metrics.Enabled = b
		}
	}
	if v := firstEnv("RINGVAULT_TAILSCALE_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Tailscale.Enabled = b
		}
	}
	if v := firstEnv("RINGVAULT_TAILSCALE_HOSTNAME"); v != "" {
		cfg.Tailscale.Hostname = v
	}
	if v := firstEnv("RINGVAULT_TAILSCALE_STATE_DIR"); v != "" {
		cfg.Tailscale.StateDir = v
	}
	if v := firstEnv("RINGVAULT_LOG_LEVEL"); v != "" {
		cfg.Log.Level = strings.ToLower(v)
	}
}

// ParseOrigins splits a comma-separated origin list. "*" stays a single
// wildcard entry.
func ParseOrigins(raw string) []string {
	var out []string
	for _, o := range strings.Split(raw, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

func firstEnv(names ...string) string {
	for _, n := range names {
		if v := os.Getenv(n); v != "" {
			return v
		}
	}
	return ""
}

func (c *Config) validate() error {
	sections := []struct {
		name string
		v    any
	}{
		{"config", c},
		{"server", &c.Server},
		{"storage", &c.Storage},
		{"cache", &c.Cache},
		{"log", &c.Log},
	}
	for _, s := range sections {
		v := validate.Struct(s.v)
		if !v.Validate() {
			return fmt.Errorf("%s: %s", s.name, v.Errors.One())
		}
	}
	if c.Tailscale.Enabled && c.Tailscale.Hostname == "" {
		return fmt.Errorf("tailscale.hostname is required when tailscale is enabled")
	}
	return nil
}
