package config

import (
	"fmt"
	"net"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/pelletier/go-toml/v2"
)

// ConfigPathEnv names the environment variable pointing at an optional
// TOML configuration file.
const ConfigPathEnv = "TSYNE_CONFIG"

// Config holds all host configuration.
type Config struct {
	Server    ServerConfig    `toml:"server"`
	Sandbox   SandboxConfig   `toml:"sandbox"`
	Registry  RegistryConfig  `toml:"registry"`
	Fetch     FetchConfig     `toml:"fetch"`
	Logging   LogConfig       `toml:"logging"`
	RateLimit RateLimitConfig `toml:"rate_limit"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port string `envconfig:"TSYNE_PORT" toml:"port"`
	Host string `envconfig:"TSYNE_HOST" toml:"host"`
}

// Addr returns the listen address.
func (c ServerConfig) Addr() string {
	return net.JoinHostPort(c.Host, c.Port)
}

// SandboxConfig bounds script execution. Durations are carried as
// milliseconds so every layer can express them.
type SandboxConfig struct {
	TimeoutMS        int `envconfig:"TSYNE_SANDBOX_TIMEOUT_MS" toml:"timeout_ms"`
	MaxTimeoutMS     int `envconfig:"TSYNE_SANDBOX_MAX_TIMEOUT_MS" toml:"max_timeout_ms"`
	PoolSize         int `envconfig:"TSYNE_SANDBOX_POOL_SIZE" toml:"pool_size"`
	AcquireTimeoutMS int `envconfig:"TSYNE_SANDBOX_ACQUIRE_TIMEOUT_MS" toml:"acquire_timeout_ms"`
	MaxCallStack     int `envconfig:"TSYNE_SANDBOX_CALL_STACK" toml:"max_call_stack"`
}

// ExecTimeout returns the default per-execution budget.
func (c SandboxConfig) ExecTimeout() time.Duration {
	return time.Duration(c.TimeoutMS) * time.Millisecond
}

// MaxExecTimeout returns the ceiling a launch request may ask for.
func (c SandboxConfig) MaxExecTimeout() time.Duration {
	return time.Duration(c.MaxTimeoutMS) * time.Millisecond
}

// AcquireTimeout returns how long a launch waits for a free slot.
func (c SandboxConfig) AcquireTimeout() time.Duration {
	return time.Duration(c.AcquireTimeoutMS) * time.Millisecond
}

// RegistryConfig locates package storage and prebuilt apps.
type RegistryConfig struct {
	StoreDir     string `envconfig:"TSYNE_STORE_DIR" toml:"store_dir"`
	AppsDir      string `envconfig:"TSYNE_APPS_DIR" toml:"apps_dir"`
	SeedDefaults bool   `envconfig:"TSYNE_SEED_DEFAULTS" toml:"seed_defaults"`
}

// FetchConfig controls remote source installs. MaxBytes of zero keeps the
// download client's own default.
type FetchConfig struct {
	Enabled  bool  `envconfig:"TSYNE_FETCH_ENABLED" toml:"enabled"`
	MaxBytes int64 `envconfig:"TSYNE_FETCH_MAX_BYTES" toml:"max_bytes"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"TSYNE_LOG_LEVEL" toml:"level"`
	Development bool   `envconfig:"TSYNE_LOG_DEV" toml:"development"`
}

// RateLimitConfig holds per-IP rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"TSYNE_RATE_LIMIT_RPS" toml:"requests_per_second"`
	Burst             int  `envconfig:"TSYNE_RATE_LIMIT_BURST" toml:"burst"`
	Enabled           bool `envconfig:"TSYNE_RATE_LIMIT_ENABLED" toml:"enabled"`
}

// Load builds configuration from defaults, an optional TOML file named by
// TSYNE_CONFIG, and environment variables, later sources winning.
func Load() (*Config, error) {
	cfg := Default()

	if path := os.Getenv(ConfigPathEnv); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadOrDefault loads configuration or falls back to defaults.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port: "8090",
			Host: "0.0.0.0",
		},
		Sandbox: SandboxConfig{
			TimeoutMS:        5000,
			MaxTimeoutMS:     60000,
			PoolSize:         8,
			AcquireTimeoutMS: 2000,
			MaxCallStack:     1024,
		},
		Registry: RegistryConfig{
			StoreDir:     "data/registry",
			AppsDir:      "apps",
			SeedDefaults: true,
		},
		Fetch: FetchConfig{
			Enabled:  false,
			MaxBytes: 0,
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 100,
			Burst:             200,
			Enabled:           true,
		},
	}
}

// Validate rejects configurations the server cannot run with.
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Sandbox.TimeoutMS < 1 {
		return fmt.Errorf("sandbox timeout must be positive, got %dms", c.Sandbox.TimeoutMS)
	}
	if c.Sandbox.MaxTimeoutMS < c.Sandbox.TimeoutMS {
		return fmt.Errorf("sandbox max timeout %dms is below the default %dms",
			c.Sandbox.MaxTimeoutMS, c.Sandbox.TimeoutMS)
	}
	if c.Sandbox.PoolSize < 1 {
		return fmt.Errorf("sandbox pool size must be at least 1, got %d", c.Sandbox.PoolSize)
	}
	if c.Registry.StoreDir == "" {
		return fmt.Errorf("registry store directory is required")
	}
	if c.RateLimit.Enabled && c.RateLimit.RequestsPerSecond < 1 {
		return fmt.Errorf("rate limit rps must be at least 1, got %d", c.RateLimit.RequestsPerSecond)
	}
	return nil
}
