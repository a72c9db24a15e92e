// Package config provides 12-factor configuration for the sandbox host.
//
// Values come from three layers, later ones winning: built-in defaults, an
// optional TOML file named by TSYNE_CONFIG, and TSYNE_* environment
// variables.
//
// Configuration sections:
//   - Server: HTTP listen address
//   - Sandbox: execution budgets, pool size, call stack depth
//   - Registry: package store and prebuilt app directories
//   - Fetch: remote source installs (off by default)
//   - Logging: log level and output format
//   - RateLimit: per-IP rate limiting
//
// Example usage:
//
//	cfg := config.LoadOrDefault()
//	fmt.Printf("listening on %s\n", cfg.Server.Addr())
//
// Environment variables:
//   - TSYNE_HOST, TSYNE_PORT, TSYNE_CONFIG
//   - TSYNE_SANDBOX_TIMEOUT_MS, TSYNE_SANDBOX_MAX_TIMEOUT_MS,
//     TSYNE_SANDBOX_POOL_SIZE, TSYNE_SANDBOX_ACQUIRE_TIMEOUT_MS,
//     TSYNE_SANDBOX_CALL_STACK
//   - TSYNE_STORE_DIR, TSYNE_APPS_DIR, TSYNE_SEED_DEFAULTS
//   - TSYNE_FETCH_ENABLED, TSYNE_FETCH_MAX_BYTES
//   - TSYNE_LOG_LEVEL, TSYNE_LOG_DEV
//   - TSYNE_RATE_LIMIT_RPS, TSYNE_RATE_LIMIT_BURST, TSYNE_RATE_LIMIT_ENABLED
package config
