// Package main is the entry point for the tsyne host server.
//
// This application runs untrusted JavaScript app modules inside
// token-gated sandboxes within a single shared process.
//
// The server provides:
//   - REST API for sandbox tooling and instance management
//   - Package registry with prebuilt app seeding
//   - WebSocket streaming of instance lifecycle and console events
//   - Rate limiting and prometheus metrics
//
// Configuration:
//   - Environment variables (12-factor, TSYNE_* prefix)
//   - Optional TOML file via TSYNE_CONFIG or -config
//   - CLI flags (override env vars)
//
// Usage:
//
//	# Production mode
//	./server -port 8090
//
//	# With a config file
//	./server -config /etc/tsyne/host.toml
//
// Signals:
//   - SIGINT, SIGTERM: Graceful shutdown
package main
