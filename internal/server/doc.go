// Package server provides HTTP server setup and initialization for the
// tsyne host.
//
// This package orchestrates all components:
//   - HTTP routing with Gin framework
//   - Middleware stack (CORS, rate limiting, recovery, tracing, metrics)
//   - Executor pool and token registry
//   - Package store with prebuilt app seeding
//   - Instance manager wired to the event stream broker
//
// Server Lifecycle:
//  1. Load configuration from environment and optional TOML file
//  2. Initialize logger (production or development)
//  3. Build executor pool, token registry, and host modules
//  4. Open the package store and seed prebuilt apps
//  5. Setup HTTP routes and middleware
//  6. Start HTTP server
//  7. Graceful shutdown on signal
//
// Features:
//   - Configuration-driven setup
//   - Graceful shutdown handling
//   - Resource cleanup on exit
//   - Health check and prometheus endpoints
//
// Example Usage:
//
//	cfg := config.LoadOrDefault()
//	srv, err := server.NewServer(cfg, "0.1.0")
//	if err := srv.Run(); err != nil {
//	    log.Fatal(err)
//	}
package server
