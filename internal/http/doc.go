// Package http provides HTTP handlers and routing for the tsyne host REST API.
//
// This package implements all HTTP endpoints using the Gin framework, including
// health checks, sandbox tooling, instance management, and the package registry.
//
// Endpoints:
//   - Health: / and /health
//   - Sandbox: /sandbox/build, /sandbox/transform, /sandbox/runtime, /sandbox/audit, /sandbox/token
//   - Apps: /apps, /apps/:id
//   - Registry: /registry/install, /registry/apps, /registry/apps/:id, /registry/apps/:id/launch
//
// Features:
//   - JSON request/response handling
//   - Proper HTTP status codes
//   - Error response formatting
//   - Request validation
//
// Example Usage:
//
//	handlers := http.NewHandlers(appMgr, store, tokens, fetcher, version)
//	router.GET("/health", handlers.Health)
//	router.POST("/sandbox/build", handlers.BuildSandbox)
package http
