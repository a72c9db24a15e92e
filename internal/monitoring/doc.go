/*
Package monitoring provides performance monitoring and metrics collection.

# Overview

This package implements Prometheus-based metrics collection for the host,
tracking HTTP requests, sandbox engine operations, executions, instances,
and the package store.

# Features

- HTTP request metrics (latency, throughput)
- Engine metrics (builds, transform failures, tokens issued, audit warnings)
- Execution metrics (outcomes, duration, policy violations by capability)
- Instance and package store gauges
- WebSocket connection gauge

# Usage

	// Create metrics collector
	metrics := monitoring.NewMetrics()

	// Add middleware to Gin router
	router.Use(monitoring.Middleware(metrics))

	// Record custom metrics
	metrics.RecordBuild()
	metrics.RecordExecution("completed", duration)

	// Time operations
	timer := monitoring.NewTimer(metrics, "build")
	// ... perform operation ...
	timer.Stop()

# Metrics Endpoint

Expose metrics via the standard Prometheus endpoint:

	import "github.com/prometheus/client_golang/prometheus/promhttp"
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
*/
package monitoring
