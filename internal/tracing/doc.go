/*
Package tracing correlates host requests with structured log output.

# Overview

Every HTTP request is stamped with a ULID request identifier and logged
as one span when it completes. Identifiers are echoed on responses and
accepted from callers, so a client can correlate its retries with host
logs without any external tracing infrastructure.

# Features

- Request identifier generation and propagation via X-Request-ID
- One structured log line per handled request (route, status, duration)
- Context propagation so deeper layers can tag logs with the request
- Low overhead with buffered asynchronous span collection

# Usage

	// Create tracer
	tracer := tracing.New("tsyne-host", logger)
	defer tracer.Close()

	// Gin middleware
	router.Use(tracing.Middleware(tracer))

	// Reading the identifier downstream
	reqID := tracing.RequestFrom(ctx)

# Performance

Spans ride a buffered channel (1000 spans) to a collector goroutine;
when the collector falls behind, spans are dropped rather than blocking
request handlers.
*/
package tracing
