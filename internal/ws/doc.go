// Package ws provides WebSocket streaming of instance events.
//
// This package fans instance lifecycle and console events out to
// connected stream clients. The broker receives events from the app
// manager and delivers them to per-connection buffered feeds; a feed
// that falls too far behind is dropped rather than allowed to stall
// launches.
//
// Features:
//   - Lifecycle events (launched, completed, policy_violation, timeout, failed, closed)
//   - Console line streaming per instance
//   - Per-instance filtering via query param or subscribe message
//   - Automatic connection upgrade from HTTP
//   - Slow subscriber eviction
//
// Message Types (Client → Server):
//   - subscribe: Narrow the feed to one instance (empty id widens it)
//   - ping: Keep-alive ping
//
// Message Types (Server → Client):
//   - system: Connection banner
//   - subscribed: Filter change acknowledgement
//   - pong: Keep-alive reply
//   - launched, console, completed, policy_violation, timeout, failed, closed: Instance events
//   - error: Error occurred
//
// Example Usage:
//
//	broker := ws.NewBroker()
//	manager.WithPublisher(broker)
//	handler := ws.NewHandler(broker)
//	router.GET("/stream", handler.HandleConnection)
package ws
