// Package types provides shared data structures for the tsyne host.
//
// This package defines core types used across host components, keeping
// the sandbox engine, instance manager, package store, and HTTP surface
// on one vocabulary.
//
// Core Types:
//   - Instance: One sandboxed execution of an app module
//   - Package: Installed app package (source + sandbox policy)
//   - Failure: Why an instance ended badly
//   - ConsoleLine: Captured console output
//
// Request Types:
//   - BuildRequest, TransformRequest, RuntimeRequest, AuditRequest: Tooling
//   - LaunchRequest, InstallRequest: Lifecycle
//   - WSMessage, Event: Stream communication
//
// State Management:
//   - State: Instance state enum (running plus four terminal outcomes)
//   - Stats, StoreStats: Component statistics
package types
