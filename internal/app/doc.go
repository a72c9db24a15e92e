// Package app provides instance lifecycle management for sandboxed app
// modules.
//
// This package handles the launch, tracking, and teardown of instances.
// Each launch builds an isolated artifact, registers its token, runs the
// artifact through the bounded executor pool, and records the outcome:
// completed, policy_violation, timeout, or failed.
//
// Key Components:
//   - Manager: Central instance lifecycle coordinator
//   - LaunchSpec: What to run and under which policy
//   - Publisher: Optional event fan-out for stream subscribers
//
// Example Usage:
//
//	manager := app.NewManager(tokens, pool, resolver)
//	inst, err := manager.Launch(ctx, app.LaunchSpec{
//	    Source:  source,
//	    Label:   "clock",
//	    Modules: []string{"tsyne/runtime"},
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	manager.Close(inst.ID)
package app
