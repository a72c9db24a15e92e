// Package executor runs sealed sandbox artifacts on goja virtual
// machines.
//
// # Overview
//
// The executor is the only place application code actually runs. It
// takes a sandbox.Artifact, stands up a fresh VM, installs the curated
// execution context, and evaluates the artifact's code under a
// wall-clock budget. Policy violations raised by the generated
// placeholders, script failures, and timeouts come back as typed
// errors the caller can attribute.
//
// # One VM Per Execution
//
// Virtual machines are never reused across artifacts. A VM that ran
// token A holds A's placeholder bindings in its global object, and
// recycling it for token B would hand B a dictionary of A's names.
// VM construction is cheap relative to that risk, so every Execute
// starts from goja.New. The Pool bounds how many VMs run at once; it
// pools capacity, not runtimes.
//
// # Curated Context
//
// Scripts see a captured console, inert timers that return 0, an
// exports/module pair for their public surface, and the host module
// hook serving whitelisted specifiers. The ambient eval binding is
// replaced with undefined so not even a miss in the rewrite stage
// would expose the engine's own evaluator.
package executor
