package executor

import (
	"time"
)

// Config defines execution limits shared by every run.
type Config struct {
	Timeout           time.Duration // Wall-clock budget per execution
	MaxCallStack      int           // goja call stack depth limit
	EnableConsole     bool          // Capture console.log/warn/error/info
	MaxConsoleEntries int           // Cap on captured console lines
}

// DefaultConfig returns the limits used when the caller does not care.
func DefaultConfig() Config {
	return Config{
		Timeout:           5 * time.Second,
		MaxCallStack:      1024,
		EnableConsole:     true,
		MaxConsoleEntries: 1000,
	}
}

// ModuleResolver serves whitelisted module specifiers. Resolve returns
// the module value and true, or false when the host has nothing to
// offer for the name. Resolved values must not be nil: the sandbox
// treats an undefined module as unavailable.
type ModuleResolver interface {
	Resolve(name string) (interface{}, bool)
}

// Options adjusts a single execution.
type Options struct {
	Modules ModuleResolver // Host modules, nil when none are served
	Timeout time.Duration  // Per-run override of the config budget
}

// LogEntry is one captured console line.
type LogEntry struct {
	Level   string    `json:"level"`
	Message string    `json:"message"`
	Time    time.Time `json:"time"`
}

// Result holds the outcome of one execution. Console output is kept
// even when the run fails, so callers can surface the last lines an
// instance printed before it was stopped.
type Result struct {
	Value    interface{} // Completion value of the script
	Exports  interface{} // JSON projection of module.exports
	Console  []LogEntry  // Captured console output
	Duration time.Duration
	Error    error // Mirrors the returned error for record keeping
}

// ScriptError reports a runtime failure inside sandboxed code that is
// not a policy violation: thrown errors, reference errors, stack
// exhaustion.
type ScriptError struct {
	Message string
}

func (e *ScriptError) Error() string { return e.Message }
