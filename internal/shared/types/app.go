package types

import (
	"time"

	"github.com/tsyne-dev/tsyne-host/internal/sandbox"
)

// State represents instance lifecycle state
type State string

const (
	StateRunning         State = "running"
	StateCompleted       State = "completed"
	StatePolicyViolation State = "policy_violation"
	StateTimeout         State = "timeout"
	StateFailed          State = "failed"
)

// Terminal reports whether the state is an outcome rather than a phase.
func (s State) Terminal() bool {
	return s != StateRunning
}

// Known reports whether s is one of the defined lifecycle states.
func (s State) Known() bool {
	switch s {
	case StateRunning, StateCompleted, StatePolicyViolation, StateTimeout, StateFailed:
		return true
	}
	return false
}

// Failure captures why an instance ended in a non-completed state
type Failure struct {
	Kind       string `json:"kind"`
	Message    string `json:"message"`
	Capability string `json:"capability,omitempty"`
}

// ConsoleLine is one captured console call from inside the sandbox
type ConsoleLine struct {
	Level   string    `json:"level"`
	Message string    `json:"message"`
	Time    time.Time `json:"time"`
}

// Instance represents one sandboxed execution of an app module
type Instance struct {
	ID        string                 `json:"id"`
	Token     sandbox.Token          `json:"token"`
	Label     string                 `json:"label"`
	PackageID *string                `json:"package_id,omitempty"`
	State     State                  `json:"state"`
	Exports   interface{}            `json:"exports,omitempty"`
	Console   []ConsoleLine          `json:"console,omitempty"`
	Failure   *Failure               `json:"failure,omitempty"`
	Duration  time.Duration          `json:"duration_ns"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt time.Time              `json:"created_at"`
}

// Stats contains instance manager statistics
type Stats struct {
	TotalInstances   int `json:"total_instances"`
	Running          int `json:"running"`
	Completed        int `json:"completed"`
	PolicyViolations int `json:"policy_violations"`
	Timeouts         int `json:"timeouts"`
	Failed           int `json:"failed"`
}
