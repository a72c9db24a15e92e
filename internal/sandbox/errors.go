package sandbox

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors shared across the package.
var (
	ErrInvalidToken = errors.New("token must be 32 lowercase hex characters")
	ErrTokenExists  = errors.New("token already registered")
	ErrNotFound     = errors.New("sandbox instance not found")
)

// TransformError reports untrusted source that could not be parsed. The
// transformer fails closed: no partially rewritten output is produced.
type TransformError struct {
	Label  string
	Line   int
	Column int
	Reason string
}

func (e *TransformError) Error() string {
	if e.Label != "" {
		return fmt.Sprintf("transform %s: line %d col %d: %s", e.Label, e.Line, e.Column, e.Reason)
	}
	return fmt.Sprintf("transform: line %d col %d: %s", e.Line, e.Column, e.Reason)
}

// PolicyError reports a blocked capability use raised inside running
// sandboxed code. The code may catch it there; the host records it as
// the instance outcome. Capability carries the kind string, for example
// "module-loader".
type PolicyError struct {
	Capability string
	Message    string
}

func (e *PolicyError) Error() string { return e.Message }

// TimeoutError reports an execution that exceeded its wall-clock
// budget. Fatal to the instance.
type TimeoutError struct {
	Budget time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("execution exceeded %s budget", e.Budget)
}
