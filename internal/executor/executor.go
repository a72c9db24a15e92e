package executor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/dop251/goja"

	"github.com/tsyne-dev/tsyne-host/internal/sandbox"
)

// Interrupt reasons, recovered from the engine to tell a budget expiry
// from a caller cancellation.
const (
	timeoutReason = "execution budget exceeded"
	cancelReason  = "execution cancelled"
)

// Executor evaluates sealed artifacts. It keeps no per-run state and is
// safe for concurrent use; every call builds its own VM.
type Executor struct {
	config Config
}

// New creates an executor with the given limits. Zero fields fall back
// to DefaultConfig values.
func New(config Config) *Executor {
	def := DefaultConfig()
	if config.Timeout <= 0 {
		config.Timeout = def.Timeout
	}
	if config.MaxConsoleEntries <= 0 {
		config.MaxConsoleEntries = def.MaxConsoleEntries
	}
	return &Executor{config: config}
}

// Execute runs the artifact on a fresh VM under the configured budget.
// The returned Result is non-nil whenever execution started, so console
// output survives failed runs; the error is one of *sandbox.PolicyError,
// *sandbox.TimeoutError, *ScriptError, or a context error.
func (e *Executor) Execute(ctx context.Context, art *sandbox.Artifact, opts Options) (*Result, error) {
	budget := e.config.Timeout
	if opts.Timeout > 0 {
		budget = opts.Timeout
	}

	vm := goja.New()
	if e.config.MaxCallStack > 0 {
		vm.SetMaxCallStackSize(e.config.MaxCallStack)
	}

	sink := &consoleSink{limit: e.config.MaxConsoleEntries, enabled: e.config.EnableConsole}
	module := e.setupGlobals(vm, art, opts, sink)

	start := time.Now()
	result := &Result{Console: []LogEntry{}}

	timer := time.NewTimer(budget)
	defer timer.Stop()

	done := make(chan struct{})
	go func() {
		select {
		case <-timer.C:
			vm.Interrupt(timeoutReason)
		case <-ctx.Done():
			vm.Interrupt(cancelReason)
		case <-done:
		}
	}()

	val, err := vm.RunString(art.Code)
	close(done)

	result.Duration = time.Since(start)
	result.Console = sink.take()

	if err != nil {
		mapped := mapError(ctx, err, budget)
		result.Error = mapped
		return result, mapped
	}

	result.Value = exportValue(val)
	result.Exports = exportJSON(vm, module)
	return result, nil
}

// setupGlobals installs the curated execution context and returns the
// module object whose exports are read back after the run.
func (e *Executor) setupGlobals(vm *goja.Runtime, art *sandbox.Artifact, opts Options, sink *consoleSink) *goja.Object {
	// The engine's own evaluator stays unreachable even if a rewrite
	// gap ever shipped.
	vm.Set("eval", goja.Undefined())

	console := vm.NewObject()
	for _, level := range []string{"log", "warn", "error", "info"} {
		level := level
		console.Set(level, func(call goja.FunctionCall) goja.Value {
			sink.add(level, formatArgs(call))
			return goja.Undefined()
		})
	}
	vm.Set("console", console)

	// Timers never fire. They return 0 so code that stores an id and
	// clears it later keeps working.
	zero := func(call goja.FunctionCall) goja.Value { return vm.ToValue(0) }
	noop := func(call goja.FunctionCall) goja.Value { return goja.Undefined() }
	vm.Set("setTimeout", zero)
	vm.Set("setInterval", zero)
	vm.Set("clearTimeout", noop)
	vm.Set("clearInterval", noop)

	exports := vm.NewObject()
	module := vm.NewObject()
	module.Set("exports", exports)
	vm.Set("exports", exports)
	vm.Set("module", module)

	if opts.Modules != nil {
		resolver := opts.Modules
		whitelist := art.Whitelist
		vm.Set(sandbox.ModuleHookName(art.Token), func(call goja.FunctionCall) goja.Value {
			if len(call.Arguments) == 0 {
				return goja.Undefined()
			}
			name := call.Arguments[0].String()
			// Re-checked here: the in-VM whitelist is data the
			// sandboxed code already saw.
			if !whitelist.Contains(name) {
				return goja.Undefined()
			}
			mod, ok := resolver.Resolve(name)
			if !ok || mod == nil {
				return goja.Undefined()
			}
			return vm.ToValue(mod)
		})
	}

	return module
}

// consoleSink collects console output for one run. The VM executes on a
// single goroutine, so no locking is needed.
type consoleSink struct {
	limit   int
	enabled bool
	lines   []LogEntry
}

func (c *consoleSink) add(level, message string) {
	if !c.enabled || len(c.lines) >= c.limit {
		return
	}
	c.lines = append(c.lines, LogEntry{Level: level, Message: message, Time: time.Now()})
}

func (c *consoleSink) take() []LogEntry {
	if c.lines == nil {
		return []LogEntry{}
	}
	return c.lines
}

func formatArgs(call goja.FunctionCall) string {
	var b strings.Builder
	for i, arg := range call.Arguments {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(arg.String())
	}
	return b.String()
}

// mapError converts an engine failure into the package's error types.
func mapError(ctx context.Context, err error, budget time.Duration) error {
	var interrupted *goja.InterruptedError
	if errors.As(err, &interrupted) {
		if reason, ok := interrupted.Value().(string); ok && reason == timeoutReason {
			return &sandbox.TimeoutError{Budget: budget}
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("execution interrupted: %v", interrupted.Value())
	}

	var exception *goja.Exception
	if errors.As(err, &exception) {
		if pe := policyError(exception.Value()); pe != nil {
			return pe
		}
		return &ScriptError{Message: exception.Value().String()}
	}

	return &ScriptError{Message: err.Error()}
}

// policyError recognizes the violation shape the generated runtime
// throws: an error whose name is PolicyViolation.
func policyError(v goja.Value) *sandbox.PolicyError {
	obj, ok := v.(*goja.Object)
	if !ok {
		return nil
	}
	name := obj.Get("name")
	if name == nil || name.String() != "PolicyViolation" {
		return nil
	}
	pe := &sandbox.PolicyError{}
	if c := obj.Get("capability"); c != nil {
		pe.Capability = c.String()
	}
	if m := obj.Get("message"); m != nil {
		pe.Message = m.String()
	}
	return pe
}

func exportValue(val goja.Value) interface{} {
	if val == nil || goja.IsUndefined(val) || goja.IsNull(val) {
		return nil
	}
	return val.Export()
}

// exportJSON projects module.exports through the VM's own JSON
// serializer. The host never keeps live handles into a finished VM,
// and functions drop out the same way they would over the wire.
func exportJSON(vm *goja.Runtime, module *goja.Object) interface{} {
	exportsVal := module.Get("exports")
	if exportsVal == nil || goja.IsUndefined(exportsVal) || goja.IsNull(exportsVal) {
		return nil
	}
	jsonVal := vm.Get("JSON")
	if jsonVal == nil {
		return nil
	}
	stringify, ok := goja.AssertFunction(jsonVal.ToObject(vm).Get("stringify"))
	if !ok {
		return nil
	}
	raw, err := stringify(goja.Undefined(), exportsVal)
	if err != nil || goja.IsUndefined(raw) {
		return nil
	}
	var out interface{}
	if err := sonic.Unmarshal([]byte(raw.String()), &out); err != nil {
		return nil
	}
	return out
}
