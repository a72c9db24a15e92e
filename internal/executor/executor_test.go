package executor

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/tsyne-dev/tsyne-host/internal/sandbox"
)

type resolverMap map[string]interface{}

func (m resolverMap) Resolve(name string) (interface{}, bool) {
	v, ok := m[name]
	return v, ok
}

func buildArtifact(t *testing.T, src string, whitelist ...string) *sandbox.Artifact {
	t.Helper()
	art, err := sandbox.Build(src, "test-app", sandbox.ModuleWhitelist(whitelist))
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	return art
}

func exportsMap(t *testing.T, result *Result) map[string]interface{} {
	t.Helper()
	m, ok := result.Exports.(map[string]interface{})
	if !ok {
		t.Fatalf("exports = %T %v, want map", result.Exports, result.Exports)
	}
	return m
}

func TestExecuteValue(t *testing.T) {
	exec := New(DefaultConfig())
	art := buildArtifact(t, `6 * 7`)

	result, err := exec.Execute(context.Background(), art, Options{})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if result.Value != int64(42) {
		t.Errorf("value = %v (%T), want 42", result.Value, result.Value)
	}
	if result.Duration <= 0 {
		t.Errorf("duration not recorded")
	}
}

func TestExecuteExports(t *testing.T) {
	exec := New(DefaultConfig())
	art := buildArtifact(t, `
		exports.name = 'demo';
		exports.count = 3;
		module.exports.nested = { ok: true };
	`)

	result, err := exec.Execute(context.Background(), art, Options{})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	exports := exportsMap(t, result)
	if exports["name"] != "demo" {
		t.Errorf("name = %v", exports["name"])
	}
	if exports["count"] != float64(3) {
		t.Errorf("count = %v (%T)", exports["count"], exports["count"])
	}
	nested, ok := exports["nested"].(map[string]interface{})
	if !ok || nested["ok"] != true {
		t.Errorf("nested = %v", exports["nested"])
	}
}

func TestExecutePolicyViolations(t *testing.T) {
	exec := New(DefaultConfig())

	tests := []struct {
		name        string
		script      string
		capability  string
		wantMessage string
	}{
		{
			name:        "require outside whitelist",
			script:      `require('fs');`,
			capability:  "module-loader",
			wantMessage: "Module 'fs' is not allowed in sandboxed apps",
		},
		{
			name:        "whitelisted but unserved",
			script:      `require('ghost');`,
			capability:  "module-loader",
			wantMessage: "Module 'ghost' is not available in this sandbox",
		},
		{
			name:        "eval",
			script:      `eval('1 + 1');`,
			capability:  "dynamic-evaluator",
			wantMessage: "eval() is not allowed in sandboxed apps",
		},
		{
			name:        "function constructor",
			script:      `new Function('return 1');`,
			capability:  "function-synthesizer",
			wantMessage: "Function() constructor is not allowed in sandboxed apps",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var whitelist []string
			if tt.name == "whitelisted but unserved" {
				whitelist = []string{"ghost"}
			}
			art := buildArtifact(t, tt.script, whitelist...)

			result, err := exec.Execute(context.Background(), art, Options{})
			if err == nil {
				t.Fatalf("expected policy violation, got value %v", result.Value)
			}
			var pe *sandbox.PolicyError
			if !errors.As(err, &pe) {
				t.Fatalf("expected *sandbox.PolicyError, got %T: %v", err, err)
			}
			if pe.Capability != tt.capability {
				t.Errorf("capability = %q, want %q", pe.Capability, tt.capability)
			}
			if pe.Message != tt.wantMessage {
				t.Errorf("message = %q, want %q", pe.Message, tt.wantMessage)
			}
			if result == nil || result.Error == nil {
				t.Errorf("result does not mirror the error")
			}
		})
	}
}

func TestExecuteImportRejection(t *testing.T) {
	exec := New(DefaultConfig())
	art := buildArtifact(t, `
		import('./mod.js').catch(function (e) {
			exports.name = e.name;
			exports.capability = e.capability;
			exports.message = e.message;
		});
	`)

	result, err := exec.Execute(context.Background(), art, Options{})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	exports := exportsMap(t, result)
	if exports["name"] != "PolicyViolation" {
		t.Errorf("name = %v", exports["name"])
	}
	if exports["capability"] != "dynamic-importer" {
		t.Errorf("capability = %v", exports["capability"])
	}
	if exports["message"] != "Dynamic import() is not allowed in sandboxed apps" {
		t.Errorf("message = %v", exports["message"])
	}
}

func TestExecuteViolationCatchable(t *testing.T) {
	exec := New(DefaultConfig())
	art := buildArtifact(t, `
		try {
			eval('1');
		} catch (e) {
			exports.caught = e.name + ':' + e.capability;
		}
		exports.alive = true;
	`)

	result, err := exec.Execute(context.Background(), art, Options{})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	exports := exportsMap(t, result)
	if exports["caught"] != "PolicyViolation:dynamic-evaluator" {
		t.Errorf("caught = %v", exports["caught"])
	}
	if exports["alive"] != true {
		t.Errorf("execution did not continue past the caught violation")
	}
}

func TestExecuteModuleResolution(t *testing.T) {
	exec := New(DefaultConfig())
	art := buildArtifact(t, `
		const api = require('app/api');
		exports.color = api.color;
		exports.version = api.version;
	`, "app/api")

	opts := Options{Modules: resolverMap{
		"app/api": map[string]interface{}{"color": "teal", "version": 2},
	}}
	result, err := exec.Execute(context.Background(), art, opts)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	exports := exportsMap(t, result)
	if exports["color"] != "teal" {
		t.Errorf("color = %v", exports["color"])
	}
	if exports["version"] != float64(2) {
		t.Errorf("version = %v", exports["version"])
	}
}

func TestExecuteResolverMissYieldsPolicyError(t *testing.T) {
	exec := New(DefaultConfig())
	art := buildArtifact(t, `require('app/ui');`, "app/ui")

	// Resolver serves a different name than the whitelist allows.
	opts := Options{Modules: resolverMap{"app/api": map[string]interface{}{}}}
	_, err := exec.Execute(context.Background(), art, opts)

	var pe *sandbox.PolicyError
	if !errors.As(err, &pe) {
		t.Fatalf("expected *sandbox.PolicyError, got %T: %v", err, err)
	}
	if pe.Message != "Module 'app/ui' is not available in this sandbox" {
		t.Errorf("message = %q", pe.Message)
	}
}

func TestExecuteProcessAndAmbientGlobals(t *testing.T) {
	exec := New(DefaultConfig())
	art := buildArtifact(t, `
		exports.platform = process.platform;
		exports.envCount = Object.keys(process.env).length;
		exports.hasExit = typeof process.exit !== 'undefined';
		exports.aliased = window === globalThis;
		exports.windowIsSelf = window.window === window;
		exports.noEval = typeof window.eval === 'undefined';
		exports.consoleType = typeof window.console;
	`)

	result, err := exec.Execute(context.Background(), art, Options{})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	exports := exportsMap(t, result)
	if exports["platform"] != sandbox.PlatformMarker {
		t.Errorf("platform = %v, want %q", exports["platform"], sandbox.PlatformMarker)
	}
	if exports["envCount"] != float64(0) {
		t.Errorf("envCount = %v", exports["envCount"])
	}
	if exports["hasExit"] != false {
		t.Errorf("process.exit is reachable")
	}
	if exports["aliased"] != true {
		t.Errorf("window and globalThis differ")
	}
	if exports["windowIsSelf"] != true {
		t.Errorf("window.window is not the view itself")
	}
	if exports["noEval"] != true {
		t.Errorf("window.eval is reachable")
	}
	if exports["consoleType"] != "object" {
		t.Errorf("window.console = %v", exports["consoleType"])
	}
}

func TestExecuteForeignTokenUnreachable(t *testing.T) {
	exec := New(DefaultConfig())
	art := buildArtifact(t, `exports.ok = true;`)
	other := sandbox.Token("ffffffffffffffffffffffffffffffff")

	probe := &sandbox.Artifact{
		Token:     art.Token,
		Label:     art.Label,
		Code:      art.Code + "\ntypeof " + sandbox.CapRequire.Placeholder(other),
		Whitelist: art.Whitelist,
	}
	result, err := exec.Execute(context.Background(), probe, Options{})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if result.Value != "undefined" {
		t.Errorf("foreign placeholder typeof = %v, want undefined", result.Value)
	}

	direct := &sandbox.Artifact{
		Token:     art.Token,
		Label:     art.Label,
		Code:      art.Code + "\n" + sandbox.CapRequire.Placeholder(other) + "('fs');",
		Whitelist: art.Whitelist,
	}
	_, err = exec.Execute(context.Background(), direct, Options{})
	var se *ScriptError
	if !errors.As(err, &se) {
		t.Fatalf("expected *ScriptError, got %T: %v", err, err)
	}
	if !strings.Contains(se.Message, "not defined") {
		t.Errorf("message = %q", se.Message)
	}
}

func TestExecuteTimeout(t *testing.T) {
	exec := New(DefaultConfig())
	art := buildArtifact(t, `
		let i = 0;
		while (true) {
			i++;
		}
	`)

	start := time.Now()
	result, err := exec.Execute(context.Background(), art, Options{Timeout: 100 * time.Millisecond})
	if err == nil {
		t.Fatalf("expected timeout, got value %v", result.Value)
	}

	var te *sandbox.TimeoutError
	if !errors.As(err, &te) {
		t.Fatalf("expected *sandbox.TimeoutError, got %T: %v", err, err)
	}
	if te.Budget != 100*time.Millisecond {
		t.Errorf("budget = %v", te.Budget)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("interrupt took %v", elapsed)
	}
}

func TestExecuteContextCancel(t *testing.T) {
	exec := New(DefaultConfig())
	art := buildArtifact(t, `while (true) {}`)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	_, err := exec.Execute(ctx, art, Options{Timeout: 10 * time.Second})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestExecuteScriptErrors(t *testing.T) {
	exec := New(DefaultConfig())

	tests := []struct {
		name     string
		script   string
		contains string
	}{
		{"thrown error", `throw new Error('boom');`, "boom"},
		{"reference error", `nope.x;`, "not defined"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			art := buildArtifact(t, tt.script)
			_, err := exec.Execute(context.Background(), art, Options{})
			var se *ScriptError
			if !errors.As(err, &se) {
				t.Fatalf("expected *ScriptError, got %T: %v", err, err)
			}
			if !strings.Contains(se.Message, tt.contains) {
				t.Errorf("message = %q, want substring %q", se.Message, tt.contains)
			}
		})
	}
}

func TestExecuteStackLimit(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxCallStack = 64
	exec := New(cfg)
	art := buildArtifact(t, `function f() { return f(); } f();`)

	_, err := exec.Execute(context.Background(), art, Options{})
	if err == nil {
		t.Fatalf("expected stack limit failure")
	}
	var pe *sandbox.PolicyError
	if errors.As(err, &pe) {
		t.Errorf("stack exhaustion misreported as policy violation")
	}
}

func TestExecuteConsoleCapture(t *testing.T) {
	exec := New(DefaultConfig())
	art := buildArtifact(t, `
		console.log('info message', 1, true);
		console.warn('warning message');
		console.error('error message');
		'done'
	`)

	result, err := exec.Execute(context.Background(), art, Options{})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	if len(result.Console) != 3 {
		t.Fatalf("expected 3 console entries, got %d", len(result.Console))
	}
	levels := []string{"log", "warn", "error"}
	for i, entry := range result.Console {
		if entry.Level != levels[i] {
			t.Errorf("entry %d level = %s, want %s", i, entry.Level, levels[i])
		}
		if entry.Time.IsZero() {
			t.Errorf("entry %d has no timestamp", i)
		}
	}
	if result.Console[0].Message != "info message 1 true" {
		t.Errorf("message = %q", result.Console[0].Message)
	}
}

func TestExecuteConsoleOnFailedRun(t *testing.T) {
	exec := New(DefaultConfig())
	art := buildArtifact(t, `console.log('before'); eval('x');`)

	result, err := exec.Execute(context.Background(), art, Options{})
	if err == nil {
		t.Fatalf("expected policy violation")
	}
	if result == nil {
		t.Fatalf("result dropped on failure")
	}
	if len(result.Console) != 1 || result.Console[0].Message != "before" {
		t.Errorf("console = %v", result.Console)
	}
}

func TestExecuteConsoleLimit(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxConsoleEntries = 2
	exec := New(cfg)
	art := buildArtifact(t, `for (let i = 0; i < 5; i++) { console.log(i); }`)

	result, err := exec.Execute(context.Background(), art, Options{})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if len(result.Console) != 2 {
		t.Errorf("expected 2 capped entries, got %d", len(result.Console))
	}
}

func TestExecuteConsoleDisabled(t *testing.T) {
	cfg := DefaultConfig()
	cfg.EnableConsole = false
	exec := New(cfg)
	art := buildArtifact(t, `console.log('dropped'); exports.ok = true;`)

	result, err := exec.Execute(context.Background(), art, Options{})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if len(result.Console) != 0 {
		t.Errorf("console captured while disabled: %v", result.Console)
	}
	if exportsMap(t, result)["ok"] != true {
		t.Errorf("script did not run to completion")
	}
}

func TestExecuteFreshVMPerRun(t *testing.T) {
	exec := New(DefaultConfig())
	first := buildArtifact(t, `exports.token = 'one'; leaked = 'state';`)

	if _, err := exec.Execute(context.Background(), first, Options{}); err != nil {
		t.Fatalf("first Execute failed: %v", err)
	}

	second := buildArtifact(t, `exports.type = typeof leaked;`)
	result, err := exec.Execute(context.Background(), second, Options{})
	if err != nil {
		t.Fatalf("second Execute failed: %v", err)
	}
	if exportsMap(t, result)["type"] != "undefined" {
		t.Errorf("global state leaked across executions: %v", result.Exports)
	}
}
