package sandbox

import (
	"strings"
	"testing"
)

func TestModuleWhitelistNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   ModuleWhitelist
		want []string
	}{
		{"nil", nil, []string{}},
		{"empty", ModuleWhitelist{}, []string{}},
		{"sorted", ModuleWhitelist{"b", "a", "c"}, []string{"a", "b", "c"}},
		{"deduplicated", ModuleWhitelist{"fs", "fs", "app/api", "fs"}, []string{"app/api", "fs"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.in.Normalize()
			if got == nil {
				t.Fatalf("Normalize returned nil")
			}
			if len(got) != len(tt.want) {
				t.Fatalf("Normalize = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Fatalf("Normalize = %v, want %v", got, tt.want)
				}
			}
		})
	}
}

func TestModuleWhitelistContains(t *testing.T) {
	w := ModuleWhitelist{"app/api", "app/storage"}
	if !w.Contains("app/api") {
		t.Errorf("Contains(app/api) = false")
	}
	if w.Contains("app") {
		t.Errorf("prefix matched: Contains(app) = true")
	}
	if w.Contains("app/api/extra") {
		t.Errorf("path extension matched")
	}
	if (ModuleWhitelist)(nil).Contains("fs") {
		t.Errorf("nil whitelist matched")
	}
}

func TestGenerateRuntimeDefinesAllNames(t *testing.T) {
	rt := GenerateRuntime(testToken, nil)

	defs := []string{
		"var " + ViolationFactoryName(testToken) + " = ",
		"var " + ph(CapRequire) + " = ",
		"var " + ph(CapImport) + " = ",
		"var " + ph(CapEval) + " = ",
		"var " + ph(CapFunction) + " = ",
		"var " + ph(CapProcess) + " = ",
		"var " + ph(CapWindow) + " = ",
		"var " + ph(CapGlobalThis) + " = " + ph(CapWindow) + ";",
	}
	for _, d := range defs {
		if !strings.Contains(rt, d) {
			t.Errorf("runtime missing definition %q", d)
		}
	}

	if !strings.Contains(rt, ModuleHookName(testToken)) {
		t.Errorf("runtime never consults the module hook")
	}
	if strings.Contains(rt, "use strict") {
		t.Errorf("runtime must not opt into strict mode")
	}
}

func TestGenerateRuntimeMessages(t *testing.T) {
	rt := GenerateRuntime(testToken, ModuleWhitelist{"app/api"})

	messages := []string{
		`' is not allowed in sandboxed apps"`,
		`' is not available in this sandbox"`,
		`'Dynamic import() is not allowed in sandboxed apps'`,
		`'eval() is not allowed in sandboxed apps'`,
		`'Function() constructor is not allowed in sandboxed apps'`,
		`err.name = 'PolicyViolation';`,
		`err.capability = capability;`,
	}
	for _, m := range messages {
		if !strings.Contains(rt, m) {
			t.Errorf("runtime missing %q", m)
		}
	}

	kinds := []string{KindModuleLoader, KindDynamicImporter, KindDynamicEvaluator, KindFunctionSynthesizer}
	for _, k := range kinds {
		if !strings.Contains(rt, "'"+k+"'") {
			t.Errorf("runtime missing capability kind %q", k)
		}
	}
}

func TestGenerateRuntimeWhitelist(t *testing.T) {
	rt := GenerateRuntime(testToken, ModuleWhitelist{"app/storage", "app/api", "app/api"})

	// Sorted, deduplicated, embedded as a JSON array literal.
	if !strings.Contains(rt, `["app/api","app/storage"]`) {
		t.Errorf("whitelist literal missing or unnormalized")
	}

	empty := GenerateRuntime(testToken, nil)
	if !strings.Contains(empty, `([])`) {
		t.Errorf("empty whitelist did not embed an empty array")
	}
}

func TestGenerateRuntimeProcessDescriptor(t *testing.T) {
	rt := GenerateRuntime(testToken, nil)

	for _, field := range []string{
		`platform: 'tsyne-sandbox'`,
		`env: {}`,
		`argv: []`,
	} {
		if !strings.Contains(rt, field) {
			t.Errorf("process descriptor missing %q", field)
		}
	}
}

func TestGenerateRuntimeSafeGlobals(t *testing.T) {
	rt := GenerateRuntime(testToken, nil)

	for _, name := range []string{`"console"`, `"setTimeout"`, `"JSON"`, `"Promise"`} {
		if !strings.Contains(rt, name) {
			t.Errorf("safe global list missing %s", name)
		}
	}
	for _, name := range []string{`"require"`, `"eval"`, `"Function"`, `"process"`} {
		if strings.Contains(rt, name) {
			t.Errorf("safe global list leaks %s", name)
		}
	}
	if !strings.Contains(rt, "safe.window = safe;") || !strings.Contains(rt, "safe.globalThis = safe;") {
		t.Errorf("ambient view does not alias itself")
	}
}

func TestGenerateRuntimeDeterministic(t *testing.T) {
	w := ModuleWhitelist{"app/api", "fs"}
	first := GenerateRuntime(testToken, w)
	second := GenerateRuntime(testToken, w)
	if first != second {
		t.Errorf("same inputs produced different runtimes")
	}

	other := Token("ffffffffffffffffffffffffffffffff")
	cross := GenerateRuntime(other, w)
	if strings.Contains(cross, string(testToken)) {
		t.Errorf("runtime for one token leaks another token")
	}
	if cross == first {
		t.Errorf("distinct tokens produced identical runtimes")
	}
}
