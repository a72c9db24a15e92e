package sandbox

import "strings"

// ============================================================================
// Capability Enumeration
// ============================================================================

// Capability identifies one of the dangerous host features subject to
// interception. The set is closed: transform, runtime generation, and
// audit all iterate the same seven identifiers.
type Capability uint8

const (
	// CapRequire is the synchronous module loader (require).
	CapRequire Capability = iota
	// CapImport is the dynamic import expression (import(...)).
	CapImport
	// CapEval is the string evaluator (eval).
	CapEval
	// CapFunction is the function-from-string constructor (Function).
	CapFunction
	// CapWindow is the legacy spelling of the ambient global (window).
	CapWindow
	// CapGlobalThis is the canonical spelling of the ambient global.
	CapGlobalThis
	// CapProcess is the host process descriptor (process).
	CapProcess

	capCount
)

// Kind strings used for warning, policy, and metric attribution. The
// two ambient-global spellings share one kind.
const (
	KindModuleLoader        = "module-loader"
	KindDynamicImporter     = "dynamic-importer"
	KindDynamicEvaluator    = "dynamic-evaluator"
	KindFunctionSynthesizer = "function-synthesizer"
	KindAmbientGlobal       = "ambient-global"
	KindProcessDescriptor   = "process-descriptor"
)

var capabilityIdents = [capCount]string{
	CapRequire:    "require",
	CapImport:     "import",
	CapEval:       "eval",
	CapFunction:   "Function",
	CapWindow:     "window",
	CapGlobalThis: "globalThis",
	CapProcess:    "process",
}

var capabilityKinds = [capCount]string{
	CapRequire:    KindModuleLoader,
	CapImport:     KindDynamicImporter,
	CapEval:       KindDynamicEvaluator,
	CapFunction:   KindFunctionSynthesizer,
	CapWindow:     KindAmbientGlobal,
	CapGlobalThis: KindAmbientGlobal,
	CapProcess:    KindProcessDescriptor,
}

// Capabilities returns the full enumeration in declaration order.
func Capabilities() []Capability {
	out := make([]Capability, 0, capCount)
	for c := Capability(0); c < capCount; c++ {
		out = append(out, c)
	}
	return out
}

// CapabilityForIdent resolves a JavaScript identifier to its capability.
func CapabilityForIdent(name string) (Capability, bool) {
	for c := Capability(0); c < capCount; c++ {
		if capabilityIdents[c] == name {
			return c, true
		}
	}
	return 0, false
}

// Ident returns the JavaScript identifier the capability intercepts.
func (c Capability) Ident() string {
	if c >= capCount {
		return "unknown"
	}
	return capabilityIdents[c]
}

// Kind returns the attribution string for warnings and policy errors.
func (c Capability) Kind() string {
	if c >= capCount {
		return "unknown"
	}
	return capabilityKinds[c]
}

func (c Capability) String() string { return c.Ident() }

// ============================================================================
// Placeholder Naming
// ============================================================================

const (
	placeholderPrefix = "__tsyne_"
	placeholderSuffix = "__"
)

// Placeholder returns the token-qualified stand-in name substituted for
// references to c.
func (c Capability) Placeholder(t Token) string {
	return placeholderName(t, c.Ident())
}

// ViolationFactoryName is the token-qualified error factory the
// generated runtime defines alongside the placeholders.
func ViolationFactoryName(t Token) string {
	return placeholderName(t, "violation")
}

// ModuleHookName is the token-qualified native hook the executor may
// install to serve whitelisted module loads.
func ModuleHookName(t Token) string {
	return placeholderName(t, "modules")
}

func placeholderName(t Token, ident string) string {
	return placeholderPrefix + string(t) + "_" + ident + placeholderSuffix
}

// SplitPlaceholder decomposes an identifier of placeholder shape into
// its token and trailing identifier. ok is false for anything that is
// not __tsyne_<32 hex>_<ident>__.
func SplitPlaceholder(name string) (token Token, ident string, ok bool) {
	if !strings.HasPrefix(name, placeholderPrefix) || !strings.HasSuffix(name, placeholderSuffix) {
		return "", "", false
	}
	body := name[len(placeholderPrefix) : len(name)-len(placeholderSuffix)]
	if len(body) < TokenLength+2 || body[TokenLength] != '_' {
		return "", "", false
	}
	tok := body[:TokenLength]
	if !isTokenString(tok) {
		return "", "", false
	}
	return Token(tok), body[TokenLength+1:], true
}
