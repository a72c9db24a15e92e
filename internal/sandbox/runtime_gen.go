package sandbox

import (
	"fmt"
	"sort"
	"strings"

	"github.com/bytedance/sonic"
)

// PlatformMarker is the platform string the inert process descriptor
// reports inside every sandbox.
const PlatformMarker = "tsyne-sandbox"

// ModuleWhitelist lists the module specifiers an instance may load.
// Matching is exact: no globs, no prefixes, no path expansion.
type ModuleWhitelist []string

// Normalize returns a sorted, deduplicated copy. Never nil, so the
// serialized form is always a JSON array.
func (w ModuleWhitelist) Normalize() ModuleWhitelist {
	out := make(ModuleWhitelist, 0, len(w))
	if len(w) == 0 {
		return out
	}
	seen := make(map[string]struct{}, len(w))
	for _, name := range w {
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Contains reports whether name is whitelisted.
func (w ModuleWhitelist) Contains(name string) bool {
	for _, m := range w {
		if m == name {
			return true
		}
	}
	return false
}

// safeGlobalNames is the fixed allow-list the ambient-global view
// copies from the execution context. Loader, evaluator, and process
// capabilities are deliberately absent.
var safeGlobalNames = []string{
	"console",
	"setTimeout", "clearTimeout", "setInterval", "clearInterval",
	"JSON", "Math", "Date", "RegExp", "Promise", "Symbol",
	"Map", "Set", "WeakMap", "WeakSet",
	"Array", "Object", "String", "Number", "Boolean",
	"Error", "TypeError", "RangeError", "SyntaxError",
	"ReferenceError", "EvalError", "URIError",
	"parseInt", "parseFloat", "isNaN", "isFinite",
	"encodeURIComponent", "decodeURIComponent", "encodeURI", "decodeURI",
	"NaN", "Infinity",
}

// GenerateRuntime emits the token-namespaced runtime module: the
// violation factory, all seven placeholders, and the curated
// ambient-global view. Concatenated ahead of transformed application
// source the result executes with no further preprocessing. Pure in
// (token, whitelist).
//
// Whitelisted modules resolve lazily: only when the sandbox actually
// requests a name does the placeholder consult the host module hook,
// and a whitelisted name the hook cannot serve fails at that call. The
// hook is a plain resolver returning undefined on a miss; the throw
// stays in here so the error shape is the same on every path.
func GenerateRuntime(token Token, whitelist ModuleWhitelist) string {
	rep := strings.NewReplacer(
		"@violation@", ViolationFactoryName(token),
		"@modules@", ModuleHookName(token),
		"@require@", CapRequire.Placeholder(token),
		"@import@", CapImport.Placeholder(token),
		"@eval@", CapEval.Placeholder(token),
		"@function@", CapFunction.Placeholder(token),
		"@window@", CapWindow.Placeholder(token),
		"@globalThis@", CapGlobalThis.Placeholder(token),
		"@process@", CapProcess.Placeholder(token),
		"@whitelist@", mustJSON([]string(whitelist.Normalize())),
		"@safeNames@", mustJSON(safeGlobalNames),
		"@platform@", PlatformMarker,
		"@kindModule@", KindModuleLoader,
		"@kindImport@", KindDynamicImporter,
		"@kindEval@", KindDynamicEvaluator,
		"@kindFunction@", KindFunctionSynthesizer,
	)
	return rep.Replace(runtimeTemplate)
}

func mustJSON(v interface{}) string {
	data, err := sonic.Marshal(v)
	if err != nil {
		panic(fmt.Sprintf("sandbox: marshal runtime literal: %v", err))
	}
	return string(data)
}

// The template stays inside the engine's script grammar: var and
// function only, no strict-mode directive, all placeholders defined as
// ordinary constructible functions so new-invocation still lands in
// the policy body.
const runtimeTemplate = `var @violation@ = function (capability, message) {
  var err = new Error(message);
  err.name = 'PolicyViolation';
  err.capability = capability;
  return err;
};
var @require@ = (function (allowed) {
  return function (name) {
    var ok = false;
    for (var i = 0; i < allowed.length; i++) {
      if (allowed[i] === name) {
        ok = true;
        break;
      }
    }
    if (!ok) {
      throw @violation@('@kindModule@', "Module '" + name + "' is not allowed in sandboxed apps");
    }
    if (typeof @modules@ === 'function') {
      var mod = @modules@(name);
      if (mod !== undefined) {
        return mod;
      }
    }
    throw @violation@('@kindModule@', "Module '" + name + "' is not available in this sandbox");
  };
})(@whitelist@);
var @import@ = function () {
  return Promise.reject(@violation@('@kindImport@', 'Dynamic import() is not allowed in sandboxed apps'));
};
var @eval@ = function () {
  throw @violation@('@kindEval@', 'eval() is not allowed in sandboxed apps');
};
var @function@ = function () {
  throw @violation@('@kindFunction@', 'Function() constructor is not allowed in sandboxed apps');
};
var @process@ = { platform: '@platform@', env: {}, argv: [] };
var @window@ = (function (host) {
  var safe = {};
  var names = @safeNames@;
  for (var i = 0; i < names.length; i++) {
    if (names[i] in host) {
      safe[names[i]] = host[names[i]];
    }
  }
  safe.window = safe;
  safe.globalThis = safe;
  return safe;
})(function () { return this; }());
var @globalThis@ = @window@;
`
