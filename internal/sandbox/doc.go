// Package sandbox builds isolated execution artifacts for untrusted
// JavaScript application modules.
//
// # Overview
//
// Untrusted source is never executed as written. It passes through a
// build pipeline that rewrites every reference to a dangerous host
// capability into a token-namespaced placeholder, prepends a generated
// runtime module defining those placeholders and their policy, and
// hands the combined code to the executor:
//
//	token := sandbox.NewToken()
//	art, err := sandbox.Build(source, "my-app", whitelist)
//	// art.Code = runtime module + "\n" + transformed source
//
// # Capabilities
//
// Seven identifiers are intercepted: require, import, eval, Function,
// window, globalThis, and process. A reference to any of them is
// rewritten to __tsyne_<token>_<name>__; declarations that merely share
// one of those names (parameters, let/const/var bindings, destructured
// names, property keys, catch parameters) are left byte-identical, as
// are all uses inside the declaring scope. The distinction is made by a
// full scope-resolution pass over the parsed syntax tree, never by text
// substitution.
//
// # Isolation Model
//
// The token is 128 bits of CSPRNG-derived entropy rendered as 32 hex
// characters. Placeholders, the violation factory, and the host module
// hook all embed it, so code holding one instance's artifact cannot
// name, read, or shadow another instance's namespace. Live namespaces
// are tracked in a Registry with an explicit create/destroy lifecycle.
//
// # Failure Modes
//
// Source that does not parse fails closed with TransformError before
// any execution attempt. Blocked capability use at run time raises a
// PolicyViolation error inside the sandbox; catching it there is
// allowed but cannot restore the capability. The Auditor is a separate
// advisory pass that re-checks transformed output for bare capability
// references.
package sandbox
