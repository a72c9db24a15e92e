// Package modules provides the host-module table backing whitelisted
// module loads inside sandboxes.
//
// A whitelist entry only admits a specifier past the policy check; the
// value the sandboxed require call receives comes from here. Factories
// run once per resolve, so two instances never observe shared module
// state.
//
// Example Usage:
//
//	registry := modules.Builtin("1.0.0")
//	registry.MustRegister("app/config", func() interface{} {
//	    return map[string]interface{}{"theme": "dark"}
//	})
package modules
