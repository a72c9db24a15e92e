package modules

import (
	"fmt"
	"sort"
	"sync"

	"github.com/tsyne-dev/tsyne-host/internal/sandbox"
	"github.com/tsyne-dev/tsyne-host/internal/shared/utils"
)

// RuntimeName is the specifier of the builtin host-info module.
const RuntimeName = "tsyne/runtime"

// Factory builds one module value per resolve. Returned values cross
// into the sandbox, so they must be plain data: maps, slices, strings,
// numbers, booleans.
type Factory func() interface{}

// Registry maps module specifiers to host factories
type Registry struct {
	factories sync.Map
}

// NewRegistry creates an empty module registry
func NewRegistry() *Registry {
	return &Registry{}
}

// Builtin returns a registry preloaded with the builtin modules
func Builtin(version string) *Registry {
	r := NewRegistry()
	r.MustRegister(RuntimeName, func() interface{} {
		return map[string]interface{}{
			"name":     "tsyne",
			"version":  version,
			"platform": sandbox.PlatformMarker,
		}
	})
	return r
}

// Register adds a module factory under a specifier
func (r *Registry) Register(name string, factory Factory) error {
	if err := utils.ValidateModuleSpecifier(name); err != nil {
		return err
	}
	if factory == nil {
		return fmt.Errorf("module %s: factory cannot be nil", name)
	}

	r.factories.Store(name, factory)
	return nil
}

// MustRegister is Register for startup-time wiring
func (r *Registry) MustRegister(name string, factory Factory) {
	if err := r.Register(name, factory); err != nil {
		panic(err)
	}
}

// Unregister removes a module factory
func (r *Registry) Unregister(name string) {
	r.factories.Delete(name)
}

// Resolve runs the factory for a specifier. Each call produces a fresh
// value, so no module state is shared between instances. Implements the
// executor's ModuleResolver.
func (r *Registry) Resolve(name string) (interface{}, bool) {
	val, ok := r.factories.Load(name)
	if !ok {
		return nil, false
	}

	mod := val.(Factory)()
	if mod == nil {
		return nil, false
	}
	return mod, true
}

// Names returns all registered specifiers, sorted
func (r *Registry) Names() []string {
	var names []string
	r.factories.Range(func(key, _ interface{}) bool {
		names = append(names, key.(string))
		return true
	})
	sort.Strings(names)
	return names
}

// Len returns the number of registered modules
func (r *Registry) Len() int {
	var n int
	r.factories.Range(func(_, _ interface{}) bool {
		n++
		return true
	})
	return n
}
