// Package modules provides the host modules generated code can
// require(), and the registry the dependency resolver installs them
// from.
package modules

import (
	"fmt"
	"sort"
	"sync"

	"github.com/dop251/goja"

	"github.com/nextlevelbuilder/tsagent/internal/executor"
)

// Loader builds a module's exports object for a namespace.
type Loader func(ns *executor.Namespace) (goja.Value, error)

// Registry maps module names to loaders. Populated at initialization;
// Register is the single extension point for new capabilities.
type Registry struct {
	mu      sync.RWMutex
	loaders map[string]Loader
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{loaders: make(map[string]Loader)}
}

// Register adds a named module loader. Later registrations under the
// same name replace earlier ones.
func (r *Registry) Register(name string, loader Loader) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.loaders[name] = loader
}

// Has reports whether a loader exists for name.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.loaders[name]
	return ok
}

// Names returns registered module names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.loaders))
	for n := range r.loaders {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Install loads the named module into the namespace. Installing an
// already-loaded module is a no-op success, so resolving the same
// package twice within a session never errors.
func (r *Registry) Install(ns *executor.Namespace, name string) error {
	if ns.HasModule(name) {
		return nil
	}

	r.mu.RLock()
	loader, ok := r.loaders[name]
	r.mu.RUnlock()
	if !ok {
		return fmt.Errorf("no such package %q", name)
	}

	exports, err := loader(ns)
	if err != nil {
		return fmt.Errorf("install %s: %w", name, err)
	}
	ns.SetModule(name, exports)
	return nil
}

// Builtin returns a registry with the standard module set.
func Builtin() *Registry {
	r := NewRegistry()
	r.Register("frames", framesLoader)
	r.Register("forecast", forecastLoader)
	r.Register("export", exportLoader)
	return r
}

// InstallBaseline preloads the modules every session starts with.
// The forecast module is intentionally left out so it flows through
// the dependency resolver on first use.
func (r *Registry) InstallBaseline(ns *executor.Namespace) error {
	for _, name := range []string{"frames", "export"} {
		if err := r.Install(ns, name); err != nil {
			return err
		}
	}
	return nil
}

// throwData raises a contained data error inside the runtime.
func throwData(rt *goja.Runtime, format string, args ...any) {
	panic(rt.NewGoError(fmt.Errorf("data error: "+format, args...)))
}
