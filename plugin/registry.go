package plugin

import "fmt"

// Factory constructs a fresh instance of a plugin. Plugins are stateful
// per mountpoint, so every mount gets its own instance from the factory,
// the same way storage/kv/builder.KVStoreBuilder produces a fresh store
// per call rather than sharing one.
type Factory func() Plugin

// Registry is a dynamic, symbolic-name-keyed module loader. It plays the
// role the spec calls "module registry": it has no notion of shared
// object files, only a name-to-factory table, mirroring
// storage/kv/plugins.KVPluginManager (which does the same thing for KV
// storage drivers) and storage/kv/builder.Drivers (same idea, package
// level).
type Registry struct {
	factories map[string]Factory
}

// NewRegistry constructs an empty Registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds a factory under name. Registering the same name twice
// replaces the previous factory.
func (r *Registry) Register(name string, factory Factory) {
	r.factories[name] = factory
}

// New constructs a fresh Plugin instance for name. It returns an error
// if name is not registered; the caller is expected to turn this into an
// installation error.
func (r *Registry) New(name string) (Plugin, error) {
	factory, ok := r.factories[name]
	if !ok {
		return nil, fmt.Errorf("plugin: no such module %q", name)
	}

	return factory(), nil
}

// Has reports whether name is registered.
func (r *Registry) Has(name string) bool {
	_, ok := r.factories[name]
	return ok
}

// Names lists every registered module name, for introspection
// mountpoints such as system:/elektra/modules/<plugin>.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	return names
}
