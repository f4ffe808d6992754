// Package list implements the "list" plugin: a cross-cutting multiplexer
// that wraps an ordered list of other plugins and dispatches every phase
// call to each of them in turn. It is the plugin the contract's
// mountglobal subtree names (spec §6), and the one
// global.Table.EnsureListEverywhere checks is mounted as a single shared
// instance across all ten positions (spec §4.1 step 6, grounded on
// kdb.c's ensureListPluginMountedEverywhere).
package list

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/go-elektra/kdb/key"
	"github.com/go-elektra/kdb/keyset"
	"github.com/go-elektra/kdb/plugin"
)

// Name is the symbolic module name this plugin registers under.
const Name = "list"

// Plugin multiplexes phase calls across an ordered, dynamically
// modifiable list of wrapped plugins.
type Plugin struct {
	plugin.Base

	mounted []named
}

type named struct {
	name string
	p    plugin.Plugin
}

var _ plugin.Plugin = (*Plugin)(nil)

// New constructs a fresh, empty list plugin instance. Contract
// processing (spec §4.1 step 6) mounts the same instance into all ten
// global positions and then calls MountPlugin for each configured
// cross-cutting plugin.
func New() plugin.Plugin {
	return &Plugin{}
}

func (p *Plugin) Name() string { return Name }

// MountPlugin appends wrapped to the list under name.
func (p *Plugin) MountPlugin(name string, wrapped plugin.Plugin) {
	p.mounted = append(p.mounted, named{name: name, p: wrapped})
}

// UnmountPlugin removes the plugin previously mounted under name.
func (p *Plugin) UnmountPlugin(name string) {
	out := p.mounted[:0]
	for _, n := range p.mounted {
		if n.name != name {
			out = append(out, n)
		}
	}
	p.mounted = out
}

func (p *Plugin) GetFunction(name string) plugin.ExportedFunction {
	switch name {
	case "mountplugin":
		return func(args ...interface{}) (interface{}, error) {
			if len(args) != 2 {
				return nil, fmt.Errorf("list: mountplugin expects (name string, plugin plugin.Plugin)")
			}
			pluginName, ok := args[0].(string)
			wrapped, ok2 := args[1].(plugin.Plugin)
			if !ok || !ok2 {
				return nil, fmt.Errorf("list: mountplugin received arguments of the wrong type")
			}
			p.MountPlugin(pluginName, wrapped)
			return nil, nil
		}
	case "unmountplugin":
		return func(args ...interface{}) (interface{}, error) {
			if len(args) != 1 {
				return nil, fmt.Errorf("list: unmountplugin expects (name string)")
			}
			pluginName, ok := args[0].(string)
			if !ok {
				return nil, fmt.Errorf("list: unmountplugin received an argument of the wrong type")
			}
			p.UnmountPlugin(pluginName)
			return nil, nil
		}
	}
	return nil
}

func (p *Plugin) Get(ks *keyset.KeySet, parentKey *key.Key) (plugin.ReturnCode, error) {
	logger := plugin.EffectiveLogger(p.Logger).With(zap.String("operation", "list.Get"))
	logger.Debug("start list.Get()", zap.Int("mounted", len(p.mounted)))

	for _, n := range p.mounted {
		rc, err := n.p.Get(ks, parentKey)
		if err != nil || rc == plugin.Error {
			logger.Debug("error", zap.String("plugin", n.name), zap.Error(err))
			return rc, err
		}
	}

	logger.Debug("return from list.Get()")

	return plugin.Success, nil
}

func (p *Plugin) Set(ks *keyset.KeySet, parentKey *key.Key) (plugin.ReturnCode, error) {
	logger := plugin.EffectiveLogger(p.Logger).With(zap.String("operation", "list.Set"))
	logger.Debug("start list.Set()", zap.Int("mounted", len(p.mounted)))

	for _, n := range p.mounted {
		rc, err := n.p.Set(ks, parentKey)
		if err != nil || rc == plugin.Error {
			logger.Debug("error", zap.String("plugin", n.name), zap.Error(err))
			return rc, err
		}
	}

	logger.Debug("return from list.Set()")

	return plugin.Success, nil
}

func (p *Plugin) Commit(ks *keyset.KeySet, parentKey *key.Key) (plugin.ReturnCode, error) {
	logger := plugin.EffectiveLogger(p.Logger).With(zap.String("operation", "list.Commit"))
	logger.Debug("start list.Commit()", zap.Int("mounted", len(p.mounted)))

	for _, n := range p.mounted {
		rc, err := n.p.Commit(ks, parentKey)
		if err != nil || rc == plugin.Error {
			logger.Debug("error", zap.String("plugin", n.name), zap.Error(err))
			return rc, err
		}
	}

	logger.Debug("return from list.Commit()")

	return plugin.Success, nil
}

func (p *Plugin) Error(ks *keyset.KeySet, parentKey *key.Key) (plugin.ReturnCode, error) {
	logger := plugin.EffectiveLogger(p.Logger).With(zap.String("operation", "list.Error"))
	logger.Debug("start list.Error()", zap.Int("mounted", len(p.mounted)))

	for _, n := range p.mounted {
		rc, err := n.p.Error(ks, parentKey)
		if err != nil || rc == plugin.Error {
			logger.Debug("error", zap.String("plugin", n.name), zap.Error(err))
			return rc, err
		}
	}

	logger.Debug("return from list.Error()")

	return plugin.Success, nil
}
