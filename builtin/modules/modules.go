// Package modules implements the introspection plugin backing each
// hard-coded system:/elektra/modules/<plugin> mountpoint (spec §4.1
// step 8 / SPEC_FULL §3, grounded on
// original_source/src/plugins/modules/modules.c and kdb.c's
// addModulesMountpoint).
package modules

import (
	"go.uber.org/zap"

	"github.com/go-elektra/kdb/key"
	"github.com/go-elektra/kdb/keyset"
	"github.com/go-elektra/kdb/plugin"
)

// Name is the symbolic module name this plugin registers under.
const Name = "modules"

// Plugin reports the symbolic name of the module it was configured to
// describe. One instance is mounted per loaded module, each opened with
// a different "/pluginname" in its mount-time config KeySet (the
// introspectionBackend's modConfig, not the backend's definition KeySet,
// since Init is a per-backend call the "backend" primary plugin never
// forwards to its aux plugins — only Open reaches every mounted plugin).
type Plugin struct {
	plugin.Base

	pluginName string
}

var _ plugin.Plugin = (*Plugin)(nil)

// New constructs a fresh modules plugin instance.
func New() plugin.Plugin {
	return &Plugin{}
}

func (p *Plugin) Name() string { return Name }

func (p *Plugin) Open(config *keyset.KeySet, global *keyset.KeySet, parentKey *key.Key) error {
	if err := p.Base.Open(config, global, parentKey); err != nil {
		return err
	}

	if nameKey := config.Lookup("/pluginname"); nameKey != nil {
		p.pluginName = nameKey.ValueString()
	}

	return nil
}

func (p *Plugin) Init(definition *keyset.KeySet, parentKey *key.Key) (plugin.ReturnCode, error) {
	return plugin.ReadOnly, nil
}

func (p *Plugin) Get(ks *keyset.KeySet, parentKey *key.Key) (plugin.ReturnCode, error) {
	logger := plugin.EffectiveLogger(p.Logger).With(zap.String("operation", "modules.Get"))
	logger.Debug("start modules.Get()", zap.String("pluginname", p.pluginName))

	k := parentKey.Child("infos").Child("placements")
	k.SetValue("getstorage setstorage")
	ks.Append(k)

	nameKey := parentKey.Child("infos").Child("name")
	nameKey.SetValue(p.pluginName)
	ks.Append(nameKey)

	logger.Debug("return from modules.Get()")

	return plugin.Success, nil
}
