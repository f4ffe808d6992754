// Package version implements the introspection plugin backing the
// hard-coded system:/elektra/version mountpoint (spec §4.1 step 8,
// grounded on original_source/src/plugins/version/version.c and
// kdb.c's addHardcodedMountpoints).
package version

import (
	"go.uber.org/zap"

	"github.com/go-elektra/kdb/key"
	"github.com/go-elektra/kdb/keyset"
	"github.com/go-elektra/kdb/plugin"
)

// Name is the symbolic module name this plugin registers under.
const Name = "version"

// CoreVersion is this implementation's version string.
const CoreVersion = "1.0.0"

// Plugin populates the static constants/KDB_VERSION key describing this
// implementation. It is always mounted read-only.
type Plugin struct {
	plugin.Base
}

var _ plugin.Plugin = (*Plugin)(nil)

// New constructs a fresh version plugin instance.
func New() plugin.Plugin {
	return &Plugin{}
}

func (p *Plugin) Name() string { return Name }

func (p *Plugin) Init(definition *keyset.KeySet, parentKey *key.Key) (plugin.ReturnCode, error) {
	return plugin.ReadOnly, nil
}

func (p *Plugin) Get(ks *keyset.KeySet, parentKey *key.Key) (plugin.ReturnCode, error) {
	logger := plugin.EffectiveLogger(p.Logger).With(zap.String("operation", "version.Get"))
	logger.Debug("start version.Get()")

	mp := parentKey

	constants := map[string]string{
		"constants/KDB_VERSION": CoreVersion,
	}

	for suffix, value := range constants {
		k := mp
		for _, seg := range splitPath(suffix) {
			k = k.Child(seg)
		}
		k.SetValue(value)
		ks.Append(k)
	}

	logger.Debug("return from version.Get()", zap.Int("keys", ks.Len()))

	return plugin.Success, nil
}

func splitPath(s string) []string {
	var segs []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '/' {
			segs = append(segs, s[start:i])
			start = i + 1
		}
	}
	segs = append(segs, s[start:])
	return segs
}
