// Package resolver implements the default resolver plugin: it turns the
// backend's configured path into a concrete storage identifier, and
// during set's prepare step produces a temporary sibling path the
// backend plugin (builtin/backend) writes to before committing by
// renaming it over the real path. Grounded on the original's resolver
// contract (spec §4.2 step 3, §4.3 step 7) and on utils/uuid in the
// teacher, which backs storage/kv/plugins/bbolt's NewTempStore the same
// way internal/uuidgen backs this plugin's temp-path generation.
package resolver

import (
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/go-elektra/kdb/internal/uuidgen"
	"github.com/go-elektra/kdb/key"
	"github.com/go-elektra/kdb/keyset"
	"github.com/go-elektra/kdb/plugin"
)

// Name is the symbolic module name this plugin registers under.
const Name = "resolver"

// Plugin resolves a backend's configured path to a real or temporary
// storage identifier.
type Plugin struct {
	plugin.Base
}

var _ plugin.Plugin = (*Plugin)(nil)

// New constructs a fresh resolver plugin instance.
func New() plugin.Plugin {
	return &Plugin{}
}

func (p *Plugin) Name() string { return Name }

// Get turns the real path seeded by the backend plugin into an opaque
// storage identifier that changes whenever the underlying file does,
// so the orchestrator's needs_update comparison (spec §4.2 step 4)
// actually detects edits instead of just echoing a path that never
// changes for a fixed mountpoint. The backend plugin reseeds the plain
// path before every later phase, so this rewrite is only ever visible
// to the orchestrator, immediately after this call returns.
func (p *Plugin) Get(ks *keyset.KeySet, parentKey *key.Key) (plugin.ReturnCode, error) {
	logger := plugin.EffectiveLogger(p.Logger).With(zap.String("operation", "resolver.Get"))
	logger.Debug("start resolver.Get()", zap.String("path", parentKey.ValueString()))

	real := parentKey.ValueString()
	if real == "" {
		err := fmt.Errorf("resolver: no path to resolve")
		logger.Debug("error", zap.Error(err))
		return plugin.Error, err
	}

	info, err := os.Stat(real)
	switch {
	case os.IsNotExist(err):
		parentKey.SetValue(real + "@missing")
	case err != nil:
		err = fmt.Errorf("resolver: could not stat %s: %w", real, err)
		logger.Debug("error", zap.Error(err))
		return plugin.Error, err
	default:
		parentKey.SetValue(fmt.Sprintf("%s@%d", real, info.ModTime().UnixNano()))
	}

	logger.Debug("return from resolver.Get()", zap.String("identifier", parentKey.ValueString()))

	return plugin.Success, nil
}

// Set produces a temporary sibling of the real path and writes it into
// the parent key's value, making the subsequent storage write safely
// revertible: the live file is only touched at commit time.
func (p *Plugin) Set(ks *keyset.KeySet, parentKey *key.Key) (plugin.ReturnCode, error) {
	logger := plugin.EffectiveLogger(p.Logger).With(zap.String("operation", "resolver.Set"))
	logger.Debug("start resolver.Set()", zap.String("path", parentKey.ValueString()))

	real := parentKey.ValueString()
	if real == "" {
		err := fmt.Errorf("resolver: no path to resolve")
		logger.Debug("error", zap.Error(err))
		return plugin.Error, err
	}

	temp := fmt.Sprintf("%s.tmp-%s", real, uuidgen.New())

	if err := parentKey.SetValue(temp); err != nil {
		logger.Debug("error", zap.Error(err))
		return plugin.Error, err
	}

	logger.Debug("return from resolver.Set()", zap.String("temp", temp))

	return plugin.Success, nil
}
