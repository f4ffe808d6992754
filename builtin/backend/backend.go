// Package backend implements the "backend" primary plugin: the generic
// backend contract every mountpoint in this implementation uses. It
// resolves the "positions/{get,set}/*" array indices in a mountpoint's
// definition KeySet into its ordered auxiliary plugin list and dispatches
// each phase to the referenced plugin, exactly as
// _examples/original_source/src/plugins/backend/backend.c does for the
// real Elektra.
package backend

import (
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/go-elektra/kdb/global"
	"github.com/go-elektra/kdb/key"
	"github.com/go-elektra/kdb/keyset"
	"github.com/go-elektra/kdb/plugin"
)

// Name is the symbolic module name this plugin registers under.
const Name = "backend"

// Plugin implements plugin.Plugin, plugin.AuxAware and Dispatcher.
type Plugin struct {
	plugin.Base

	aux        []plugin.Plugin
	definition *keyset.KeySet

	path     string
	tempPath string
}

var (
	_ plugin.Plugin   = (*Plugin)(nil)
	_ plugin.AuxAware = (*Plugin)(nil)
	_ Dispatcher      = (*Plugin)(nil)
)

// New constructs a fresh backend plugin instance. Used as the factory
// registered in the module registry.
func New() plugin.Plugin {
	return &Plugin{}
}

// Dispatcher lets kdb's init phase hand the backend's definition KeySet
// to the plugin right before its Init call, since plugin.Plugin's
// Get/Set/Commit/Error signature has no room for it (only ks and
// parentKey, matching the original's entry points).
type Dispatcher interface {
	SetDefinition(definition *keyset.KeySet)
}

// SetAux implements plugin.AuxAware.
func (p *Plugin) SetAux(plugins []plugin.Plugin) {
	p.aux = plugins
}

// SetDefinition implements Dispatcher.
func (p *Plugin) SetDefinition(definition *keyset.KeySet) {
	p.definition = definition
}

func (p *Plugin) Name() string { return Name }

// Init reads "path" from the mountpoint definition. definition's keys
// use plugin-relative cascading names ("/path", "/positions/get/resolver",
// ...), per spec §4.1 step 5.
func (p *Plugin) Init(definition *keyset.KeySet, parentKey *key.Key) (plugin.ReturnCode, error) {
	logger := plugin.EffectiveLogger(p.Logger).With(zap.String("operation", "backend.Init"))
	logger.Debug("start backend.Init()", zap.String("mountpoint", parentKey.Name()))

	p.definition = definition

	pathKey := definition.Lookup("/path")
	if pathKey == nil {
		err := fmt.Errorf("backend: definition is missing required key \"/path\"")
		logger.Debug("error", zap.Error(err))
		return plugin.Error, err
	}

	p.path = pathKey.ValueString()

	logger.Debug("return from backend.Init()", zap.String("path", p.path))

	return plugin.Success, nil
}

func (p *Plugin) phase() plugin.Phase {
	if p.Global == nil {
		return ""
	}
	if k := p.Global.Lookup(global.PhaseKey); k != nil {
		return plugin.Phase(k.ValueString())
	}
	return ""
}

// auxAt resolves definition position name (e.g. "/positions/get/resolver")
// to the aux plugin it references, or nil if the definition doesn't
// assign that position.
func (p *Plugin) auxAt(position string) plugin.Plugin {
	if p.definition == nil {
		return nil
	}

	idxKey := p.definition.Lookup(position)
	if idxKey == nil {
		return nil
	}

	n, ok := key.ParseArrayIndex(idxKey.ValueString())
	if !ok || n < 0 || n >= len(p.aux) {
		return nil
	}

	return p.aux[n]
}

// withParentKeyReadOnly locks parentKey's name, value and metadata for
// the duration of fn, the way set's storage/poststorage phases require
// (spec §4.3 steps 9-10: "Keyset and parent key are fully read-only
// during this phase"). The lock is applied around the call into the
// phase's aux plugin only, after the backend has already reseeded
// parentKey to its own temp path, so the reseed itself (orchestration
// bookkeeping, not plugin behavior) never trips the flag it sets.
func withParentKeyReadOnly(parentKey *key.Key, fn func() (plugin.ReturnCode, error)) (plugin.ReturnCode, error) {
	parentKey.SetNameReadOnly(true)
	parentKey.SetValueReadOnly(true)
	parentKey.SetMetaReadOnly(true)
	defer func() {
		parentKey.SetNameReadOnly(false)
		parentKey.SetValueReadOnly(false)
		parentKey.SetMetaReadOnly(false)
	}()

	return fn()
}

// Get seeds the parent key with the backend's configured path before
// dispatching every phase; in the resolver phase the resolver aux then
// replaces that value with a storage identifier the orchestrator reads right after
// the call returns (spec §4.2 step 3). Reseeding here means a resolver
// aux is free to rewrite the value for change-detection purposes
// without that rewrite leaking into prestorage/storage/poststorage.
func (p *Plugin) Get(ks *keyset.KeySet, parentKey *key.Key) (plugin.ReturnCode, error) {
	logger := plugin.EffectiveLogger(p.Logger).With(zap.String("operation", "backend.Get"))
	logger.Debug("start backend.Get()", zap.String("phase", string(p.phase())), zap.String("mountpoint", parentKey.Name()))

	if p.phase() != plugin.PhaseResolver {
		parentKey.SetValue(p.path)
	}

	rc, err := p.get(ks, parentKey)
	if err != nil {
		logger.Debug("error", zap.Error(err))
	} else {
		logger.Debug("return from backend.Get()", zap.Stringer("returncode", rc))
	}

	return rc, err
}

func (p *Plugin) get(ks *keyset.KeySet, parentKey *key.Key) (plugin.ReturnCode, error) {
	switch p.phase() {
	case plugin.PhaseResolver:
		parentKey.SetValue(p.path)
		if r := p.auxAt("/positions/get/resolver"); r != nil {
			return r.Get(ks, parentKey)
		}
		return plugin.Success, nil

	case plugin.PhaseCacheCheck:
		if r := p.auxAt("/positions/get/cachecheck"); r != nil {
			return r.Get(ks, parentKey)
		}
		return plugin.NoUpdate, nil

	case plugin.PhasePreStorage:
		if r := p.auxAt("/positions/get/prestorage"); r != nil {
			return r.Get(ks, parentKey)
		}
		return plugin.Success, nil

	case plugin.PhaseStorage:
		s := p.auxAt("/positions/get/storage")
		if s == nil {
			return plugin.Error, fmt.Errorf("backend: definition is missing a storage plugin for get")
		}
		return s.Get(ks, parentKey)

	case plugin.PhasePostStorage:
		if r := p.auxAt("/positions/get/poststorage"); r != nil {
			return r.Get(ks, parentKey)
		}
		return plugin.Success, nil
	}

	return plugin.Success, nil
}

// Set reseeds the shared parent key to this backend's own path before
// dispatching each phase, mirroring Get's reseed-on-every-phase approach.
// The orchestrator drives every backend through a phase with the same
// *key.Key instance (kdb/set.go passes one parentKey to every backend's
// Set call), so without this a resolver call for one backend can leave
// its temp path sitting in parentKey when the next backend's prestorage/
// storage/poststorage phase runs, pointing every backend at the last
// resolved temp file instead of its own.
func (p *Plugin) Set(ks *keyset.KeySet, parentKey *key.Key) (plugin.ReturnCode, error) {
	logger := plugin.EffectiveLogger(p.Logger).With(zap.String("operation", "backend.Set"))
	logger.Debug("start backend.Set()", zap.String("phase", string(p.phase())), zap.String("mountpoint", parentKey.Name()))

	switch p.phase() {
	case plugin.PhaseResolver:
		parentKey.SetValue(p.path)
	case plugin.PhasePreStorage, plugin.PhaseStorage, plugin.PhasePostStorage:
		parentKey.SetValue(p.tempPath)
	}

	rc, err := p.set(ks, parentKey)
	if err != nil {
		logger.Debug("error", zap.Error(err))
	} else {
		logger.Debug("return from backend.Set()", zap.Stringer("returncode", rc))
	}

	return rc, err
}

func (p *Plugin) set(ks *keyset.KeySet, parentKey *key.Key) (plugin.ReturnCode, error) {
	switch p.phase() {
	case plugin.PhaseResolver:
		parentKey.SetValue(p.path)
		r := p.auxAt("/positions/set/resolver")
		if r == nil {
			return plugin.Error, fmt.Errorf("backend: definition is missing a resolver plugin for set")
		}
		rc, err := r.Set(ks, parentKey)
		p.tempPath = parentKey.ValueString()
		return rc, err

	case plugin.PhasePreStorage:
		if r := p.auxAt("/positions/set/prestorage"); r != nil {
			return r.Set(ks, parentKey)
		}
		return plugin.Success, nil

	case plugin.PhaseStorage:
		s := p.auxAt("/positions/set/storage")
		if s == nil {
			return plugin.Error, fmt.Errorf("backend: definition is missing a storage plugin for set")
		}
		return withParentKeyReadOnly(parentKey, func() (plugin.ReturnCode, error) {
			return s.Set(ks, parentKey)
		})

	case plugin.PhasePostStorage:
		if r := p.auxAt("/positions/set/poststorage"); r != nil {
			return withParentKeyReadOnly(parentKey, func() (plugin.ReturnCode, error) {
				return r.Set(ks, parentKey)
			})
		}
		return plugin.Success, nil
	}

	return plugin.Success, nil
}

func (p *Plugin) Commit(ks *keyset.KeySet, parentKey *key.Key) (plugin.ReturnCode, error) {
	logger := plugin.EffectiveLogger(p.Logger).With(zap.String("operation", "backend.Commit"))
	logger.Debug("start backend.Commit()", zap.String("phase", string(p.phase())), zap.String("mountpoint", parentKey.Name()))

	rc, err := p.commit(ks, parentKey)
	if err != nil {
		logger.Debug("error", zap.Error(err))
	} else {
		logger.Debug("return from backend.Commit()", zap.Stringer("returncode", rc))
	}

	return rc, err
}

func (p *Plugin) commit(ks *keyset.KeySet, parentKey *key.Key) (plugin.ReturnCode, error) {
	switch p.phase() {
	case plugin.PhasePreCommit:
		if r := p.auxAt("/positions/set/precommit"); r != nil {
			return r.Commit(ks, parentKey)
		}
		return plugin.Success, nil

	case plugin.PhaseCommit:
		if c := p.auxAt("/positions/set/commit"); c != nil {
			rc, err := c.Commit(ks, parentKey)
			if err == nil && rc != plugin.Error {
				parentKey.SetValue(p.path)
			}
			return rc, err
		}
		if err := os.Rename(p.tempPath, p.path); err != nil {
			return plugin.Error, fmt.Errorf("backend: could not finalize commit: %w", err)
		}
		parentKey.SetValue(p.path)
		return plugin.Success, nil

	case plugin.PhasePostCommit:
		if r := p.auxAt("/positions/set/postcommit"); r != nil {
			return r.Commit(ks, parentKey)
		}
		return plugin.Success, nil
	}

	return plugin.Success, nil
}

func (p *Plugin) Error(ks *keyset.KeySet, parentKey *key.Key) (plugin.ReturnCode, error) {
	logger := plugin.EffectiveLogger(p.Logger).With(zap.String("operation", "backend.Error"))
	logger.Debug("start backend.Error()", zap.String("phase", string(p.phase())), zap.String("mountpoint", parentKey.Name()))

	rc, err := p.handleError(ks, parentKey)
	if err != nil {
		logger.Debug("error", zap.Error(err))
	} else {
		logger.Debug("return from backend.Error()", zap.Stringer("returncode", rc))
	}

	return rc, err
}

func (p *Plugin) handleError(ks *keyset.KeySet, parentKey *key.Key) (plugin.ReturnCode, error) {
	switch p.phase() {
	case plugin.PhasePreRollback:
		if r := p.auxAt("/positions/set/prerollback"); r != nil {
			return r.Error(ks, parentKey)
		}
		return plugin.Success, nil

	case plugin.PhaseRollback:
		if r := p.auxAt("/positions/set/rollback"); r != nil {
			return r.Error(ks, parentKey)
		}
		if p.tempPath != "" {
			_ = os.Remove(p.tempPath)
		}
		return plugin.Success, nil

	case plugin.PhasePostRollback:
		if r := p.auxAt("/positions/set/postrollback"); r != nil {
			return r.Error(ks, parentKey)
		}
		return plugin.Success, nil
	}

	return plugin.Success, nil
}
