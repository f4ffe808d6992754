package kdb

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/go-elektra/kdb/builtin/backend"
	"github.com/go-elektra/kdb/global"
	"github.com/go-elektra/kdb/internal/log"
	"github.com/go-elektra/kdb/kdberrors"
	"github.com/go-elektra/kdb/key"
	"github.com/go-elektra/kdb/keyset"
	"github.com/go-elektra/kdb/mount"
	"github.com/go-elektra/kdb/plugin"
)

// Result is the closed set of outcomes Get and Set report (spec §4.2,
// §4.3 contracts).
type Result string

const (
	Updated   Result = "updated"
	Unchanged Result = "unchanged"
	Failed    Result = "failed"
	Committed Result = "committed"
	NoChange  Result = "no_change"
)

func invokeGet(p plugin.Plugin, ks *keyset.KeySet, parentKey *key.Key) (plugin.ReturnCode, error) {
	return p.Get(ks, parentKey)
}

// Get runs the full get pipeline against every Backend intersecting
// parentKey's subtree (spec §4.2). ks is the caller's result KeySet;
// keys outside the touched mountpoints are preserved untouched.
func (h *Handle) Get(ks *keyset.KeySet, parentKey *key.Key) (Result, error) {
	logger := log.WithContext(context.Background(), h.logger).With(zap.String("operation", "kdb.Get"))

	if parentKey == nil {
		return Failed, fmt.Errorf("kdb: Get: parent key must not be nil")
	}

	logger.Debug("start kdb.Get()", zap.String("parent", parentKey.Name()))

	if parentKey.Namespace() == key.Meta {
		h.interfaceError(parentKey, "Get: parent key must not be in the meta namespace")
		return Failed, fmt.Errorf("kdb: Get: parent key must not be in the meta namespace")
	}

	kdberrors.Clear(parentKey)

	if err := h.global.RunMaxOnce(global.PreGetStorage, ks, parentKey, invokeGet); err != nil {
		h.interfaceError(parentKey, err.Error())
		logger.Debug("error", zap.Error(err))
		return Failed, err
	}

	backends := h.mounts.FindIntersecting(parentKey)
	if len(backends) == 0 {
		logger.Debug("return from kdb.Get()", zap.String("result", string(Unchanged)))
		return Unchanged, nil
	}

	if err := h.runInitPhase(backends, parentKey); err != nil {
		logger.Debug("error", zap.Error(err))
		return Failed, err
	}

	if err := h.runResolverPhaseGet(backends, parentKey); err != nil {
		logger.Debug("error", zap.Error(err))
		return Failed, err
	}

	var active []*mount.Backend
	for _, b := range backends {
		if b.NeedsUpdate {
			active = append(active, b)
		}
	}
	if len(active) == 0 {
		logger.Debug("return from kdb.Get()", zap.String("result", string(Unchanged)))
		return Unchanged, nil
	}

	cacheHit := make(map[*mount.Backend]bool)
	h.runCacheCheckPhase(active, parentKey, cacheHit)

	var toRefresh []*mount.Backend
	for _, b := range active {
		if !cacheHit[b] {
			toRefresh = append(toRefresh, b)
		}
	}

	if err := h.runStoragePhasesGet(toRefresh, parentKey); err != nil {
		logger.Debug("error", zap.Error(err))
		return Failed, err
	}

	merged := keyset.New()
	for _, b := range backends {
		merged.AppendAll(b.Keys)
	}

	if err := h.global.RunMaxOnce(global.ProcGetStorage, merged, parentKey, invokeGet); err != nil {
		h.pluginMisbehavior(parentKey, global.ProcGetStorage, err)
		logger.Debug("error", zap.Error(err))
		return Failed, err
	}
	if err := h.global.RunMaxOnce(global.PostGetStorage, merged, parentKey, invokeGet); err != nil {
		h.pluginMisbehavior(parentKey, global.PostGetStorage, err)
		logger.Debug("error", zap.Error(err))
		return Failed, err
	}

	parents := make([]*key.Key, len(backends))
	for i, b := range backends {
		parents[i] = b.Mountpoint
	}
	divided := merged.Divide(parents)
	for i, b := range backends {
		b.Keys = divided[i]
	}

	for _, b := range backends {
		ks.Cut(b.Mountpoint)
		ks.AppendAll(b.Keys)
	}

	h.cacheMu.Lock()
	for _, b := range toRefresh {
		h.cache[b.Mountpoint.Name()] = &cacheEntry{id: b.MountpointID, keys: b.Keys.Dup()}
	}
	h.cacheMu.Unlock()

	logger.Debug("return from kdb.Get()", zap.String("result", string(Updated)))

	return Updated, nil
}

func (h *Handle) runInitPhase(backends []*mount.Backend, parentKey *key.Key) error {
	h.global.SetPhase(string(plugin.PhaseInit))

	for _, b := range backends {
		if b.Initialized {
			continue
		}

		h.global.SetMountpoint(b.Mountpoint.Name())

		if dispatcher, ok := b.BackendPlugin.(backend.Dispatcher); ok {
			dispatcher.SetDefinition(b.Definition)
		}

		rc, err := b.BackendPlugin.Init(b.Definition, parentKey)
		if err != nil {
			h.interfaceError(parentKey, fmt.Sprintf("init of backend %q failed: %s", b.Mountpoint.Name(), err))
			return err
		}

		switch rc {
		case plugin.Success:
			b.Initialized = true
		case plugin.ReadOnly:
			b.Initialized = true
			b.ReadOnly = true
		default:
			err := fmt.Errorf("kdb: backend %q init returned %s", b.Mountpoint.Name(), rc)
			h.interfaceError(parentKey, err.Error())
			return err
		}
	}

	return nil
}

func (h *Handle) runResolverPhaseGet(backends []*mount.Backend, parentKey *key.Key) error {
	h.global.SetPhase(string(plugin.PhaseResolver))

	for _, b := range backends {
		h.global.SetMountpoint(b.Mountpoint.Name())

		rc, err := b.BackendPlugin.Get(keyset.New(), parentKey)
		if err != nil || rc == plugin.Error {
			if err == nil {
				err = fmt.Errorf("kdb: resolver phase of backend %q failed", b.Mountpoint.Name())
			}
			h.installationError(parentKey, plugin.PhaseResolver, err)
			return err
		}

		newID := parentKey.ValueString()
		b.NeedsUpdate = !b.Resolved || newID != b.MountpointID
		b.MountpointID = newID
		b.Resolved = true
	}

	return nil
}

func (h *Handle) runCacheCheckPhase(active []*mount.Backend, parentKey *key.Key, cacheHit map[*mount.Backend]bool) {
	h.global.SetPhase(string(plugin.PhaseCacheCheck))

	h.cacheMu.Lock()
	defer h.cacheMu.Unlock()

	for _, b := range active {
		entry, ok := h.cache[b.Mountpoint.Name()]
		if !ok {
			continue
		}

		h.global.SetMountpoint(b.Mountpoint.Name())

		rc, err := b.BackendPlugin.Get(keyset.New(), parentKey)
		if err == nil && rc == plugin.CacheHit && entry.id == b.MountpointID {
			b.Keys = entry.keys.Dup()
			cacheHit[b] = true
		}
	}
}

func (h *Handle) runStoragePhasesGet(backends []*mount.Backend, parentKey *key.Key) error {
	if len(backends) == 0 {
		return nil
	}

	h.global.SetPhase(string(plugin.PhasePreStorage))
	for _, b := range backends {
		h.global.SetMountpoint(b.Mountpoint.Name())

		if rc, err := b.BackendPlugin.Get(keyset.New(), parentKey); err != nil || rc == plugin.Error {
			if err == nil {
				err = fmt.Errorf("kdb: prestorage phase of backend %q failed", b.Mountpoint.Name())
			}
			h.installationError(parentKey, plugin.PhasePreStorage, err)
			return err
		}
		if err := h.global.RunForEach(global.PreStorage, keyset.New(), parentKey, invokeGet); err != nil {
			h.pluginMisbehavior(parentKey, global.PreStorage, err)
			return err
		}
	}

	h.global.SetPhase(string(plugin.PhaseStorage))
	for _, b := range backends {
		h.global.SetMountpoint(b.Mountpoint.Name())

		fresh := keyset.New()
		rc, err := b.BackendPlugin.Get(fresh, parentKey)
		if err != nil || rc == plugin.Error {
			if err == nil {
				err = fmt.Errorf("kdb: storage phase of backend %q failed", b.Mountpoint.Name())
			}
			h.installationError(parentKey, plugin.PhaseStorage, err)
			return err
		}
		b.Keys = fresh
	}

	h.global.SetPhase(string(plugin.PhasePostStorage))
	for _, b := range backends {
		h.global.SetMountpoint(b.Mountpoint.Name())

		if rc, err := b.BackendPlugin.Get(b.Keys, parentKey); err != nil || rc == plugin.Error {
			if err == nil {
				err = fmt.Errorf("kdb: poststorage phase of backend %q failed", b.Mountpoint.Name())
			}
			h.installationError(parentKey, plugin.PhasePostStorage, err)
			return err
		}
	}

	return nil
}

func (h *Handle) interfaceError(parentKey *key.Key, reason string) {
	kdberrors.SetError(parentKey, kdberrors.New(kdberrors.Interface, "kdb", "the call violates the backend contract", reason), "", 0, "", "")
}

func (h *Handle) installationError(parentKey *key.Key, phase plugin.Phase, err error) {
	kdberrors.SetError(parentKey, kdberrors.New(kdberrors.Installation, "kdb",
		fmt.Sprintf("the %s phase has failed", phase), err.Error()), "", 0, "", "")
}

func (h *Handle) pluginMisbehavior(parentKey *key.Key, position global.Position, err error) {
	kdberrors.SetError(parentKey, kdberrors.New(kdberrors.PluginMisbehavior, "kdb",
		fmt.Sprintf("the %s global plugin position has failed", position), err.Error()), "", 0, "", "")
}
