package kdb

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/go-elektra/kdb/global"
	"github.com/go-elektra/kdb/internal/log"
	"github.com/go-elektra/kdb/kdberrors"
	"github.com/go-elektra/kdb/key"
	"github.com/go-elektra/kdb/keyset"
	"github.com/go-elektra/kdb/mount"
	"github.com/go-elektra/kdb/plugin"
)

func invokeSet(p plugin.Plugin, ks *keyset.KeySet, parentKey *key.Key) (plugin.ReturnCode, error) {
	return p.Set(ks, parentKey)
}

func invokeCommit(p plugin.Plugin, ks *keyset.KeySet, parentKey *key.Key) (plugin.ReturnCode, error) {
	return p.Commit(ks, parentKey)
}

func invokeError(p plugin.Plugin, ks *keyset.KeySet, parentKey *key.Key) (plugin.ReturnCode, error) {
	return p.Error(ks, parentKey)
}

// Set runs the two-phase commit pipeline against every Backend
// intersecting parentKey's subtree (spec §4.3). Any phase 7-12 failure
// triggers a full rollback of every backend that reached at least the
// resolver phase, and restores ks to its pre-call contents.
func (h *Handle) Set(ks *keyset.KeySet, parentKey *key.Key) (Result, error) {
	logger := log.WithContext(context.Background(), h.logger).With(zap.String("operation", "kdb.Set"))

	if parentKey == nil {
		return Failed, fmt.Errorf("kdb: Set: parent key must not be nil")
	}

	logger.Debug("start kdb.Set()", zap.String("parent", parentKey.Name()))

	if parentKey.Namespace() == key.Meta {
		h.interfaceError(parentKey, "Set: parent key must not be in the meta namespace")
		return Failed, fmt.Errorf("kdb: Set: parent key must not be in the meta namespace")
	}

	if !ks.Sync() && !ks.AnyKeyDirty() {
		logger.Debug("return from kdb.Set()", zap.String("result", string(NoChange)))
		return NoChange, nil
	}

	kdberrors.Clear(parentKey)

	backends := h.mounts.FindIntersecting(parentKey)
	if len(backends) == 0 {
		logger.Debug("return from kdb.Set()", zap.String("result", string(NoChange)))
		return NoChange, nil
	}

	for _, b := range backends {
		if !b.Initialized {
			err := fmt.Errorf("kdb: Set: backend %q was never initialized; call Get first", b.Mountpoint.Name())
			kdberrors.SetError(parentKey, kdberrors.New(kdberrors.ConflictingState, "kdb",
				"set is only valid after a get on the same handle and parent subtree", err.Error()), "", 0, "", "")
			logger.Debug("error", zap.Error(err))
			return Failed, err
		}
	}

	var active []*mount.Backend
	for _, b := range backends {
		if b.ReadOnly {
			kdberrors.AddWarning(parentKey, kdberrors.New(kdberrors.Interface, "kdb",
				fmt.Sprintf("backend %q is read-only; write dropped", b.Mountpoint.Name()), ""), "kdb")
			continue
		}
		active = append(active, b)
	}

	var toCommit []*mount.Backend
	for _, b := range active {
		if ks.BelowOrSame(b.Mountpoint).AnyKeyDirty() {
			toCommit = append(toCommit, b)
		}
	}

	if len(toCommit) == 0 {
		logger.Debug("return from kdb.Set()", zap.String("result", string(Committed)))
		return Committed, nil
	}

	if err := h.checkConflicts(toCommit, parentKey); err != nil {
		logger.Debug("error", zap.Error(err))
		return Failed, err
	}

	preCallSnapshot := ks.Dup()

	if err := h.global.RunMaxOnce(global.PreSetStorage, ks, parentKey, invokeSet); err != nil {
		h.pluginMisbehavior(parentKey, global.PreSetStorage, err)
		logger.Debug("error", zap.Error(err))
		return Failed, err
	}

	snapshot := ks.Dup()

	parents := make([]*key.Key, len(toCommit))
	for i, b := range toCommit {
		parents[i] = b.Mountpoint
	}
	divided := snapshot.Divide(parents)

	working := make(map[*mount.Backend]*keyset.KeySet, len(toCommit))
	for i, b := range toCommit {
		working[b] = divided[i]
	}

	reached, failedPhase, err := h.runCommitPipeline(toCommit, working, parentKey)
	if err != nil {
		h.rollback(reached, failedPhase, parentKey)
		restoreKeySet(ks, preCallSnapshot)
		h.installationError(parentKey, failedPhase, err)
		logger.Debug("error", zap.Error(err))
		return Failed, err
	}

	ks.ClearSync()

	// Refresh the committed backends' change-detection identifiers so a
	// later set on this same handle, without an intervening get, compares
	// against what is now on disk rather than the pre-commit identifier
	// (which would otherwise look like a conflict caused by this set's
	// own commit).
	if err := h.runResolverPhaseGet(toCommit, parentKey); err != nil {
		kdberrors.AddWarning(parentKey, kdberrors.New(kdberrors.Resource, "kdb",
			"could not refresh backend identifiers after commit", err.Error()), "kdb")
	}

	logger.Debug("return from kdb.Set()", zap.String("result", string(Committed)))

	return Committed, nil
}

// checkConflicts re-resolves each backend's get-side change-detection
// identifier and compares it against the value recorded at the backend's
// last get (spec §3: "Between a successful set and a subsequent
// get/set, each Backend's cache_id/mountpoint_id must match; mismatch
// signals a concurrent-writer conflict"). It runs the same resolver
// dispatch runResolverPhaseGet uses, so the comparison is against
// exactly the identifier a following get would also compute; a mismatch
// means the backend's storage moved on disk since this handle last read
// it, so committing now would silently clobber whatever a concurrent
// writer wrote in between.
func (h *Handle) checkConflicts(toCommit []*mount.Backend, parentKey *key.Key) error {
	h.global.SetPhase(string(plugin.PhaseResolver))

	for _, b := range toCommit {
		h.global.SetMountpoint(b.Mountpoint.Name())

		rc, err := b.BackendPlugin.Get(keyset.New(), parentKey)
		if err != nil || rc == plugin.Error {
			if err == nil {
				err = fmt.Errorf("kdb: conflict check on backend %q failed", b.Mountpoint.Name())
			}
			return err
		}

		if currentID := parentKey.ValueString(); b.Resolved && currentID != b.MountpointID {
			err := fmt.Errorf("kdb: backend %q's storage changed since it was last read", b.Mountpoint.Name())
			kdberrors.SetError(parentKey, kdberrors.New(kdberrors.ConflictingState, "kdb",
				"a concurrent writer modified this backend's storage since the last get on this handle", err.Error()), "", 0, "", "")
			return err
		}
	}

	return nil
}

// restoreKeySet replaces dst's contents with src's, in place, so the
// caller's original *KeySet reference stays valid after a rollback.
func restoreKeySet(dst, src *keyset.KeySet) {
	for _, k := range dst.List() {
		dst.RemoveKey(k)
	}
	dst.AppendAll(src)
	dst.SetSync(src.Sync())
}

// runCommitPipeline drives resolver through postcommit across every
// backend in toCommit, phase-synchronously. It returns every backend
// that reached at least the resolver phase (for rollback scope) and,
// on failure, the phase that failed.
func (h *Handle) runCommitPipeline(toCommit []*mount.Backend, working map[*mount.Backend]*keyset.KeySet, parentKey *key.Key) ([]*mount.Backend, plugin.Phase, error) {
	var reached []*mount.Backend

	h.global.SetPhase(string(plugin.PhaseResolver))
	for _, b := range toCommit {
		h.global.SetMountpoint(b.Mountpoint.Name())

		rc, err := b.BackendPlugin.Set(working[b], parentKey)
		if err != nil || rc == plugin.Error {
			if err == nil {
				err = fmt.Errorf("kdb: resolver phase of backend %q failed", b.Mountpoint.Name())
			}
			return reached, plugin.PhaseResolver, err
		}

		reached = append(reached, b)
	}

	h.global.SetPhase(string(plugin.PhasePreStorage))
	for _, b := range toCommit {
		h.global.SetMountpoint(b.Mountpoint.Name())

		rc, err := b.BackendPlugin.Set(working[b], parentKey)
		if err != nil || rc == plugin.Error {
			if err == nil {
				err = fmt.Errorf("kdb: prestorage phase of backend %q failed", b.Mountpoint.Name())
			}
			return reached, plugin.PhasePreStorage, err
		}

		if err := h.global.RunForEach(global.PreStorage, working[b], parentKey, invokeSet); err != nil {
			return reached, plugin.PhasePreStorage, err
		}
	}

	h.global.SetPhase(string(plugin.PhaseStorage))
	for _, b := range toCommit {
		h.global.SetMountpoint(b.Mountpoint.Name())

		rc, err := b.BackendPlugin.Set(working[b], parentKey)
		if err != nil || rc == plugin.Error {
			if err == nil {
				err = fmt.Errorf("kdb: storage phase of backend %q failed", b.Mountpoint.Name())
			}
			return reached, plugin.PhaseStorage, err
		}
	}

	h.global.SetPhase(string(plugin.PhasePostStorage))
	for _, b := range toCommit {
		h.global.SetMountpoint(b.Mountpoint.Name())

		rc, err := b.BackendPlugin.Set(working[b], parentKey)
		if err != nil || rc == plugin.Error {
			if err == nil {
				err = fmt.Errorf("kdb: poststorage phase of backend %q failed", b.Mountpoint.Name())
			}
			return reached, plugin.PhasePostStorage, err
		}
	}

	h.global.SetPhase(string(plugin.PhasePreCommit))
	for _, b := range toCommit {
		h.global.SetMountpoint(b.Mountpoint.Name())

		rc, err := b.BackendPlugin.Commit(working[b], parentKey)
		if err != nil || rc == plugin.Error {
			if err == nil {
				err = fmt.Errorf("kdb: precommit phase of backend %q failed", b.Mountpoint.Name())
			}
			return reached, plugin.PhasePreCommit, err
		}

		if err := h.global.RunForEach(global.PreCommit, working[b], parentKey, invokeCommit); err != nil {
			return reached, plugin.PhasePreCommit, err
		}
	}

	h.global.SetPhase(string(plugin.PhaseCommit))
	for _, b := range toCommit {
		h.global.SetMountpoint(b.Mountpoint.Name())

		rc, err := b.BackendPlugin.Commit(working[b], parentKey)
		if err != nil || rc == plugin.Error {
			if err == nil {
				err = fmt.Errorf("kdb: commit phase of backend %q failed", b.Mountpoint.Name())
			}
			return reached, plugin.PhaseCommit, err
		}
	}

	h.global.SetPhase(string(plugin.PhasePostCommit))
	for _, b := range toCommit {
		h.global.SetMountpoint(b.Mountpoint.Name())

		if rc, err := b.BackendPlugin.Commit(working[b], parentKey); err != nil || rc == plugin.Error {
			if err == nil {
				err = fmt.Errorf("kdb: postcommit phase of backend %q failed", b.Mountpoint.Name())
			}
			kdberrors.Downgrade(parentKey, kdberrors.New(kdberrors.Resource, "kdb", "postcommit failed", err.Error()), "kdb")
		}
		if err := h.global.RunForEach(global.PostCommit, working[b], parentKey, invokeCommit); err != nil {
			kdberrors.Downgrade(parentKey, kdberrors.New(kdberrors.Resource, "kdb", "postcommit global hook failed", err.Error()), "kdb")
		}

		b.Keys = working[b]
	}

	return reached, "", nil
}

// rollback runs prerollback/rollback/postrollback against every backend
// that reached at least the resolver phase, advertising failedPhase via
// the global KeySet so plugins can adapt (spec §4.3 "Rollback").
// Errors during rollback are downgraded to warnings.
func (h *Handle) rollback(reached []*mount.Backend, failedPhase plugin.Phase, parentKey *key.Key) {
	h.global.SetFailedPhase(string(failedPhase))
	defer h.global.ClearFailedPhase()

	h.global.SetPhase(string(plugin.PhasePreRollback))
	for _, b := range reached {
		h.global.SetMountpoint(b.Mountpoint.Name())
		if _, err := b.BackendPlugin.Error(keyset.New(), parentKey); err != nil {
			kdberrors.Downgrade(parentKey, kdberrors.New(kdberrors.Resource, "kdb", "prerollback failed", err.Error()), "kdb")
		}
		if err := h.global.RunForEach(global.PreRollback, keyset.New(), parentKey, invokeError); err != nil {
			kdberrors.Downgrade(parentKey, kdberrors.New(kdberrors.Resource, "kdb", "prerollback global hook failed", err.Error()), "kdb")
		}
	}

	h.global.SetPhase(string(plugin.PhaseRollback))
	for _, b := range reached {
		h.global.SetMountpoint(b.Mountpoint.Name())
		if _, err := b.BackendPlugin.Error(keyset.New(), parentKey); err != nil {
			kdberrors.Downgrade(parentKey, kdberrors.New(kdberrors.Resource, "kdb", "rollback failed", err.Error()), "kdb")
		}
		if err := h.global.RunForEach(global.Rollback, keyset.New(), parentKey, invokeError); err != nil {
			kdberrors.Downgrade(parentKey, kdberrors.New(kdberrors.Resource, "kdb", "rollback global hook failed", err.Error()), "kdb")
		}
	}

	h.global.SetPhase(string(plugin.PhasePostRollback))
	for _, b := range reached {
		h.global.SetMountpoint(b.Mountpoint.Name())
		if _, err := b.BackendPlugin.Error(keyset.New(), parentKey); err != nil {
			kdberrors.Downgrade(parentKey, kdberrors.New(kdberrors.Resource, "kdb", "postrollback failed", err.Error()), "kdb")
		}
		if err := h.global.RunForEach(global.PostRollback, keyset.New(), parentKey, invokeError); err != nil {
			kdberrors.Downgrade(parentKey, kdberrors.New(kdberrors.Resource, "kdb", "postrollback global hook failed", err.Error()), "kdb")
		}
	}
}
