// Package kdb implements the KDB session: open/close lifecycle,
// mountpoint discovery via bootstrap, and the get/set pipeline
// orchestrator that drives every Backend's plugins through the phases
// the backend contract defines. Grounded throughout on
// original_source/src/libs/elektra/kdb.c: kdbOpen -> Open, kdbClose ->
// Close, kdbGet -> Get, kdbSet -> Set, elektraBoostrap -> bootstrap.
package kdb

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/go-elektra/kdb/builtin/backend"
	"github.com/go-elektra/kdb/builtin/list"
	"github.com/go-elektra/kdb/builtin/modules"
	"github.com/go-elektra/kdb/builtin/resolver"
	"github.com/go-elektra/kdb/builtin/storage/bboltstorage"
	"github.com/go-elektra/kdb/builtin/storage/flatfile"
	"github.com/go-elektra/kdb/builtin/version"
	"github.com/go-elektra/kdb/global"
	"github.com/go-elektra/kdb/internal/log"
	"github.com/go-elektra/kdb/kdberrors"
	"github.com/go-elektra/kdb/key"
	"github.com/go-elektra/kdb/keyset"
	"github.com/go-elektra/kdb/mount"
	"github.com/go-elektra/kdb/plugin"
)

// systemElektra names the reserved subtree no user mountpoint may shadow
// (spec §3 invariant, §8 S4).
var systemElektra = key.MustNew("system:/elektra")

// cacheEntry is the in-process cache-check bookkeeping for one backend,
// keyed by its mountpoint name (spec §9's first open question,
// documented in DESIGN.md as "implemented as an in-process map").
type cacheEntry struct {
	id   string
	keys *keyset.KeySet
}

// Handle is an open KDB session: the result of a successful Open.
// Single-threaded from the caller's perspective, per spec §5; Handle
// does its own internal locking only around the cache map so that
// concurrent handles never race on shared Go maps, not to allow
// concurrent use of one Handle.
type Handle struct {
	logger *zap.Logger

	registry *plugin.Registry
	mounts   *mount.Table
	global   *global.Table

	cacheMu sync.Mutex
	cache   map[string]*cacheEntry
}

func (h *Handle) registerBuiltins() {
	h.registry.Register(backend.Name, backend.New)
	h.registry.Register(resolver.Name, resolver.New)
	h.registry.Register(flatfile.Name, flatfile.New)
	h.registry.Register(bboltstorage.Name, bboltstorage.New)
	h.registry.Register(list.Name, list.New)
	h.registry.Register(version.Name, version.New)
	h.registry.Register(modules.Name, modules.New)
}

func nsRootPath(ns key.Namespace) string {
	return fmt.Sprintf("%s.ecf", ns)
}

// Open bootstraps a new session: it discovers the real mount
// configuration (spec §4.1), applies contract, and installs the
// hard-coded namespace-root and introspection mountpoints. errorKey
// receives any installation/interface error and accumulated warnings.
func Open(contract *keyset.KeySet, errorKey *key.Key) (*Handle, error) {
	if errorKey == nil {
		return nil, fmt.Errorf("kdb: error key must not be nil")
	}

	kdberrors.Clear(errorKey)

	h := &Handle{
		logger:   zap.L(),
		registry: plugin.NewRegistry(),
		mounts:   mount.NewTable(),
		global:   global.New(),
		cache:    make(map[string]*cacheEntry),
	}

	logger := log.WithContext(context.Background(), h.logger).With(zap.String("operation", "kdb.Open"))
	logger.Debug("start kdb.Open()")

	h.registerBuiltins()

	bootstrapBp, err := bootstrapBackend(h.global.KeySet, errorKey)
	if err != nil {
		h.fail(errorKey, kdberrors.Installation, "bootstrap: could not build hard-coded backend", err)
		return nil, err
	}
	h.mounts.Add(bootstrapBp)

	mountKS := keyset.New()
	result, err := h.Get(mountKS, systemElektra)
	if err != nil || result == Failed {
		if err == nil {
			err = fmt.Errorf("kdb: bootstrap get of %s failed", systemElektra.Name())
		}
		h.fail(errorKey, kdberrors.Installation, "bootstrap: could not read mount configuration", err)
		return nil, err
	}

	if contract != nil {
		h.global.KeySet.AppendAll(relative(contract, "system:/elektra/contract/globalkeyset"))
	}

	specs, err := parseMountpoints(mountKS)
	if err != nil {
		h.fail(errorKey, kdberrors.Installation, "bootstrap: malformed mount configuration", err)
		return nil, err
	}

	realTable := mount.NewTable()

	sysElektraBackend, err := bootstrapBackend(h.global.KeySet, errorKey)
	if err != nil {
		h.fail(errorKey, kdberrors.Installation, "bootstrap: could not rebuild system:/elektra backend", err)
		return nil, err
	}
	realTable.Add(sysElektraBackend)

	for _, spec := range specs {
		if spec.mountpoint.IsBelowOrSame(systemElektra) {
			kdberrors.AddWarning(errorKey, kdberrors.New(kdberrors.Installation, "kdb",
				fmt.Sprintf("mountpoint %q is reserved and was dropped", spec.mountpoint.Name()), ""), "kdb")
			continue
		}

		b, warn, err := h.buildMountedBackend(spec, errorKey)
		if err != nil {
			h.fail(errorKey, kdberrors.Installation, "bootstrap: could not build mountpoint", err)
			return nil, err
		}
		if warn != "" {
			kdberrors.AddWarning(errorKey, kdberrors.New(kdberrors.Installation, "kdb", warn, ""), "kdb")
			continue
		}

		realTable.Add(b)
	}

	for _, ns := range []key.Namespace{key.Spec, key.System, key.User, key.Dir} {
		b, err := h.namespaceRootBackend(ns, nsRootPath(ns), errorKey)
		if err != nil {
			h.fail(errorKey, kdberrors.Installation, "bootstrap: could not install namespace root", err)
			return nil, err
		}
		realTable.Add(b)
	}

	vb, err := h.versionBackend(errorKey)
	if err != nil {
		h.fail(errorKey, kdberrors.Installation, "bootstrap: could not install version mountpoint", err)
		return nil, err
	}
	realTable.Add(vb)

	for _, name := range h.registry.Names() {
		ib, err := h.introspectionBackend(name, errorKey)
		if err != nil {
			h.fail(errorKey, kdberrors.Installation, "bootstrap: could not install modules mountpoint", err)
			return nil, err
		}
		realTable.Add(ib)
	}

	if err := h.mountGlobalContract(contract, errorKey); err != nil {
		h.fail(errorKey, kdberrors.Installation, "bootstrap: could not mount global plugins", err)
		return nil, err
	}

	h.mounts = realTable

	bootstrapBp.BackendPlugin.Close(errorKey)
	for _, p := range bootstrapBp.Plugins {
		p.Close(errorKey)
	}

	if err := h.global.RunInit(errorKey); err != nil {
		h.fail(errorKey, kdberrors.Installation, "bootstrap: global plugin init failed", err)
		return nil, err
	}

	logger.Debug("return from kdb.Open()", zap.Int("mountpoints", len(h.mounts.All())))

	return h, nil
}

// buildMountedBackend turns one parsed mountSpec into a mount.Backend,
// per spec §6's mount configuration format. A non-empty warn return
// means the mountpoint was malformed and should be dropped with a
// warning rather than aborting Open.
func (h *Handle) buildMountedBackend(spec mountSpec, parentKey *key.Key) (*mount.Backend, string, error) {
	backendIdxKey := spec.local.Lookup("/backend")
	if backendIdxKey == nil {
		return nil, fmt.Sprintf("mountpoint %q has no backend reference", spec.mountpoint.Name()), nil
	}

	n, ok := key.ParseArrayIndex(backendIdxKey.ValueString())
	if !ok {
		return nil, fmt.Sprintf("mountpoint %q has a malformed backend reference", spec.mountpoint.Name()), nil
	}

	all, err := pluginList(h.registry, spec.local, h.global.KeySet, parentKey)
	if err != nil {
		return nil, "", err
	}

	if n < 0 || n >= len(all) {
		return nil, fmt.Sprintf("mountpoint %q backend reference is out of range", spec.mountpoint.Name()), nil
	}

	definition := relative(spec.local, "/definition")

	return mount.NewBackend(spec.mountpoint, all[n], all, definition), "", nil
}

// mountGlobalContract processes system:/elektra/contract/mountglobal:
// every named plugin is mounted into all ten cross-cutting positions
// via a single shared "list" instance (spec §4.1 step 6).
func (h *Handle) mountGlobalContract(contract *keyset.KeySet, parentKey *key.Key) error {
	if contract == nil {
		return nil
	}

	root, err := key.New("system:/elektra/contract/mountglobal")
	if err != nil {
		return err
	}

	depth := len(root.Segments())

	var ordered []string
	seen := make(map[string]bool)
	for _, k := range contract.Below(root).List() {
		segs := k.Segments()
		if len(segs) <= depth {
			continue
		}
		name := segs[depth]
		if !seen[name] {
			seen[name] = true
			ordered = append(ordered, name)
		}
	}

	if len(ordered) == 0 {
		return nil
	}

	listInstance, err := h.registry.New(list.Name)
	if err != nil {
		return err
	}
	if err := listInstance.Open(keyset.New(), h.global.KeySet, parentKey); err != nil {
		return err
	}

	for _, pos := range global.Positions {
		h.global.Mount(pos, global.MaxOnce, list.Name, listInstance)
	}

	lp, ok := listInstance.(*list.Plugin)
	if !ok {
		return fmt.Errorf("kdb: registered %q plugin does not implement the list contract", list.Name)
	}

	for _, name := range ordered {
		p, err := h.registry.New(name)
		if err != nil {
			return fmt.Errorf("kdb: contract references unknown global plugin %q: %w", name, err)
		}

		config := relative(contract, fmt.Sprintf("system:/elektra/contract/mountglobal/%s/config", name))
		if err := p.Open(config, h.global.KeySet, parentKey); err != nil {
			return fmt.Errorf("kdb: global plugin %q failed to open: %w", name, err)
		}

		lp.MountPlugin(name, p)
	}

	return h.global.EnsureListEverywhere(list.Name)
}

func (h *Handle) fail(errorKey *key.Key, kind kdberrors.Kind, description string, err error) {
	plugin.EffectiveLogger(h.logger).With(zap.String("operation", "kdb.Open")).Debug("error", zap.Error(err))
	kdberrors.SetError(errorKey, kdberrors.New(kind, "kdb", description, err.Error()), "", 0, "", "")
}

// Close closes every Backend's plugins and every global plugin, then
// clears the handle's global KeySet. A failure to close an individual
// plugin becomes a warning; Close never fails for a non-nil handle
// (spec §4.1).
func (h *Handle) Close(errorKey *key.Key) error {
	if h == nil {
		return nil
	}

	logger := log.WithContext(context.Background(), h.logger).With(zap.String("operation", "kdb.Close"))
	logger.Debug("start kdb.Close()", zap.Int("mountpoints", len(h.mounts.All())))

	for _, b := range h.mounts.All() {
		if err := b.BackendPlugin.Close(errorKey); err != nil {
			kdberrors.AddWarning(errorKey, kdberrors.New(kdberrors.Resource, "kdb", "backend plugin close failed", err.Error()), "kdb")
		}
		for _, p := range b.Plugins {
			if err := p.Close(errorKey); err != nil {
				kdberrors.AddWarning(errorKey, kdberrors.New(kdberrors.Resource, "kdb", "auxiliary plugin close failed", err.Error()), "kdb")
			}
		}
	}

	for _, err := range h.global.RunDeinit(errorKey) {
		kdberrors.AddWarning(errorKey, kdberrors.New(kdberrors.Resource, "kdb", "global plugin close failed", err.Error()), "kdb")
	}

	h.global.KeySet = keyset.New()

	logger.Debug("return from kdb.Close()")

	return nil
}
