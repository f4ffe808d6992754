package kdb

import (
	"fmt"
	"os"

	"github.com/go-elektra/kdb/builtin/backend"
	"github.com/go-elektra/kdb/builtin/modules"
	"github.com/go-elektra/kdb/builtin/resolver"
	"github.com/go-elektra/kdb/builtin/storage/flatfile"
	"github.com/go-elektra/kdb/builtin/version"
	"github.com/go-elektra/kdb/key"
	"github.com/go-elektra/kdb/keyset"
	"github.com/go-elektra/kdb/mount"
	"github.com/go-elektra/kdb/plugin"
)

// DefaultResolver and DefaultStorage name the statically linked plugins
// every hard-coded mountpoint (bootstrap and namespace roots) uses,
// matching KDB_DEFAULT_RESOLVER/KDB_DEFAULT_STORAGE in the original.
const (
	DefaultResolver = resolver.Name
	DefaultStorage  = flatfile.Name
)

// bootstrapPathEnv overrides the compile-time-configured bootstrap file
// path (spec §6, "Persistent state layout"). Left unset, a fixed default
// under the process's working directory is used.
const bootstrapPathEnv = "ELEKTRA_BOOTSTRAP_PATH"

func bootstrapPath() string {
	if p := os.Getenv(bootstrapPathEnv); p != "" {
		return p
	}
	return "elektra.bootstrap.ecf"
}

func defKey(name, value string) *key.Key {
	k, err := key.NewCascading(name)
	if err != nil {
		panic(err)
	}
	if value != "" {
		k.SetValue(value)
	}
	return k
}

// bootstrapBackend builds the synthetic Backend for system:/elektra
// described in spec §4.1 step 2 and §4.5: a hard-coded resolver+storage
// pair, opened from a throwaway registry that only knows about the
// plugins this step needs, never the session's full dynamic registry.
func bootstrapBackend(globalKS *keyset.KeySet, parentKey *key.Key) (*mount.Backend, error) {
	reg := plugin.NewRegistry()
	reg.Register(backend.Name, backend.New)
	reg.Register(DefaultResolver, resolver.New)
	reg.Register(DefaultStorage, flatfile.New)

	bp, err := reg.New(backend.Name)
	if err != nil {
		return nil, err
	}
	if err := bp.Open(keyset.New(), globalKS, parentKey); err != nil {
		return nil, err
	}

	r, err := reg.New(DefaultResolver)
	if err != nil {
		return nil, err
	}
	if err := r.Open(keyset.New(), globalKS, parentKey); err != nil {
		return nil, err
	}

	s, err := reg.New(DefaultStorage)
	if err != nil {
		return nil, err
	}
	if err := s.Open(keyset.New(), globalKS, parentKey); err != nil {
		return nil, err
	}

	aux := []plugin.Plugin{r, s}

	definition := keyset.New(
		defKey("/path", bootstrapPath()),
		defKey("/positions/get/resolver", key.ArrayIndex(0)),
		defKey("/positions/get/storage", key.ArrayIndex(1)),
		defKey("/positions/set/resolver", key.ArrayIndex(0)),
		defKey("/positions/set/storage", key.ArrayIndex(1)),
	)

	return mount.NewBackend(key.MustNew("system:/elektra"), bp, aux, definition), nil
}

// namespaceRootBackend builds a hard-coded default-resolver/default-storage
// Backend mounted at a namespace root, per spec §4.1 step 8.
func (h *Handle) namespaceRootBackend(ns key.Namespace, path string, parentKey *key.Key) (*mount.Backend, error) {
	bp, err := h.registry.New(backend.Name)
	if err != nil {
		return nil, err
	}
	if err := bp.Open(keyset.New(), h.global.KeySet, parentKey); err != nil {
		return nil, err
	}

	r, err := h.registry.New(DefaultResolver)
	if err != nil {
		return nil, err
	}
	if err := r.Open(keyset.New(), h.global.KeySet, parentKey); err != nil {
		return nil, err
	}

	s, err := h.registry.New(DefaultStorage)
	if err != nil {
		return nil, err
	}
	if err := s.Open(keyset.New(), h.global.KeySet, parentKey); err != nil {
		return nil, err
	}

	aux := []plugin.Plugin{r, s}

	definition := keyset.New(
		defKey("/path", path),
		defKey("/positions/get/resolver", key.ArrayIndex(0)),
		defKey("/positions/get/storage", key.ArrayIndex(1)),
		defKey("/positions/set/resolver", key.ArrayIndex(0)),
		defKey("/positions/set/storage", key.ArrayIndex(1)),
	)

	root, err := key.New(fmt.Sprintf("%s:/", ns))
	if err != nil {
		return nil, err
	}

	return mount.NewBackend(root, bp, aux, definition), nil
}

// introspectionBackend builds a read-only Backend mounted at
// system:/elektra/modules/<name>, backed by the "modules" plugin
// configured to describe the named module (spec §4.1 step 8, grounded
// on addModulesMountpoint).
func (h *Handle) introspectionBackend(name string, parentKey *key.Key) (*mount.Backend, error) {
	bp, err := h.registry.New(backend.Name)
	if err != nil {
		return nil, err
	}
	if err := bp.Open(keyset.New(), h.global.KeySet, parentKey); err != nil {
		return nil, err
	}

	m, err := h.registry.New(modules.Name)
	if err != nil {
		return nil, err
	}

	modConfig := keyset.New(defKey("/pluginname", name))
	if err := m.Open(modConfig, h.global.KeySet, parentKey); err != nil {
		return nil, err
	}

	aux := []plugin.Plugin{m}

	definition := keyset.New(
		defKey("/path", ""),
		defKey("/positions/get/storage", key.ArrayIndex(0)),
	)

	mountpoint := key.MustNew("system:/elektra/modules").Child(name)

	b := mount.NewBackend(mountpoint, bp, aux, definition)
	b.ReadOnly = true

	return b, nil
}

// versionBackend builds the read-only Backend mounted at
// system:/elektra/version, backed by the "version" plugin.
func (h *Handle) versionBackend(parentKey *key.Key) (*mount.Backend, error) {
	bp, err := h.registry.New(backend.Name)
	if err != nil {
		return nil, err
	}
	if err := bp.Open(keyset.New(), h.global.KeySet, parentKey); err != nil {
		return nil, err
	}

	v, err := h.registry.New(version.Name)
	if err != nil {
		return nil, err
	}
	if err := v.Open(keyset.New(), h.global.KeySet, parentKey); err != nil {
		return nil, err
	}

	aux := []plugin.Plugin{v}

	definition := keyset.New(
		defKey("/path", ""),
		defKey("/positions/get/storage", key.ArrayIndex(0)),
	)

	b := mount.NewBackend(key.MustNew("system:/elektra/version"), bp, aux, definition)
	b.ReadOnly = true

	return b, nil
}
