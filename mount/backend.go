// Package mount implements the Backend record (one per mountpoint) and
// the Table that indexes every Backend and answers "which backend owns
// this name" queries. Grounded on the original's addMountpoint /
// elektraMountpointsParse (kdb.c) for the fields a Backend carries, and
// on storage/kv/composite's parent/child namespacing idiom for subtree
// queries.
package mount

import (
	"github.com/go-elektra/kdb/key"
	"github.com/go-elektra/kdb/keyset"
	"github.com/go-elektra/kdb/plugin"
)

// Backend is a mountpoint descriptor: the parent key, the primary
// backend plugin, its ordered auxiliary plugins, the mountpoint
// definition, and the working KeySet of keys this backend owns.
type Backend struct {
	Mountpoint *key.Key

	BackendPlugin plugin.Plugin
	Plugins       []plugin.Plugin

	Definition *keyset.KeySet
	Keys       *keyset.KeySet

	Initialized bool
	ReadOnly    bool
	NeedsUpdate bool

	// Resolved is false until the resolver phase has run at least once.
	// A backend's first-ever resolve must register as needs-update even
	// when the resolver produced the zero-value identifier (e.g. a
	// hard-coded mountpoint with no configured path), so get's
	// change-detection compares against Resolved rather than against
	// MountpointID's zero value alone.
	Resolved bool

	MountpointID string
	CacheID      string
}

// NewBackend constructs a Backend for mountpoint, wiring backendPlugin's
// auxiliary plugin list if it implements plugin.AuxAware.
func NewBackend(mountpoint *key.Key, backendPlugin plugin.Plugin, aux []plugin.Plugin, definition *keyset.KeySet) *Backend {
	if aware, ok := backendPlugin.(plugin.AuxAware); ok {
		aware.SetAux(aux)
	}

	return &Backend{
		Mountpoint:    mountpoint,
		BackendPlugin: backendPlugin,
		Plugins:       aux,
		Definition:    definition,
		Keys:          keyset.New(),
	}
}

// Owns reports whether name falls within this backend's mountpoint
// subtree (including the mountpoint itself).
func (b *Backend) Owns(name *key.Key) bool {
	return name.IsBelowOrSame(b.Mountpoint)
}
