// Package keyset implements KeySet: an ordered, name-unique collection of
// Keys with cursor, subtree and merge operations. The ordering is
// maintained the way storage/kv.FakeMap keeps an in-memory sorted map in
// the teacher repo: a github.com/emirpasic/gods/maps/treemap backed by a
// Key-aware comparator.
package keyset

import (
	"strings"

	"github.com/emirpasic/gods/maps/treemap"

	"github.com/go-elektra/kdb/key"
)

func comparator(a, b interface{}) int {
	return a.(*key.Key).Compare(b.(*key.Key))
}

// KeySet is an ordered set of Keys, unique by name.
type KeySet struct {
	tree   *treemap.Map
	sync   bool
	cursor int
}

// New constructs an empty KeySet, optionally pre-populated with keys.
func New(keys ...*key.Key) *KeySet {
	ks := &KeySet{tree: treemap.NewWith(comparator), cursor: -1}

	for _, k := range keys {
		ks.Append(k)
	}

	return ks
}

// Len returns the number of keys in the set.
func (ks *KeySet) Len() int {
	return ks.tree.Size()
}

// Append inserts k, replacing any existing key with the same name. It
// returns true if k replaced an existing entry.
func (ks *KeySet) Append(k *key.Key) bool {
	_, existed := ks.tree.Get(k)
	ks.tree.Put(k, k)
	ks.sync = true
	return existed
}

// AppendAll appends every key from other into ks, in other's order.
func (ks *KeySet) AppendAll(other *KeySet) {
	if other == nil {
		return
	}
	for _, k := range other.List() {
		ks.Append(k)
	}
}

// Lookup returns the key with the given name, or nil if absent. A name
// starting with "/" is parsed as a cascading name: a key stored under
// that exact cascading name (the plugin-relative definition keys, mount
// definitions and plugin configs, that backend plugins look up) is
// returned first; otherwise the namespaces are searched in
// key.CascadingOrder and the first match is returned.
func (ks *KeySet) Lookup(name string) *key.Key {
	var probe *key.Key
	var err error

	if strings.HasPrefix(name, "/") {
		probe, err = key.NewCascading(name)
		if err != nil {
			return nil
		}
		if k := ks.LookupKey(probe); k != nil {
			return k
		}
		for _, ns := range key.CascadingOrder {
			nsProbe, err := key.New(string(ns) + ":" + name)
			if err != nil {
				continue
			}
			if k := ks.LookupKey(nsProbe); k != nil {
				return k
			}
		}
		return nil
	} else {
		probe, err = key.New(name)
	}
	if err != nil {
		return nil
	}

	return ks.LookupKey(probe)
}

// LookupKey returns the key equal in name to probe, or nil if absent.
func (ks *KeySet) LookupKey(probe *key.Key) *key.Key {
	v, found := ks.tree.Get(probe)
	if !found {
		return nil
	}
	return v.(*key.Key)
}

// Remove removes the key named name, returning it, or nil if it was
// absent.
func (ks *KeySet) Remove(name string) *key.Key {
	probe, err := key.New(name)
	if err != nil {
		return nil
	}
	return ks.RemoveKey(probe)
}

// RemoveKey removes the key equal in name to probe.
func (ks *KeySet) RemoveKey(probe *key.Key) *key.Key {
	existing := ks.LookupKey(probe)
	if existing == nil {
		return nil
	}
	ks.tree.Remove(probe)
	ks.sync = true
	return existing
}

// List returns every key in canonical order. Callers must not mutate the
// returned slice.
func (ks *KeySet) List() []*key.Key {
	keys := ks.tree.Keys()
	out := make([]*key.Key, len(keys))
	for i, k := range keys {
		out[i] = k.(*key.Key)
	}
	return out
}

// Sync reports whether any Append/Remove has happened since the sync
// flag was last cleared.
func (ks *KeySet) Sync() bool {
	return ks.sync
}

// SetSync sets the keyset-level sync flag directly.
func (ks *KeySet) SetSync(sync bool) {
	ks.sync = sync
}

// AnyKeyDirty reports whether any member key has its own sync flag set.
func (ks *KeySet) AnyKeyDirty() bool {
	for _, k := range ks.List() {
		if k.Sync() {
			return true
		}
	}
	return false
}

// ClearSync clears the keyset-level sync flag and every member key's
// sync flag. The orchestrator calls this after a successful commit.
func (ks *KeySet) ClearSync() {
	ks.sync = false
	for _, k := range ks.List() {
		k.SetSync(false)
	}
}

// Dup returns a deep copy of ks: new Key values, sharing no mutable
// state with ks. Used for the set pipeline's pre-plugin snapshot and for
// restoring the caller-visible KeySet on rollback.
func (ks *KeySet) Dup() *KeySet {
	dup := New()
	for _, k := range ks.List() {
		dup.Append(k.Dup())
	}
	dup.sync = ks.sync
	return dup
}

// Rewind resets the legacy cursor to before the first key.
func (ks *KeySet) Rewind() {
	ks.cursor = -1
}

// Next advances the legacy cursor and returns the key at the new
// position, or nil if the cursor has passed the end. Insertions made
// since the last Rewind may invalidate the cursor; callers that mutate a
// KeySet mid-iteration should Rewind afterwards.
func (ks *KeySet) Next() *key.Key {
	ks.cursor++
	return ks.AtCursor(ks.cursor)
}

// Current returns the key at the current cursor position without
// advancing it, or nil if the cursor is out of range.
func (ks *KeySet) Current() *key.Key {
	return ks.AtCursor(ks.cursor)
}

// AtCursor returns the key at position i in canonical order, or nil if i
// is out of range.
func (ks *KeySet) AtCursor(i int) *key.Key {
	if i < 0 || i >= ks.Len() {
		return nil
	}
	return ks.List()[i]
}
