// Package key implements the Key type: an addressable, namespaced,
// hierarchical configuration entry with an optional value and a set of
// metadata entries.
package key

import (
	"bytes"
	"fmt"
)

// Key is a single configuration entry. The zero value is not usable;
// construct one with New or NewCascading.
type Key struct {
	namespace Namespace
	segments  []string

	value  []byte
	binary bool

	meta map[string]*Key

	nameReadOnly  bool
	valueReadOnly bool
	metaReadOnly  bool
	sync          bool
}

// New parses name and constructs a Key with no value and no metadata.
// name must not be a cascading name; use NewCascading for those.
func New(name string) (*Key, error) {
	ns, segs, err := ParseName(name)
	if err != nil {
		return nil, err
	}

	if ns == Cascading {
		return nil, fmt.Errorf("key: %q is a cascading name, use NewCascading", name)
	}

	return &Key{namespace: ns, segments: segs}, nil
}

// MustNew is New but panics on error. Useful for constructing well-known
// keys such as mountpoint roots from Go source.
func MustNew(name string) *Key {
	k, err := New(name)
	if err != nil {
		panic(err)
	}
	return k
}

// NewCascading parses a cascading name (one starting with "/").
func NewCascading(name string) (*Key, error) {
	ns, segs, err := ParseName(name)
	if err != nil {
		return nil, err
	}

	if ns != Cascading {
		return nil, fmt.Errorf("key: %q is not a cascading name", name)
	}

	return &Key{namespace: Cascading, segments: segs}, nil
}

// Namespace returns the Key's namespace.
func (k *Key) Namespace() Namespace {
	return k.namespace
}

// Name renders the Key's canonical name.
func (k *Key) Name() string {
	return JoinName(k.namespace, k.segments)
}

// Segments returns the Key's unescaped path segments. The caller must
// not mutate the returned slice.
func (k *Key) Segments() []string {
	return k.segments
}

// Basename returns the last path segment, or "" for the namespace root.
func (k *Key) Basename() string {
	if len(k.segments) == 0 {
		return ""
	}
	return k.segments[len(k.segments)-1]
}

// String implements fmt.Stringer for debugging and log output.
func (k *Key) String() string {
	return k.Name()
}

// IsBinary reports whether the Key's value is an opaque byte buffer
// rather than a UTF-8 string.
func (k *Key) IsBinary() bool {
	return k.binary
}

// Value returns the Key's raw value bytes. A Key with no value returns nil.
func (k *Key) Value() []byte {
	return k.value
}

// ValueString returns the Key's value interpreted as a UTF-8 string.
func (k *Key) ValueString() string {
	return string(k.value)
}

// SetValue sets the Key's value as a UTF-8 string. It clears the binary
// flag. It returns an internal error if the value is read-only.
func (k *Key) SetValue(v string) error {
	if k.valueReadOnly {
		return fmt.Errorf("key: value of %q is read-only", k.Name())
	}
	k.value = []byte(v)
	k.binary = false
	k.sync = true
	return nil
}

// SetBinary sets the Key's value as an opaque byte buffer.
func (k *Key) SetBinary(v []byte) error {
	if k.valueReadOnly {
		return fmt.Errorf("key: value of %q is read-only", k.Name())
	}
	k.value = append([]byte(nil), v...)
	k.binary = true
	k.sync = true
	return nil
}

// HasValue reports whether the Key carries any value at all.
func (k *Key) HasValue() bool {
	return k.value != nil
}

// Sync reports whether this Key has unsynchronized changes relative to
// the last successful get/set.
func (k *Key) Sync() bool {
	return k.sync
}

// SetSync sets the sync flag directly. The orchestrator uses this to
// clear sync flags after a successful commit.
func (k *Key) SetSync(sync bool) {
	k.sync = sync
}

// NameReadOnly, ValueReadOnly and MetaReadOnly report the Key's current
// read-only flags. The orchestrator sets these around plugin phases.
func (k *Key) NameReadOnly() bool  { return k.nameReadOnly }
func (k *Key) ValueReadOnly() bool { return k.valueReadOnly }
func (k *Key) MetaReadOnly() bool  { return k.metaReadOnly }

// SetNameReadOnly, SetValueReadOnly and SetMetaReadOnly toggle the
// corresponding read-only flag. These are internal bookkeeping calls
// made by the orchestrator, not by plugins.
func (k *Key) SetNameReadOnly(ro bool)  { k.nameReadOnly = ro }
func (k *Key) SetValueReadOnly(ro bool) { k.valueReadOnly = ro }
func (k *Key) SetMetaReadOnly(ro bool)  { k.metaReadOnly = ro }

// Meta returns the metadata Key stored under name, or nil if absent.
func (k *Key) Meta(name string) *Key {
	if k.meta == nil {
		return nil
	}
	return k.meta[name]
}

// MetaValue is a convenience wrapper around Meta that returns the string
// value, or "" if the metadata entry is absent.
func (k *Key) MetaValue(name string) string {
	m := k.Meta(name)
	if m == nil {
		return ""
	}
	return m.ValueString()
}

// SetMeta sets metadata name to value, creating the entry if needed. It
// returns an internal error if metadata is read-only.
func (k *Key) SetMeta(name, value string) error {
	if k.metaReadOnly {
		return fmt.Errorf("key: metadata of %q is read-only", k.Name())
	}

	if k.meta == nil {
		k.meta = make(map[string]*Key)
	}

	mk, ok := k.meta[name]
	if !ok {
		mk = &Key{namespace: Meta, segments: []string{name}}
		k.meta[name] = mk
	}

	mk.value = []byte(value)
	k.sync = true

	return nil
}

// RemoveMeta removes metadata name. It is a no-op if absent.
func (k *Key) RemoveMeta(name string) error {
	if k.metaReadOnly {
		return fmt.Errorf("key: metadata of %q is read-only", k.Name())
	}

	delete(k.meta, name)
	return nil
}

// MetaNames returns the names of all metadata entries, unordered.
func (k *Key) MetaNames() []string {
	names := make([]string, 0, len(k.meta))
	for name := range k.meta {
		names = append(names, name)
	}
	return names
}

// RemoveMetaPrefix removes every metadata entry whose name starts with
// prefix. It is used to clear "error/*" or "warnings/*" trees in bulk.
func (k *Key) RemoveMetaPrefix(prefix string) {
	for name := range k.meta {
		if len(name) >= len(prefix) && name[:len(prefix)] == prefix {
			delete(k.meta, name)
		}
	}
}

// Dup returns a deep copy of k: a new Key with its own value buffer and
// its own metadata keys, sharing no mutable state with k. The pipeline
// uses this to take snapshots it can safely roll back to, and to satisfy
// the duplicate-on-modify policy for keys that are shared across KeySets.
func (k *Key) Dup() *Key {
	dup := &Key{
		namespace: k.namespace,
		segments:  append([]string(nil), k.segments...),
		binary:    k.binary,
		sync:      k.sync,
	}

	if k.value != nil {
		dup.value = append([]byte(nil), k.value...)
	}

	if k.meta != nil {
		dup.meta = make(map[string]*Key, len(k.meta))
		for name, m := range k.meta {
			dup.meta[name] = m.Dup()
		}
	}

	return dup
}

// Equal reports whether k and other have the same name, value and
// metadata. Read-only and sync flags are not compared.
func (k *Key) Equal(other *Key) bool {
	if other == nil {
		return false
	}

	if k.namespace != other.namespace || compareSegments(k.segments, other.segments) != 0 {
		return false
	}

	if k.binary != other.binary || !bytes.Equal(k.value, other.value) {
		return false
	}

	if len(k.meta) != len(other.meta) {
		return false
	}

	for name, m := range k.meta {
		om, ok := other.meta[name]
		if !ok || !m.Equal(om) {
			return false
		}
	}

	return true
}

// IsBelow reports whether k names a proper descendant of parent: same
// namespace and parent's segments are a strict prefix of k's.
func (k *Key) IsBelow(parent *Key) bool {
	if k.namespace != parent.namespace {
		return false
	}

	if len(k.segments) <= len(parent.segments) {
		return false
	}

	for i, s := range parent.segments {
		if k.segments[i] != s {
			return false
		}
	}

	return true
}

// IsBelowOrSame reports whether k is parent or a descendant of parent.
func (k *Key) IsBelowOrSame(parent *Key) bool {
	return k.Compare(parent) == 0 || k.IsBelow(parent)
}

// Compare implements the canonical total order on Key names: namespace
// rank first, then path segments compared component-wise.
func (k *Key) Compare(other *Key) int {
	if k.namespace != other.namespace {
		if rank[k.namespace] < rank[other.namespace] {
			return -1
		}
		return 1
	}

	return compareSegments(k.segments, other.segments)
}

// Child returns a new Key naming the child segment seg below k. It does
// not mutate k.
func (k *Key) Child(seg string) *Key {
	return &Key{
		namespace: k.namespace,
		segments:  append(append([]string(nil), k.segments...), seg),
	}
}
