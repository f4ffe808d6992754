package mount

import "github.com/go-elektra/kdb/key"

// Table is the set of all Backends, indexed by mountpoint name, with
// namespace-aware "find parent"/"find children" queries. It is
// immutable for the lifetime of a handle except through open's bootstrap
// swap, per spec §5.
type Table struct {
	backends map[string]*Backend
	ordered  []*Backend
}

// NewTable constructs an empty Table.
func NewTable() *Table {
	return &Table{backends: make(map[string]*Backend)}
}

// Add installs b, indexed by its mountpoint name. It replaces any
// existing backend at the same mountpoint.
func (t *Table) Add(b *Backend) {
	name := b.Mountpoint.Name()
	if _, exists := t.backends[name]; !exists {
		t.ordered = append(t.ordered, b)
	} else {
		for i, existing := range t.ordered {
			if existing.Mountpoint.Name() == name {
				t.ordered[i] = b
			}
		}
	}
	t.backends[name] = b
}

// All returns every Backend, in mount order.
func (t *Table) All() []*Backend {
	return append([]*Backend(nil), t.ordered...)
}

// Lookup returns the Backend mounted exactly at name, or nil.
func (t *Table) Lookup(name *key.Key) *Backend {
	return t.backends[name.Name()]
}

// FindOwner returns the Backend that owns name: the one whose
// mountpoint is the deepest ancestor of (or equal to) name. Every name
// resolves to exactly one Backend because a hard-coded root backend is
// always mounted at each namespace's root, per spec §3's invariant.
func (t *Table) FindOwner(name *key.Key) *Backend {
	var best *Backend
	bestDepth := -1

	for _, b := range t.ordered {
		if !name.IsBelowOrSame(b.Mountpoint) {
			continue
		}

		depth := len(b.Mountpoint.Segments())
		if depth > bestDepth {
			best = b
			bestDepth = depth
		}
	}

	return best
}

// FindIntersecting returns every Backend whose mountpoint lies within
// parent's subtree, plus the Backend that owns parent itself (which may
// be an ancestor mountpoint). Used by the orchestrator's "select
// backends" step (spec §4.2 step 1, §4.3 step 2).
func (t *Table) FindIntersecting(parent *key.Key) []*Backend {
	var out []*Backend
	seen := make(map[*Backend]bool)

	if owner := t.FindOwner(parent); owner != nil {
		out = append(out, owner)
		seen[owner] = true
	}

	for _, b := range t.ordered {
		if seen[b] {
			continue
		}
		if b.Mountpoint.IsBelowOrSame(parent) {
			out = append(out, b)
			seen[b] = true
		}
	}

	return out
}
