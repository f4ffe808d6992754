package keyset

import "github.com/go-elektra/kdb/key"

// Below returns a new KeySet containing every key in ks that is a
// descendant of parent (not including parent itself), without removing
// them from ks.
func (ks *KeySet) Below(parent *key.Key) *KeySet {
	out := New()
	for _, k := range ks.List() {
		if k.IsBelow(parent) {
			out.Append(k)
		}
	}
	return out
}

// BelowOrSame is like Below but also includes parent itself if present.
func (ks *KeySet) BelowOrSame(parent *key.Key) *KeySet {
	out := New()
	for _, k := range ks.List() {
		if k.IsBelowOrSame(parent) {
			out.Append(k)
		}
	}
	return out
}

// Cut removes every key below-or-same as parent from ks and returns them
// as a new KeySet.
func (ks *KeySet) Cut(parent *key.Key) *KeySet {
	out := New()
	for _, k := range ks.List() {
		if k.IsBelowOrSame(parent) {
			out.Append(k)
			ks.RemoveKey(k)
		}
	}
	return out
}

// Rename rewrites the namespace/prefix of every key in ks that is
// below-or-same as oldParent, replacing that prefix with newParent. Keys
// outside oldParent's subtree are left untouched. It returns a new
// KeySet; ks itself is not mutated.
func Rename(ks *KeySet, oldParent, newParent *key.Key) *KeySet {
	out := New()

	oldSegs := oldParent.Segments()

	for _, k := range ks.List() {
		if !k.IsBelowOrSame(oldParent) {
			out.Append(k)
			continue
		}

		suffix := k.Segments()[len(oldSegs):]
		renamed := newParent
		for _, s := range suffix {
			renamed = renamed.Child(s)
		}

		if k.HasValue() {
			if k.IsBinary() {
				renamed.SetBinary(k.Value())
			} else {
				renamed.SetValue(k.ValueString())
			}
		}

		out.Append(renamed)
	}

	return out
}

// Merge appends every key of other into ks, replacing ks's key of the
// same name when one exists.
func (ks *KeySet) Merge(other *KeySet) {
	ks.AppendAll(other)
}

// Divide partitions ks among the given parent keys: the result slice has
// the same length as parents, and result[i] holds every key of ks that is
// below-or-same as parents[i]. A key that matches more than one parent
// (only possible if the parents overlap) is assigned to the first match.
// Keys matching no parent are dropped.
func (ks *KeySet) Divide(parents []*key.Key) []*KeySet {
	out := make([]*KeySet, len(parents))
	for i := range out {
		out[i] = New()
	}

	for _, k := range ks.List() {
		for i, p := range parents {
			if k.IsBelowOrSame(p) {
				out[i].Append(k)
				break
			}
		}
	}

	return out
}
