package keyset_test

import (
	"testing"

	"github.com/go-elektra/kdb/key"
	"github.com/go-elektra/kdb/keyset"
)

func TestBelowAndBelowOrSame(t *testing.T) {
	parent := key.MustNew("user:/app")
	ks := keyset.New(
		key.MustNew("user:/app"),
		key.MustNew("user:/app/a"),
		key.MustNew("user:/app/a/b"),
		key.MustNew("user:/other"),
	)

	below := ks.Below(parent)
	if below.Len() != 2 {
		t.Fatalf("got %d keys below parent, want 2", below.Len())
	}

	belowOrSame := ks.BelowOrSame(parent)
	if belowOrSame.Len() != 3 {
		t.Fatalf("got %d keys below-or-same as parent, want 3", belowOrSame.Len())
	}
}

func TestCutRemovesFromSource(t *testing.T) {
	parent := key.MustNew("user:/app")
	ks := keyset.New(
		key.MustNew("user:/app"),
		key.MustNew("user:/app/a"),
		key.MustNew("user:/other"),
	)

	cut := ks.Cut(parent)

	if cut.Len() != 2 {
		t.Fatalf("got %d keys cut, want 2", cut.Len())
	}
	if ks.Len() != 1 {
		t.Fatalf("got %d keys remaining in source, want 1", ks.Len())
	}
	if ks.Lookup("user:/other") == nil {
		t.Fatalf("expected the untouched key to remain")
	}
}

func TestRenameRewritesPrefix(t *testing.T) {
	oldParent := key.MustNew("user:/app")
	newParent := key.MustNew("system:/elektra/mountpoints/foo")

	k := key.MustNew("user:/app/sub/setting")
	k.SetValue("v")
	ks := keyset.New(k, key.MustNew("user:/other"))

	renamed := keyset.Rename(ks, oldParent, newParent)

	if renamed.Lookup("system:/elektra/mountpoints/foo/sub/setting") == nil {
		t.Fatalf("expected the renamed key under the new parent")
	}
	if got := renamed.Lookup("system:/elektra/mountpoints/foo/sub/setting").ValueString(); got != "v" {
		t.Fatalf("got value %q, want %q", got, "v")
	}
	if renamed.Lookup("user:/other") == nil {
		t.Fatalf("expected a key outside oldParent to be left untouched")
	}
	if ks.Lookup("user:/app/sub/setting") == nil {
		t.Fatalf("Rename must not mutate its input")
	}
}

func TestRenameToCascadingRoot(t *testing.T) {
	oldParent := key.MustNew("system:/elektra/mountpoints/foo/definition")
	newRoot, err := key.NewCascading("/")
	if err != nil {
		t.Fatalf("NewCascading: %v", err)
	}

	ks := keyset.New(key.MustNew("system:/elektra/mountpoints/foo/definition/path"))

	renamed := keyset.Rename(ks, oldParent, newRoot)

	if renamed.Lookup("/path") == nil {
		t.Fatalf("expected the key to be re-rooted to /path")
	}
}

func TestMergeOverwrites(t *testing.T) {
	a := key.MustNew("user:/app/setting")
	a.SetValue("old")
	ks := keyset.New(a)

	b := key.MustNew("user:/app/setting")
	b.SetValue("new")
	ks.Merge(keyset.New(b))

	if ks.Lookup("user:/app/setting").ValueString() != "new" {
		t.Fatalf("expected Merge to overwrite an existing key")
	}
}

func TestDivideSplitsByParent(t *testing.T) {
	p1 := key.MustNew("user:/app/a")
	p2 := key.MustNew("user:/app/b")

	ks := keyset.New(
		key.MustNew("user:/app/a"),
		key.MustNew("user:/app/a/x"),
		key.MustNew("user:/app/b"),
		key.MustNew("user:/app/c"),
	)

	parts := ks.Divide([]*key.Key{p1, p2})

	if len(parts) != 2 {
		t.Fatalf("got %d parts, want 2", len(parts))
	}
	if parts[0].Len() != 2 {
		t.Fatalf("got %d keys in part 0, want 2", parts[0].Len())
	}
	if parts[1].Len() != 1 {
		t.Fatalf("got %d keys in part 1, want 1", parts[1].Len())
	}
}

func TestDivideDropsUnmatchedKeys(t *testing.T) {
	p := key.MustNew("user:/app")
	ks := keyset.New(key.MustNew("user:/app/a"), key.MustNew("system:/elsewhere"))

	parts := ks.Divide([]*key.Key{p})

	if parts[0].Len() != 1 {
		t.Fatalf("got %d keys, want 1 (unmatched key must be dropped)", parts[0].Len())
	}
}
