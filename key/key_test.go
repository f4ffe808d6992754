package key_test

import (
	"testing"

	"github.com/go-elektra/kdb/key"
)

func TestNewRejectsCascading(t *testing.T) {
	if _, err := key.New("/a/b"); err == nil {
		t.Fatalf("expected New to reject a cascading name")
	}
}

func TestNewCascadingRejectsNamespaced(t *testing.T) {
	if _, err := key.NewCascading("user:/a/b"); err == nil {
		t.Fatalf("expected NewCascading to reject a namespaced name")
	}
}

func TestKeyValue(t *testing.T) {
	k := key.MustNew("user:/app/setting")

	if k.HasValue() {
		t.Fatalf("expected a fresh key to have no value")
	}

	if err := k.SetValue("hello"); err != nil {
		t.Fatalf("SetValue: %v", err)
	}

	if !k.HasValue() {
		t.Fatalf("expected HasValue after SetValue")
	}
	if k.ValueString() != "hello" {
		t.Fatalf("got value %q, want %q", k.ValueString(), "hello")
	}
	if !k.Sync() {
		t.Fatalf("expected sync flag to be set after SetValue")
	}
}

func TestKeyValueReadOnly(t *testing.T) {
	k := key.MustNew("user:/app/setting")
	k.SetValueReadOnly(true)

	if err := k.SetValue("hello"); err == nil {
		t.Fatalf("expected SetValue to fail on a read-only key")
	}
}

func TestKeyMeta(t *testing.T) {
	k := key.MustNew("user:/app/setting")

	if k.Meta("type") != nil {
		t.Fatalf("expected no metadata on a fresh key")
	}

	if err := k.SetMeta("type", "string"); err != nil {
		t.Fatalf("SetMeta: %v", err)
	}

	if got := k.MetaValue("type"); got != "string" {
		t.Fatalf("got meta value %q, want %q", got, "string")
	}

	if err := k.RemoveMeta("type"); err != nil {
		t.Fatalf("RemoveMeta: %v", err)
	}
	if k.Meta("type") != nil {
		t.Fatalf("expected metadata to be gone after RemoveMeta")
	}
}

func TestKeyRemoveMetaPrefix(t *testing.T) {
	k := key.MustNew("user:/app/setting")
	k.SetMeta("error/number", "interface")
	k.SetMeta("error/description", "bad call")
	k.SetMeta("warnings/#0/number", "resource")

	k.RemoveMetaPrefix("error/")

	if k.Meta("error/number") != nil || k.Meta("error/description") != nil {
		t.Fatalf("expected error/* metadata to be removed")
	}
	if k.Meta("warnings/#0/number") == nil {
		t.Fatalf("expected warnings/* metadata to survive")
	}
}

func TestKeyDupIsIndependent(t *testing.T) {
	k := key.MustNew("user:/app/setting")
	k.SetValue("original")
	k.SetMeta("type", "string")

	dup := k.Dup()
	dup.SetValue("changed")
	dup.SetMeta("type", "int")

	if k.ValueString() != "original" {
		t.Fatalf("mutating the dup changed the original's value")
	}
	if k.MetaValue("type") != "string" {
		t.Fatalf("mutating the dup changed the original's metadata")
	}
}

func TestKeyEqual(t *testing.T) {
	a := key.MustNew("user:/app/setting")
	a.SetValue("x")
	b := key.MustNew("user:/app/setting")
	b.SetValue("x")

	if !a.Equal(b) {
		t.Fatalf("expected equal keys to compare equal")
	}

	b.SetValue("y")
	if a.Equal(b) {
		t.Fatalf("expected differing values to compare unequal")
	}
}

func TestIsBelow(t *testing.T) {
	parent := key.MustNew("user:/app")
	child := key.MustNew("user:/app/setting")
	sibling := key.MustNew("user:/other")

	if !child.IsBelow(parent) {
		t.Fatalf("expected %s to be below %s", child, parent)
	}
	if parent.IsBelow(parent) {
		t.Fatalf("expected a key not to be below itself")
	}
	if !parent.IsBelowOrSame(parent) {
		t.Fatalf("expected IsBelowOrSame to include the parent itself")
	}
	if sibling.IsBelow(parent) {
		t.Fatalf("expected a sibling subtree not to be below parent")
	}
}

func TestCompareOrdersByNamespaceThenSegments(t *testing.T) {
	spec := key.MustNew("spec:/app")
	user := key.MustNew("user:/app")
	system := key.MustNew("system:/app")

	if spec.Compare(user) >= 0 {
		t.Fatalf("expected spec: to sort before user:")
	}
	if user.Compare(system) >= 0 {
		t.Fatalf("expected user: to sort before system:")
	}

	a := key.MustNew("user:/app/a")
	ab := key.MustNew("user:/app/a/b")
	if a.Compare(ab) >= 0 {
		t.Fatalf("expected a prefix name to sort before its descendant")
	}
}

func TestChildDoesNotMutateParent(t *testing.T) {
	parent := key.MustNew("user:/app")
	child := parent.Child("setting")

	if parent.Name() != "user:/app" {
		t.Fatalf("Child mutated its receiver: got %s", parent.Name())
	}
	if child.Name() != "user:/app/setting" {
		t.Fatalf("got child name %s, want user:/app/setting", child.Name())
	}
}
