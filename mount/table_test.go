package mount_test

import (
	"testing"

	"github.com/go-elektra/kdb/key"
	"github.com/go-elektra/kdb/keyset"
	"github.com/go-elektra/kdb/mount"
	"github.com/go-elektra/kdb/plugin"
)

type nopPlugin struct{ plugin.Base }

func (nopPlugin) Name() string { return "nop" }

func newBackend(mountpoint string) *mount.Backend {
	return mount.NewBackend(key.MustNew(mountpoint), &nopPlugin{}, nil, keyset.New())
}

func TestTableFindOwnerPicksDeepestAncestor(t *testing.T) {
	table := mount.NewTable()
	table.Add(newBackend("user:/"))
	table.Add(newBackend("user:/app"))

	owner := table.FindOwner(key.MustNew("user:/app/setting"))
	if owner == nil || owner.Mountpoint.Name() != "user:/app" {
		t.Fatalf("got owner %v, want user:/app", owner)
	}

	root := table.FindOwner(key.MustNew("user:/other"))
	if root == nil || root.Mountpoint.Name() != "user:/" {
		t.Fatalf("got owner %v, want user:/", root)
	}
}

func TestTableFindIntersecting(t *testing.T) {
	table := mount.NewTable()
	table.Add(newBackend("user:/"))
	table.Add(newBackend("user:/app"))
	table.Add(newBackend("user:/app/sub"))
	table.Add(newBackend("system:/elektra"))

	got := table.FindIntersecting(key.MustNew("user:/app"))

	names := make(map[string]bool)
	for _, b := range got {
		names[b.Mountpoint.Name()] = true
	}

	if !names["user:/app"] || !names["user:/app/sub"] {
		t.Fatalf("expected user:/app and user:/app/sub to intersect, got %v", names)
	}
	if names["system:/elektra"] {
		t.Fatalf("did not expect an unrelated mountpoint to intersect")
	}
}

func TestTableAddReplacesSameMountpoint(t *testing.T) {
	table := mount.NewTable()
	first := newBackend("user:/app")
	second := newBackend("user:/app")

	table.Add(first)
	table.Add(second)

	all := table.All()
	if len(all) != 1 {
		t.Fatalf("got %d backends, want 1 after replacing the same mountpoint", len(all))
	}
	if all[0] != second {
		t.Fatalf("expected the table to hold the replacement backend")
	}
}

func TestBackendOwns(t *testing.T) {
	b := newBackend("user:/app")

	if !b.Owns(key.MustNew("user:/app/setting")) {
		t.Fatalf("expected Owns to report true for a descendant")
	}
	if b.Owns(key.MustNew("user:/other")) {
		t.Fatalf("expected Owns to report false outside the mountpoint")
	}
}
