package version_test

import (
	"testing"

	"github.com/go-elektra/kdb/builtin/version"
	"github.com/go-elektra/kdb/key"
	"github.com/go-elektra/kdb/keyset"
	"github.com/go-elektra/kdb/plugin"
)

func TestInitIsReadOnly(t *testing.T) {
	p := version.New()
	rc, err := p.Init(keyset.New(), key.MustNew("system:/elektra/version"))
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	if rc != plugin.ReadOnly {
		t.Fatalf("got %v, want plugin.ReadOnly", rc)
	}
}

func TestGetPopulatesVersionConstant(t *testing.T) {
	p := version.New()
	parentKey := key.MustNew("system:/elektra/version")

	ks := keyset.New()
	rc, err := p.Get(ks, parentKey)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if rc != plugin.Success {
		t.Fatalf("got %v, want plugin.Success", rc)
	}

	got := ks.Lookup("system:/elektra/version/constants/KDB_VERSION")
	if got == nil {
		t.Fatalf("expected a constants/KDB_VERSION key under the parent key")
	}
	if got.ValueString() != version.CoreVersion {
		t.Fatalf("got %q, want %q", got.ValueString(), version.CoreVersion)
	}
}

func TestGetDoesNotMutateParentKey(t *testing.T) {
	p := version.New()
	parentKey := key.MustNew("system:/elektra/version")
	before := parentKey.Name()

	if _, err := p.Get(keyset.New(), parentKey); err != nil {
		t.Fatalf("Get: %v", err)
	}

	if parentKey.Name() != before {
		t.Fatalf("Get mutated the parent key's name from %q to %q", before, parentKey.Name())
	}
}
