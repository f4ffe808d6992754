package bboltstorage_test

import (
	"path/filepath"
	"testing"

	"github.com/go-elektra/kdb/builtin/storage/bboltstorage"
	"github.com/go-elektra/kdb/key"
	"github.com/go-elektra/kdb/keyset"
)

func TestGetOnFreshFileIsEmptySuccess(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.bbolt")
	parentKey := key.MustNew("system:/elektra")
	parentKey.SetValue(path)

	p := bboltstorage.New()
	ks := keyset.New()

	rc, err := p.Get(ks, parentKey)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if rc.String() != "success" {
		t.Fatalf("got %v, want success", rc)
	}
	if ks.Len() != 0 {
		t.Fatalf("got %d keys, want 0 for a database with no root bucket yet", ks.Len())
	}
}

func TestSetThenGetRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.bbolt")
	parentKey := key.MustNew("system:/elektra")
	parentKey.SetValue(path)

	a := key.MustNew("user:/app/name")
	a.SetValue("flock")

	out := keyset.New(a)

	p := bboltstorage.New()
	if _, err := p.Set(out, parentKey); err != nil {
		t.Fatalf("Set: %v", err)
	}

	in := keyset.New()
	if _, err := p.Get(in, parentKey); err != nil {
		t.Fatalf("Get: %v", err)
	}

	got := in.Lookup("user:/app/name")
	if got == nil {
		t.Fatalf("expected user:/app/name to survive a set+get round trip")
	}
	if got.ValueString() != "flock" {
		t.Fatalf("got value %q, want %q", got.ValueString(), "flock")
	}
}

func TestSetSkipsMetaKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.bbolt")
	parentKey := key.MustNew("system:/elektra")
	parentKey.SetValue(path)

	a := key.MustNew("user:/app/name")
	a.SetValue("flock")
	meta := key.MustNew("meta:/error/number")
	meta.SetValue("interface")
	out := keyset.New(a, meta)

	p := bboltstorage.New()
	if _, err := p.Set(out, parentKey); err != nil {
		t.Fatalf("Set: %v", err)
	}

	in := keyset.New()
	if _, err := p.Get(in, parentKey); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if in.Len() != 1 {
		t.Fatalf("got %d keys, want 1 (the meta-namespace key must be skipped)", in.Len())
	}
}

func TestSetReplacesPreviousContents(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.bbolt")
	parentKey := key.MustNew("system:/elektra")
	parentKey.SetValue(path)

	first := key.MustNew("user:/app/old")
	first.SetValue("stale")

	p := bboltstorage.New()
	if _, err := p.Set(keyset.New(first), parentKey); err != nil {
		t.Fatalf("first Set: %v", err)
	}

	second := key.MustNew("user:/app/new")
	second.SetValue("fresh")
	if _, err := p.Set(keyset.New(second), parentKey); err != nil {
		t.Fatalf("second Set: %v", err)
	}

	in := keyset.New()
	if _, err := p.Get(in, parentKey); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if in.Lookup("user:/app/old") != nil {
		t.Fatalf("expected the second Set to have replaced the root bucket entirely")
	}
	if got := in.Lookup("user:/app/new"); got == nil || got.ValueString() != "fresh" {
		t.Fatalf("got %v, want user:/app/new=fresh", got)
	}
}
