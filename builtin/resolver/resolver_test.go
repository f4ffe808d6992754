package resolver_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-elektra/kdb/builtin/resolver"
	"github.com/go-elektra/kdb/key"
)

func TestGetMissingFileAppendsMissingSuffix(t *testing.T) {
	path := filepath.Join(t.TempDir(), "does-not-exist.ecf")

	parentKey := key.MustNew("system:/elektra")
	parentKey.SetValue(path)

	p := resolver.New()
	rc, err := p.Get(nil, parentKey)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if rc.String() != "success" {
		t.Fatalf("got %v, want success", rc)
	}
	if !strings.HasSuffix(parentKey.ValueString(), "@missing") {
		t.Fatalf("got %q, want a @missing suffix", parentKey.ValueString())
	}
}

func TestGetExistingFileEmbedsMtime(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "app.ecf")
	writeFile(t, path, "hello")

	parentKey := key.MustNew("system:/elektra")
	parentKey.SetValue(path)

	p := resolver.New()
	if _, err := p.Get(nil, parentKey); err != nil {
		t.Fatalf("Get: %v", err)
	}

	id := parentKey.ValueString()
	if !strings.HasPrefix(id, path+"@") {
		t.Fatalf("got identifier %q, want a prefix of %q followed by @<mtime>", id, path)
	}
	if strings.HasSuffix(id, "@missing") {
		t.Fatalf("got identifier %q, did not expect @missing for an existing file", id)
	}
}

func TestGetRejectsEmptyPath(t *testing.T) {
	parentKey := key.MustNew("system:/elektra")

	p := resolver.New()
	if _, err := p.Get(nil, parentKey); err == nil {
		t.Fatalf("expected an error when the parent key carries no path")
	}
}

func TestSetProducesTemporarySibling(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.ecf")

	parentKey := key.MustNew("system:/elektra")
	parentKey.SetValue(path)

	p := resolver.New()
	if _, err := p.Set(nil, parentKey); err != nil {
		t.Fatalf("Set: %v", err)
	}

	temp := parentKey.ValueString()
	if temp == path {
		t.Fatalf("expected Set to produce a path distinct from the real path")
	}
	if !strings.HasPrefix(temp, path+".tmp-") {
		t.Fatalf("got temp path %q, want a %q-prefixed sibling", temp, path+".tmp-")
	}
}

func writeFile(t *testing.T, path, contents string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("could not write %s: %v", path, err)
	}
}
