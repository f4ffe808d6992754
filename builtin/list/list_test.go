package list_test

import (
	"testing"

	"github.com/go-elektra/kdb/builtin/list"
	"github.com/go-elektra/kdb/key"
	"github.com/go-elektra/kdb/keyset"
	"github.com/go-elektra/kdb/plugin"
)

type orderPlugin struct {
	plugin.Base
	name  string
	log   *[]string
	rc    plugin.ReturnCode
	err   error
}

func (o *orderPlugin) Name() string { return o.name }

func (o *orderPlugin) Get(ks *keyset.KeySet, parentKey *key.Key) (plugin.ReturnCode, error) {
	*o.log = append(*o.log, o.name)
	return o.rc, o.err
}

func TestListDispatchesInMountOrder(t *testing.T) {
	var log []string

	p := list.New().(*list.Plugin)
	p.MountPlugin("a", &orderPlugin{name: "a", log: &log, rc: plugin.Success})
	p.MountPlugin("b", &orderPlugin{name: "b", log: &log, rc: plugin.Success})

	if _, err := p.Get(keyset.New(), key.MustNew("user:/app")); err != nil {
		t.Fatalf("Get: %v", err)
	}

	if len(log) != 2 || log[0] != "a" || log[1] != "b" {
		t.Fatalf("got dispatch order %v, want [a b]", log)
	}
}

func TestListStopsOnFirstError(t *testing.T) {
	var log []string

	p := list.New().(*list.Plugin)
	p.MountPlugin("a", &orderPlugin{name: "a", log: &log, rc: plugin.Error})
	p.MountPlugin("b", &orderPlugin{name: "b", log: &log, rc: plugin.Success})

	rc, err := p.Get(keyset.New(), key.MustNew("user:/app"))
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if rc != plugin.Error {
		t.Fatalf("got %v, want plugin.Error", rc)
	}
	if len(log) != 1 {
		t.Fatalf("got %d dispatched plugins, want 1 (should stop after the error)", len(log))
	}
}

func TestUnmountPlugin(t *testing.T) {
	var log []string

	p := list.New().(*list.Plugin)
	p.MountPlugin("a", &orderPlugin{name: "a", log: &log, rc: plugin.Success})
	p.MountPlugin("b", &orderPlugin{name: "b", log: &log, rc: plugin.Success})
	p.UnmountPlugin("a")

	if _, err := p.Get(keyset.New(), key.MustNew("user:/app")); err != nil {
		t.Fatalf("Get: %v", err)
	}

	if len(log) != 1 || log[0] != "b" {
		t.Fatalf("got dispatch log %v, want [b]", log)
	}
}

func TestGetFunctionMountAndUnmount(t *testing.T) {
	p := list.New().(*list.Plugin)

	mount := p.GetFunction("mountplugin")
	if mount == nil {
		t.Fatalf("expected a mountplugin exported function")
	}

	var log []string
	if _, err := mount("dynamic", &orderPlugin{name: "dynamic", log: &log, rc: plugin.Success}); err != nil {
		t.Fatalf("mountplugin: %v", err)
	}

	if _, err := p.Get(keyset.New(), key.MustNew("user:/app")); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(log) != 1 || log[0] != "dynamic" {
		t.Fatalf("got log %v, want [dynamic]", log)
	}

	unmount := p.GetFunction("unmountplugin")
	if unmount == nil {
		t.Fatalf("expected an unmountplugin exported function")
	}
	if _, err := unmount("dynamic"); err != nil {
		t.Fatalf("unmountplugin: %v", err)
	}

	log = nil
	if _, err := p.Get(keyset.New(), key.MustNew("user:/app")); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(log) != 0 {
		t.Fatalf("got log %v, want empty after unmount", log)
	}
}

func TestGetFunctionUnknownNameReturnsNil(t *testing.T) {
	p := list.New().(*list.Plugin)
	if f := p.GetFunction("bogus"); f != nil {
		t.Fatalf("expected nil for an unknown exported function name")
	}
}
