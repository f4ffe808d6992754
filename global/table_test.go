package global_test

import (
	"testing"

	"github.com/go-elektra/kdb/global"
	"github.com/go-elektra/kdb/key"
	"github.com/go-elektra/kdb/keyset"
	"github.com/go-elektra/kdb/plugin"
)

type countingPlugin struct {
	plugin.Base
	name  string
	calls int
	rc    plugin.ReturnCode
	err   error
}

func (c *countingPlugin) Name() string { return c.name }

func invoke(p plugin.Plugin, ks *keyset.KeySet, parentKey *key.Key) (plugin.ReturnCode, error) {
	return p.Get(ks, parentKey)
}

func (c *countingPlugin) Get(ks *keyset.KeySet, parentKey *key.Key) (plugin.ReturnCode, error) {
	c.calls++
	return c.rc, c.err
}

func TestSetPhaseAdvertisesOnGlobalKeySet(t *testing.T) {
	table := global.New()
	table.SetPhase("resolver")

	if got := table.KeySet.Lookup(global.PhaseKey).ValueString(); got != "resolver" {
		t.Fatalf("got phase %q, want %q", got, "resolver")
	}
}

func TestSetFailedPhaseAndClear(t *testing.T) {
	table := global.New()
	table.SetFailedPhase("commit")

	if got := table.KeySet.Lookup(global.FailedPhaseKey).ValueString(); got != "commit" {
		t.Fatalf("got failed phase %q, want %q", got, "commit")
	}

	table.ClearFailedPhase()
	if table.KeySet.Lookup(global.FailedPhaseKey) != nil {
		t.Fatalf("expected ClearFailedPhase to remove the advertisement")
	}
}

func TestRunMaxOnceRunsMountedPlugins(t *testing.T) {
	table := global.New()
	p := &countingPlugin{name: "audit", rc: plugin.Success}
	table.Mount(global.PreGetStorage, global.MaxOnce, "audit", p)

	if err := table.RunMaxOnce(global.PreGetStorage, keyset.New(), key.MustNew("user:/app"), invoke); err != nil {
		t.Fatalf("RunMaxOnce: %v", err)
	}
	if p.calls != 1 {
		t.Fatalf("got %d calls, want 1", p.calls)
	}
}

func TestRunMaxOnceStopsOnError(t *testing.T) {
	table := global.New()
	p := &countingPlugin{name: "audit", rc: plugin.Error}
	table.Mount(global.PreGetStorage, global.MaxOnce, "audit", p)

	if err := table.RunMaxOnce(global.PreGetStorage, keyset.New(), key.MustNew("user:/app"), invoke); err == nil {
		t.Fatalf("expected RunMaxOnce to report a plugin.Error return code as an error")
	}
}

func TestEnsureListEverywhereRequiresAllTenPositions(t *testing.T) {
	table := global.New()
	shared := &countingPlugin{name: "list", rc: plugin.Success}

	table.Mount(global.PreGetStorage, global.MaxOnce, "list", shared)

	if err := table.EnsureListEverywhere("list"); err == nil {
		t.Fatalf("expected an error: the shared instance is only mounted in one position")
	}

	for _, pos := range global.Positions {
		table.Mount(pos, global.MaxOnce, "list", shared)
	}

	if err := table.EnsureListEverywhere("list"); err != nil {
		t.Fatalf("EnsureListEverywhere: %v", err)
	}
}

func TestEnsureListEverywhereIgnoresUnmountedNames(t *testing.T) {
	table := global.New()

	if err := table.EnsureListEverywhere("never-mounted"); err != nil {
		t.Fatalf("expected no error for a name that was never mounted, got %v", err)
	}
}
