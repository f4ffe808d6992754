// Package global implements the global plugin table: the cross-cutting
// hook positions the orchestrator invokes around every phase, plus the
// shared global KeySet through which the orchestrator advertises the
// current phase, the failed phase, and other session-wide state to every
// plugin. Grounded on kdb.c's ensureContractMountGlobal and
// ensureListPluginMountedEverywhere (original_source).
package global

import (
	"fmt"

	"github.com/go-elektra/kdb/key"
	"github.com/go-elektra/kdb/keyset"
	"github.com/go-elektra/kdb/plugin"
)

// Well-known keys the orchestrator writes on the shared global KeySet so
// that plugins can read their current invocation context.
const (
	PhaseKey       = "system:/elektra/kdb/backend/phase"
	FailedPhaseKey = "system:/elektra/kdb/backend/failedphase"
	MountpointKey  = "system:/elektra/kdb/backend/mountpoint"
)

type slot struct {
	name   string
	plugin plugin.Plugin
}

// Table holds the ten-position-by-four-subposition matrix of global
// plugins plus the session's shared global KeySet.
type Table struct {
	KeySet *keyset.KeySet
	slots  map[Position]map[Subposition][]slot
}

// New constructs an empty Table backed by its own global KeySet.
func New() *Table {
	t := &Table{
		KeySet: keyset.New(),
		slots:  make(map[Position]map[Subposition][]slot),
	}

	for _, p := range Positions {
		t.slots[p] = make(map[Subposition][]slot)
	}

	return t
}

// Mount installs p under position/sub with the given symbolic name
// (used for diagnostics and for EnsureListEverywhere).
func (t *Table) Mount(position Position, sub Subposition, name string, p plugin.Plugin) {
	t.slots[position][sub] = append(t.slots[position][sub], slot{name: name, plugin: p})
}

// Plugins returns every plugin mounted under position/sub, in mount
// order.
func (t *Table) Plugins(position Position, sub Subposition) []plugin.Plugin {
	slots := t.slots[position][sub]
	out := make([]plugin.Plugin, len(slots))
	for i, s := range slots {
		out[i] = s.plugin
	}
	return out
}

// EnsureListEverywhere enforces spec §4.1 step 6: if any instance of the
// named plugin is mounted in any of the ten positions, the very same
// instance must be mounted in all ten. It returns an error naming the
// missing positions otherwise.
func (t *Table) EnsureListEverywhere(name string) error {
	var found plugin.Plugin

	for _, p := range Positions {
		for _, sl := range t.slots[p][MaxOnce] {
			if sl.name == name {
				found = sl.plugin
			}
		}
	}

	if found == nil {
		return nil
	}

	var missing []Position
	for _, p := range Positions {
		ok := false
		for _, sl := range t.slots[p][MaxOnce] {
			if sl.plugin == found {
				ok = true
			}
		}
		if !ok {
			missing = append(missing, p)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("global: plugin %q must be mounted in all ten positions, missing %v", name, missing)
	}

	return nil
}

// SetPhase advertises the phase currently being executed to every
// plugin holding a reference to this table's global KeySet.
func (t *Table) SetPhase(phase string) {
	t.set(PhaseKey, phase)
}

// SetFailedPhase advertises which phase failed, for use during
// rollback, per spec §4.3's "Rollback" paragraph.
func (t *Table) SetFailedPhase(phase string) {
	t.set(FailedPhaseKey, phase)
}

// ClearFailedPhase removes the failed-phase advertisement after a
// rollback sequence completes.
func (t *Table) ClearFailedPhase() {
	t.KeySet.Remove(FailedPhaseKey)
}

// SetMountpoint advertises which backend's mountpoint is currently being
// processed.
func (t *Table) SetMountpoint(name string) {
	t.set(MountpointKey, name)
}

func (t *Table) set(name, value string) {
	k, err := key.New(name)
	if err != nil {
		panic(err)
	}
	k.SetValue(value)
	t.KeySet.Append(k)
}

// RunMaxOnce runs every plugin mounted under position/MaxOnce, in mount
// order, against ks. It stops and returns the first error/plugin-misbehavior
// encountered.
func (t *Table) RunMaxOnce(position Position, ks *keyset.KeySet, parentKey *key.Key, invoke func(plugin.Plugin, *keyset.KeySet, *key.Key) (plugin.ReturnCode, error)) error {
	t.SetPhase(string(position))

	for _, p := range t.Plugins(position, MaxOnce) {
		rc, err := invoke(p, ks, parentKey)
		if err != nil {
			return err
		}
		if rc == plugin.Error {
			return fmt.Errorf("global: plugin returned error at position %s", position)
		}
	}

	return nil
}

// RunForEach runs every plugin mounted under position/ForEach against
// the given backend's keyset. Called once per selected backend.
func (t *Table) RunForEach(position Position, ks *keyset.KeySet, parentKey *key.Key, invoke func(plugin.Plugin, *keyset.KeySet, *key.Key) (plugin.ReturnCode, error)) error {
	t.SetPhase(string(position))

	for _, p := range t.Plugins(position, ForEach) {
		rc, err := invoke(p, ks, parentKey)
		if err != nil {
			return err
		}
		if rc == plugin.Error {
			return fmt.Errorf("global: plugin returned error at position %s", position)
		}
	}

	return nil
}

// RunInit runs every Init-subposition plugin across all positions, once,
// at session Open.
func (t *Table) RunInit(parentKey *key.Key) error {
	for _, p := range Positions {
		for _, sl := range t.slots[p][Init] {
			if _, err := sl.plugin.Init(keyset.New(), parentKey); err != nil {
				return err
			}
		}
	}
	return nil
}

// RunDeinit runs every Deinit-subposition plugin across all positions,
// once, at session Close. Errors are not returned; they become warnings
// in the caller, matching Close's "never fails for non-null handles"
// contract.
func (t *Table) RunDeinit(parentKey *key.Key) []error {
	var errs []error
	for _, p := range Positions {
		for _, sl := range t.slots[p][Deinit] {
			if err := sl.plugin.Close(parentKey); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errs
}
