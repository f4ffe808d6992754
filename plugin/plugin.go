// Package plugin defines the Plugin contract: a uniform, polymorphic unit
// of code that implements any subset of the pipeline's phases. It is
// modeled directly on storage/kv.Plugin/RootStore in the teacher repo,
// which factors "Name() + NewRootStore(options)" the same way this
// Plugin factors "Name() + Open(config, ...)".
package plugin

import (
	"go.uber.org/zap"

	"github.com/go-elektra/kdb/key"
	"github.com/go-elektra/kdb/keyset"
)

// Options is the configuration KeySet (or, for builtin plugins that
// don't need full Key semantics, a plain map) passed to a plugin at
// mount time. The pipeline always uses the KeySet form; Options
// exists for builtin plugins ported straight from a driver-style
// constructor, mirroring storage/kv.PluginOptions in the teacher.
type Options map[string]interface{}

// ReturnCode is the closed set of values a phase function may return.
// kdb reports any Init result other than Success or ReadOnly as an
// interface error; the get and set phase loops check only for Error, so
// any other value from those phases is not treated as a failure.
type ReturnCode int

const (
	Success ReturnCode = iota
	NoUpdate
	Error
	CacheHit

	// ReadOnly is returned only from Init, to mark a backend read-only
	// without treating it as an error (spec §4.2 step 2). It is not
	// part of the four-value closed set that Get/Set/Commit/Error may
	// return.
	ReadOnly
)

func (rc ReturnCode) String() string {
	switch rc {
	case Success:
		return "success"
	case NoUpdate:
		return "no_update"
	case Error:
		return "error"
	case CacheHit:
		return "cache_hit"
	case ReadOnly:
		return "read_only"
	default:
		return "unknown"
	}
}

// ExportedFunction is a dynamically addressable function a plugin offers
// to other plugins, e.g. the "list" plugin's mountplugin/unmountplugin.
type ExportedFunction func(args ...interface{}) (interface{}, error)

// Plugin is the uniform interface every storage/validation/global plugin
// implements. A plugin may implement only the phases relevant to its
// role; phases it doesn't implement should return Success, nil, doing
// nothing, which is what Base embeds provide.
type Plugin interface {
	// Name returns the plugin's symbolic name, the one used to look it
	// up in the module registry and to mount it.
	Name() string

	// Open initializes the plugin with its mount-time configuration and
	// a reference to the session's shared global KeySet. Plugins must
	// retain the global reference (not copy it) so that the orchestrator
	// can advertise phase/failed-phase information to them later.
	Open(config *keyset.KeySet, global *keyset.KeySet, parentKey *key.Key) error

	// Close releases any resources the plugin holds.
	Close(parentKey *key.Key) error

	// Init is called once per backend, at most once per session, before
	// any Get/Set. definition is the backend's mountpoint definition
	// KeySet. A read-only return marks the backend read-only without
	// being an error.
	Init(definition *keyset.KeySet, parentKey *key.Key) (ReturnCode, error)

	// Get runs the plugin's get-side logic for whichever phase the
	// orchestrator has advertised via the global KeySet.
	Get(ks *keyset.KeySet, parentKey *key.Key) (ReturnCode, error)

	// Set runs the plugin's set-side logic for whichever phase the
	// orchestrator has advertised via the global KeySet.
	Set(ks *keyset.KeySet, parentKey *key.Key) (ReturnCode, error)

	// Commit runs precommit/commit/postcommit logic.
	Commit(ks *keyset.KeySet, parentKey *key.Key) (ReturnCode, error)

	// Error runs prerollback/rollback/postrollback logic.
	Error(ks *keyset.KeySet, parentKey *key.Key) (ReturnCode, error)

	// GetFunction looks up a dynamically addressable function the
	// plugin exports, or returns nil if it exports nothing by that name.
	GetFunction(name string) ExportedFunction
}

// AuxAware is implemented by primary backend plugins that need access
// to their backend's ordered list of auxiliary plugins (referenced by
// "#N" indices in the mount definition). mount.NewBackend calls SetAux
// once, right after Open, when building a Backend.
type AuxAware interface {
	SetAux(plugins []Plugin)
}

// Base is embedded by builtin plugins to provide no-op defaults for
// every phase they don't care about, the way a plugin author in the
// original only fills in the entry points their role needs. Logger
// defaults to zap.L() on Open, the way storage/kv.store.logger does in
// the teacher, so every builtin plugin can log through it without
// wiring its own field.
type Base struct {
	Global *keyset.KeySet
	Logger *zap.Logger
}

func (b *Base) Open(config *keyset.KeySet, global *keyset.KeySet, parentKey *key.Key) error {
	b.Global = global
	b.Logger = zap.L()
	return nil
}

func (b *Base) Close(parentKey *key.Key) error { return nil }

// EffectiveLogger returns l, or zap.L() if l is nil, the same fallback
// storage/kv.store.New applies in the teacher. Builtin plugins call
// this before logging so entry/exit logging still works when a test
// exercises Get/Set/Commit/Error directly without going through Open.
func EffectiveLogger(l *zap.Logger) *zap.Logger {
	if l == nil {
		return zap.L()
	}
	return l
}

func (b *Base) Init(definition *keyset.KeySet, parentKey *key.Key) (ReturnCode, error) {
	return Success, nil
}

func (b *Base) Get(ks *keyset.KeySet, parentKey *key.Key) (ReturnCode, error) {
	return Success, nil
}

func (b *Base) Set(ks *keyset.KeySet, parentKey *key.Key) (ReturnCode, error) {
	return Success, nil
}

func (b *Base) Commit(ks *keyset.KeySet, parentKey *key.Key) (ReturnCode, error) {
	return Success, nil
}

func (b *Base) Error(ks *keyset.KeySet, parentKey *key.Key) (ReturnCode, error) {
	return Success, nil
}

func (b *Base) GetFunction(name string) ExportedFunction { return nil }
