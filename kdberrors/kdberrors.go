// Package kdberrors implements the closed set of error kinds the KDB core
// reports, and the metadata-writing conventions the orchestrator uses to
// surface them on a caller's parent key. It plays the role the original
// ELEKTRA_SET_*_ERROR macros play in kdb.c, reimplemented as ordinary Go
// functions over *key.Key metadata, consistent with storage/kv's plain
// errors/fmt.Errorf style (no third-party error library appears anywhere
// in the teacher repo).
package kdberrors

import (
	"fmt"
	"strconv"

	"github.com/go-elektra/kdb/key"
)

// Kind is the closed set of error kinds the core reports.
type Kind string

const (
	Interface         Kind = "interface"
	Installation      Kind = "installation"
	Resource          Kind = "resource"
	ConflictingState  Kind = "conflicting-state"
	PluginMisbehavior Kind = "plugin-misbehavior"
	Internal          Kind = "internal"
	Validation        Kind = "validation"
)

// Error is a Go error carrying a Kind, for use with errors.As by callers
// that want to branch on error kind programmatically.
type Error struct {
	Kind        Kind
	Module      string
	Description string
	Reason      string
}

func (e *Error) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("%s: %s: %s", e.Kind, e.Description, e.Reason)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Description)
}

// New constructs an *Error without writing it anywhere.
func New(kind Kind, module, description, reason string) *Error {
	return &Error{Kind: kind, Module: module, Description: description, Reason: reason}
}

const (
	errorPrefix   = "error/"
	warningPrefix = "warnings/"
)

// Clear removes any previously set error and warning metadata from k.
// The orchestrator calls this before starting every top-level get/set
// call, per spec §7's propagation policy.
func Clear(k *key.Key) {
	k.RemoveMetaPrefix(errorPrefix)
	k.RemoveMetaPrefix(warningPrefix)
}

// SetError writes err onto k's metadata as the single terminal error,
// following the meta:/error/{number,description,reason,module,...}
// convention. It overwrites any previously set error.
func SetError(k *key.Key, err *Error, file string, line int, configfile, mountpoint string) {
	k.RemoveMetaPrefix(errorPrefix)

	k.SetMeta(errorPrefix+"number", string(err.Kind))
	k.SetMeta(errorPrefix+"description", err.Description)
	k.SetMeta(errorPrefix+"reason", err.Reason)
	k.SetMeta(errorPrefix+"module", err.Module)

	if file != "" {
		k.SetMeta(errorPrefix+"file", file)
	}
	if line != 0 {
		k.SetMeta(errorPrefix+"line", strconv.Itoa(line))
	}
	if configfile != "" {
		k.SetMeta(errorPrefix+"configfile", configfile)
	}
	if mountpoint != "" {
		k.SetMeta(errorPrefix+"mountpoint", mountpoint)
	}
}

// HasError reports whether k currently carries a terminal error.
func HasError(k *key.Key) bool {
	return k.Meta(errorPrefix+"number") != nil
}

// AddWarning appends err to k's accumulated warnings list
// (meta:/warnings/#N/*). Warnings never change a call's return value.
func AddWarning(k *key.Key, err *Error, module string) {
	n := 0
	for k.Meta(warningPrefix+key.ArrayIndex(n)+"/number") != nil {
		n++
	}

	base := warningPrefix + key.ArrayIndex(n) + "/"

	k.SetMeta(base+"number", string(err.Kind))
	k.SetMeta(base+"description", err.Description)
	k.SetMeta(base+"reason", err.Reason)
	k.SetMeta(base+"module", module)
}

// Downgrade converts err into a warning on k instead of a terminal
// error. The orchestrator uses this for failures inside rollback,
// postcommit, and postrollback, per spec §7: the outcome is already
// decided by the time those phases run.
func Downgrade(k *key.Key, err *Error, module string) {
	AddWarning(k, err, module)
}
