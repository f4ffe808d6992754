// Package uuidgen generates random identifiers for temporary storage
// targets. It is adapted from utils/uuid in the teacher repo, where the
// same one-liner backs storage/kv/plugins/bbolt's NewTempStore; here it
// backs the resolver plugin's temp-file naming during set's prepare step.
package uuidgen

import "github.com/google/uuid"

// New returns a fresh random identifier suitable for use as a
// filesystem-safe suffix.
func New() string {
	return uuid.New().String()
}
