package uuidgen_test

import (
	"testing"

	"github.com/go-elektra/kdb/internal/uuidgen"
)

func TestNewProducesDistinctIdentifiers(t *testing.T) {
	a := uuidgen.New()
	b := uuidgen.New()

	if a == "" || b == "" {
		t.Fatalf("got empty identifier: a=%q b=%q", a, b)
	}
	if a == b {
		t.Fatalf("expected two calls to New to produce distinct identifiers, both were %q", a)
	}
}

func TestNewIsFilesystemSafe(t *testing.T) {
	id := uuidgen.New()
	for _, r := range id {
		if r == '/' || r == '\\' || r == 0 {
			t.Fatalf("got identifier %q containing an unsafe rune %q", id, r)
		}
	}
}
