package key

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseName splits a key name of the form "<namespace>:/<segment>(/<segment>)*"
// or a cascading name "/<segment>..." into a namespace and its unescaped
// path segments. A segment may contain an escaped "/" (written "\/") or an
// escaped "\" (written "\\").
func ParseName(name string) (Namespace, []string, error) {
	if name == "" {
		return "", nil, fmt.Errorf("key name must not be empty")
	}

	if strings.HasPrefix(name, "/") {
		segs, err := splitSegments(name[1:])
		if err != nil {
			return "", nil, err
		}
		return Cascading, segs, nil
	}

	idx := strings.Index(name, ":/")
	if idx < 0 {
		return "", nil, fmt.Errorf("malformed key name %q: missing namespace separator", name)
	}

	ns := Namespace(name[:idx])
	if !ns.valid() {
		return "", nil, fmt.Errorf("malformed key name %q: unknown namespace %q", name, name[:idx])
	}

	segs, err := splitSegments(name[idx+2:])
	if err != nil {
		return "", nil, err
	}

	return ns, segs, nil
}

// splitSegments splits a "/"-delimited path, honoring "\/" and "\\" escapes,
// and drops empty segments produced by a trailing slash.
func splitSegments(path string) ([]string, error) {
	if path == "" {
		return nil, nil
	}

	var segs []string
	var cur strings.Builder

	escaped := false
	for i := 0; i < len(path); i++ {
		c := path[i]

		if escaped {
			if c != '/' && c != '\\' {
				return nil, fmt.Errorf("malformed escape sequence in %q", path)
			}
			cur.WriteByte(c)
			escaped = false
			continue
		}

		switch c {
		case '\\':
			escaped = true
		case '/':
			segs = append(segs, cur.String())
			cur.Reset()
		default:
			cur.WriteByte(c)
		}
	}

	if escaped {
		return nil, fmt.Errorf("malformed key name %q: trailing escape", path)
	}

	if cur.Len() > 0 {
		segs = append(segs, cur.String())
	}

	return segs, nil
}

// escapeSegment re-escapes "/" and "\" for rendering a name.
func escapeSegment(seg string) string {
	var b strings.Builder
	for i := 0; i < len(seg); i++ {
		c := seg[i]
		if c == '/' || c == '\\' {
			b.WriteByte('\\')
		}
		b.WriteByte(c)
	}
	return b.String()
}

// JoinName renders a namespace and segments back into canonical name form.
func JoinName(ns Namespace, segs []string) string {
	var b strings.Builder

	if ns == Cascading {
		b.WriteByte('/')
	} else {
		b.WriteString(string(ns))
		b.WriteString(":/")
	}

	for i, s := range segs {
		if i > 0 {
			b.WriteByte('/')
		}
		b.WriteString(escapeSegment(s))
	}

	return b.String()
}

// ArrayIndex renders n as an Elektra array index segment ("#0", "#_10",
// "#__100", ...). The number of leading underscores encodes how many
// digits the number has beyond one, so that lexicographic order on the
// rendered strings matches numeric order on n.
func ArrayIndex(n int) string {
	if n < 0 {
		panic("key: array index must not be negative")
	}

	digits := len(strconv.Itoa(n))

	return "#" + strings.Repeat("_", digits-1) + strconv.Itoa(n)
}

// ParseArrayIndex parses a segment produced by ArrayIndex. It returns
// false if seg is not a well-formed array index.
func ParseArrayIndex(seg string) (int, bool) {
	if len(seg) < 2 || seg[0] != '#' {
		return 0, false
	}

	rest := seg[1:]
	underscores := 0
	for underscores < len(rest) && rest[underscores] == '_' {
		underscores++
	}

	digits := rest[underscores:]
	if len(digits) != underscores+1 || digits == "" {
		return 0, false
	}

	n, err := strconv.Atoi(digits)
	if err != nil || n < 0 {
		return 0, false
	}

	if ArrayIndex(n) != seg {
		return 0, false
	}

	return n, true
}

// compareSegments compares two segment slices component by component. A
// name that is a strict prefix of another sorts before it, matching the
// hierarchical ordering the pipeline relies on when selecting subtrees.
func compareSegments(a, b []string) int {
	for i := 0; i < len(a) && i < len(b); i++ {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}

	switch {
	case len(a) < len(b):
		return -1
	case len(a) > len(b):
		return 1
	default:
		return 0
	}
}
