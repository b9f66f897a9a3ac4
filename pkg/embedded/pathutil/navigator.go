// Package pathutil resolves slash-delimited paths against JSON value trees.
//
// Path syntax:
//   - "" and "/" address the whole document
//   - "/field/0/name" walks object keys and array indices
//   - "~1" and "~0" inside a segment stand for "/" and "~"
//
// Resolution never fails: a missing key, an out-of-range index or a type
// mismatch yields Absent.
package pathutil

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/wehubfusion/keygen/pkg/jsonvalue"
)

// Segment is one step of a Path. Key is always set; Index is valid when
// IsIndex reports true.
type Segment struct {
	Key     string
	Index   int
	IsIndex bool
}

// Path is a parsed path expression.
type Path struct {
	raw      string
	segments []Segment
}

// ParsePath parses a slash-delimited path. The leading slash is optional.
func ParsePath(raw string) (Path, error) {
	trimmed := strings.TrimPrefix(raw, "/")
	if trimmed == "" {
		return Path{raw: raw}, nil
	}

	parts := strings.Split(trimmed, "/")
	segments := make([]Segment, 0, len(parts))
	for i, part := range parts {
		key, err := unescapeSegment(part)
		if err != nil {
			return Path{}, fmt.Errorf("path %q segment %d: %w", raw, i, err)
		}
		seg := Segment{Key: key}
		if idx, ok := arrayIndex(key); ok {
			seg.Index = idx
			seg.IsIndex = true
		}
		segments = append(segments, seg)
	}
	return Path{raw: raw, segments: segments}, nil
}

// MustParsePath is like ParsePath but panics on error.
func MustParsePath(raw string) Path {
	p, err := ParsePath(raw)
	if err != nil {
		panic(err)
	}
	return p
}

// String returns the path as it was configured.
func (p Path) String() string { return p.raw }

// Segments returns the parsed segments. The root path has none.
func (p Path) Segments() []Segment { return p.segments }

// IsRoot reports whether p addresses the whole document.
func (p Path) IsRoot() bool { return len(p.segments) == 0 }

// Resolved is the outcome of resolving a Path: a value, or Absent.
type Resolved struct {
	Value jsonvalue.Value
	Found bool
}

// Absent is the result of a path that matched nothing.
func Absent() Resolved { return Resolved{} }

// Resolve walks path through doc.
func Resolve(doc jsonvalue.Value, path Path) Resolved {
	current := doc
	for _, seg := range path.segments {
		var (
			next jsonvalue.Value
			ok   bool
		)
		switch current.Kind() {
		case jsonvalue.KindObject:
			next, ok = current.Field(seg.Key)
		case jsonvalue.KindArray:
			if seg.IsIndex {
				next, ok = current.Index(seg.Index)
			}
		}
		if !ok {
			return Absent()
		}
		current = next
	}
	return Resolved{Value: current, Found: true}
}

func unescapeSegment(part string) (string, error) {
	if !strings.Contains(part, "~") {
		return part, nil
	}
	var b strings.Builder
	for i := 0; i < len(part); i++ {
		if part[i] != '~' {
			b.WriteByte(part[i])
			continue
		}
		if i+1 >= len(part) {
			return "", fmt.Errorf("dangling escape")
		}
		i++
		switch part[i] {
		case '0':
			b.WriteByte('~')
		case '1':
			b.WriteByte('/')
		default:
			return "", fmt.Errorf("invalid escape ~%c", part[i])
		}
	}
	return b.String(), nil
}

// arrayIndex accepts canonical non-negative integers only: "0", "7", "12".
func arrayIndex(s string) (int, bool) {
	if s == "" || (len(s) > 1 && s[0] == '0') {
		return 0, false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return 0, false
		}
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}
	return n, true
}
