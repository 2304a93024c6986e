package rowtable

import (
	"math"
	"slices"
	"unicode/utf8"
)

// nameIndex resolves row names to positions in O(1).
type nameIndex struct {
	names []string
	pos   map[string]int
}

// newNameIndex validates names and builds the lookup table. field names the
// list in a SchemaError.
func newNameIndex(field string, names []string) (*nameIndex, error) {
	if len(names) == 0 {
		return nil, &SchemaError{Field: field, Reason: "must not be empty"}
	}
	if uint64(len(names)) > math.MaxUint32 {
		return nil, &SchemaError{Field: field, Reason: "too many names"}
	}
	pos := make(map[string]int, len(names))
	for i, n := range names {
		if n == "" {
			return nil, &SchemaError{Field: field, Reason: "empty name"}
		}
		if !utf8.ValidString(n) {
			return nil, &SchemaError{Field: field, Name: n, Reason: "name is not valid UTF-8"}
		}
		if _, dup := pos[n]; dup {
			return nil, &SchemaError{Field: field, Name: n, Reason: "duplicate name"}
		}
		pos[n] = i
	}
	return &nameIndex{names: slices.Clone(names), pos: pos}, nil
}

func (x *nameIndex) len() int { return len(x.names) }

func (x *nameIndex) lookup(name string) (int, bool) {
	i, ok := x.pos[name]
	return i, ok
}

// list returns a copy of the ordered names.
func (x *nameIndex) list() []string {
	return slices.Clone(x.names)
}
