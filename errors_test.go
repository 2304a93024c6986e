package rowtable

import (
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrors(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		sentinel error
		msg      string
	}{
		{"Schema", &SchemaError{Field: "rows", Reason: "empty name"}, ErrSchema, "schema error: rows: empty name"},
		{"SchemaWithName", &SchemaError{Field: "columns", Name: "a", Reason: "duplicate name"}, ErrSchema, `schema error: columns: duplicate name "a"`},
		{"Shape", &ShapeError{Expected: 2, Actual: 3}, ErrShape, "shape mismatch: expected 2 values, got 3"},
		{"Index", &IndexError{Index: 3, Len: 3}, ErrIndex, "row position 3 out of range [0, 3)"},
		{"Key", &KeyError{Name: "row9"}, ErrKey, `unknown row name "row9"`},
		{"NotFound", notFound("t.rtb", "g", "no such group", nil), ErrNotFound, `table "g" in t.rtb not found: no such group`},
		{"IO", ioError("write row", "t.rtb", io.ErrShortWrite), ErrIO, "write row t.rtb: short write"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.err, tt.sentinel)
			assert.EqualError(t, tt.err, tt.msg)

			for _, other := range []error{ErrSchema, ErrShape, ErrIndex, ErrKey, ErrNotFound, ErrIO} {
				if other != tt.sentinel {
					assert.NotErrorIs(t, tt.err, other)
				}
			}
		})
	}
}

func TestErrorsUnwrap(t *testing.T) {
	cause := errors.New("disk on fire")

	err := ioError("sync", "t.rtb", cause)
	assert.ErrorIs(t, err, cause)

	var ioErr *IOError
	assert.ErrorAs(t, err, &ioErr)
	assert.Equal(t, "sync", ioErr.Op)

	err = notFound("t.rtb", "g", "not a table file", cause)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "disk on fire")

	assert.NoError(t, ioError("close", "t.rtb", nil))
}
