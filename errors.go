package rowtable

import (
	"errors"
	"fmt"
)

var (
	// ErrSchema matches every *SchemaError.
	ErrSchema = errors.New("invalid schema")
	// ErrShape matches every *ShapeError.
	ErrShape = errors.New("shape mismatch")
	// ErrIndex matches every *IndexError.
	ErrIndex = errors.New("row position out of range")
	// ErrKey matches every *KeyError.
	ErrKey = errors.New("unknown row name")
	// ErrNotFound matches every *NotFoundError.
	ErrNotFound = errors.New("table not found")
	// ErrIO matches every *IOError.
	ErrIO = errors.New("storage failure")
	// ErrClosed is returned when a closed Writer or Reader is used.
	ErrClosed = errors.New("rowtable: use of closed table")
)

// SchemaError reports an invalid table declaration: an empty row or column
// list, an empty or duplicate name, or an empty group name.
type SchemaError struct {
	// Field is "group", "rows" or "columns".
	Field string
	// Name is the offending name, if any.
	Name   string
	Reason string
}

func (e *SchemaError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("schema error: %s: %s %q", e.Field, e.Reason, e.Name)
	}
	return fmt.Sprintf("schema error: %s: %s", e.Field, e.Reason)
}

func (e *SchemaError) Is(target error) bool { return target == ErrSchema }

// ShapeError reports a row whose value count differs from the column count.
type ShapeError struct {
	Expected int
	Actual   int
}

func (e *ShapeError) Error() string {
	return fmt.Sprintf("shape mismatch: expected %d values, got %d", e.Expected, e.Actual)
}

func (e *ShapeError) Is(target error) bool { return target == ErrShape }

// IndexError reports a row position outside [0, Len).
type IndexError struct {
	Index int
	Len   int
}

func (e *IndexError) Error() string {
	return fmt.Sprintf("row position %d out of range [0, %d)", e.Index, e.Len)
}

func (e *IndexError) Is(target error) bool { return target == ErrIndex }

// KeyError reports a row name missing from the row index.
type KeyError struct {
	Name string
}

func (e *KeyError) Error() string {
	return fmt.Sprintf("unknown row name %q", e.Name)
}

func (e *KeyError) Is(target error) bool { return target == ErrKey }

// NotFoundError reports a missing file, a missing group, or a group that
// was never finalized.
//
// The original underlying error (if any) can be accessed via errors.Unwrap.
type NotFoundError struct {
	Path   string
	Group  string
	Reason string
	cause  error
}

func (e *NotFoundError) Error() string {
	msg := fmt.Sprintf("table %q in %s not found: %s", e.Group, e.Path, e.Reason)
	if e.cause != nil {
		msg += ": " + e.cause.Error()
	}
	return msg
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

func (e *NotFoundError) Unwrap() error { return e.cause }

// IOError reports a failure of the underlying storage.
//
// The original underlying error can be accessed via errors.Unwrap.
type IOError struct {
	Op    string
	Path  string
	cause error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.cause)
}

func (e *IOError) Is(target error) bool { return target == ErrIO }

func (e *IOError) Unwrap() error { return e.cause }

func ioError(op, path string, err error) error {
	if err == nil {
		return nil
	}
	return &IOError{Op: op, Path: path, cause: err}
}

func notFound(path, group, reason string, cause error) error {
	return &NotFoundError{Path: path, Group: group, Reason: reason, cause: cause}
}
