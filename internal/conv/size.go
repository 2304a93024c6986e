package conv

import (
	"errors"
	"fmt"
	"math"
)

// ErrOverflow reports a size that does not fit int64.
var ErrOverflow = errors.New("integer overflow")

// Uint64ToInt64 converts v, failing when it exceeds math.MaxInt64.
func Uint64ToInt64(v uint64) (int64, error) {
	if v > math.MaxInt64 {
		return 0, fmt.Errorf("%w: %d exceeds int64", ErrOverflow, v)
	}
	return int64(v), nil
}

// MulInt64 multiplies non-negative operands, failing on overflow.
func MulInt64(a, b int64) (int64, error) {
	if a < 0 || b < 0 {
		return 0, fmt.Errorf("%w: %d * %d has a negative operand", ErrOverflow, a, b)
	}
	if a != 0 && b > math.MaxInt64/a {
		return 0, fmt.Errorf("%w: %d * %d", ErrOverflow, a, b)
	}
	return a * b, nil
}

// BodySize returns the byte size of a rows×cols float32 matrix.
func BodySize(rows, cols uint64) (int64, error) {
	r, err := Uint64ToInt64(rows)
	if err != nil {
		return 0, err
	}
	c, err := Uint64ToInt64(cols)
	if err != nil {
		return 0, err
	}
	cells, err := MulInt64(r, c)
	if err != nil {
		return 0, err
	}
	return MulInt64(cells, 4)
}
