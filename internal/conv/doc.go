// Package conv provides checked integer conversions.
//
// Table headers store counts and offsets as fixed-width unsigned integers,
// while Go code indexes with int. Everything read from disk goes through
// these helpers so a corrupt header becomes an error instead of a panic.
package conv
