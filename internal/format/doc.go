// Package format defines the on-disk layout of a row-table file.
//
// # File Layout
//
//	+--------------------+  offset 0
//	| superblock slot A  |  64 bytes
//	+--------------------+  offset 64
//	| superblock slot B  |  64 bytes
//	+--------------------+  offset 128
//	| group regions      |  row names, columns, data body, written bitmap
//	| directory blobs    |  appended on every commit
//	+--------------------+
//
// A commit appends a new directory, syncs, then rewrites the superblock slot
// chosen by generation % 2 and syncs again. Readers take the valid slot with
// the highest generation, so a torn superblock write falls back to the
// previous commit instead of exposing half-written state.
//
// # Superblock (64 bytes, little-endian)
//
//	[0:4]   magic "RTB1"
//	[4:8]   version
//	[8:16]  generation
//	[16:24] directory offset
//	[24:32] directory length
//	[32:36] directory CRC32C
//	[36:60] reserved
//	[60:64] CRC32C of bytes [0:60]
//
// # Directory
//
// A uvarint entry count followed by one [GroupEntry] per group. Each entry
// records the group's state (open or finalized), shape, placeholder bits,
// compression type, the four sections of the group, and the CRC32C of the
// data body computed at finalization.
//
// # Sections
//
// Row names and columns are uvarint-counted lists of uvarint-length-prefixed
// UTF-8 strings, wrapped in an internal/compress block. The data body is a
// dense row-major float32 matrix (little-endian IEEE-754) aligned to 64 bytes.
// The written-row bitmap uses the roaring portable serialization.
package format
