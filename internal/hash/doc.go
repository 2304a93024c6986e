// Package hash provides the CRC32-Castagnoli checksums of the table format.
//
// Superblocks, directories and data bodies each carry a CRC32C. Data bodies
// are checksummed in chunks with UpdateCRC32C while writing and streamed
// through ReadCRC32C when verified.
package hash
