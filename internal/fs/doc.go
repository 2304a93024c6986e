// Package fs provides the file-system seam used by table writers.
//
// The package defines two key interfaces:
//
//   - [File]: an open table file supporting positioned reads and writes
//   - [FileSystem]: open, stat, mkdir and remove operations
//
// # Implementations
//
//   - [LocalFS]: production implementation using the os package
//   - [FaultyFS]: test utility that injects positioned-write, sync and close failures
//
// Production code uses fs.Default. Tests inject [FaultyFS] to simulate a
// failing disk:
//
//	ffs := fs.NewFaultyFS(nil)
//	ffs.AddRule("table.rtb", fs.Fault{FailAfterBytes: 4096})
//
// Operations take no context.Context. Local positioned I/O cannot be
// interrupted at the syscall level; remote storage goes through blobstore.
package fs
