// Package snapshot dumps every storage slot to a single file and loads it
// back. Memory-backed deployments start from the newest snapshot and replay
// the command log after it; durable ones use snapshots as backups.
//
// A snapshot is written to a temporary file through an mmap'd region and
// renamed into place, so a reader only ever sees complete files. A blake3
// footer over the rest of the file catches corruption.
package snapshot
