// Package mmap provides read-only memory-mapped file access to sealed
// segment files.
//
// Segments are immutable once sealed, so a mapping never needs to observe
// writes: Open maps a file read-only and exposes its bytes directly as
// Data (also via Bytes). The segment reader slices weights out of the
// mapping; row ids are decoded into separate slices.
//
//	m, err := mmap.Open("segment-0001.idx")
//	if err != nil { ... }
//	defer m.Close()
//	header := m.Data[:headerSize]
//
// Close is idempotent; callers must not use Data after Close returns.
package mmap
