// Package mmap provides a memory-mapped virtmem.BackingStore. On unix
// platforms the pool is a real read-write mmap of a file, flushed via
// unix.Msync; elsewhere it falls back to a whole-file read/write
// buffer with no actual kernel-level mapping (see mmap_fallback.go).
package mmap

import (
	"fmt"

	"virtmem"
)

// Store backs a virtual pool with a memory-mapped file.
type Store struct {
	path string
	size virtmem.VPtrSize
	data []byte
}

// New returns a Store that will map path, creating/truncating it to size
// bytes, on Start.
func New(path string, size virtmem.VPtrSize) *Store {
	return &Store{path: path, size: size}
}

func (s *Store) Capacity() virtmem.VPtrSize {
	return s.size
}

func (s *Store) Read(dst []byte, offset, n virtmem.VPtrSize) error {
	if uint64(offset)+uint64(n) > uint64(len(s.data)) {
		return fmt.Errorf("mmap: read [%d, %d) out of range (capacity %d)", offset, uint64(offset)+uint64(n), len(s.data))
	}
	copy(dst[:n], s.data[offset:offset+n])
	return nil
}

func (s *Store) Write(src []byte, offset, n virtmem.VPtrSize) error {
	if uint64(offset)+uint64(n) > uint64(len(s.data)) {
		return fmt.Errorf("mmap: write [%d, %d) out of range (capacity %d)", offset, uint64(offset)+uint64(n), len(s.data))
	}
	copy(s.data[offset:offset+n], src[:n])
	return nil
}
