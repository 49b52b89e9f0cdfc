// Package file provides an *os.File-backed virtmem.BackingStore, for
// persisting the virtual pool to a plain file (e.g. on an SD card).
package file

import (
	"fmt"
	"os"

	"virtmem"
)

// Store backs a virtual pool with a single regular file, addressed via
// ReadAt/WriteAt so callers may interleave arbitrary offsets without
// tracking a shared file cursor.
type Store struct {
	path     string
	size     virtmem.VPtrSize
	f        *os.File
	preserve bool // keep existing file contents across Start, instead of truncating
}

// New returns a Store that will create (or truncate) path to size bytes on
// Start.
func New(path string, size virtmem.VPtrSize) *Store {
	return &Store{path: path, size: size}
}

// Open returns a Store that preserves path's existing contents across
// Start, for resuming from a previous session's pool.
func Open(path string, size virtmem.VPtrSize) *Store {
	return &Store{path: path, size: size, preserve: true}
}

func (s *Store) Start() error {
	flags := os.O_RDWR | os.O_CREATE
	if !s.preserve {
		flags |= os.O_TRUNC
	}
	f, err := os.OpenFile(s.path, flags, 0o600)
	if err != nil {
		return fmt.Errorf("file: open %s: %w", s.path, err)
	}
	if err := f.Truncate(int64(s.size)); err != nil {
		f.Close()
		return fmt.Errorf("file: truncate %s to %d: %w", s.path, s.size, err)
	}
	s.f = f
	return nil
}

func (s *Store) Stop() error {
	if s.f == nil {
		return nil
	}
	err := s.f.Close()
	s.f = nil
	return err
}

func (s *Store) Capacity() virtmem.VPtrSize {
	return s.size
}

func (s *Store) Read(dst []byte, offset, n virtmem.VPtrSize) error {
	if uint64(offset)+uint64(n) > uint64(s.size) {
		return fmt.Errorf("file: read [%d, %d) out of range (capacity %d)", offset, uint64(offset)+uint64(n), s.size)
	}
	_, err := s.f.ReadAt(dst[:n], int64(offset))
	return err
}

func (s *Store) Write(src []byte, offset, n virtmem.VPtrSize) error {
	if uint64(offset)+uint64(n) > uint64(s.size) {
		return fmt.Errorf("file: write [%d, %d) out of range (capacity %d)", offset, uint64(offset)+uint64(n), s.size)
	}
	_, err := s.f.WriteAt(src[:n], int64(offset))
	return err
}
