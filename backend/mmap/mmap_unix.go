//go:build unix

package mmap

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

func (s *Store) Start() error {
	f, err := os.OpenFile(s.path, os.O_RDWR|os.O_CREATE, 0o600)
	if err != nil {
		return fmt.Errorf("mmap: open %s: %w", s.path, err)
	}
	defer f.Close()

	if err := f.Truncate(int64(s.size)); err != nil {
		return fmt.Errorf("mmap: truncate %s to %d: %w", s.path, s.size, err)
	}

	data, err := unix.Mmap(int(f.Fd()), 0, int(s.size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return fmt.Errorf("mmap: mmap %s: %w", s.path, err)
	}
	s.data = data
	return nil
}

func (s *Store) Stop() error {
	if s.data == nil {
		return nil
	}
	if err := unix.Msync(s.data, unix.MS_SYNC); err != nil {
		return fmt.Errorf("mmap: msync: %w", err)
	}
	err := unix.Munmap(s.data)
	s.data = nil
	if err != nil {
		return fmt.Errorf("mmap: munmap: %w", err)
	}
	return nil
}

// Flush synchronizes the mapped pool to disk without unmapping it.
func (s *Store) Flush() error {
	if s.data == nil {
		return nil
	}
	return unix.Msync(s.data, unix.MS_SYNC)
}
