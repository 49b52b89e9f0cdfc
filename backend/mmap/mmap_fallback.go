//go:build !unix

package mmap

import (
	"fmt"
	"os"
)

// Start on non-unix platforms reads the whole file into a plain buffer
// instead of mapping it; Stop writes it back. There is no true kernel-level
// mapping here, only the same BackingStore surface.
func (s *Store) Start() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("mmap: read %s: %w", s.path, err)
		}
		data = nil
	}
	if int64(len(data)) < int64(s.size) {
		grown := make([]byte, s.size)
		copy(grown, data)
		data = grown
	}
	s.data = data[:s.size]
	return nil
}

func (s *Store) Stop() error {
	if s.data == nil {
		return nil
	}
	err := os.WriteFile(s.path, s.data, 0o600)
	s.data = nil
	if err != nil {
		return fmt.Errorf("mmap: write %s: %w", s.path, err)
	}
	return nil
}

// Flush writes the current buffer contents back to disk.
func (s *Store) Flush() error {
	if s.data == nil {
		return nil
	}
	return os.WriteFile(s.path, s.data, 0o600)
}
