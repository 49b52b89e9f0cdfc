package mmap

import (
	"path/filepath"
	"testing"

	"virtmem"
)

func TestStartWriteReadStop(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pool.bin")

	s := New(path, 4096)
	if err := s.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	want := []byte("mapped virtual pool contents")
	n := virtmem.VPtrSize(len(want))
	if err := s.Write(want, 100, n); err != nil {
		t.Fatalf("Write: %v", err)
	}

	got := make([]byte, len(want))
	if err := s.Read(got, 100, n); err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(got) != string(want) {
		t.Fatalf("got %q want %q", got, want)
	}

	if err := s.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if err := s.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
}

func TestContentsSurviveRestart(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pool.bin")

	s := New(path, 4096)
	if err := s.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	want := []byte("durable across remap")
	n := virtmem.VPtrSize(len(want))
	if err := s.Write(want, 0, n); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := s.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	s2 := New(path, 4096)
	if err := s2.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer s2.Stop()

	got := make([]byte, len(want))
	if err := s2.Read(got, 0, n); err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(got) != string(want) {
		t.Fatalf("got %q want %q", got, want)
	}
}
