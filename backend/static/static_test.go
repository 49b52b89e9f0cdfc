package static

import (
	"testing"

	"virtmem"
)

func TestReadWriteRoundTrip(t *testing.T) {
	s := New(64)

	if err := s.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer s.Stop()

	want := []byte("hello, virtual memory")
	n := virtmem.VPtrSize(len(want))
	if err := s.Write(want, 10, n); err != nil {
		t.Fatalf("Write: %v", err)
	}

	got := make([]byte, len(want))
	if err := s.Read(got, 10, n); err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(got) != string(want) {
		t.Fatalf("got %q want %q", got, want)
	}
}

func TestCapacity(t *testing.T) {
	s := New(128)
	if s.Capacity() != 128 {
		t.Fatalf("expected capacity 128, got %d", s.Capacity())
	}
}

func TestOutOfRangeRejected(t *testing.T) {
	s := New(16)
	buf := make([]byte, 8)
	if err := s.Read(buf, 12, 8); err == nil {
		t.Fatalf("expected out-of-range read to fail")
	}
	if err := s.Write(buf, 12, 8); err == nil {
		t.Fatalf("expected out-of-range write to fail")
	}
}
