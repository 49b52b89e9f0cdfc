package virtmem

import (
	"fmt"
	"testing"
)

// testStore is an in-RAM BackingStore used only by this package's tests.
// It mirrors virtmem/backend/static.Store, but lives here (instead of
// importing that package) to avoid an import cycle: backend/static
// imports virtmem, and this file is part of package virtmem's test binary.
type testStore struct {
	buf []byte
}

func newTestStore(size VPtrSize) *testStore {
	return &testStore{buf: make([]byte, size)}
}

func (s *testStore) Start() error { return nil }
func (s *testStore) Stop() error  { return nil }

func (s *testStore) Capacity() VPtrSize {
	return VPtrSize(len(s.buf))
}

func (s *testStore) Read(dst []byte, offset, n VPtrSize) error {
	if uint64(offset)+uint64(n) > uint64(len(s.buf)) {
		return fmt.Errorf("teststore: read [%d, %d) out of range (capacity %d)", offset, uint64(offset)+uint64(n), len(s.buf))
	}
	copy(dst[:n], s.buf[offset:offset+n])
	return nil
}

func (s *testStore) Write(src []byte, offset, n VPtrSize) error {
	if uint64(offset)+uint64(n) > uint64(len(s.buf)) {
		return fmt.Errorf("teststore: write [%d, %d) out of range (capacity %d)", offset, uint64(offset)+uint64(n), len(s.buf))
	}
	copy(s.buf[offset:offset+n], src[:n])
	return nil
}

func newTestAllocator(t *testing.T, cfg Config) *Allocator {
	t.Helper()
	store := newTestStore(cfg.PoolSize)
	a, err := New(cfg, store)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := a.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() { a.Stop() })
	return a
}

func smallConfig() Config {
	return Config{
		PoolSize: 64 * 1024,
		Small:    PageClassConfig{FrameSize: 32, FrameCount: 4},
		Medium:   PageClassConfig{FrameSize: 128, FrameCount: 4},
		Big:      PageClassConfig{FrameSize: 1024, FrameCount: 4},
	}
}

// Scenario 5: first-allocation initialization.
func TestAllocRawFirstAllocation(t *testing.T) {
	a := newTestAllocator(t, smallConfig())

	p1, err := a.AllocRaw(16)
	if err != nil {
		t.Fatalf("AllocRaw: %v", err)
	}
	if p1 == 0 {
		t.Fatalf("AllocRaw returned null address")
	}

	if err := a.FreeRaw(p1); err != nil {
		t.Fatalf("FreeRaw: %v", err)
	}

	p2, err := a.AllocRaw(16)
	if err != nil {
		t.Fatalf("AllocRaw: %v", err)
	}
	if p2 != p1 {
		t.Fatalf("expected reused address %d, got %d", p1, p2)
	}
}

// Property P4: freeRaw followed by allocRaw of an equal-or-smaller size
// succeeds by reusing the freed block.
func TestFreeThenAllocReusesBlock(t *testing.T) {
	a := newTestAllocator(t, smallConfig())

	p, err := a.AllocRaw(200)
	if err != nil {
		t.Fatalf("AllocRaw: %v", err)
	}
	if err := a.FreeRaw(p); err != nil {
		t.Fatalf("FreeRaw: %v", err)
	}

	p2, err := a.AllocRaw(100)
	if err != nil {
		t.Fatalf("AllocRaw: %v", err)
	}
	if p2 != p {
		t.Fatalf("expected reuse of freed block at %d, got %d", p, p2)
	}
}

// Scenario 2: fragmentation-free coalesce. Allocating and freeing three
// equally sized blocks out of order must leave the pool coalesced back into
// a single free node spanning all three (plus whatever followed them).
func TestCoalesceAdjacentFrees(t *testing.T) {
	a := newTestAllocator(t, smallConfig())

	pa, err := a.AllocRaw(256)
	if err != nil {
		t.Fatalf("AllocRaw A: %v", err)
	}
	pb, err := a.AllocRaw(256)
	if err != nil {
		t.Fatalf("AllocRaw B: %v", err)
	}
	pc, err := a.AllocRaw(256)
	if err != nil {
		t.Fatalf("AllocRaw C: %v", err)
	}

	if err := a.FreeRaw(pb); err != nil {
		t.Fatalf("FreeRaw B: %v", err)
	}
	if err := a.FreeRaw(pa); err != nil {
		t.Fatalf("FreeRaw A: %v", err)
	}
	if err := a.FreeRaw(pc); err != nil {
		t.Fatalf("FreeRaw C: %v", err)
	}

	// A single large allocation spanning all three freed blocks' combined
	// capacity should now succeed without growing the pool.
	before := a.poolFreePos
	p, err := a.AllocRaw(700)
	if err != nil {
		t.Fatalf("AllocRaw combined: %v", err)
	}
	if p == 0 {
		t.Fatalf("expected non-null address from coalesced free space")
	}
	if a.poolFreePos != before {
		t.Fatalf("expected coalesced free space to satisfy allocation without growing pool, poolFreePos moved from %d to %d", before, a.poolFreePos)
	}
}

// Property P2 (scaled): write then read back bytes for an allocation, with
// unrelated allocations interleaved, using chunks no larger than the big
// frame size (multi-frame single calls are a caller responsibility, not
// handled internally by read/write).
func TestAllocWriteReadRoundTrip(t *testing.T) {
	cfg := smallConfig()
	a := newTestAllocator(t, cfg)

	const blockSize = VPtrSize(20 * 1024)
	ptr, err := a.AllocRaw(blockSize)
	if err != nil {
		t.Fatalf("AllocRaw: %v", err)
	}

	// An unrelated allocation to perturb the free list / page cache.
	other, err := a.AllocRaw(64)
	if err != nil {
		t.Fatalf("AllocRaw other: %v", err)
	}
	defer a.FreeRaw(other)

	chunk := VPtrSize(cfg.Big.FrameSize)
	for off := VPtrSize(0); off < blockSize; off += chunk {
		n := minVPS(chunk, blockSize-off)
		buf := make([]byte, n)
		for i := range buf {
			buf[i] = byte((VPtrSize(i) + off) & 0xFF)
		}
		if err := a.Write(ptr+VAddr(off), buf, n); err != nil {
			t.Fatalf("Write at offset %d: %v", off, err)
		}
	}

	for off := VPtrSize(0); off < blockSize; off += chunk {
		n := minVPS(chunk, blockSize-off)
		got, err := a.Read(ptr+VAddr(off), n)
		if err != nil {
			t.Fatalf("Read at offset %d: %v", off, err)
		}
		for i := VPtrSize(0); i < n; i++ {
			want := byte((i + off) & 0xFF)
			if got[i] != want {
				t.Fatalf("byte mismatch at offset %d: got %#x want %#x", off+i, got[i], want)
			}
		}
	}
}

// Scenario 6: round trip across flush/clearPages, verifying the backing
// store (not the RAM cache) actually holds the last-written bytes.
func TestFlushClearPagesRoundTrip(t *testing.T) {
	a := newTestAllocator(t, smallConfig())

	ptr, err := a.AllocRaw(512)
	if err != nil {
		t.Fatalf("AllocRaw: %v", err)
	}

	pattern := make([]byte, 512)
	for i := range pattern {
		pattern[i] = byte(i)
	}
	if err := a.Write(ptr, pattern, 512); err != nil {
		t.Fatalf("Write: %v", err)
	}

	if err := a.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if err := a.ClearPages(); err != nil {
		t.Fatalf("ClearPages: %v", err)
	}

	got, err := a.Read(ptr, 512)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	for i := range pattern {
		if got[i] != pattern[i] {
			t.Fatalf("byte %d mismatch after clearPages: got %#x want %#x", i, got[i], pattern[i])
		}
	}
}

func TestConfigValidate(t *testing.T) {
	cases := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"zero pool size", Config{Big: PageClassConfig{FrameSize: 64, FrameCount: 1}}, true},
		{"zero big frame count", Config{PoolSize: 1024}, true},
		{"small bigger than medium", Config{
			PoolSize: 1024,
			Small:    PageClassConfig{FrameSize: 256, FrameCount: 1},
			Medium:   PageClassConfig{FrameSize: 128, FrameCount: 1},
			Big:      PageClassConfig{FrameSize: 512, FrameCount: 1},
		}, true},
		{"valid", Config{
			PoolSize: 1024,
			Big:      PageClassConfig{FrameSize: 64, FrameCount: 1},
		}, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.cfg.validate()
			if tc.wantErr && err == nil {
				t.Fatalf("expected error, got nil")
			}
			if !tc.wantErr && err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
		})
	}
}

func TestOperationsBeforeStartFail(t *testing.T) {
	store := newTestStore(4096)
	a, err := New(Config{
		PoolSize: 4096,
		Big:      PageClassConfig{FrameSize: 256, FrameCount: 2},
	}, store)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if _, err := a.AllocRaw(16); err == nil {
		t.Fatalf("expected error allocating before Start")
	}
}
