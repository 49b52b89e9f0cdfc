package virtmem

import (
	"testing"
)

// bigPagingConfig leaves only the big class able to page working-set data,
// with few enough frames that allocating more distinct blocks than frames
// forces eviction and exercises pullRawData's victim selection.
func bigPagingConfig() Config {
	return Config{
		PoolSize: 32 * 1024,
		Big:      PageClassConfig{FrameSize: 512, FrameCount: 2},
	}
}

// Property P1/P5 (scaled): writing to more distinct big-class regions than
// there are frames forces eviction; every region must still read back
// correctly afterward regardless of eviction order.
func TestPageCacheEvictionPreservesData(t *testing.T) {
	a := newTestAllocator(t, bigPagingConfig())

	const regions = 5
	ptrs := make([]VAddr, regions)
	want := make([][]byte, regions)

	for r := 0; r < regions; r++ {
		p, err := a.AllocRaw(400)
		if err != nil {
			t.Fatalf("AllocRaw region %d: %v", r, err)
		}
		ptrs[r] = p

		buf := make([]byte, 400)
		for i := range buf {
			buf[i] = byte((r*31 + i) & 0xFF)
		}
		if err := a.Write(p, buf, 400); err != nil {
			t.Fatalf("Write region %d: %v", r, err)
		}
		want[r] = buf
	}

	for r := 0; r < regions; r++ {
		got, err := a.Read(ptrs[r], 400)
		if err != nil {
			t.Fatalf("Read region %d: %v", r, err)
		}
		if !bytesEqual(got, want[r]) {
			t.Fatalf("region %d mismatch after eviction churn", r)
		}
	}
}

func TestGetFreeBigPages(t *testing.T) {
	a := newTestAllocator(t, bigPagingConfig())

	free0 := a.GetFreeBigPages()
	if free0 != 2 {
		t.Fatalf("expected 2 free big pages initially, got %d", free0)
	}

	ptr, err := a.AllocRaw(300)
	if err != nil {
		t.Fatalf("AllocRaw: %v", err)
	}
	if _, err := a.MakeDataLock(ptr, 300, true); err != nil {
		t.Fatalf("MakeDataLock: %v", err)
	}

	free1 := a.GetFreeBigPages()
	if free1 != 1 {
		t.Fatalf("expected 1 free big page after locking one, got %d", free1)
	}

	if err := a.ReleaseLock(ptr); err != nil {
		t.Fatalf("ReleaseLock: %v", err)
	}
}

func TestGetUnlockedPages(t *testing.T) {
	cfg := smallConfig()
	a := newTestAllocator(t, cfg)

	if got := a.GetUnlockedPages(ClassSmall); got != cfg.Small.FrameCount {
		t.Fatalf("expected %d unlocked small pages, got %d", cfg.Small.FrameCount, got)
	}

	ptr, err := a.AllocRaw(16)
	if err != nil {
		t.Fatalf("AllocRaw: %v", err)
	}
	if _, err := a.MakeDataLock(ptr, 16, true); err != nil {
		t.Fatalf("MakeDataLock: %v", err)
	}

	if got := a.GetUnlockedPages(ClassSmall); got != cfg.Small.FrameCount-1 {
		t.Fatalf("expected %d unlocked small pages after lock, got %d", cfg.Small.FrameCount-1, got)
	}
}
