package virtmem

import (
	"fmt"
	"io"

	"virtmem/logging"
)

// Allocator is the paging and allocation engine: a free-list allocator over
// a flat virtual pool, paged through a three-tier RAM page cache, backed by
// a BackingStore. It is not safe for concurrent use; exactly one goroutine
// must drive an Allocator at a time (see package doc).
type Allocator struct {
	cfg   Config
	store BackingStore

	small, medium, big pageInfo

	baseFreeList memHeader // RAM-resident anchor at BASE_INDEX, never stored
	freePointer  VAddr
	poolFreePos  VAddr

	nextPageToSwap int8

	stats Stats

	started bool
}

// New constructs an Allocator from cfg and store. It does not start the
// allocator; call Start before use.
func New(cfg Config, store BackingStore) (*Allocator, error) {
	if store == nil {
		return nil, fmt.Errorf("virtmem: store must not be nil")
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	full := cfg.withDefaults()

	a := &Allocator{
		cfg:   full,
		store: store,
	}
	a.small = newPageInfo(full.Small)
	a.medium = newPageInfo(full.Medium)
	a.big = newPageInfo(full.Big)
	return a, nil
}

// Start clears the free list, reinitializes every page chain, and starts
// the backing store. Any previously allocated virtual data is invalidated.
func (a *Allocator) Start() error {
	a.freePointer = 0
	a.nextPageToSwap = 0
	a.baseFreeList = memHeader{size: 0, next: 0}
	a.poolFreePos = VAddr(a.cfg.StartOffset) + VAddr(headerUnitSize)
	a.ResetStats()

	a.small.reset()
	a.medium.reset()
	a.big.reset()
	a.nextPageToSwap = a.big.freeIndex

	if err := a.store.Start(); err != nil {
		return wrapIOErr("Start", err)
	}
	a.started = true
	logging.Debug("virtmem: allocator started", "poolSize", a.cfg.PoolSize)
	return nil
}

// Stop releases the backing store. Restart with Start; any virtual data is
// considered invalidated across the restart.
func (a *Allocator) Stop() error {
	a.started = false
	if err := a.store.Stop(); err != nil {
		return wrapIOErr("Stop", err)
	}
	logging.Debug("virtmem: allocator stopped")
	return nil
}

func (a *Allocator) checkStarted(op string) error {
	if !a.started {
		return fmt.Errorf("%s: %w", op, ErrNotStarted)
	}
	return nil
}

// WriteZeros writes n bytes of zero starting at start directly to the
// backing store. It bypasses the page cache entirely and is meant to be
// called only while initializing a fresh pool, before Start's callers begin
// issuing ordinary reads and writes (mirroring the original's "only call
// this in doStart()" restriction).
func (a *Allocator) WriteZeros(start VAddr, n VPtrSize) error {
	if len(a.big.frames) == 0 {
		violate("WriteZeros", "no big frames configured")
	}
	buf := make([]byte, a.big.frameSize)
	for i := VPtrSize(0); i < n; i += VPtrSize(a.big.frameSize) {
		chunk := minVPS(n-i, VPtrSize(a.big.frameSize))
		if err := a.store.Write(buf[:chunk], VPtrSize(start)+i, chunk); err != nil {
			return wrapIOErr("WriteZeros", err)
		}
	}
	return nil
}

// Flush writes back every dirty big-class working-set frame. It never
// touches locked pages.
func (a *Allocator) Flush() error {
	if err := a.checkStarted("Flush"); err != nil {
		return err
	}
	return a.flush()
}

// ClearPages flushes and empties every big-class working-set frame.
func (a *Allocator) ClearPages() error {
	if err := a.checkStarted("ClearPages"); err != nil {
		return err
	}
	return a.clearPages()
}

// GetFreeBigPages returns the number of big frames that are neither in use
// nor locked.
func (a *Allocator) GetFreeBigPages() uint8 {
	return a.getFreeBigPages()
}

// PageClass identifies one of the three frame-size tiers.
type PageClass int

const (
	ClassSmall PageClass = iota
	ClassMedium
	ClassBig
)

func (a *Allocator) classInfo(c PageClass) *pageInfo {
	switch c {
	case ClassSmall:
		return &a.small
	case ClassMedium:
		return &a.medium
	default:
		return &a.big
	}
}

// GetUnlockedPages returns the number of frames in class c that are not
// currently pinned (the whole free chain, plus any reserved-but-unpinned
// entries on the locked chain).
func (a *Allocator) GetUnlockedPages(c PageClass) uint8 {
	return a.classInfo(c).countUnlockedPages()
}

// DebugDump writes a human-readable summary of the free list and page
// classes to w, in the spirit of the original's printStats debug helper.
func (a *Allocator) DebugDump(w io.Writer) {
	fmt.Fprintf(w, "------ virtmem allocator stats ------\n")
	fmt.Fprintf(w, "pool: freePos=%d (%d bytes left of %d)\n", a.poolFreePos, a.cfg.PoolSize-VPtrSize(a.poolFreePos), a.cfg.PoolSize)
	fmt.Fprintf(w, "free list (from freePointer=%d):\n", a.freePointer)
	if a.freePointer != 0 {
		start := a.freePointer
		p := start
		for {
			h, err := a.getHeader(p)
			if err != nil {
				fmt.Fprintf(w, "  <error reading header at %d: %v>\n", p, err)
				break
			}
			fmt.Fprintf(w, "  node %d: size=%d next=%d\n", p, h.size, h.next)
			p = h.next
			if p == start {
				break
			}
		}
	}
	fmt.Fprintf(w, "pages: small=%d/%d medium=%d/%d big=%d/%d (free/total)\n",
		a.GetUnlockedPages(ClassSmall), len(a.small.frames),
		a.GetUnlockedPages(ClassMedium), len(a.medium.frames),
		a.GetUnlockedPages(ClassBig), len(a.big.frames))
	if a.cfg.TraceStats {
		fmt.Fprintf(w, "stats: %+v\n", a.stats)
	}
}
