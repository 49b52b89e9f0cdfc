package virtmem

// noLink is the chain terminator for frame next-indices, matching the
// original's int8_t(-1) sentinel. Frame classes are therefore capped at 127
// frames, which easily covers any memory-constrained host this library
// targets.
const noLink int8 = -1

// frame is a single RAM-resident page: a buffer that mirrors some region of
// the virtual pool. Every frame belongs to exactly one class and sits on
// exactly one of that class's two chains (free or locked) at all times.
type frame struct {
	pool []byte // exactly frameSize bytes

	start VAddr       // VAddr this frame mirrors, or 0 if empty
	size  VirtPageSize // effective mirrored length, <= len(pool)

	dirty      bool
	cleanSkips uint8
	locks      uint8

	next int8 // intrusive link into the class's free or locked chain
}

func (f *frame) empty() bool { return f.start == 0 }

// pageInfo holds one class's fixed array of frames plus the heads of its two
// intrusive chains. Every frame index in [0, len(frames)) is reachable from
// exactly one of freeIndex's chain or lockedIndex's chain.
type pageInfo struct {
	frames    []frame
	frameSize VirtPageSize

	freeIndex   int8 // head of the unpinned chain
	lockedIndex int8 // head of the pinned-or-reserved chain
}

func newPageInfo(cfg PageClassConfig) pageInfo {
	pi := pageInfo{
		frames:      make([]frame, cfg.FrameCount),
		frameSize:   cfg.FrameSize,
		freeIndex:   noLink,
		lockedIndex: noLink,
	}
	for i := range pi.frames {
		pi.frames[i].pool = make([]byte, cfg.FrameSize)
	}
	pi.reset()
	return pi
}

// reset rebuilds the free chain as every frame in order, with an empty
// locked chain, clearing all per-frame state. Called by Allocator.Start.
func (pi *pageInfo) reset() {
	n := len(pi.frames)
	if n == 0 {
		pi.freeIndex = noLink
		pi.lockedIndex = noLink
		return
	}
	for i := range pi.frames {
		f := &pi.frames[i]
		f.start = 0
		f.size = pi.frameSize
		f.locks = 0
		f.cleanSkips = 0
		f.dirty = false
		if i == n-1 {
			f.next = noLink
		} else {
			f.next = int8(i + 1)
		}
	}
	pi.freeIndex = 0
	pi.lockedIndex = noLink
}

// unlinkFree removes index from the free chain. The caller must know index
// is currently on the free chain (or be the chain head).
func (pi *pageInfo) unlinkFree(index int8) {
	if pi.freeIndex == index {
		pi.freeIndex = pi.frames[index].next
		return
	}
	prev := pi.freeIndex
	for pi.frames[prev].next != index {
		prev = pi.frames[prev].next
	}
	pi.frames[prev].next = pi.frames[index].next
}

// pushLocked splices index onto the head of the locked chain.
func (pi *pageInfo) pushLocked(index int8) {
	pi.frames[index].next = pi.lockedIndex
	pi.lockedIndex = index
}

// unlinkLocked removes index from the locked chain.
func (pi *pageInfo) unlinkLocked(index int8) int8 {
	next := pi.frames[index].next
	if pi.lockedIndex == index {
		pi.lockedIndex = next
		return next
	}
	prev := pi.lockedIndex
	for pi.frames[prev].next != index {
		prev = pi.frames[prev].next
	}
	pi.frames[prev].next = next
	return next
}

// pushFree splices index onto the head of the free chain.
func (pi *pageInfo) pushFree(index int8) {
	pi.frames[index].next = pi.freeIndex
	pi.freeIndex = index
}

// findContaining returns the index of a locked frame whose range contains
// p, or noLink.
func (pi *pageInfo) findContaining(p VAddr) int8 {
	for i := pi.lockedIndex; i != noLink; i = pi.frames[i].next {
		f := &pi.frames[i]
		if p >= f.start && VPtrSize(p-f.start) < VPtrSize(f.size) {
			return i
		}
	}
	return noLink
}

// findUnlocked returns the index of a locked-chain frame with locks == 0
// (i.e. reserved but not pinned), or noLink.
func (pi *pageInfo) findUnlocked() int8 {
	for i := pi.lockedIndex; i != noLink; i = pi.frames[i].next {
		if pi.frames[i].locks == 0 {
			return i
		}
	}
	return noLink
}

// countUnlockedPages returns the number of frames in this class that are
// not currently pinned: the whole free chain plus any zero-lock entries on
// the locked chain.
func (pi *pageInfo) countUnlockedPages() uint8 {
	var n uint8
	for i := pi.freeIndex; i != noLink; i = pi.frames[i].next {
		n++
	}
	for i := pi.lockedIndex; i != noLink; i = pi.frames[i].next {
		if pi.frames[i].locks == 0 {
			n++
		}
	}
	return n
}
