package virtmem

// This file implements the page cache (spec §4.1): the big-class working
// set used for demand-paged reads/writes of bytes that aren't currently
// pinned by a lock, plus the write-back and victim-selection machinery
// shared by the free-list header accessor and RawIO.

// findFreePage scans a class's *free* (unpinned) chain for a frame that
// already covers the requested range, matching the original's
// findFreePage(). atstart restricts the match to frames whose start equals
// p exactly (used when priming a about-to-be-locked page); otherwise any
// frame containing [p, p+size) qualifies.
func findFreePage(pinfo *pageInfo, p VAddr, size VPtrSize, atstart bool) int8 {
	pend := p + VAddr(size)
	for i := pinfo.freeIndex; i != noLink; i = pinfo.frames[i].next {
		f := &pinfo.frames[i]
		if f.start == 0 {
			continue
		}
		if atstart {
			if f.start == p {
				return i
			}
			continue
		}
		if p >= f.start && VPtrSize(pend) <= VPtrSize(f.start)+VPtrSize(f.size) {
			return i
		}
	}
	return noLink
}

// syncBigPage writes a dirty big-class frame back to the backing store.
func (a *Allocator) syncBigPage(f *frame) error {
	if f.start == 0 {
		violate("syncBigPage", "frame has no start address")
	}
	if !f.dirty {
		return nil
	}
	wrsize := minVPS(a.cfg.PoolSize-VPtrSize(f.start), VPtrSize(a.big.frameSize))
	if err := a.store.Write(f.pool, VPtrSize(f.start), wrsize); err != nil {
		return wrapIOErr("syncBigPage", err)
	}
	f.dirty = false
	f.cleanSkips = 0
	a.traceBigWrite(VirtPageSize(wrsize))
	return nil
}

// pageFindState ranks candidate big frames during pullRawData. Lower values
// are higher priority: a FULL match is taken immediately, a PARTIAL match
// beats EMPTY beats CLEAN beats DIRTY, matching the original's
// STATE_GOTFULL..STATE_GOTNONE enum ordering exactly (the ordering itself is
// load-bearing: cleanSkips is only advanced while no frame at CLEAN-or-better
// has been found yet in this scan).
type pageFindState int

const (
	stateFull pageFindState = iota
	statePartial
	stateEmpty
	stateClean
	stateDirty
	stateNone
)

// pullRawData returns a slice into a big frame covering [p, p+size). It
// implements the five-tier victim selection from spec §4.1: an existing
// exact-or-superset frame wins outright (GOT_FULL); a partially overlapping
// frame is flushed and invalidated first so it can be reconsidered as empty
// (GOT_PARTIAL); failing that, an empty, then a clean, then (FIFO,
// round-robin) a dirty frame is chosen as victim.
func (a *Allocator) pullRawData(p VAddr, size VPtrSize, readonly, forceStart bool) ([]byte, error) {
	if p == 0 || VPtrSize(p) >= a.cfg.PoolSize {
		violate("pullRawData", "address %d out of range", p)
	}

	var index int8 = noLink
	state := stateNone

	if idx := findFreePage(&a.big, p, size, forceStart); idx != noLink {
		index = idx
		state = stateFull
	} else {
		newEnd := p + VAddr(a.big.frameSize)
		for i := a.big.freeIndex; i != noLink; i = a.big.frames[i].next {
			f := &a.big.frames[i]
			if f.start != 0 {
				pageEnd := f.start + VAddr(a.big.frameSize)
				if (p >= f.start && p < pageEnd) || (newEnd >= f.start && newEnd <= pageEnd) {
					if err := a.syncBigPage(f); err != nil {
						return nil, err
					}
					f.start = 0 // now behaves as empty; may be reconsidered below
					index = i
					state = statePartial
				}
			} else if state != statePartial {
				index = i
				state = stateEmpty
			}

			// Only still searching for a clean/dirty victim if nothing at
			// CLEAN-or-better priority has been found yet this scan. Only a
			// dirty frame's skip counter advances here, matching the
			// original's short-circuited "!dirty || ++cleanSkips >= max".
			if state > stateClean {
				clean := !f.dirty
				if !clean {
					f.cleanSkips++
					clean = f.cleanSkips >= a.cfg.MaxCleanSkips
				}
				if clean {
					index = i
					state = stateClean
				} else if state != stateDirty && i == a.nextPageToSwap {
					index = i
					state = stateDirty
				}
			}
		}
	}

	if index == noLink {
		violate("pullRawData", "no big frame candidate found")
	}
	victim := &a.big.frames[index]

	if state != stateFull {
		if victim.start != 0 {
			if err := a.syncBigPage(victim); err != nil {
				return nil, err
			}
		}

		if state == stateDirty {
			a.nextPageToSwap = victim.next
			if a.nextPageToSwap == noLink {
				a.nextPageToSwap = a.big.freeIndex
			}
		} else {
			a.nextPageToSwap = a.big.freeIndex
		}

		// Alignment-down-to-TAlign logic exists in the original source but is
		// disabled there (`if (false)`); we likewise always start exactly at p.
		victim.start = p

		rdsize := minVPS(a.cfg.PoolSize-VPtrSize(victim.start), VPtrSize(a.big.frameSize))
		if err := a.store.Read(victim.pool, VPtrSize(victim.start), rdsize); err != nil {
			return nil, wrapIOErr("pullRawData", err)
		}
		a.traceBigRead(VirtPageSize(rdsize))
	}

	if !readonly {
		victim.dirty = true
	}

	if p < victim.start {
		violate("pullRawData", "victim frame does not cover address %d", p)
	}
	offset := VPtrSize(p - victim.start)
	return victim.pool[offset:], nil
}

func (a *Allocator) pushRawData(p VAddr, d []byte, size VPtrSize) error {
	pool, err := a.pullRawData(p, size, false, false)
	if err != nil {
		return err
	}
	copy(pool[:size], d[:size])
	return nil
}

// copyRawData fills dest with size bytes starting at p, consulting any
// overlapping big-class working-set frame before falling through to the
// backing store for whatever is left. A frame can overlap only the
// beginning or only the end of the range, never both, because every big
// frame is at least as large as the request (spec §4.1, §9).
func (a *Allocator) copyRawData(dest []byte, p VAddr, size VPtrSize) error {
	for i := a.big.freeIndex; i != noLink && size > 0; i = a.big.frames[i].next {
		f := &a.big.frames[i]
		if f.start == 0 {
			continue
		}
		pageEnd := f.start + VAddr(a.big.frameSize)
		if p >= f.start && p < pageEnd {
			offset := VPtrSize(p - f.start)
			copySize := minVPS(size, VPtrSize(f.size)-offset)
			copy(dest[:copySize], f.pool[offset:offset+copySize])
			dest = dest[copySize:]
			p += VAddr(copySize)
			size -= copySize
		} else if p < f.start && VAddr(VPtrSize(p)+size) > f.start {
			offset := VPtrSize(f.start - p)
			copySize := minVPS(size-offset, VPtrSize(f.size))
			copy(dest[offset:offset+VPtrSize(copySize)], f.pool[:copySize])
			size = offset
		}
	}

	if size > 0 {
		if err := a.store.Read(dest[:size], VPtrSize(p), size); err != nil {
			return wrapIOErr("copyRawData", err)
		}
		a.traceRead(size)
	}
	return nil
}

// saveRawData is the reverse of copyRawData: it writes size bytes from src
// at p, mirroring into any overlapping working-set frame and marking it
// dirty only if the bytes actually changed (or the frame was already
// dirty).
func (a *Allocator) saveRawData(src []byte, p VAddr, size VPtrSize) error {
	for i := a.big.freeIndex; i != noLink && size > 0; i = a.big.frames[i].next {
		f := &a.big.frames[i]
		if f.start == 0 {
			continue
		}
		pageEnd := f.start + VAddr(a.big.frameSize)
		if p >= f.start && p < pageEnd {
			offset := VPtrSize(p - f.start)
			copySize := minVPS(size, VPtrSize(f.size)-offset)
			dst := f.pool[offset : offset+copySize]
			if f.dirty || !bytesEqual(dst, src[:copySize]) {
				copy(dst, src[:copySize])
				f.dirty = true
			}
			src = src[copySize:]
			p += VAddr(copySize)
			size -= copySize
		} else if p < f.start && VAddr(VPtrSize(p)+size) > f.start {
			offset := VPtrSize(f.start - p)
			copySize := minVPS(size-offset, VPtrSize(f.size))
			dst := f.pool[:copySize]
			if f.dirty || !bytesEqual(dst, src[offset:offset+copySize]) {
				copy(dst, src[offset:offset+copySize])
				f.dirty = true
			}
			size = offset
		}
	}

	if size > 0 {
		if err := a.store.Write(src[:size], VPtrSize(p), size); err != nil {
			return wrapIOErr("saveRawData", err)
		}
		a.traceWrite(size)
	}
	return nil
}

// syncLockedPage writes back a locked small/medium/big frame's contents
// through saveRawData, so they land correctly even if they overlap another
// working-set or locked frame.
func (a *Allocator) syncLockedPage(f *frame) error {
	if f.start == 0 {
		violate("syncLockedPage", "frame has no start address")
	}
	if !f.dirty {
		return nil
	}
	return a.saveRawData(f.pool[:f.size], f.start, VPtrSize(f.size))
}

// flush writes back every dirty big-class working-set frame. It never
// touches locked frames.
func (a *Allocator) flush() error {
	for i := a.big.freeIndex; i != noLink; i = a.big.frames[i].next {
		f := &a.big.frames[i]
		if f.start != 0 {
			if err := a.syncBigPage(f); err != nil {
				return err
			}
		}
	}
	return nil
}

// clearPages flushes and empties every big-class working-set frame.
func (a *Allocator) clearPages() error {
	for i := a.big.freeIndex; i != noLink; i = a.big.frames[i].next {
		f := &a.big.frames[i]
		if f.start != 0 {
			if err := a.syncBigPage(f); err != nil {
				return err
			}
			f.start = 0
		}
	}
	return nil
}

// getFreeBigPages counts empty (unused, unlocked) big frames.
func (a *Allocator) getFreeBigPages() uint8 {
	var n uint8
	for i := a.big.freeIndex; i != noLink; i = a.big.frames[i].next {
		if a.big.frames[i].start == 0 {
			n++
		}
	}
	return n
}

func minVPS(a, b VPtrSize) VPtrSize {
	if a < b {
		return a
	}
	return b
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
