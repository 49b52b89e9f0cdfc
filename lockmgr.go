package virtmem

// This file implements the lock manager (spec §4.2): pinning a virtual
// range into a RAM frame and handing back a stable host pointer, plus the
// machinery makeDataLock/makeFittingLock share for splicing frames between
// a class's free and locked chains.

func minVPTS(a, b VirtPageSize) VirtPageSize {
	if a < b {
		return a
	}
	return b
}

func maxVPTS(a, b VirtPageSize) VirtPageSize {
	if a > b {
		return a
	}
	return b
}

// lockPage moves a frame from pinfo's free chain to its locked chain. For
// the big class this first primes the frame's contents via pullRawData (as
// a provisional read-only working-set pull) and finds which frame that
// landed in; for small/medium it simply takes the free-chain head.
func (a *Allocator) lockPage(pinfo *pageInfo, ptr VAddr, size VirtPageSize) (int8, error) {
	var index int8

	if pinfo == &a.big {
		if _, err := a.pullRawData(ptr, VPtrSize(size), true, true); err != nil {
			return noLink, err
		}
		index = findFreePage(pinfo, ptr, VPtrSize(size), true)
		if size < pinfo.frameSize {
			if err := a.syncBigPage(&pinfo.frames[index]); err != nil {
				return noLink, err
			}
		}
	} else {
		index = pinfo.freeIndex
	}

	pinfo.unlinkFree(index)

	if pinfo == &a.big && a.nextPageToSwap == index {
		a.nextPageToSwap = pinfo.freeIndex
	}

	pinfo.pushLocked(index)
	return index, nil
}

// freeLockedPage unpins a frame unconditionally (without checking its lock
// count) and returns it to pinfo's free chain, writing back first if
// necessary: small/medium frames always sync, big frames only if they were
// shrunk (a big frame at full size was already kept consistent by the
// working-set path).
func (a *Allocator) freeLockedPage(pinfo *pageInfo, index int8) (int8, error) {
	if pinfo != &a.big {
		if err := a.syncLockedPage(&pinfo.frames[index]); err != nil {
			return noLink, err
		}
	} else if pinfo.frames[index].size < pinfo.frameSize {
		if err := a.syncLockedPage(&pinfo.frames[index]); err != nil {
			return noLink, err
		}
		pinfo.frames[index].start = 0
		pinfo.frames[index].size = pinfo.frameSize
	}

	next := pinfo.unlinkLocked(index)
	pinfo.pushFree(index)

	if pinfo == &a.big && a.nextPageToSwap == noLink {
		a.nextPageToSwap = pinfo.freeIndex
	}

	pinfo.frames[index].locks = 0
	return next, nil
}

// findAnyLockedPage searches the small, medium, then big locked chains (in
// that precedence order) for a frame containing p.
func (a *Allocator) findAnyLockedPage(p VAddr) (*pageInfo, int8) {
	classes := [3]*pageInfo{&a.small, &a.medium, &a.big}
	for _, pinfo := range classes {
		if idx := pinfo.findContaining(p); idx != noLink {
			return pinfo, idx
		}
	}
	return nil, noLink
}

// MakeDataLock pins [ptr, ptr+size) into a RAM frame and returns a host
// slice backing it. The class is chosen by size; an existing frame at ptr is
// reused (shrunk if it is larger than size, or the request clamped to it if
// it is still pinned in a smaller class), and competing locks may be evicted
// or resized to avoid overlap (spec §4.2).
func (a *Allocator) MakeDataLock(ptr VAddr, size VirtPageSize, readonly bool) ([]byte, error) {
	if err := a.checkStarted("MakeDataLock"); err != nil {
		return nil, err
	}
	if ptr == 0 {
		violate("MakeDataLock", "ptr must be nonzero")
	}
	if size > a.big.frameSize {
		violate("MakeDataLock", "size %d exceeds big frame size", size)
	}

	var pinfo *pageInfo
	switch {
	case size <= a.small.frameSize:
		pinfo = &a.small
	case size <= a.medium.frameSize:
		pinfo = &a.medium
	default:
		pinfo = &a.big
	}

	classes := [3]*pageInfo{&a.small, &a.medium, &a.big}
	var pageindex, oldLockIndex, secOldLockIndex int8 = noLink, noLink, noLink
	var secPinfo *pageInfo
	fixBeginningOverlap, shrunk, done := false, false, false

	for ci := 0; ci < 3 && !done; ci++ {
		cls := classes[ci]
		for i := cls.lockedIndex; i != noLink; {
			f := &cls.frames[i]

			if f.start == ptr {
				if pinfo != cls {
					if f.locks == 0 {
						next, err := a.freeLockedPage(cls, i)
						if err != nil {
							return nil, err
						}
						i = next
						continue
					}
					if cls.frameSize < pinfo.frameSize {
						size = minVPTS(size, cls.frameSize)
					}
					pinfo = cls
				} else if f.size > size {
					if err := a.saveRawData(f.pool[size:f.size], f.start+VAddr(size), VPtrSize(f.size-size)); err != nil {
						return nil, err
					}
					f.size = size
				}

				pageindex = i
				if f.size == size {
					done = true
					break
				}
			} else {
				endOverlaps := ptr < f.start && ptr+VAddr(size) > f.start
				beginOverlaps := ptr > f.start && ptr < f.start+VAddr(f.size)

				if f.locks > 0 {
					if endOverlaps {
						size = VirtPageSize(f.start - ptr)
						shrunk = true
					} else if beginOverlaps {
						fixBeginningOverlap = true
					}
				} else if endOverlaps || beginOverlaps {
					next, err := a.freeLockedPage(cls, i)
					if err != nil {
						return nil, err
					}
					i = next
					continue
				} else if oldLockIndex == noLink {
					if pinfo == cls {
						oldLockIndex = i
					} else if secOldLockIndex == noLink && pinfo.frameSize < cls.frameSize {
						secOldLockIndex = i
						secPinfo = cls
					}
				}
			}

			i = cls.frames[i].next
		}
	}

	// A request shrunk below medium size no longer needs a precious big
	// frame; migrate it down if a smaller class can host it.
	if shrunk && size <= a.medium.frameSize && pinfo == &a.big && (pageindex == noLink || a.big.frames[pageindex].locks == 0) {
		oldpinfo := pinfo

		if size <= a.small.frameSize {
			if a.small.freeIndex != noLink {
				pinfo = &a.small
			} else if idx := a.small.findUnlocked(); idx != noLink {
				pinfo = &a.small
				oldLockIndex = idx
			}
		}

		if oldpinfo == pinfo {
			if a.medium.freeIndex != noLink {
				pinfo = &a.medium
			} else if idx := a.medium.findUnlocked(); idx != noLink {
				pinfo = &a.medium
				oldLockIndex = idx
			}
		}

		if pinfo != oldpinfo && pageindex != noLink {
			if _, err := a.freeLockedPage(oldpinfo, pageindex); err != nil {
				return nil, err
			}
			pageindex = noLink
		}
	}

	var copyoffset VirtPageSize

	if pageindex == noLink {
		if pinfo.freeIndex == noLink && oldLockIndex == noLink {
			if pinfo.frameSize < a.medium.frameSize && a.medium.freeIndex != noLink {
				pinfo = &a.medium
			} else if pinfo.frameSize < a.big.frameSize && a.big.freeIndex != noLink {
				pinfo = &a.big
			}
		}

		if pinfo.freeIndex != noLink {
			if pinfo == &a.big {
				copyoffset = size
			}
			idx, err := a.lockPage(pinfo, ptr, size)
			if err != nil {
				return nil, err
			}
			pageindex = idx
		} else {
			if oldLockIndex == noLink && secOldLockIndex != noLink {
				pinfo = secPinfo
				oldLockIndex = secOldLockIndex
			}
			if oldLockIndex == noLink {
				return nil, ErrNoFrameAvailable
			}
			if err := a.syncLockedPage(&pinfo.frames[oldLockIndex]); err != nil {
				return nil, err
			}
			pinfo.frames[oldLockIndex].dirty = false
			pageindex = oldLockIndex
		}

		if fixBeginningOverlap {
			for ci := 0; ci < 3; ci++ {
				cls := classes[ci]
				for i := cls.lockedIndex; i != noLink; i = cls.frames[i].next {
					f := &cls.frames[i]
					if (i != pageindex || cls != pinfo) && ptr > f.start && ptr < f.start+VAddr(f.size) {
						offsetOld := VirtPageSize(ptr - f.start)
						copysize := minVPTS(f.size-offsetOld, size)
						copy(pinfo.frames[pageindex].pool[:copysize], f.pool[offsetOld:offsetOld+copysize])
						copyoffset = maxVPTS(copyoffset, copysize)
						f.size = offsetOld
					}
				}
			}
		}

		if copyoffset < size {
			if err := a.copyRawData(pinfo.frames[pageindex].pool[copyoffset:size], ptr+VAddr(copyoffset), VPtrSize(size-copyoffset)); err != nil {
				return nil, err
			}
		}

		pinfo.frames[pageindex].start = ptr
	} else if size > pinfo.frames[pageindex].size {
		offset := pinfo.frames[pageindex].size
		if err := a.copyRawData(pinfo.frames[pageindex].pool[offset:size], ptr+VAddr(offset), VPtrSize(size-offset)); err != nil {
			return nil, err
		}
	}

	f := &pinfo.frames[pageindex]
	if !f.dirty {
		f.dirty = !readonly
	}
	f.locks++
	f.size = size

	return f.pool[:size], nil
}

// MakeFittingLock pins ptr into a RAM frame without shrinking any existing
// lock; the requested size (and the size actually returned) is clamped to
// whatever avoids overlap, in contrast to MakeDataLock's willingness to
// resize other locks. It returns the host slice and the size that was
// actually honored.
func (a *Allocator) MakeFittingLock(ptr VAddr, size VirtPageSize, readonly bool) ([]byte, VirtPageSize, error) {
	if err := a.checkStarted("MakeFittingLock"); err != nil {
		return nil, 0, err
	}
	if ptr == 0 {
		violate("MakeFittingLock", "ptr must be nonzero")
	}
	size = minVPTS(size, a.big.frameSize)

	classes := [3]*pageInfo{&a.small, &a.medium, &a.big}
	unused := [3]int8{noLink, noLink, noLink}
	plistindex := -1
	pageindex := int8(noLink)
	done := false

	for ci := 0; ci < 3 && !done; ci++ {
		cls := classes[ci]
		for i := cls.lockedIndex; i != noLink; {
			f := &cls.frames[i]

			if ptr >= f.start && ptr < f.start+VAddr(f.size) {
				plistindex = ci
				pageindex = i
				done = true
				break
			}

			if ptr < f.start && ptr+VAddr(size) > f.start {
				if f.locks == 0 {
					next, err := a.freeLockedPage(cls, i)
					if err != nil {
						return nil, 0, err
					}
					i = next
					continue
				}
				size = VirtPageSize(f.start - ptr)
			}

			if f.locks == 0 && unused[ci] == noLink {
				unused[ci] = i
			}

			i = cls.frames[i].next
		}
	}

	var offset VPtrSize

	if pageindex == noLink {
		secpli := -1
		for i := 0; i < 3; i++ {
			cls := classes[i]
			if cls.freeIndex != noLink || unused[i] != noLink {
				if size <= cls.frameSize {
					plistindex = i
					break
				} else {
					secpli = i
				}
			}
		}

		if plistindex == -1 && secpli != -1 {
			plistindex = secpli
			size = classes[plistindex].frameSize
		}

		if plistindex == -1 {
			return nil, 0, ErrNoFrameAvailable
		}

		cls := classes[plistindex]
		syncpool := true
		if cls.freeIndex != noLink {
			idx, err := a.lockPage(cls, ptr, size)
			if err != nil {
				return nil, 0, err
			}
			pageindex = idx
			syncpool = cls != &a.big
		} else {
			pageindex = unused[plistindex]
			if err := a.syncLockedPage(&cls.frames[pageindex]); err != nil {
				return nil, 0, err
			}
			cls.frames[pageindex].dirty = false
		}

		if syncpool {
			if err := a.copyRawData(cls.frames[pageindex].pool[:size], ptr, VPtrSize(size)); err != nil {
				return nil, 0, err
			}
		}

		cls.frames[pageindex].start = ptr
		cls.frames[pageindex].size = size
	} else {
		cls := classes[plistindex]
		offset = VPtrSize(ptr - cls.frames[pageindex].start)
		size = minVPTS(size, VirtPageSize(VPtrSize(cls.frames[pageindex].size)-offset))
	}

	cls := classes[plistindex]
	f := &cls.frames[pageindex]
	f.locks++
	if !f.dirty {
		f.dirty = !readonly
	}

	return f.pool[offset : offset+VPtrSize(size)], size, nil
}

// ReleaseLock decrements the lock count on the frame containing ptr. Once
// it reaches zero, a big-class frame is returned to the working set
// immediately (so it can be reclaimed by subsequent paging); small/medium
// frames stay on the locked chain for potential reuse at the same address.
func (a *Allocator) ReleaseLock(ptr VAddr) error {
	if err := a.checkStarted("ReleaseLock"); err != nil {
		return err
	}
	pinfo, index := a.findAnyLockedPage(ptr)
	if pinfo == nil {
		return ErrNotLocked
	}
	f := &pinfo.frames[index]
	if f.locks == 0 {
		violate("ReleaseLock", "releasing frame at %d with zero lock count", ptr)
	}
	f.locks--
	if f.locks == 0 && pinfo == &a.big {
		if _, err := a.freeLockedPage(pinfo, index); err != nil {
			return err
		}
	}
	return nil
}
