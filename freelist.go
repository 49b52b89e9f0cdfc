package virtmem

// This file implements the free-list allocator (spec §4.4): a circular,
// address-sorted list of free blocks living inside the virtual pool itself,
// accessed through getHeader/updateHeader (and so through RawIO and the page
// cache). The anchor at baseIndex breaks the self-referential cycle: header
// access needs the pager, but the pager's own bookkeeping must not.

// allocRaw reserves a block of at least size bytes and returns its payload
// address, or 0 if the pool cannot satisfy the request and cannot be
// extended.
func (a *Allocator) allocRaw(size VPtrSize) (VAddr, error) {
	q := (size+VPtrSize(headerUnitSize)-1)/VPtrSize(headerUnitSize) + 1
	prevp := a.freePointer

	if prevp == 0 {
		// First allocation ever: seed a degenerate zero-size block that
		// points to itself.
		a.baseFreeList = memHeader{size: 0, next: baseIndex}
		a.freePointer = baseIndex
		prevp = baseIndex
	}

	prevHdr, err := a.getHeader(prevp)
	if err != nil {
		return 0, err
	}
	p := prevHdr.next

	for {
		consth, err := a.getHeader(p)
		if err != nil {
			return 0, err
		}

		if consth.size >= q {
			a.traceAlloc(VPtrSize(q) * headerUnitSize)

			if consth.size == q {
				next := consth.next
				ph, err := a.getHeader(prevp)
				if err != nil {
					return 0, err
				}
				ph.next = next
				if err := a.updateHeader(prevp, ph); err != nil {
					return 0, err
				}
			} else {
				h := consth
				h.size -= q
				if err := a.updateHeader(p, h); err != nil {
					return 0, err
				}
				p += VAddr(h.size * VPtrSize(headerUnitSize))
				h2, err := a.getHeader(p)
				if err != nil {
					return 0, err
				}
				h2.size = q
				if err := a.updateHeader(p, h2); err != nil {
					return 0, err
				}
			}

			a.freePointer = prevp
			return p + VAddr(headerUnitSize), nil
		}

		if p == a.freePointer {
			np, allocErr := a.getMem(q)
			if allocErr != nil {
				return 0, allocErr
			}
			p = np
			consth, err = a.getHeader(p)
			if err != nil {
				return 0, err
			}
		}

		prevp = p
		p = consth.next
	}
}

// getMem grows the pool by at least size header units, splices the new
// block into the free list via freeRaw, and returns the resulting
// freePointer (the node preceding the new block in the circular list).
func (a *Allocator) getMem(size VPtrSize) (VAddr, error) {
	if size < a.cfg.MinAllocSize {
		size = a.cfg.MinAllocSize
	}
	total := size * VPtrSize(headerUnitSize)

	if VPtrSize(a.poolFreePos)+total > a.cfg.PoolSize {
		return 0, ErrOutOfVirtualMemory
	}

	h := memHeader{size: size, next: 0}
	var buf [headerUnitSize]byte
	h.marshal(buf[:])
	if err := a.write(a.poolFreePos, buf[:], VPtrSize(headerUnitSize)); err != nil {
		return 0, err
	}
	// Balances the subtraction freeRaw is about to perform via traceFree.
	a.traceAlloc(total)

	if err := a.freeRaw(a.poolFreePos + VAddr(headerUnitSize)); err != nil {
		return 0, err
	}
	a.poolFreePos += VAddr(total)
	return a.freePointer, nil
}

// freeRaw returns a previously allocated block to the free list, coalescing
// with either adjacent neighbor if they are contiguous. A nil (zero)
// pointer is a no-op, matching the original's behavior of tolerating
// freeing address 0.
func (a *Allocator) freeRaw(ptr VAddr) error {
	if ptr == 0 {
		return nil
	}

	hdrptr := ptr - VAddr(headerUnitSize)
	statheader, err := a.getHeader(hdrptr)
	if err != nil {
		return err
	}
	a.traceFree(VPtrSize(statheader.size) * VPtrSize(headerUnitSize))

	p := a.freePointer
	consth, err := a.getHeader(p)
	if err != nil {
		return err
	}

	// Walk the circular list to the node p such that hdrptr lies strictly
	// between p and p.next in address order, accounting for the single
	// wrap-around link where a higher address points to a lower one.
	for !(hdrptr > p && hdrptr < consth.next) {
		if p >= consth.next && (hdrptr > p || hdrptr < consth.next) {
			break
		}
		p = consth.next
		consth, err = a.getHeader(p)
		if err != nil {
			return err
		}
	}

	stath := consth

	if hdrptr+VAddr(statheader.size*VPtrSize(headerUnitSize)) == stath.next {
		nexth, err := a.getHeader(stath.next)
		if err != nil {
			return err
		}
		statheader.size += nexth.size
		statheader.next = nexth.next
	} else {
		statheader.next = stath.next
	}

	if err := a.updateHeader(hdrptr, statheader); err != nil {
		return err
	}

	if p+VAddr(stath.size*VPtrSize(headerUnitSize)) == hdrptr {
		stath.size += statheader.size
		stath.next = statheader.next
	} else {
		stath.next = hdrptr
	}

	if err := a.updateHeader(p, stath); err != nil {
		return err
	}

	a.freePointer = p
	return nil
}

// AllocRaw reserves size bytes from the virtual pool and returns the
// starting address, or 0 if the pool is exhausted and cannot be extended.
func (a *Allocator) AllocRaw(size VPtrSize) (VAddr, error) {
	if err := a.checkStarted("AllocRaw"); err != nil {
		return 0, err
	}
	if size == 0 {
		violate("AllocRaw", "size must be nonzero")
	}
	return a.allocRaw(size)
}

// FreeRaw releases a block previously returned by AllocRaw. Freeing the
// zero address is a no-op.
func (a *Allocator) FreeRaw(ptr VAddr) error {
	if err := a.checkStarted("FreeRaw"); err != nil {
		return err
	}
	return a.freeRaw(ptr)
}
