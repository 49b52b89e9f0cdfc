package virtmem

// This file implements RawIO (spec §4.3): the read/write surface that
// sweeps the three locked chains before falling through to the big-class
// working set. A locked frame is authoritative for its own range; the cache
// is reconciled by pushing a partially overlapping locked frame's contents
// outward before a read falls through to pullRawData; a write copies the
// overlapping slice into each such lock and then falls through to
// pushRawData.

// read returns a transient slice covering size bytes at p. The slice is
// only valid until the next allocator call.
func (a *Allocator) read(p VAddr, size VPtrSize) ([]byte, error) {
	classes := [3]*pageInfo{&a.small, &a.medium, &a.big}
	pend := p + VAddr(size)

	for _, pinfo := range classes {
		for i := pinfo.lockedIndex; i != noLink; i = pinfo.frames[i].next {
			f := &pinfo.frames[i]
			beginOverlaps := p >= f.start && p < f.start+VAddr(f.size)
			endOverlaps := p < f.start && pend > f.start

			if beginOverlaps {
				offset := VPtrSize(p - f.start)
				if offset+size <= VPtrSize(f.size) {
					return f.pool[offset : offset+size], nil
				}
			}

			if beginOverlaps || endOverlaps {
				if err := a.pushRawData(f.start, f.pool[:f.size], VPtrSize(f.size)); err != nil {
					return nil, err
				}
			}
		}
	}

	buf, err := a.pullRawData(p, size, true, false)
	if err != nil {
		return nil, err
	}
	if VPtrSize(len(buf)) > size {
		buf = buf[:size]
	}
	return buf, nil
}

// write copies size bytes from d to p.
func (a *Allocator) write(p VAddr, d []byte, size VPtrSize) error {
	classes := [3]*pageInfo{&a.small, &a.medium, &a.big}
	pend := p + VAddr(size)

	for _, pinfo := range classes {
		for i := pinfo.lockedIndex; i != noLink; i = pinfo.frames[i].next {
			f := &pinfo.frames[i]
			beginOverlaps := p >= f.start && p < f.start+VAddr(f.size)
			endOverlaps := p < f.start && pend > f.start

			if !f.dirty && (beginOverlaps || endOverlaps) {
				f.dirty = true
			}

			if beginOverlaps {
				offset := VPtrSize(p - f.start)
				if offset+size <= VPtrSize(f.size) {
					copy(f.pool[offset:offset+size], d[:size])
					return nil
				}
				copy(f.pool[offset:f.size], d[:VPtrSize(f.size)-offset])
			} else if endOverlaps {
				offset := VPtrSize(f.start - p)
				copy(f.pool[:size-offset], d[offset:size])
			}
		}
	}

	// d was either not in a lock, or only partially so; fall through
	// regardless (the original notes this may double-write a partial
	// prefix, relying on idempotence rather than formalizing a fix).
	return a.pushRawData(p, d, size)
}

// Read returns a transient host slice covering size bytes at p. The slice
// is valid only until the next Allocator call.
func (a *Allocator) Read(p VAddr, size VPtrSize) ([]byte, error) {
	if err := a.checkStarted("Read"); err != nil {
		return nil, err
	}
	if p == 0 || VPtrSize(p)+size > a.cfg.PoolSize {
		return nil, ErrInvalidAddress
	}
	return a.read(p, size)
}

// Write copies size bytes from d into the virtual pool at p.
func (a *Allocator) Write(p VAddr, d []byte, size VPtrSize) error {
	if err := a.checkStarted("Write"); err != nil {
		return err
	}
	if p == 0 || VPtrSize(p)+size > a.cfg.PoolSize {
		return ErrInvalidAddress
	}
	return a.write(p, d, size)
}
