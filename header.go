package virtmem

import "encoding/binary"

// baseIndex is the sentinel VAddr for the RAM-resident free-list anchor. It
// is never written to the backing store; getHeader/updateHeader special-case
// it to a.baseFreeList so the self-referential cycle (headers live in the
// pool, but are read through the pager) terminates.
const baseIndex VAddr = 1

// memHeader is a free-list node: size in header units (inclusive of the
// header itself) and the VAddr of the next free node. It marshals to
// exactly headerUnitSize bytes.
type memHeader struct {
	size VPtrSize
	next VAddr
}

func (h memHeader) marshal(dst []byte) {
	binary.LittleEndian.PutUint32(dst[0:4], uint32(h.size))
	binary.LittleEndian.PutUint32(dst[4:8], uint32(h.next))
}

func unmarshalHeader(src []byte) memHeader {
	return memHeader{
		size: VPtrSize(binary.LittleEndian.Uint32(src[0:4])),
		next: VAddr(binary.LittleEndian.Uint32(src[4:8])),
	}
}

// getHeader reads the header at p, which may alias a's big-class working
// set via pullRawData.
func (a *Allocator) getHeader(p VAddr) (memHeader, error) {
	if p == baseIndex {
		return a.baseFreeList, nil
	}
	buf, err := a.read(p, headerUnitSize)
	if err != nil {
		return memHeader{}, err
	}
	return unmarshalHeader(buf), nil
}

// updateHeader writes h back to p.
func (a *Allocator) updateHeader(p VAddr, h memHeader) error {
	if p == baseIndex {
		a.baseFreeList = h
		return nil
	}
	var buf [headerUnitSize]byte
	h.marshal(buf[:])
	return a.write(p, buf[:], headerUnitSize)
}
