// Package virtmem implements a paged virtual memory allocator for hosts that
// can address far less RAM than the data they need to work with. Client code
// allocates variably sized blocks from a flat virtual address space backed by
// a slow external store (SPI RAM, an SD card, a serial link, or — for
// testing — a plain in-RAM buffer) and reads, writes, or locks bytes at
// virtual addresses. The allocator transparently pages small regions of that
// space into a bounded set of RAM-resident frames, coalesces freed blocks,
// and lets callers pin a range into RAM for a stable host pointer.
//
// The allocator is single-threaded and cooperative: it assumes exactly one
// goroutine drives it at a time. Callers that need to share an Allocator
// across goroutines must serialize access themselves.
package virtmem

// VAddr is a virtual address within the pool, in [0, Config.PoolSize).
// The zero value is reserved to mean "null / invalid".
type VAddr uint32

// VPtrSize counts bytes within the virtual pool (block sizes, offsets, pool
// capacity).
type VPtrSize uint32

// VirtPageSize counts bytes within a single page frame.
type VirtPageSize uint16

// BackingStore is the external collaborator that stores the bytes of the
// virtual pool. Implementations live under virtmem/backend; the allocator
// itself never assumes anything about the medium beyond this interface.
type BackingStore interface {
	// Start prepares the backing store for use. Called once by Allocator.Start.
	Start() error
	// Stop releases any resources held by the backing store.
	Stop() error
	// Read reads n bytes starting at offset into dst. dst must have length
	// at least n.
	Read(dst []byte, offset VPtrSize, n VPtrSize) error
	// Write writes n bytes from src to the store at offset. src must have
	// length at least n.
	Write(src []byte, offset VPtrSize, n VPtrSize) error
	// Capacity returns the total addressable size of the store.
	Capacity() VPtrSize
}
