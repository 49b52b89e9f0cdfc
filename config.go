package virtmem

import "fmt"

// headerUnitSize is sizeof(MemHeader): a 4-byte size field plus a 4-byte
// next-pointer field. It is the allocation quantum for the free-list
// allocator, matching the union-of-size/next layout from the design (the
// original C++ uses a TAlign-aligned union; Go has no equivalent alignment
// union, so the header is a fixed 8-byte record instead).
const headerUnitSize = 8

// PageClassConfig configures one of the three frame classes (small, medium,
// big) that back the page cache.
type PageClassConfig struct {
	// FrameSize is the number of bytes mirrored by each frame in this class.
	FrameSize VirtPageSize
	// FrameCount is the number of RAM-resident frames in this class.
	FrameCount uint8
}

// Config is the explicit construction struct for an Allocator. There is no
// global/singleton configuration; every Allocator is built from one of
// these.
type Config struct {
	// PoolSize is the total size of the virtual address space.
	PoolSize VPtrSize

	// Small, Medium, and Big configure the three page classes. Big must
	// have at least one frame: it is the only class used for internal
	// header I/O and for working-set (unlocked) paging.
	Small, Medium, Big PageClassConfig

	// MaxCleanSkips is the number of victim scans in which a dirty big-class
	// frame may be passed over before it is treated like a clean frame and
	// chosen for eviction. Defaults to 5 if zero.
	MaxCleanSkips uint8

	// MinAllocSize is the minimum allocation size in header units (not
	// bytes). Defaults to 16 if zero.
	MinAllocSize VPtrSize

	// StartOffset reserves a prefix of the pool before any block header may
	// live, so that VAddr(0) can be used as a null value. Defaults to
	// headerUnitSize if zero.
	StartOffset VPtrSize

	// TraceStats enables the Stats counters. They can be read regardless,
	// but are only accumulated when this is true, following the original's
	// VIRTMEM_TRACE_STATS build flag (here a runtime flag instead, since Go
	// has no lightweight conditional compilation for a library consumer to
	// opt into).
	TraceStats bool
}

func (c *Config) withDefaults() Config {
	out := *c
	if out.MaxCleanSkips == 0 {
		out.MaxCleanSkips = 5
	}
	if out.MinAllocSize == 0 {
		out.MinAllocSize = 16
	}
	if out.StartOffset == 0 {
		out.StartOffset = headerUnitSize
	}
	return out
}

func (c *Config) validate() error {
	if c.PoolSize == 0 {
		return fmt.Errorf("virtmem: Config.PoolSize must be nonzero")
	}
	if c.Big.FrameCount == 0 {
		return fmt.Errorf("virtmem: Config.Big.FrameCount must be at least 1")
	}
	for name, pc := range map[string]PageClassConfig{"Small": c.Small, "Medium": c.Medium, "Big": c.Big} {
		if pc.FrameCount > 0 && pc.FrameSize == 0 {
			return fmt.Errorf("virtmem: Config.%s.FrameSize must be nonzero when FrameCount > 0", name)
		}
		if pc.FrameCount > 127 {
			return fmt.Errorf("virtmem: Config.%s.FrameCount must not exceed 127", name)
		}
	}
	if c.Small.FrameSize != 0 && c.Medium.FrameSize != 0 && c.Small.FrameSize > c.Medium.FrameSize {
		return fmt.Errorf("virtmem: Config.Small.FrameSize must not exceed Config.Medium.FrameSize")
	}
	if c.Medium.FrameSize != 0 && c.Medium.FrameSize > c.Big.FrameSize {
		return fmt.Errorf("virtmem: Config.Medium.FrameSize must not exceed Config.Big.FrameSize")
	}
	return nil
}
