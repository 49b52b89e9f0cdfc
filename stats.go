package virtmem

// Stats holds optional usage counters for an Allocator. All fields are
// accumulated only while Config.TraceStats is true (see Config), mirroring
// the original's VIRTMEM_TRACE_STATS compile-time flag with a runtime one.
type Stats struct {
	BytesRead     uint64
	BytesWritten  uint64
	BigPageReads  uint64
	BigPageWrites uint64
	MemUsed       VPtrSize
	MaxMemUsed    VPtrSize
}

// Stats returns a snapshot of the allocator's usage counters. The result is
// the zero value if Config.TraceStats is false.
func (a *Allocator) Stats() Stats {
	return a.stats
}

// ResetStats zeroes every counter. Called automatically by Start.
func (a *Allocator) ResetStats() {
	a.stats = Stats{}
}

func (a *Allocator) traceAlloc(n VPtrSize) {
	if !a.cfg.TraceStats {
		return
	}
	a.stats.MemUsed += n
	if a.stats.MemUsed > a.stats.MaxMemUsed {
		a.stats.MaxMemUsed = a.stats.MemUsed
	}
}

func (a *Allocator) traceFree(n VPtrSize) {
	if !a.cfg.TraceStats {
		return
	}
	a.stats.MemUsed -= n
}

func (a *Allocator) traceRead(n VPtrSize) {
	if a.cfg.TraceStats {
		a.stats.BytesRead += uint64(n)
	}
}

func (a *Allocator) traceWrite(n VPtrSize) {
	if a.cfg.TraceStats {
		a.stats.BytesWritten += uint64(n)
	}
}

func (a *Allocator) traceBigRead(n VirtPageSize) {
	if a.cfg.TraceStats {
		a.stats.BigPageReads++
		a.stats.BytesRead += uint64(n)
	}
}

func (a *Allocator) traceBigWrite(n VirtPageSize) {
	if a.cfg.TraceStats {
		a.stats.BigPageWrites++
		a.stats.BytesWritten += uint64(n)
	}
}
