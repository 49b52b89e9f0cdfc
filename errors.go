package virtmem

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by Allocator operations. These mirror the
// OutOfVirtualMemory / NoFrameAvailable / BackingIOError taxonomy from the
// design: they are ordinary, recoverable-by-the-caller conditions, not
// programming errors, so they are plain errors rather than panics.
var (
	// ErrOutOfVirtualMemory is returned by AllocRaw when the pool cannot be
	// extended and no free block satisfies the request.
	ErrOutOfVirtualMemory = errors.New("virtmem: out of virtual memory")

	// ErrNoFrameAvailable is returned by MakeDataLock/MakeFittingLock when
	// every frame in every compatible class is pinned.
	ErrNoFrameAvailable = errors.New("virtmem: no page frame available")

	// ErrNotLocked is returned by ReleaseLock when no frame on any class's
	// locked chain contains ptr.
	ErrNotLocked = errors.New("virtmem: address is not locked")

	// ErrInvalidAddress is returned when a caller-supplied VAddr is zero or
	// outside the pool.
	ErrInvalidAddress = errors.New("virtmem: invalid virtual address")

	// ErrNotStarted is returned by operations invoked before Start or after
	// Stop.
	ErrNotStarted = errors.New("virtmem: allocator not started")
)

// ContractViolation reports a programming error: a condition the caller
// protocol guarantees should never occur (releasing a frame whose lock count
// is already zero, reading past the pool, treating an empty frame as
// populated). These are
// not meant to be recovered from; they indicate a bug in the calling code,
// so the allocator panics with this type rather than returning an error.
type ContractViolation struct {
	Op  string
	Msg string
}

func (e *ContractViolation) Error() string {
	return fmt.Sprintf("virtmem: contract violation in %s: %s", e.Op, e.Msg)
}

func violate(op, msg string, args ...any) {
	panic(&ContractViolation{Op: op, Msg: fmt.Sprintf(msg, args...)})
}

// wrapIOErr tags a backing store error with the operation that triggered it.
// The core never retries or otherwise recovers from backend I/O failure; it
// returns the error to the caller wrapped with %w, so errors.Is and errors.As
// still reach the backend's original error (spec: BackingIOError is
// non-recoverable within this layer).
func wrapIOErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("virtmem: %s: backing store error: %w", op, err)
}
