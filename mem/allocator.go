package mem

import (
	"unsafe"

	"github.com/joshuapare/memkit/internal/bits"
)

// maxScalarAlignment is the strictest alignment of any Go scalar type.
// Allocators whose placement granularity comes from their own block or slot
// geometry (Buddy, Slab, Pool) cannot honor alignments beyond this.
const maxScalarAlignment = 8

// Allocator is the behavioral contract shared by every allocator in this
// package. Exhaustion returns nil from Allocate; misuse panics.
//
// Deallocate semantics vary by discipline: Linear and Stack accept and ignore
// individual frees (use Reset / markers), Pool and Buddy recycle, and Slab
// panics on pointers it does not own.
type Allocator interface {
	// Allocate returns size bytes aligned to alignment, or nil when the
	// fixed capacity cannot satisfy the request. alignment must be a
	// power of two.
	Allocate(size, alignment uintptr) unsafe.Pointer

	// Deallocate returns p to the allocator. Passing nil is always a no-op.
	Deallocate(p unsafe.Pointer)

	// UsedMemory returns the bytes currently handed out. Accounting is
	// per-discipline: cursor distance for Linear/Stack, live slots times
	// sizeof(T) for Pool, live slots times class size for Slab, and
	// rounded block sizes for Buddy.
	UsedMemory() uintptr

	// TotalMemory returns the fixed capacity in bytes.
	TotalMemory() uintptr

	// Name identifies the allocator in diagnostics.
	Name() string
}

// New allocates and zeroes one T from a. Returns nil when a is exhausted.
//
// There is no constructor to run in Go; New writes the zero value of T into
// the slot. T must not contain the only reference to Go-heap memory (the
// region is not scanned by the GC).
func New[T any](a Allocator) *T {
	var zero T
	p := a.Allocate(unsafe.Sizeof(zero), unsafe.Alignof(zero))
	if p == nil {
		return nil
	}
	*(*T)(p) = zero
	return (*T)(p)
}

// Delete returns the slot held by ptr to a. Passing nil is a no-op.
func Delete[T any](a Allocator, ptr *T) {
	if ptr == nil {
		return
	}
	a.Deallocate(unsafe.Pointer(ptr))
}

// checkAlignment panics unless alignment is a power of two.
func checkAlignment(alignment uintptr) {
	if !bits.IsPowerOfTwo(alignment) {
		panic("mem: alignment must be a power of two")
	}
}
