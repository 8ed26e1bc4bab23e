package mem

import (
	"fmt"
	"unsafe"

	"github.com/joshuapare/memkit/internal/bits"
	"github.com/joshuapare/memkit/internal/pages"
)

// Linear is a bump-pointer arena. Allocation advances a cursor; individual
// deallocation is accepted and ignored. Reset (or ResetToMarker) releases
// everything at once, which makes Linear the cheapest allocator here for
// frame- and load-scoped data.
//
// Markers are raw addresses capturing the cursor. They own nothing and are
// meaningless after any Reset that moves the cursor below them.
//
// Not safe for concurrent use. Must not be copied after first use.
type Linear struct {
	region   pages.Region
	base     uintptr
	current  uintptr
	capacity uintptr
}

// NewLinear acquires capacity bytes of pages and returns an arena over them.
func NewLinear(capacity uintptr) (*Linear, error) {
	if capacity == 0 {
		return nil, ErrBadCapacity
	}
	region, err := pages.Acquire(capacity)
	if err != nil {
		return nil, fmt.Errorf("mem: linear: %w", err)
	}
	base := uintptr(region.Base())
	return &Linear{
		region:   region,
		base:     base,
		current:  base,
		capacity: capacity,
	}, nil
}

// Allocate bumps the cursor past an aligned size-byte span and returns its
// start, or nil if the arena cannot hold it. A zero size is accepted; the
// returned pointer must not be dereferenced.
func (l *Linear) Allocate(size, alignment uintptr) unsafe.Pointer {
	checkAlignment(alignment)

	aligned := bits.AlignUp(l.current, alignment)
	end := l.base + l.capacity
	if aligned > end || size > end-aligned {
		return nil
	}
	l.current = aligned + size
	return unsafe.Pointer(aligned)
}

// Deallocate is a no-op; use Reset or ResetToMarker.
func (l *Linear) Deallocate(p unsafe.Pointer) {
	_ = p
}

// Reset moves the cursor back to the arena base, releasing every allocation.
func (l *Linear) Reset() {
	l.current = l.base
}

// Marker returns the current cursor position.
func (l *Linear) Marker() unsafe.Pointer {
	return unsafe.Pointer(l.current)
}

// ResetToMarker moves the cursor back to a position previously returned by
// Marker, releasing everything allocated after it. The marker must lie in
// [base, cursor]; anything else is a caller bug.
func (l *Linear) ResetToMarker(marker unsafe.Pointer) {
	m := uintptr(marker)
	if m < l.base || m > l.current {
		panic("mem: linear marker outside [base, cursor]")
	}
	l.current = m
}

// UsedMemory returns the bytes between base and cursor, padding included.
func (l *Linear) UsedMemory() uintptr {
	return l.current - l.base
}

// TotalMemory returns the capacity fixed at construction.
func (l *Linear) TotalMemory() uintptr {
	return l.capacity
}

// Name returns "Linear".
func (l *Linear) Name() string {
	return "Linear"
}

// Close releases the arena's pages. The allocator must not be used after.
func (l *Linear) Close() error {
	l.base = 0
	l.current = 0
	l.capacity = 0
	return l.region.Release()
}

var _ Allocator = (*Linear)(nil)
