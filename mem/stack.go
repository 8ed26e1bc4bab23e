package mem

import (
	"fmt"
	"unsafe"

	"github.com/joshuapare/memkit/internal/bits"
	"github.com/joshuapare/memkit/internal/pages"
)

// Marker is a saved Stack cursor position, expressed as a byte offset from
// the stack base so that it stays meaningful if the Stack value moves.
type Marker = uintptr

// Stack is a bump-pointer allocator with LIFO deallocation through markers.
// Allocation is identical to Linear; freeing happens only via FreeToMarker,
// which releases everything allocated after the marker. Individual
// Deallocate calls are accepted and ignored.
//
// Markers must be freed in LIFO order; the allocator does not detect
// out-of-order use beyond the marker-beyond-cursor case.
//
// Not safe for concurrent use. Must not be copied after first use.
type Stack struct {
	region   pages.Region
	base     uintptr
	current  Marker // offset from base
	capacity uintptr
}

// NewStack acquires capacity bytes of pages and returns a stack over them.
func NewStack(capacity uintptr) (*Stack, error) {
	if capacity == 0 {
		return nil, ErrBadCapacity
	}
	region, err := pages.Acquire(capacity)
	if err != nil {
		return nil, fmt.Errorf("mem: stack: %w", err)
	}
	return &Stack{
		region:   region,
		base:     uintptr(region.Base()),
		current:  0,
		capacity: capacity,
	}, nil
}

// Allocate bumps the cursor past an aligned size-byte span and returns its
// start, or nil if the stack cannot hold it.
func (s *Stack) Allocate(size, alignment uintptr) unsafe.Pointer {
	checkAlignment(alignment)

	// Align the absolute address, not the offset; the base is page aligned
	// but the distinction matters if that ever changes.
	addr := bits.AlignUp(s.base+s.current, alignment)
	aligned := addr - s.base
	if aligned > s.capacity || size > s.capacity-aligned {
		return nil
	}
	s.current = aligned + size
	return unsafe.Pointer(addr)
}

// Deallocate is a no-op; markers are the supported discipline.
func (s *Stack) Deallocate(p unsafe.Pointer) {
	_ = p
}

// Marker returns the current cursor offset for a later FreeToMarker.
func (s *Stack) Marker() Marker {
	return s.current
}

// FreeToMarker releases every allocation made after marker. The marker must
// not exceed the current cursor; that would "free" memory never handed out.
func (s *Stack) FreeToMarker(marker Marker) {
	if marker > s.current {
		panic("mem: stack marker beyond cursor")
	}
	if marker > s.capacity {
		panic("mem: stack marker beyond capacity")
	}
	s.current = marker
}

// Reset releases every allocation. Equivalent to FreeToMarker(0).
func (s *Stack) Reset() {
	s.current = 0
}

// UsedMemory returns the bytes between base and cursor, padding included.
func (s *Stack) UsedMemory() uintptr {
	return s.current
}

// TotalMemory returns the capacity fixed at construction.
func (s *Stack) TotalMemory() uintptr {
	return s.capacity
}

// FreeMemory returns the bytes still available for allocation.
func (s *Stack) FreeMemory() uintptr {
	return s.capacity - s.current
}

// Name returns "Stack".
func (s *Stack) Name() string {
	return "Stack"
}

// Close releases the stack's pages. The allocator must not be used after.
func (s *Stack) Close() error {
	s.base = 0
	s.current = 0
	s.capacity = 0
	return s.region.Release()
}

var _ Allocator = (*Stack)(nil)
