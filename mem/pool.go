package mem

import (
	"fmt"
	"unsafe"

	"github.com/joshuapare/memkit/internal/pages"
)

// pointerSize is the width of the free-list link threaded through free slots.
const pointerSize = unsafe.Sizeof(uintptr(0))

// Pool is a fixed-capacity allocator for objects of one type T. The backing
// region is carved into capacity slots of max(sizeof(T), one pointer) bytes;
// a singly-linked free list threads through the free slots, using each free
// slot's first word as the next link. Allocate pops the head, Deallocate
// pushes, both O(1).
//
// Deallocate does not validate that the pointer came from this pool; that is
// the caller's contract, exactly as with the other unchecked allocators.
// Reset rebuilds the free list in slot order, overwriting the first word of
// every slot, live or not. T values are raw storage only: the pool never
// runs finalizers or clears slots on free.
//
// Not safe for concurrent use. Must not be copied after first use.
type Pool[T any] struct {
	region    pages.Region
	head      unsafe.Pointer
	slotSize  uintptr
	capacity  int
	usedCount int
}

// NewPool acquires pages for capacity slots of T and threads the initial
// free list so that the first allocation returns slot 0.
func NewPool[T any](capacity int) (*Pool[T], error) {
	if capacity <= 0 {
		return nil, ErrBadCapacity
	}
	var zero T
	slotSize := unsafe.Sizeof(zero)
	if slotSize < pointerSize {
		slotSize = pointerSize
	}
	region, err := pages.Acquire(uintptr(capacity) * slotSize)
	if err != nil {
		return nil, fmt.Errorf("mem: pool: %w", err)
	}
	p := &Pool[T]{
		region:   region,
		slotSize: slotSize,
		capacity: capacity,
	}
	p.Reset()
	return p, nil
}

// Allocate pops one slot from the free list, or returns nil when the pool is
// exhausted. size must not exceed sizeof(T) and alignment must not exceed
// alignof(T); the parameters exist to satisfy Allocator, the slot geometry
// is fixed.
func (p *Pool[T]) Allocate(size, alignment uintptr) unsafe.Pointer {
	checkAlignment(alignment)
	var zero T
	if size > unsafe.Sizeof(zero) {
		panic("mem: pool allocation larger than sizeof(T)")
	}
	if alignment > unsafe.Alignof(zero) {
		panic("mem: pool alignment stricter than alignof(T)")
	}

	if p.head == nil {
		return nil
	}
	slot := p.head
	p.head = *(*unsafe.Pointer)(slot)
	p.usedCount++
	return slot
}

// Deallocate pushes the slot back onto the free list. nil is a no-op.
func (p *Pool[T]) Deallocate(ptr unsafe.Pointer) {
	if ptr == nil {
		return
	}
	if p.usedCount == 0 {
		panic("mem: pool deallocate without matching allocate")
	}
	*(*unsafe.Pointer)(ptr) = p.head
	p.head = ptr
	p.usedCount--
}

// Get allocates one T. Shorthand for New[T] bound to this pool.
func (p *Pool[T]) Get() *T {
	var zero T
	ptr := p.Allocate(unsafe.Sizeof(zero), unsafe.Alignof(zero))
	if ptr == nil {
		return nil
	}
	*(*T)(ptr) = zero
	return (*T)(ptr)
}

// Put returns one T to the pool. nil is a no-op.
func (p *Pool[T]) Put(obj *T) {
	if obj == nil {
		return
	}
	p.Deallocate(unsafe.Pointer(obj))
}

// Reset rebuilds the free list in slot order. All outstanding pointers are
// invalidated; the next allocation returns slot 0 again.
func (p *Pool[T]) Reset() {
	base := uintptr(p.region.Base())
	cur := base
	for i := 0; i < p.capacity-1; i++ {
		next := cur + p.slotSize
		*(*unsafe.Pointer)(unsafe.Pointer(cur)) = unsafe.Pointer(next)
		cur = next
	}
	*(*unsafe.Pointer)(unsafe.Pointer(cur)) = nil
	p.head = unsafe.Pointer(base)
	p.usedCount = 0
}

// UsedMemory returns live slots times sizeof(T).
func (p *Pool[T]) UsedMemory() uintptr {
	var zero T
	return uintptr(p.usedCount) * unsafe.Sizeof(zero)
}

// TotalMemory returns capacity times sizeof(T).
func (p *Pool[T]) TotalMemory() uintptr {
	var zero T
	return uintptr(p.capacity) * unsafe.Sizeof(zero)
}

// Capacity returns the slot count fixed at construction.
func (p *Pool[T]) Capacity() int {
	return p.capacity
}

// UsedCount returns the number of live slots.
func (p *Pool[T]) UsedCount() int {
	return p.usedCount
}

// FreeCount returns the number of slots on the free list.
func (p *Pool[T]) FreeCount() int {
	return p.capacity - p.usedCount
}

// Name returns "Pool".
func (p *Pool[T]) Name() string {
	return "Pool"
}

// Close releases the pool's pages. The allocator must not be used after.
func (p *Pool[T]) Close() error {
	p.head = nil
	p.capacity = 0
	p.usedCount = 0
	return p.region.Release()
}

var _ Allocator = (*Pool[struct{ a, b uint64 }])(nil)
