package mem

import (
	"fmt"
	"unsafe"

	"github.com/joshuapare/memkit/internal/bits"
	"github.com/joshuapare/memkit/internal/pages"
)

// slab is one size class: a dedicated region carved into equal slots with a
// free list threaded through the free ones. It is the Pool mechanism minus
// the type parameter, since classes are byte sizes rather than Go types.
type slab struct {
	region    pages.Region
	base      uintptr
	slotSize  uintptr
	objects   int
	head      unsafe.Pointer
	usedCount int
}

func (s *slab) init(slotSize uintptr, objects int) error {
	region, err := pages.Acquire(slotSize * uintptr(objects))
	if err != nil {
		return err
	}
	s.region = region
	s.base = uintptr(region.Base())
	s.slotSize = slotSize
	s.objects = objects
	s.rebuildFreeList()
	return nil
}

func (s *slab) rebuildFreeList() {
	cur := s.base
	for i := 0; i < s.objects-1; i++ {
		next := cur + s.slotSize
		*(*unsafe.Pointer)(unsafe.Pointer(cur)) = unsafe.Pointer(next)
		cur = next
	}
	*(*unsafe.Pointer)(unsafe.Pointer(cur)) = nil
	s.head = unsafe.Pointer(s.base)
	s.usedCount = 0
}

func (s *slab) allocate() unsafe.Pointer {
	if s.head == nil {
		return nil
	}
	slot := s.head
	s.head = *(*unsafe.Pointer)(slot)
	s.usedCount++
	return slot
}

func (s *slab) deallocate(p unsafe.Pointer) {
	if s.usedCount == 0 {
		panic("mem: slab deallocate without matching allocate")
	}
	*(*unsafe.Pointer)(p) = s.head
	s.head = p
	s.usedCount--
}

// contains answers pointer ownership in O(1): the slab's span is one
// contiguous region.
func (s *slab) contains(p unsafe.Pointer) bool {
	addr := uintptr(p)
	return addr >= s.base && addr < s.base+s.slotSize*uintptr(s.objects)
}

// Slab routes allocations across N independent size-class pools. Classes are
// rounded up to powers of two at construction and must form a strictly
// increasing sequence after rounding. A request is served by the smallest
// class that fits; when that class is exhausted the allocation fails rather
// than spilling into a larger class, so callers size each class for its own
// distribution.
//
// Not safe for concurrent use. Must not be copied after first use.
type Slab struct {
	slabs   []slab
	classes []uintptr
}

// NewSlab builds one pool per size class, each with objectsPerSlab slots.
// Classes smaller than one pointer are rounded up to pointer width so the
// free-list link always fits in a free slot.
func NewSlab(objectsPerSlab int, sizeClasses ...uintptr) (*Slab, error) {
	if objectsPerSlab <= 0 {
		return nil, ErrBadCapacity
	}
	if len(sizeClasses) == 0 {
		return nil, ErrBadSizeClasses
	}

	classes := make([]uintptr, len(sizeClasses))
	for i, c := range sizeClasses {
		rounded := bits.NextPowerOfTwo(c)
		if rounded < pointerSize {
			rounded = pointerSize
		}
		if i > 0 && rounded <= classes[i-1] {
			return nil, ErrBadSizeClasses
		}
		classes[i] = rounded
	}

	sa := &Slab{
		slabs:   make([]slab, len(classes)),
		classes: classes,
	}
	for i, c := range classes {
		if err := sa.slabs[i].init(c, objectsPerSlab); err != nil {
			sa.Close()
			return nil, fmt.Errorf("mem: slab class %d: %w", c, err)
		}
	}
	return sa, nil
}

// Allocate routes the request to the smallest class >= size and pops a slot,
// or returns nil when no class fits or the fitting class is exhausted. The
// linear scan over classes is deliberate: N is small and branch-predictable.
func (sa *Slab) Allocate(size, alignment uintptr) unsafe.Pointer {
	checkAlignment(alignment)
	if alignment > maxScalarAlignment {
		panic("mem: slab alignment limited to max scalar alignment")
	}

	for i := range sa.classes {
		if size <= sa.classes[i] {
			return sa.slabs[i].allocate()
		}
	}
	return nil
}

// Deallocate locates the owning slab by pointer-range containment and pushes
// the slot back. A pointer owned by no slab is a fatal caller bug.
func (sa *Slab) Deallocate(p unsafe.Pointer) {
	if p == nil {
		return
	}
	for i := range sa.slabs {
		if sa.slabs[i].contains(p) {
			sa.slabs[i].deallocate(p)
			return
		}
	}
	panic("mem: pointer not allocated from this slab allocator")
}

// Reset rebuilds every class's free list; all outstanding pointers are
// invalidated.
func (sa *Slab) Reset() {
	for i := range sa.slabs {
		sa.slabs[i].rebuildFreeList()
	}
}

// UsedMemory returns live slots times slot size, summed across classes.
func (sa *Slab) UsedMemory() uintptr {
	var total uintptr
	for i := range sa.slabs {
		total += uintptr(sa.slabs[i].usedCount) * sa.slabs[i].slotSize
	}
	return total
}

// TotalMemory returns the summed capacity of all classes.
func (sa *Slab) TotalMemory() uintptr {
	var total uintptr
	for i := range sa.slabs {
		total += sa.slabs[i].slotSize * uintptr(sa.slabs[i].objects)
	}
	return total
}

// Name returns "Slab".
func (sa *Slab) Name() string {
	return "Slab"
}

// SlabCount returns the number of size classes.
func (sa *Slab) SlabCount() int {
	return len(sa.classes)
}

// SizeClasses returns the rounded class sizes in routing order.
func (sa *Slab) SizeClasses() []uintptr {
	out := make([]uintptr, len(sa.classes))
	copy(out, sa.classes)
	return out
}

// SlabUsedCount returns the live-slot count of one class.
func (sa *Slab) SlabUsedCount(index int) int {
	return sa.slabs[index].usedCount
}

// SlabFreeCount returns the free-slot count of one class.
func (sa *Slab) SlabFreeCount(index int) int {
	return sa.slabs[index].objects - sa.slabs[index].usedCount
}

// Close releases every class's pages. The allocator must not be used after.
func (sa *Slab) Close() error {
	var firstErr error
	for i := range sa.slabs {
		if err := sa.slabs[i].region.Release(); err != nil && firstErr == nil {
			firstErr = err
		}
		sa.slabs[i].head = nil
		sa.slabs[i].usedCount = 0
		sa.slabs[i].objects = 0
	}
	return firstErr
}

var _ Allocator = (*Slab)(nil)
