package gpu

import (
	"sort"
	"unsafe"

	"github.com/joshuapare/memkit/internal/bits"
)

// freeRegion is a contiguous unused span within a block. The block keeps
// its regions sorted by offset and pairwise non-adjacent (adjacent regions
// are always coalesced on free).
type freeRegion struct {
	offset uint64
	size   uint64
}

// memoryBlock wraps one driver memory object and sub-allocates spans from
// it. All methods are called with the owning pool's mutex held.
type memoryBlock struct {
	memory          DeviceMemory
	size            uint64
	used            uint64 // handed-out bytes plus alignment padding
	mapped          unsafe.Pointer
	memoryTypeIndex uint32
	freeRegions     []freeRegion
}

func newMemoryBlock(memory DeviceMemory, size uint64, typeIndex uint32) *memoryBlock {
	return &memoryBlock{
		memory:          memory,
		size:            size,
		memoryTypeIndex: typeIndex,
		freeRegions:     []freeRegion{{offset: 0, size: size}},
	}
}

// allocate carves an aligned span out of the first region that fits.
// The second result is false when no region can serve the request; absence
// of a fit is expressed explicitly rather than with a sentinel offset.
func (b *memoryBlock) allocate(size, alignment uint64) (uint64, bool) {
	for i := range b.freeRegions {
		r := &b.freeRegions[i]
		aligned := bits.AlignUp64(r.offset, alignment)
		padding := aligned - r.offset
		if r.size < size+padding {
			continue
		}

		// Shrink the region from the front; the padding bytes before
		// aligned never return to the free list, not even when the span
		// frees (documented limitation, measured by the fragmentation
		// stats).
		r.offset = aligned + size
		r.size -= size + padding
		if r.size == 0 {
			b.freeRegions = append(b.freeRegions[:i], b.freeRegions[i+1:]...)
		}

		b.used += size + padding
		return aligned, true
	}
	return 0, false
}

// deallocate returns a span, re-sorts the region list, and coalesces
// adjacent regions. Padding from the original allocate is not reclaimed.
func (b *memoryBlock) deallocate(offset, size uint64) {
	b.freeRegions = append(b.freeRegions, freeRegion{offset: offset, size: size})
	sort.Slice(b.freeRegions, func(i, j int) bool {
		return b.freeRegions[i].offset < b.freeRegions[j].offset
	})
	b.coalesce()
	b.used -= size
}

// coalesce merges every adjacent pair in the sorted region list in one
// pass.
func (b *memoryBlock) coalesce() {
	if len(b.freeRegions) <= 1 {
		return
	}
	out := b.freeRegions[:1]
	for _, next := range b.freeRegions[1:] {
		cur := &out[len(out)-1]
		if cur.offset+cur.size == next.offset {
			cur.size += next.size
		} else {
			out = append(out, next)
		}
	}
	b.freeRegions = out
}

// mappedAt returns the CPU address of offset within the block's persistent
// mapping, or nil when the block is not mapped.
func (b *memoryBlock) mappedAt(offset uint64) unsafe.Pointer {
	if b.mapped == nil {
		return nil
	}
	return unsafe.Add(b.mapped, offset)
}

// fragmentation is 0 for one free region and approaches 1 as the free
// space splinters.
func (b *memoryBlock) fragmentation() float64 {
	if len(b.freeRegions) == 0 {
		return 0
	}
	return 1 - 1/float64(len(b.freeRegions))
}
