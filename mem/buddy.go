package mem

import (
	"fmt"
	"unsafe"

	"github.com/joshuapare/memkit/internal/bits"
	"github.com/joshuapare/memkit/internal/pages"
)

const (
	// minBlockSize is the smallest block the buddy system hands out,
	// header included. Level 0 blocks are this size.
	minBlockSize uintptr = 64

	// maxLevels bounds the level system: level k blocks are
	// minBlockSize << k bytes, so 20 levels span 64 B to 32 MiB arenas.
	maxLevels = 20

	// headerSize is the allocation header prefixed to every handed-out
	// block. It stores the rounded block size so Deallocate can recover
	// the level without any side table.
	headerSize = unsafe.Sizeof(uint64(0))
)

// maxArenaSize is the largest capacity the level system can address.
const maxArenaSize = minBlockSize << (maxLevels - 1)

// Buddy is a binary-buddy allocator: capacity is rounded up to a power of
// two, allocations are rounded to power-of-two blocks, large blocks split
// into halves ("buddies") on demand, and freed buddies coalesce back up the
// levels. Each level keeps a singly-linked free list threaded through the
// free blocks themselves.
//
// The buddy of a block at offset o with size s sits at offset o XOR s, which
// is what makes coalescing a constant-space walk. The free-list search during
// coalescing is linear in the blocks free at that level; levels are few and
// deep levels stay short, so this has not warranted an address-indexed
// structure yet.
//
// Not safe for concurrent use. Must not be copied after first use.
type Buddy struct {
	region    pages.Region
	base      uintptr
	capacity  uintptr // rounded power of two
	used      uintptr
	topLevel  uint
	freeLists [maxLevels]uintptr // head block address per level; 0 = empty
}

// NewBuddy rounds capacity up to the next power of two, acquires that many
// bytes of pages, and seeds the top level with one block covering the arena.
func NewBuddy(capacity uintptr) (*Buddy, error) {
	if capacity == 0 {
		return nil, ErrBadCapacity
	}
	c := bits.NextPowerOfTwo(capacity)
	if c < minBlockSize {
		c = minBlockSize
	}
	if c > maxArenaSize {
		return nil, ErrArenaTooLarge
	}
	region, err := pages.Acquire(c)
	if err != nil {
		return nil, fmt.Errorf("mem: buddy: %w", err)
	}
	b := &Buddy{
		region:   region,
		base:     uintptr(region.Base()),
		capacity: c,
		topLevel: levelOf(c),
	}
	b.pushFree(b.topLevel, b.base)
	return b, nil
}

// levelOf maps a power-of-two block size to its level index.
func levelOf(blockSize uintptr) uint {
	return bits.Log2(blockSize) - bits.Log2(minBlockSize)
}

// levelSize maps a level index back to its block size.
func levelSize(level uint) uintptr {
	return minBlockSize << level
}

// Allocate rounds size plus the header up to a power-of-two block (at least
// minBlockSize), takes the smallest free block that fits, splits it down to
// the target level, and returns the address after the header. Returns nil
// when no level at or above the target has a free block.
//
// alignment must not exceed the platform's max scalar alignment; block
// placement provides everything up to that naturally.
func (b *Buddy) Allocate(size, alignment uintptr) unsafe.Pointer {
	checkAlignment(alignment)
	if alignment > maxScalarAlignment {
		panic("mem: buddy alignment limited to max scalar alignment")
	}

	need := bits.NextPowerOfTwo(size + headerSize)
	if need < minBlockSize {
		need = minBlockSize
	}
	if need > b.capacity {
		return nil
	}
	target := levelOf(need)

	// Find the lowest level at or above target with a free block.
	level := target
	for level <= b.topLevel && b.freeLists[level] == 0 {
		level++
	}
	if level > b.topLevel {
		return nil
	}

	block := b.popFree(level)

	// Split down: each step frees the upper half at the level below.
	for level > target {
		level--
		b.pushFree(level, block+levelSize(level))
	}

	*(*uint64)(unsafe.Pointer(block)) = uint64(need)
	b.used += need
	return unsafe.Pointer(block + headerSize)
}

// Deallocate reads the block size from the header, coalesces with free
// buddies as far up the levels as possible, and pushes the result onto its
// level's free list. nil is a no-op. The pointer must have come from this
// allocator; that is the caller's contract.
func (b *Buddy) Deallocate(p unsafe.Pointer) {
	if p == nil {
		return
	}
	block := uintptr(p) - headerSize
	need := uintptr(*(*uint64)(unsafe.Pointer(block)))
	level := levelOf(need)
	offset := block - b.base

	blockSize := need
	for level < b.topLevel {
		buddyOffset := offset ^ blockSize
		if buddyOffset >= b.capacity {
			break
		}
		if !b.removeFree(level, b.base+buddyOffset) {
			break // buddy not free; stop promoting
		}
		if buddyOffset < offset {
			offset = buddyOffset
		}
		blockSize <<= 1
		level++
	}
	b.pushFree(level, b.base+offset)
	b.used -= need
}

// UsedMemory returns the summed rounded block sizes currently handed out.
func (b *Buddy) UsedMemory() uintptr {
	return b.used
}

// TotalMemory returns the rounded arena capacity.
func (b *Buddy) TotalMemory() uintptr {
	return b.capacity
}

// Name returns "Buddy".
func (b *Buddy) Name() string {
	return "Buddy"
}

// Close releases the arena's pages. The allocator must not be used after.
func (b *Buddy) Close() error {
	b.base = 0
	b.capacity = 0
	b.used = 0
	for i := range b.freeLists {
		b.freeLists[i] = 0
	}
	return b.region.Release()
}

// pushFree links the block at addr onto level's free list. The link lives in
// the block's first word; free blocks are always at least minBlockSize.
func (b *Buddy) pushFree(level uint, addr uintptr) {
	*(*uintptr)(unsafe.Pointer(addr)) = b.freeLists[level]
	b.freeLists[level] = addr
}

// popFree unlinks and returns the head of level's free list, which must be
// non-empty.
func (b *Buddy) popFree(level uint) uintptr {
	addr := b.freeLists[level]
	b.freeLists[level] = *(*uintptr)(unsafe.Pointer(addr))
	return addr
}

// removeFree unlinks the block at addr from level's free list, reporting
// whether it was present.
func (b *Buddy) removeFree(level uint, addr uintptr) bool {
	var prev uintptr
	for cur := b.freeLists[level]; cur != 0; cur = *(*uintptr)(unsafe.Pointer(cur)) {
		if cur == addr {
			next := *(*uintptr)(unsafe.Pointer(cur))
			if prev == 0 {
				b.freeLists[level] = next
			} else {
				*(*uintptr)(unsafe.Pointer(prev)) = next
			}
			return true
		}
		prev = cur
	}
	return false
}

var _ Allocator = (*Buddy)(nil)
