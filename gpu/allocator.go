package gpu

import (
	"sync"
	"unsafe"

	"github.com/pkg/errors"

	"github.com/joshuapare/memkit/internal/bits"
)

// Allocator multiplexes a few large backend memory blocks into many small
// sub-allocations, one pool per MemoryClass. Safe for concurrent use.
type Allocator struct {
	backend Backend
	config  Config

	// memoryTypes is the backend enumeration, cached at construction.
	memoryTypes []MemoryTypeDesc

	// mu guards lazy pool creation and Close; per-pool mutexes guard
	// everything else.
	mu     sync.Mutex
	pools  [memoryClassCount]*memoryPool
	closed bool
}

// New builds an allocator over the backend. Zero Config fields fall back to
// the defaults (256 MiB blocks, 64 blocks per pool).
func New(backend Backend, config Config) *Allocator {
	return &Allocator{
		backend:     backend,
		config:      config.withDefaults(),
		memoryTypes: backend.MemoryTypes(),
	}
}

// findMemoryType returns the first backend memory type accepted by the
// filter that has all required properties.
func (a *Allocator) findMemoryType(typeFilter uint32, required PropertyFlags) (uint32, bool) {
	for _, mt := range a.memoryTypes {
		if typeFilter&(1<<mt.Index) == 0 {
			continue
		}
		if mt.Properties.Has(required) {
			return mt.Index, true
		}
	}
	return 0, false
}

// pool returns the class's pool, creating it on first use. Creation selects
// the memory type once; every block of the pool shares it.
func (a *Allocator) pool(class MemoryClass) (*memoryPool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return nil, ErrClosed
	}
	if p := a.pools[class]; p != nil {
		return p, nil
	}
	typeIndex, ok := a.findMemoryType(^uint32(0), class.requiredProperties())
	if !ok {
		return nil, errors.Wrapf(ErrNoSuitableMemoryType, "class %s", class)
	}
	p := newMemoryPool(class, typeIndex, a.config.BlockSize)
	a.pools[class] = p
	return p, nil
}

// Allocate returns size bytes aligned to alignment in the given class.
// Existing blocks are tried first-fit in creation order; when none fits and
// the pool is below MaxBlocks, a new block of max(BlockSize, size+alignment)
// is created (and persistently mapped for host-visible classes).
func (a *Allocator) Allocate(size, alignment uint64, class MemoryClass) (Allocation, error) {
	if size == 0 || alignment == 0 || !bits.IsPowerOfTwo(uintptr(alignment)) {
		return Allocation{}, errors.Wrapf(ErrBadRequest, "size %d alignment %d", size, alignment)
	}
	pool, err := a.pool(class)
	if err != nil {
		return Allocation{}, err
	}

	pool.mu.Lock()
	defer pool.mu.Unlock()

	for i, block := range pool.blocks {
		if offset, ok := block.allocate(size, alignment); ok {
			pool.allocCount++
			return a.makeHandle(block, uint32(i), offset, size), nil
		}
	}

	if uint32(len(pool.blocks)) >= a.config.MaxBlocks {
		return Allocation{}, errors.Wrapf(ErrOutOfBlocks, "class %s has %d blocks", class, len(pool.blocks))
	}

	blockSize := pool.blockSize
	if wanted := size + alignment; wanted > blockSize {
		blockSize = wanted
	}
	block, err := a.allocateBlock(pool, blockSize)
	if err != nil {
		return Allocation{}, err
	}
	pool.blocks = append(pool.blocks, block)

	// A fresh block always fits: it was sized for the request.
	offset, ok := block.allocate(size, alignment)
	if !ok {
		panic("gpu: allocation from new block cannot fail")
	}
	pool.allocCount++
	return a.makeHandle(block, uint32(len(pool.blocks)-1), offset, size), nil
}

// allocateBlock creates one backend memory object and maps it when the
// class is host-visible. A mapping failure releases the object before
// returning, so backend resources never leak.
func (a *Allocator) allocateBlock(pool *memoryPool, size uint64) (*memoryBlock, error) {
	memory, err := a.backend.AllocateMemory(size, pool.memoryTypeIndex)
	if err != nil {
		return nil, errors.Wrapf(ErrBackendAlloc, "class %s, %d bytes: %v", pool.class, size, err)
	}
	block := newMemoryBlock(memory, size, pool.memoryTypeIndex)

	if pool.class.hostMapped() {
		ptr, err := a.backend.MapMemory(memory, 0, size)
		if err != nil {
			a.backend.FreeMemory(memory)
			return nil, errors.Wrapf(ErrBackendAlloc, "map %s block: %v", pool.class, err)
		}
		block.mapped = ptr
	}
	return block, nil
}

func (a *Allocator) makeHandle(block *memoryBlock, blockIndex uint32, offset, size uint64) Allocation {
	return Allocation{
		Memory:          block.memory,
		Offset:          offset,
		Size:            size,
		Mapped:          block.mappedAt(offset),
		BlockIndex:      blockIndex,
		MemoryTypeIndex: block.memoryTypeIndex,
	}
}

// AllocateForBuffer asks the backend for the buffer's requirements and
// allocates accordingly. The type filter is validated against the class up
// front so incompatible resources fail with ErrNoSuitableMemoryType before
// any pool work.
func (a *Allocator) AllocateForBuffer(buf Buffer, class MemoryClass) (Allocation, error) {
	return a.allocateForRequirements(a.backend.BufferMemoryRequirements(buf), class)
}

// AllocateForImage is AllocateForBuffer for images.
func (a *Allocator) AllocateForImage(img Image, class MemoryClass) (Allocation, error) {
	return a.allocateForRequirements(a.backend.ImageMemoryRequirements(img), class)
}

func (a *Allocator) allocateForRequirements(req MemoryRequirements, class MemoryClass) (Allocation, error) {
	if _, ok := a.findMemoryType(req.TypeFilter, class.requiredProperties()); !ok {
		return Allocation{}, errors.Wrapf(ErrNoSuitableMemoryType,
			"type filter %#x incompatible with class %s", req.TypeFilter, class)
	}
	return a.Allocate(req.Size, req.Alignment, class)
}

// Deallocate returns the span to its block and zeroes the handle, making a
// repeated Deallocate of the same handle a no-op. Passing nil or an invalid
// handle is also a no-op.
func (a *Allocator) Deallocate(alloc *Allocation) error {
	if alloc == nil || !alloc.Valid() {
		return nil
	}

	pool := a.resolvePool(*alloc)
	if pool == nil {
		return errors.Wrapf(ErrBadHandle, "memory type %d", alloc.MemoryTypeIndex)
	}

	pool.mu.Lock()
	defer pool.mu.Unlock()

	if int(alloc.BlockIndex) >= len(pool.blocks) {
		return errors.Wrapf(ErrBadHandle, "block index %d of %d", alloc.BlockIndex, len(pool.blocks))
	}
	block := pool.blocks[alloc.BlockIndex]
	if block.memory != alloc.Memory {
		return errors.Wrapf(ErrBadHandle, "memory object mismatch in block %d", alloc.BlockIndex)
	}

	block.deallocate(alloc.Offset, alloc.Size)
	pool.allocCount--

	*alloc = Allocation{}
	return nil
}

// resolvePool maps a handle back to its pool by memory-type index. Pools
// are checked in class order; on devices where classes share a type index
// the pool whose block at the handle's index holds the handle's memory
// object is chosen.
func (a *Allocator) resolvePool(alloc Allocation) *memoryPool {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, p := range a.pools {
		if p == nil || p.memoryTypeIndex != alloc.MemoryTypeIndex {
			continue
		}
		p.mu.Lock()
		owns := int(alloc.BlockIndex) < len(p.blocks) && p.blocks[alloc.BlockIndex].memory == alloc.Memory
		p.mu.Unlock()
		if owns {
			return p
		}
	}
	return nil
}

// Map returns the persistent mapping for the allocation's span. Blocks are
// mapped once at creation, so this is a field read: nil for DeviceLocal.
func (a *Allocator) Map(alloc Allocation) unsafe.Pointer {
	if !alloc.Valid() {
		return nil
	}
	return alloc.Mapped
}

// Unmap is a no-op: mappings are persistent and owned by the pool.
func (a *Allocator) Unmap(alloc Allocation) {
	_ = alloc
}

// Flush makes CPU writes to the allocation's span visible to the device.
// No-op for unmapped (DeviceLocal) allocations.
func (a *Allocator) Flush(alloc Allocation) error {
	if !alloc.Valid() || alloc.Mapped == nil {
		return nil
	}
	return a.backend.FlushMappedRange(alloc.Memory, alloc.Offset, alloc.Size)
}

// Invalidate makes device writes to the allocation's span visible to the
// CPU. No-op for unmapped (DeviceLocal) allocations.
func (a *Allocator) Invalidate(alloc Allocation) error {
	if !alloc.Valid() || alloc.Mapped == nil {
		return nil
	}
	return a.backend.InvalidateMappedRange(alloc.Memory, alloc.Offset, alloc.Size)
}

// Stats reports the class pool's current usage. A class never allocated
// from reports zeros.
func (a *Allocator) Stats(class MemoryClass) Stats {
	a.mu.Lock()
	p := a.pools[class]
	a.mu.Unlock()
	if p == nil {
		return Stats{Class: class}
	}
	return p.snapshotStats(a.config.EnableTracking)
}

// AllocatedSize returns the class's handed-out bytes (padding included).
func (a *Allocator) AllocatedSize(class MemoryClass) uint64 {
	return a.Stats(class).AllocatedBytes
}

// TotalSize returns the class's total block capacity.
func (a *Allocator) TotalSize(class MemoryClass) uint64 {
	return a.Stats(class).TotalBytes
}

// AllocationCount returns the class's live allocation count.
func (a *Allocator) AllocationCount(class MemoryClass) uint64 {
	return a.Stats(class).AllocationCount
}

// Close tears down every pool: host-visible blocks are unmapped, every
// memory object is freed. Outstanding handles become invalid. Close is
// idempotent.
func (a *Allocator) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return nil
	}
	a.closed = true

	for i, p := range a.pools {
		if p == nil {
			continue
		}
		p.mu.Lock()
		for _, block := range p.blocks {
			if block.mapped != nil {
				a.backend.UnmapMemory(block.memory)
				block.mapped = nil
			}
			a.backend.FreeMemory(block.memory)
		}
		p.blocks = nil
		p.allocCount = 0
		p.mu.Unlock()
		a.pools[i] = nil
	}
	return nil
}
