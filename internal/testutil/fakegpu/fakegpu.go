// Package fakegpu implements gpu.Backend in process memory so the
// sub-allocator can be exercised without a graphics driver. Every device
// memory object is a host byte slice; maps hand out pointers into it, and
// call counters plus injectable failures cover the error paths.
package fakegpu

import (
	"fmt"
	"sync"
	"unsafe"

	"github.com/joshuapare/memkit/gpu"
)

// Default memory-type layout: one type per allocator class.
func defaultTypes() []gpu.MemoryTypeDesc {
	return []gpu.MemoryTypeDesc{
		{Index: 0, Properties: gpu.PropertyDeviceLocal},
		{Index: 1, Properties: gpu.PropertyHostVisible | gpu.PropertyHostCoherent},
		{Index: 2, Properties: gpu.PropertyHostVisible | gpu.PropertyHostCached},
	}
}

// Backend is an in-memory gpu.Backend. Safe for concurrent use.
type Backend struct {
	mu         sync.Mutex
	types      []gpu.MemoryTypeDesc
	nextHandle uint64

	memory  map[gpu.DeviceMemory][]byte
	mapped  map[gpu.DeviceMemory]bool
	buffers map[gpu.Buffer]gpu.MemoryRequirements
	images  map[gpu.Image]gpu.MemoryRequirements

	// Failure injection: non-nil errors are returned by the next matching
	// call(s) until cleared.
	FailAllocate error
	FailMap      error

	// Call counters.
	AllocateCalls   int
	FreeCalls       int
	MapCalls        int
	UnmapCalls      int
	FlushCalls      int
	InvalidateCalls int
}

// New returns a backend with one memory type per class.
func New() *Backend {
	return NewWithTypes(defaultTypes())
}

// NewWithTypes returns a backend exposing exactly the given memory types,
// for tests that need hostile or unusual devices.
func NewWithTypes(types []gpu.MemoryTypeDesc) *Backend {
	return &Backend{
		types:   types,
		memory:  map[gpu.DeviceMemory][]byte{},
		mapped:  map[gpu.DeviceMemory]bool{},
		buffers: map[gpu.Buffer]gpu.MemoryRequirements{},
		images:  map[gpu.Image]gpu.MemoryRequirements{},
	}
}

// MemoryTypes implements gpu.Backend.
func (b *Backend) MemoryTypes() []gpu.MemoryTypeDesc {
	return b.types
}

// AllocateMemory implements gpu.Backend with a host byte slice per object.
func (b *Backend) AllocateMemory(size uint64, memoryTypeIndex uint32) (gpu.DeviceMemory, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.AllocateCalls++
	if b.FailAllocate != nil {
		return 0, b.FailAllocate
	}
	if int(memoryTypeIndex) >= len(b.types) {
		return 0, fmt.Errorf("fakegpu: memory type %d out of range", memoryTypeIndex)
	}
	b.nextHandle++
	mem := gpu.DeviceMemory(b.nextHandle)
	b.memory[mem] = make([]byte, size)
	return mem, nil
}

// FreeMemory implements gpu.Backend.
func (b *Backend) FreeMemory(mem gpu.DeviceMemory) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.FreeCalls++
	delete(b.memory, mem)
	delete(b.mapped, mem)
}

// MapMemory implements gpu.Backend, returning a pointer into the backing
// slice.
func (b *Backend) MapMemory(mem gpu.DeviceMemory, offset, size uint64) (unsafe.Pointer, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.MapCalls++
	if b.FailMap != nil {
		return nil, b.FailMap
	}
	backing, ok := b.memory[mem]
	if !ok {
		return nil, fmt.Errorf("fakegpu: map of unknown memory %d", mem)
	}
	if offset+size > uint64(len(backing)) {
		return nil, fmt.Errorf("fakegpu: map range [%d, %d) beyond object of %d bytes",
			offset, offset+size, len(backing))
	}
	b.mapped[mem] = true
	return unsafe.Pointer(&backing[offset]), nil
}

// UnmapMemory implements gpu.Backend.
func (b *Backend) UnmapMemory(mem gpu.DeviceMemory) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.UnmapCalls++
	delete(b.mapped, mem)
}

// FlushMappedRange implements gpu.Backend.
func (b *Backend) FlushMappedRange(mem gpu.DeviceMemory, offset, size uint64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.FlushCalls++
	if !b.mapped[mem] {
		return fmt.Errorf("fakegpu: flush of unmapped memory %d", mem)
	}
	return nil
}

// InvalidateMappedRange implements gpu.Backend.
func (b *Backend) InvalidateMappedRange(mem gpu.DeviceMemory, offset, size uint64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.InvalidateCalls++
	if !b.mapped[mem] {
		return fmt.Errorf("fakegpu: invalidate of unmapped memory %d", mem)
	}
	return nil
}

// CreateBuffer mints a buffer resource with the given requirements.
func (b *Backend) CreateBuffer(req gpu.MemoryRequirements) gpu.Buffer {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextHandle++
	buf := gpu.Buffer(b.nextHandle)
	b.buffers[buf] = req
	return buf
}

// CreateImage mints an image resource with the given requirements.
func (b *Backend) CreateImage(req gpu.MemoryRequirements) gpu.Image {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextHandle++
	img := gpu.Image(b.nextHandle)
	b.images[img] = req
	return img
}

// BufferMemoryRequirements implements gpu.Backend.
func (b *Backend) BufferMemoryRequirements(buf gpu.Buffer) gpu.MemoryRequirements {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buffers[buf]
}

// ImageMemoryRequirements implements gpu.Backend.
func (b *Backend) ImageMemoryRequirements(img gpu.Image) gpu.MemoryRequirements {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.images[img]
}

// LiveObjects returns the number of device memory objects not yet freed.
func (b *Backend) LiveObjects() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.memory)
}

// MappedObjects returns the number of currently mapped memory objects.
func (b *Backend) MappedObjects() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.mapped)
}

var _ gpu.Backend = (*Backend)(nil)
