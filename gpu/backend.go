package gpu

import "unsafe"

// DeviceMemory is an opaque backend handle to one driver memory object.
// Zero means none.
type DeviceMemory uint64

// Buffer is an opaque backend handle to a buffer resource.
type Buffer uint64

// Image is an opaque backend handle to an image resource.
type Image uint64

// PropertyFlags describe a backend memory type's capabilities.
type PropertyFlags uint32

const (
	// PropertyDeviceLocal marks memory resident on the device.
	PropertyDeviceLocal PropertyFlags = 1 << iota
	// PropertyHostVisible marks memory the CPU can map.
	PropertyHostVisible
	// PropertyHostCoherent marks mapped memory that needs no explicit
	// flush or invalidate.
	PropertyHostCoherent
	// PropertyHostCached marks mapped memory with CPU-side caching,
	// preferred for readback.
	PropertyHostCached
)

// Has reports whether every flag in want is set.
func (f PropertyFlags) Has(want PropertyFlags) bool {
	return f&want == want
}

// MemoryTypeDesc is one entry of the backend's memory-type enumeration.
type MemoryTypeDesc struct {
	Index      uint32
	Properties PropertyFlags
}

// MemoryRequirements describe what a resource demands from its memory:
// a span size, a placement alignment, and a bitmask of acceptable
// memory-type indices (bit i set means type index i is usable).
type MemoryRequirements struct {
	Size       uint64
	Alignment  uint64
	TypeFilter uint32
}

// Backend is the contract the sub-allocator requires from a graphics API.
// Implementations wrap a concrete driver; this module ships none, only the
// in-memory fake used by tests.
//
// All methods must be safe for concurrent use; the allocator calls them
// while holding at most one pool mutex.
type Backend interface {
	// MemoryTypes enumerates the device's memory types. The result must
	// be stable for the backend's lifetime.
	MemoryTypes() []MemoryTypeDesc

	// AllocateMemory creates one device memory object of size bytes in
	// the given memory type.
	AllocateMemory(size uint64, memoryTypeIndex uint32) (DeviceMemory, error)

	// FreeMemory destroys a memory object. The object must be unmapped.
	FreeMemory(mem DeviceMemory)

	// MapMemory maps [offset, offset+size) of a memory object into CPU
	// address space.
	MapMemory(mem DeviceMemory, offset, size uint64) (unsafe.Pointer, error)

	// UnmapMemory undoes MapMemory.
	UnmapMemory(mem DeviceMemory)

	// FlushMappedRange makes CPU writes in the range visible to the
	// device.
	FlushMappedRange(mem DeviceMemory, offset, size uint64) error

	// InvalidateMappedRange makes device writes in the range visible to
	// the CPU.
	InvalidateMappedRange(mem DeviceMemory, offset, size uint64) error

	// BufferMemoryRequirements reports size, alignment and acceptable
	// memory types for a buffer.
	BufferMemoryRequirements(buf Buffer) MemoryRequirements

	// ImageMemoryRequirements reports size, alignment and acceptable
	// memory types for an image.
	ImageMemoryRequirements(img Image) MemoryRequirements
}
