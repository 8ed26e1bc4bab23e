package gpu

import "unsafe"

// MemoryClass selects the backend memory properties an allocation requires
// and whether its block is persistently mapped.
type MemoryClass uint8

const (
	// DeviceLocal is GPU-only memory (VRAM). Never mapped.
	DeviceLocal MemoryClass = iota
	// HostVisible is CPU-writable coherent memory, persistently mapped.
	HostVisible
	// HostCached is CPU-readable cached memory, persistently mapped.
	HostCached

	memoryClassCount = 3
)

// String returns the class name for diagnostics.
func (c MemoryClass) String() string {
	switch c {
	case DeviceLocal:
		return "DeviceLocal"
	case HostVisible:
		return "HostVisible"
	case HostCached:
		return "HostCached"
	}
	return "Unknown"
}

// requiredProperties maps the class to the backend property flags it needs.
// This mapping is part of the allocator's contract.
func (c MemoryClass) requiredProperties() PropertyFlags {
	switch c {
	case DeviceLocal:
		return PropertyDeviceLocal
	case HostVisible:
		return PropertyHostVisible | PropertyHostCoherent
	case HostCached:
		return PropertyHostVisible | PropertyHostCached
	}
	return 0
}

// hostMapped reports whether blocks of this class are persistently mapped
// at creation.
func (c MemoryClass) hostMapped() bool {
	return c == HostVisible || c == HostCached
}

// Default configuration values.
const (
	DefaultBlockSize uint64 = 256 << 20
	DefaultMaxBlocks uint32 = 64
)

// Config controls pool behavior. The zero value of BlockSize or MaxBlocks
// selects the default; use DefaultConfig for the standard setup with
// per-block tracking enabled.
type Config struct {
	// BlockSize is the nominal size of one pool block. A request whose
	// size plus alignment exceeds this gets an oversized block of
	// size+alignment bytes.
	BlockSize uint64

	// MaxBlocks bounds the blocks per class pool; reaching it fails
	// further growth with ErrOutOfBlocks.
	MaxBlocks uint32

	// EnableTracking includes detailed per-block entries in Stats.
	EnableTracking bool
}

// DefaultConfig returns the standard configuration: 256 MiB blocks, 64
// blocks per pool, tracking on.
func DefaultConfig() Config {
	return Config{
		BlockSize:      DefaultBlockSize,
		MaxBlocks:      DefaultMaxBlocks,
		EnableTracking: true,
	}
}

func (c Config) withDefaults() Config {
	if c.BlockSize == 0 {
		c.BlockSize = DefaultBlockSize
	}
	if c.MaxBlocks == 0 {
		c.MaxBlocks = DefaultMaxBlocks
	}
	return c
}

// Allocation is the value handle for one sub-allocation. It owns nothing:
// the pool owns the memory object and the mapping, and the handle's Mapped
// pointer is valid only while the allocator is open.
//
// Deallocate zeroes the handle it is given, so a second Deallocate of the
// same handle is a harmless no-op rather than a double free.
type Allocation struct {
	// Memory is the backend memory object the span lives in.
	Memory DeviceMemory
	// Offset is the span's byte offset within Memory.
	Offset uint64
	// Size is the requested span size (alignment padding excluded).
	Size uint64
	// Mapped points at the span inside the block's persistent mapping,
	// or nil for DeviceLocal allocations.
	Mapped unsafe.Pointer
	// BlockIndex locates the owning block within its pool.
	BlockIndex uint32
	// MemoryTypeIndex is the backend memory type the block was created in.
	MemoryTypeIndex uint32
}

// Valid reports whether the handle refers to a live allocation.
func (a Allocation) Valid() bool {
	return a.Memory != 0
}
