// Package gpu provides a thread-safe device-memory sub-allocator. Drivers
// cap the number of live device memory objects at a few thousand, so
// allocating one per texture or buffer does not scale; this allocator takes
// a small number of large blocks from the backend (256 MiB by default) and
// sub-allocates many small, aligned spans from them.
//
// # Memory Classes
//
// Every allocation names one of three classes, which select the backend
// memory-type properties and the mapping behavior:
//
//   - DeviceLocal: GPU-only memory. Never mapped. Textures, vertex and
//     index buffers.
//   - HostVisible: CPU-writable, coherent. Persistently mapped at block
//     creation. Staging and per-frame uniform data.
//   - HostCached: CPU-readable, cached. Persistently mapped at block
//     creation. Readback targets.
//
// # Backend Contract
//
// The allocator is generic over a Backend: memory-type enumeration, raw
// allocate/free of device memory, persistent mapping, mapped-range flush
// and invalidate, and resource memory requirements. Concrete graphics-API
// bindings live outside this module; tests run against an in-memory fake.
//
// # Behavior
//
// Sub-allocation is first-fit over per-block free-region lists kept sorted
// by offset and eagerly coalesced. Blocks are created on demand up to
// Config.MaxBlocks per class and released only when the allocator closes;
// there is no block eviction and no defragmentation. Alignment padding is
// not reclaimed on free; the fragmentation statistics quantify the cost.
//
// Exhaustion and backend failures surface as errors (ErrOutOfBlocks,
// ErrBackendAlloc, ErrNoSuitableMemoryType); nothing falls back to another
// memory class or to the CPU heap.
//
// # Concurrency
//
// One mutex per class pool: operations on distinct classes do not contend.
// Handles are plain values; the pool owns every mapping, and a handle's
// Mapped pointer stays valid exactly as long as the allocator is open.
// Ordering of flushes and invalidates against GPU work is the caller's
// responsibility.
package gpu
