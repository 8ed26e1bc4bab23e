// Package mem provides fixed-capacity, deterministic CPU-side allocators for
// hot paths that must not touch the Go heap: real-time simulation state,
// frame-scoped scratch data, and object pools with predictable lifecycles.
//
// # Allocators
//
// Five allocators are provided, each with a distinct discipline:
//
//   - Linear: bump-pointer arena. O(1) allocation, no individual free,
//     bulk Reset (or ResetToMarker) only.
//   - Stack: bump-pointer with LIFO markers. Markers are byte offsets;
//     FreeToMarker releases everything allocated after the marker.
//   - Pool[T]: fixed-size slots for one object type with free-list
//     recycling. O(1) allocate and deallocate.
//   - Slab: N independent pools, one per power-of-two size class.
//     Requests route to the smallest class that fits.
//   - Buddy: power-of-two splitting and XOR-buddy coalescing. General
//     purpose allocation with deallocation and low external fragmentation.
//
// All five satisfy the Allocator interface and share the same failure
// contract: exhaustion returns nil, never a hidden heap fallback; a request
// larger than any class or the arena also returns nil. Misuse
// (non-power-of-two alignment, alignment stricter than the allocator
// supports, a Pool request larger than sizeof(T), foreign pointers where
// ownership is checked) panics with a "mem:"-prefixed message.
//
// # Memory Source
//
// Each allocator owns one or more page-aligned regions acquired directly
// from the OS (see internal/pages). Capacity is fixed at construction and
// released by Close. The regions are invisible to the garbage collector, so
// values placed in them must not hold the only reference to Go-heap memory.
//
// # Usage Example
//
//	frame, err := mem.NewLinear(10 << 20) // 10 MiB frame arena
//	if err != nil {
//	    return err
//	}
//	defer frame.Close()
//
//	buf := frame.Allocate(1024, 16)
//	entity := mem.New[Entity](frame)
//
//	// End of frame: everything at once.
//	frame.Reset()
//
// # Thread Safety
//
// None of the allocators in this package are safe for concurrent use.
// Callers must synchronize externally or keep one allocator per goroutine.
// The gpu package's sub-allocator is the thread-safe member of this module.
package mem
