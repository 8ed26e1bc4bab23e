// Package pages acquires and releases page-aligned memory regions directly
// from the operating system, bypassing the Go heap. Allocators thread free
// lists and headers through these regions with unsafe pointer writes, which
// is only legal on memory the garbage collector does not scan.
//
// On unix the regions are anonymous private mappings; elsewhere a heap-backed
// fallback keeps the package portable at the cost of GC visibility.
package pages

import "unsafe"

// Region is one OS-backed allocation. The zero Region is invalid.
type Region struct {
	data []byte
}

// Base returns the first byte of the region.
func (r Region) Base() unsafe.Pointer {
	if len(r.data) == 0 {
		return nil
	}
	return unsafe.Pointer(&r.data[0])
}

// Bytes returns the region as a byte slice.
func (r Region) Bytes() []byte {
	return r.data
}

// Len returns the usable region length in bytes. This may exceed the length
// requested from Acquire because of page rounding.
func (r Region) Len() uintptr {
	return uintptr(len(r.data))
}

// roundToPages rounds n up to a whole number of OS pages.
func roundToPages(n uintptr, pageSize int) uintptr {
	ps := uintptr(pageSize)
	return (n + ps - 1) &^ (ps - 1)
}
