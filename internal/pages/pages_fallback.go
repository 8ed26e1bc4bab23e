//go:build !unix

package pages

import (
	"fmt"
	"os"
)

// Acquire allocates n bytes (rounded up to whole pages) from the Go heap when
// anonymous mappings are not available. The length is rounded to whole pages
// as on unix; the base address is whatever the Go heap returns and is not
// forced to page alignment.
func Acquire(n uintptr) (Region, error) {
	if n == 0 {
		return Region{}, fmt.Errorf("pages: cannot acquire 0 bytes")
	}
	size := roundToPages(n, os.Getpagesize())
	return Region{data: make([]byte, size)}, nil
}

// Release drops the heap-backed region.
func (r *Region) Release() error {
	r.data = nil
	return nil
}
