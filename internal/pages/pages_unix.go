//go:build unix

package pages

import (
	"errors"
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// Acquire maps n bytes (rounded up to whole pages) of anonymous, private,
// read-write memory. The returned region is zero-filled by the kernel.
func Acquire(n uintptr) (Region, error) {
	if n == 0 {
		return Region{}, fmt.Errorf("pages: cannot acquire 0 bytes")
	}
	size := roundToPages(n, os.Getpagesize())
	if size > uintptr(int(^uint(0)>>1)) {
		return Region{}, fmt.Errorf("pages: region too large (%d bytes)", n)
	}
	data, err := unix.Mmap(-1, 0, int(size),
		unix.PROT_READ|unix.PROT_WRITE,
		unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return Region{}, fmt.Errorf("pages: mmap %d bytes: %w", size, err)
	}
	return Region{data: data}, nil
}

// Release returns the region's pages to the OS. Releasing a zero Region is a
// no-op, and a double release is reported as nil for callers that tear down
// defensively.
func (r *Region) Release() error {
	if r.data == nil {
		return nil
	}
	err := unix.Munmap(r.data)
	r.data = nil
	if errors.Is(err, unix.EINVAL) {
		return nil
	}
	return err
}
