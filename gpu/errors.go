package gpu

import "errors"

var (
	// ErrNoSuitableMemoryType indicates no backend memory type satisfies
	// the class's required properties (or a resource's type filter).
	ErrNoSuitableMemoryType = errors.New("gpu: no suitable memory type")

	// ErrOutOfBlocks indicates the class pool reached Config.MaxBlocks
	// and no existing block can serve the request.
	ErrOutOfBlocks = errors.New("gpu: max blocks reached")

	// ErrBackendAlloc indicates the backend failed to allocate or map a
	// block. The underlying backend error is attached as context.
	ErrBackendAlloc = errors.New("gpu: backend allocation failed")

	// ErrBadRequest indicates a zero size or non-power-of-two alignment.
	ErrBadRequest = errors.New("gpu: invalid allocation request")

	// ErrBadHandle indicates a handle that does not resolve to a block
	// owned by this allocator.
	ErrBadHandle = errors.New("gpu: allocation does not belong to this allocator")

	// ErrClosed indicates use after Close.
	ErrClosed = errors.New("gpu: allocator closed")
)
