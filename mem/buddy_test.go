package mem

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestBuddy_MinBlockConsumption verifies the smallest request consumes
// exactly one minimum block.
func TestBuddy_MinBlockConsumption(t *testing.T) {
	b, err := NewBuddy(1 << 20)
	require.NoError(t, err, "NewBuddy should not error")
	defer func() { require.NoError(t, b.Close()) }()

	p := b.Allocate(minBlockSize-headerSize, 8)
	require.NotNil(t, p)
	assert.Equal(t, minBlockSize, b.UsedMemory(), "request should consume one min block")

	b.Deallocate(p)
	assert.Equal(t, uintptr(0), b.UsedMemory())
}

// TestBuddy_WholeArenaAllocation verifies C − header consumes the whole
// arena and frees back to one top-level block.
func TestBuddy_WholeArenaAllocation(t *testing.T) {
	b, err := NewBuddy(1 << 20)
	require.NoError(t, err)
	defer func() { require.NoError(t, b.Close()) }()

	c := b.TotalMemory()
	p := b.Allocate(c-headerSize, 8)
	require.NotNil(t, p, "whole-arena allocation should succeed")
	assert.Equal(t, c, b.UsedMemory())

	assert.Nil(t, b.Allocate(1, 8), "arena fully consumed")

	b.Deallocate(p)
	assert.Equal(t, uintptr(0), b.UsedMemory())

	// Only possible if the arena is back to a single top-level block.
	p = b.Allocate(c-headerSize, 8)
	assert.NotNil(t, p, "whole arena should be allocatable again after full coalesce")
}

// TestBuddy_CoalesceAfterPairedFrees is the canonical coalesce scenario:
// two same-level blocks, freed in either order, merge back to the top.
func TestBuddy_CoalesceAfterPairedFrees(t *testing.T) {
	b, err := NewBuddy(1 << 20)
	require.NoError(t, err)
	defer func() { require.NoError(t, b.Close()) }()

	const levelSize = uintptr(64 * 1024)
	p1 := b.Allocate(levelSize-headerSize, 8)
	p2 := b.Allocate(levelSize-headerSize, 8)
	require.NotNil(t, p1)
	require.NotNil(t, p2)
	assert.Equal(t, uintptr(2*levelSize), b.UsedMemory())

	b.Deallocate(p2)
	b.Deallocate(p1)
	assert.Equal(t, uintptr(0), b.UsedMemory())

	// Full coalescing proves itself by serving the whole arena again.
	whole := b.Allocate(b.TotalMemory()-headerSize, 8)
	assert.NotNil(t, whole, "subsequent whole-arena allocate requires full coalescing")
}

// TestBuddy_CapacityRoundsToPowerOfTwo verifies construction rounding.
func TestBuddy_CapacityRoundsToPowerOfTwo(t *testing.T) {
	b, err := NewBuddy(1000_000)
	require.NoError(t, err)
	defer func() { require.NoError(t, b.Close()) }()

	assert.Equal(t, uintptr(1<<20), b.TotalMemory(), "1,000,000 should round to 1 MiB")
}

// TestBuddy_SplitProducesDistinctHalves verifies split blocks do not alias
// and honor the level geometry.
func TestBuddy_SplitProducesDistinctHalves(t *testing.T) {
	b, err := NewBuddy(1 << 16)
	require.NoError(t, err)
	defer func() { require.NoError(t, b.Close()) }()

	// Carve the 64 KiB arena into min blocks until exhaustion.
	var ptrs []unsafe.Pointer
	seen := map[uintptr]bool{}
	for {
		p := b.Allocate(minBlockSize-headerSize, 8)
		if p == nil {
			break
		}
		require.False(t, seen[uintptr(p)], "address handed out twice")
		seen[uintptr(p)] = true
		ptrs = append(ptrs, p)
	}
	assert.Len(t, ptrs, (1<<16)/int(minBlockSize), "arena should carve into capacity/minBlock blocks")
	assert.Equal(t, b.TotalMemory(), b.UsedMemory())

	for _, p := range ptrs {
		b.Deallocate(p)
	}
	assert.Equal(t, uintptr(0), b.UsedMemory())

	// Everything coalesced back to the top block.
	assert.NotNil(t, b.Allocate(b.TotalMemory()-headerSize, 8))
}

// TestBuddy_MixedSizesRoundTrip exercises split/coalesce across several
// levels and verifies the free-list state returns to the initial one.
func TestBuddy_MixedSizesRoundTrip(t *testing.T) {
	b, err := NewBuddy(1 << 20)
	require.NoError(t, err)
	defer func() { require.NoError(t, b.Close()) }()

	sizes := []uintptr{100, 200, 1000, 5000, 60, 16000, 100000, 300, 70, 4000}
	var ptrs []unsafe.Pointer
	for _, size := range sizes {
		p := b.Allocate(size, 8)
		require.NotNil(t, p, "Allocate(%d) should succeed", size)
		require.LessOrEqual(t, b.UsedMemory(), b.TotalMemory(), "used must never exceed capacity")
		ptrs = append(ptrs, p)
	}

	// Free in an order that interleaves buddies.
	for i := len(ptrs) - 1; i >= 0; i -= 2 {
		b.Deallocate(ptrs[i])
	}
	for i := 0; i < len(ptrs); i += 2 {
		b.Deallocate(ptrs[i])
	}
	assert.Equal(t, uintptr(0), b.UsedMemory())
	assert.NotNil(t, b.Allocate(b.TotalMemory()-headerSize, 8),
		"arena should be one top-level block after the full cycle")
}

// TestBuddy_RoundingToPowerOfTwoBlocks verifies the size+header rounding.
func TestBuddy_RoundingToPowerOfTwoBlocks(t *testing.T) {
	b, err := NewBuddy(1 << 20)
	require.NoError(t, err)
	defer func() { require.NoError(t, b.Close()) }()

	// 100 bytes + 8-byte header rounds to 128.
	p := b.Allocate(100, 8)
	require.NotNil(t, p)
	assert.Equal(t, uintptr(128), b.UsedMemory())

	// 120 bytes + 8 = 128 exactly.
	p2 := b.Allocate(120, 8)
	require.NotNil(t, p2)
	assert.Equal(t, uintptr(256), b.UsedMemory())

	// 10 bytes clamps to the min block.
	p3 := b.Allocate(10, 8)
	require.NotNil(t, p3)
	assert.Equal(t, uintptr(256+64), b.UsedMemory())
}

// TestBuddy_ExhaustionReturnsNil verifies over-capacity requests fail
// cleanly at any level.
func TestBuddy_ExhaustionReturnsNil(t *testing.T) {
	b, err := NewBuddy(1 << 12)
	require.NoError(t, err)
	defer func() { require.NoError(t, b.Close()) }()

	assert.Nil(t, b.Allocate(1<<13, 8), "request beyond capacity must fail")

	p := b.Allocate(1<<11, 8) // rounds to 4096 with header: whole arena
	require.NotNil(t, p)
	assert.Nil(t, b.Allocate(2048, 8), "no block left")
	used := b.UsedMemory()
	assert.Nil(t, b.Allocate(64, 8))
	assert.Equal(t, used, b.UsedMemory(), "failed allocation must not change used")
}

// TestBuddy_DeallocateNilIsNoOp verifies nil handling.
func TestBuddy_DeallocateNilIsNoOp(t *testing.T) {
	b, err := NewBuddy(1 << 12)
	require.NoError(t, err)
	defer func() { require.NoError(t, b.Close()) }()

	b.Deallocate(nil)
	assert.Equal(t, uintptr(0), b.UsedMemory())
}

// TestBuddy_PayloadWritable verifies the span after the header is usable.
func TestBuddy_PayloadWritable(t *testing.T) {
	b, err := NewBuddy(1 << 16)
	require.NoError(t, err)
	defer func() { require.NoError(t, b.Close()) }()

	const n = 200
	p := b.Allocate(n, 8)
	require.NotNil(t, p)
	assert.Zero(t, uintptr(p)%maxScalarAlignment, "payload should be scalar aligned")

	span := unsafe.Slice((*byte)(p), n)
	for i := range span {
		span[i] = byte(i)
	}
	for i := range span {
		require.Equal(t, byte(i), span[i])
	}
}

// TestBuddy_TooStrictAlignmentPanics verifies the alignment ceiling.
func TestBuddy_TooStrictAlignmentPanics(t *testing.T) {
	b, err := NewBuddy(1 << 12)
	require.NoError(t, err)
	defer func() { require.NoError(t, b.Close()) }()

	assert.Panics(t, func() { b.Allocate(64, 16) })
}

// TestBuddy_ArenaTooLargeRejected verifies the level-range guard.
func TestBuddy_ArenaTooLargeRejected(t *testing.T) {
	_, err := NewBuddy(maxArenaSize + 1)
	assert.ErrorIs(t, err, ErrArenaTooLarge)
}

// TestBuddy_ChurnStaysBounded is a property-style loop: sustained
// allocate/free cycles must never leak used bytes.
func TestBuddy_ChurnStaysBounded(t *testing.T) {
	b, err := NewBuddy(1 << 18)
	require.NoError(t, err)
	defer func() { require.NoError(t, b.Close()) }()

	sizes := []uintptr{56, 120, 248, 1016, 56, 504, 2040}
	for round := 0; round < 50; round++ {
		var ptrs []unsafe.Pointer
		for _, size := range sizes {
			p := b.Allocate(size, 8)
			require.NotNil(t, p)
			ptrs = append(ptrs, p)
		}
		for _, p := range ptrs {
			b.Deallocate(p)
		}
		require.Equal(t, uintptr(0), b.UsedMemory(), "round %d leaked", round)
	}
}
