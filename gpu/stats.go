package gpu

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Stats describe one class pool at a point in time.
type Stats struct {
	Class           MemoryClass
	AllocatedBytes  uint64 // handed-out bytes, alignment padding included
	TotalBytes      uint64 // summed block capacity
	AllocationCount uint64 // live allocations (exact)
	BlockCount      int    // driver memory objects owned

	// FragmentationRatio averages the per-block ratio
	// 1 - 1/max(1, freeRegions) over all blocks: 0 is one free span per
	// block, values near 1 mean splintered free space.
	FragmentationRatio float64

	// Blocks carries per-block detail when Config.EnableTracking is set.
	Blocks []BlockStats
}

// BlockStats is the per-block detail included when tracking is enabled.
type BlockStats struct {
	Size        uint64
	Used        uint64
	FreeRegions int
	Mapped      bool
}

// statsPrinter groups large byte counts for readability.
var statsPrinter = message.NewPrinter(language.English)

// String renders a one-line human summary, e.g.
//
//	DeviceLocal: 104,857,600 / 268,435,456 bytes, 10 allocations in 1 block (frag 0.0%)
func (s Stats) String() string {
	noun := "blocks"
	if s.BlockCount == 1 {
		noun = "block"
	}
	return statsPrinter.Sprintf("%v: %d / %d bytes, %d allocations in %d %s (frag %.1f%%)",
		s.Class, s.AllocatedBytes, s.TotalBytes, s.AllocationCount,
		s.BlockCount, noun, s.FragmentationRatio*100)
}
