package gpu

import "sync"

// memoryPool owns every block of one memory class. Its mutex linearizes all
// allocate/deallocate traffic for the class; distinct classes never contend.
type memoryPool struct {
	mu sync.Mutex

	class           MemoryClass
	memoryTypeIndex uint32
	blockSize       uint64
	blocks          []*memoryBlock

	// allocCount is exact, maintained on every allocate/deallocate.
	allocCount uint64
}

func newMemoryPool(class MemoryClass, typeIndex uint32, blockSize uint64) *memoryPool {
	return &memoryPool{
		class:           class,
		memoryTypeIndex: typeIndex,
		blockSize:       blockSize,
	}
}

// snapshotStats collects the pool's statistics under its mutex.
func (p *memoryPool) snapshotStats(detailed bool) Stats {
	p.mu.Lock()
	defer p.mu.Unlock()

	s := Stats{
		Class:           p.class,
		AllocationCount: p.allocCount,
		BlockCount:      len(p.blocks),
	}
	var fragTotal float64
	for _, b := range p.blocks {
		s.AllocatedBytes += b.used
		s.TotalBytes += b.size
		fragTotal += b.fragmentation()
		if detailed {
			s.Blocks = append(s.Blocks, BlockStats{
				Size:        b.size,
				Used:        b.used,
				FreeRegions: len(b.freeRegions),
				Mapped:      b.mapped != nil,
			})
		}
	}
	if len(p.blocks) > 0 {
		s.FragmentationRatio = fragTotal / float64(len(p.blocks))
	}
	return s
}
