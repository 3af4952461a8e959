package tracedio

import (
	"sync"
)

// chunkPool hands out read buffers in a few fixed size classes so that
// repeated TraceFile calls do not allocate per file.
//
// A request gets the smallest class that fits; requests above the largest
// class are allocated directly and never pooled.
type chunkPool struct {
	pools []*sync.Pool
	sizes []int
}

// newChunkPool creates a pool with the size classes:
//   - 4KB: one page, the smallest useful read
//   - 64KB: the default TraceFile chunk
//   - 1MB: large sequential reads
func newChunkPool() *chunkPool {
	sizes := []int{
		4 * 1024,
		64 * 1024,
		1024 * 1024,
	}

	pools := make([]*sync.Pool, len(sizes))
	for i, size := range sizes {
		size := size
		pools[i] = &sync.Pool{
			New: func() any {
				buf := make([]byte, size)
				return &buf
			},
		}
	}

	return &chunkPool{pools: pools, sizes: sizes}
}

// get returns a buffer of length size
func (p *chunkPool) get(size int) []byte {
	for i, class := range p.sizes {
		if size <= class {
			bufPtr := p.pools[i].Get().(*[]byte)
			return (*bufPtr)[:size]
		}
	}
	return make([]byte, size)
}

// put returns buf to its size class. Buffers whose capacity is not a class
// size are dropped.
func (p *chunkPool) put(buf []byte) {
	capacity := cap(buf)
	for i, class := range p.sizes {
		if capacity == class {
			full := buf[:capacity]
			p.pools[i].Put(&full)
			return
		}
	}
}

var chunks = newChunkPool()
