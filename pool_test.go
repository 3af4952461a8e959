package tracedio

import (
	"testing"
)

func TestChunkPool_SizeClasses(t *testing.T) {
	pool := newChunkPool()

	tests := []struct {
		requestSize int
		expectedCap int
		description string
	}{
		{1, 4 * 1024, "1B should get 4KB buffer"},
		{4 * 1024, 4 * 1024, "4KB should get 4KB buffer"},
		{4*1024 + 1, 64 * 1024, "just over 4KB should get 64KB buffer"},
		{DefaultChunkSize, 64 * 1024, "default chunk should get 64KB buffer"},
		{512 * 1024, 1024 * 1024, "512KB should get 1MB buffer"},
		{1024 * 1024, 1024 * 1024, "1MB should get 1MB buffer"},
	}

	for _, tt := range tests {
		t.Run(tt.description, func(t *testing.T) {
			buf := pool.get(tt.requestSize)

			if len(buf) != tt.requestSize {
				t.Errorf("expected length %d, got %d", tt.requestSize, len(buf))
			}
			if cap(buf) != tt.expectedCap {
				t.Errorf("expected capacity %d, got %d", tt.expectedCap, cap(buf))
			}

			pool.put(buf)
		})
	}
}

func TestChunkPool_LargeBuffer(t *testing.T) {
	pool := newChunkPool()

	size := 2 * 1024 * 1024
	buf := pool.get(size)

	if len(buf) != size {
		t.Errorf("expected length %d, got %d", size, len(buf))
	}
	if cap(buf) != size {
		t.Errorf("expected capacity %d, got %d", size, cap(buf))
	}

	// Not pooled, must not panic
	pool.put(buf)
}

func TestChunkPool_Reuse(t *testing.T) {
	pool := newChunkPool()

	buf := pool.get(100)
	buf[0] = 0xAB
	pool.put(buf)

	// A sliced-down buffer still returns to its class
	again := pool.get(4096)
	if cap(again) != 4*1024 {
		t.Errorf("expected capacity %d, got %d", 4*1024, cap(again))
	}
	pool.put(again[:10])
}
