package tracedio

import (
	"sync"
	"sync/atomic"
	"syscall"

	"golang.org/x/sys/unix"
)

// HandleTracker maps FUSE file handles to backing descriptors.
//
// Every descriptor added is closed exactly once, either by Release or by
// CloseAll. All methods are safe for concurrent use.
type HandleTracker struct {
	mu         sync.RWMutex
	handles    map[uint64]int
	nextHandle atomic.Uint64
	closeFD    func(fd int) error
}

// NewHandleTracker creates a tracker that closes descriptors with close(2).
func NewHandleTracker() *HandleTracker {
	return &HandleTracker{
		handles: make(map[uint64]int),
		closeFD: unix.Close,
	}
}

// Add registers fd and returns its handle. Handles start at 1.
func (ht *HandleTracker) Add(fd int) uint64 {
	ht.mu.Lock()
	defer ht.mu.Unlock()

	fh := ht.nextHandle.Add(1)
	ht.handles[fh] = fd
	return fh
}

// FD returns the descriptor behind fh, or -1 if fh is unknown.
func (ht *HandleTracker) FD(fh uint64) int {
	ht.mu.RLock()
	defer ht.mu.RUnlock()

	fd, ok := ht.handles[fh]
	if !ok {
		return -1
	}
	return fd
}

// Release closes the descriptor behind fh and forgets the handle.
func (ht *HandleTracker) Release(fh uint64) syscall.Errno {
	ht.mu.Lock()
	fd, ok := ht.handles[fh]
	delete(ht.handles, fh)
	ht.mu.Unlock()

	if !ok {
		return syscall.EBADF
	}
	return mapError(ht.closeFD(fd))
}

// CloseAll closes every tracked descriptor.
func (ht *HandleTracker) CloseAll() {
	ht.mu.Lock()
	defer ht.mu.Unlock()

	for fh, fd := range ht.handles {
		ht.closeFD(fd)
		delete(ht.handles, fh)
	}
}

// Count returns the number of open handles.
func (ht *HandleTracker) Count() int {
	ht.mu.RLock()
	defer ht.mu.RUnlock()

	return len(ht.handles)
}
