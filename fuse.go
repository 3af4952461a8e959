//go:build linux

package tracedio

import (
	"sync"
	"sync/atomic"
	"syscall"

	"github.com/go-kit/log"
	"github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"
	"golang.org/x/sys/unix"
)

// TracedFS is a loopback FUSE filesystem whose lookups, stats, opens and
// reads go through a Tracer.
//
// go-fuse serves requests on many goroutines; TracedFS serializes every
// call into the tracer with a single mutex, which makes it the external
// synchronizer the Accumulator requires.
type TracedFS struct {
	// backing is the directory being mirrored
	backing string

	// rootFD is an open descriptor of backing; all traced opens are
	// relative to it
	rootFD int

	opts *MountOptions

	server *fuse.Server

	// mu guards tracer and its accumulator
	mu     sync.Mutex
	tracer *Tracer

	handles *HandleTracker

	logger log.Logger

	unmounting atomic.Bool

	root *tracedNode
}

// tracedNode implements the fs.InodeEmbedder interface for go-fuse v2
type tracedNode struct {
	fs.Inode
	tfs *TracedFS

	// path is relative to the backing directory; the root is "."
	path string
}

var _ fs.NodeLookuper = (*tracedNode)(nil)
var _ fs.NodeGetattrer = (*tracedNode)(nil)
var _ fs.NodeOpener = (*tracedNode)(nil)
var _ fs.NodeCreater = (*tracedNode)(nil)
var _ fs.NodeReaddirer = (*tracedNode)(nil)
var _ fs.NodeReadlinker = (*tracedNode)(nil)

func newTracedFS(backing string, rootFD int, t *Tracer, opts *MountOptions) *TracedFS {
	tfs := &TracedFS{
		backing: backing,
		rootFD:  rootFD,
		opts:    opts,
		tracer:  t,
		handles: NewHandleTracker(),
		logger:  opts.Logger,
	}
	if tfs.logger == nil {
		tfs.logger = log.NewNopLogger()
	}
	tfs.root = &tracedNode{tfs: tfs, path: "."}
	return tfs
}

// Locker returns the mutex that guards the tracer. Hold it to read the
// accumulator from another goroutine, e.g. in a metrics Collector.
func (f *TracedFS) Locker() sync.Locker {
	return &f.mu
}

// Tracer returns the tracer serving the mount.
func (f *TracedFS) Tracer() *Tracer {
	return f.tracer
}

// Accumulator returns a copy of the current totals.
func (f *TracedFS) Accumulator() Accumulator {
	f.mu.Lock()
	defer f.mu.Unlock()
	return *f.tracer.Accumulator()
}

// Dump writes the report while holding the tracer lock.
func (f *TracedFS) Dump() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tracer.Dump()
}

// OpenFiles returns the number of open file handles.
func (f *TracedFS) OpenFiles() int {
	return f.handles.Count()
}

func (f *TracedFS) checkUnmounting() bool {
	return f.unmounting.Load()
}

// statPath stats path through a traced O_PATH open and a traced fstat
func (f *TracedFS) statPath(path string, st *unix.Stat_t) syscall.Errno {
	f.mu.Lock()
	defer f.mu.Unlock()

	fd, err := f.tracer.Openat(f.rootFD, path, OpenExisting(unix.O_PATH|unix.O_NOFOLLOW|unix.O_CLOEXEC))
	if err != nil {
		return mapError(err)
	}
	defer unix.Close(fd)

	return mapError(f.tracer.Fstat(fd, st))
}

// statFD is a traced fstat of an already open descriptor
func (f *TracedFS) statFD(fd int, st *unix.Stat_t) syscall.Errno {
	f.mu.Lock()
	defer f.mu.Unlock()

	return mapError(f.tracer.Fstat(fd, st))
}

// open is a traced openat relative to the backing directory
func (f *TracedFS) open(path string, req OpenRequest) (int, syscall.Errno) {
	f.mu.Lock()
	defer f.mu.Unlock()

	fd, err := f.tracer.Openat(f.rootFD, path, req)
	if err != nil {
		return -1, mapError(err)
	}
	return fd, 0
}

// readAt positions fd at off and fills dest with a traced read
func (f *TracedFS) readAt(path string, fd int, dest []byte, off int64) (int, syscall.Errno) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, err := unix.Seek(fd, off, unix.SEEK_SET); err != nil {
		return 0, mapError(err)
	}
	// A FUSE read reply carries data or an errno, not both; bytes read
	// before an error are dropped and the kernel retries from off.
	n, err := f.tracer.Read(path, fd, dest)
	if err != nil {
		return 0, mapError(err)
	}
	return n, 0
}
