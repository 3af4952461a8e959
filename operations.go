//go:build linux

package tracedio

import (
	"context"
	"os"
	"path/filepath"
	"syscall"

	"github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"
	"golang.org/x/sys/unix"
)

// Lookup stats a child through the tracer
func (n *tracedNode) Lookup(ctx context.Context, name string, out *fuse.EntryOut) (*fs.Inode, syscall.Errno) {
	if n.tfs.checkUnmounting() {
		return nil, syscall.ENOTCONN
	}

	childPath := n.child(name)

	var st unix.Stat_t
	if errno := n.tfs.statPath(childPath, &st); errno != 0 {
		return nil, errno
	}

	n.tfs.fillAttr(&out.Attr, &st)
	out.SetEntryTimeout(n.tfs.opts.EntryTimeout)
	out.SetAttrTimeout(n.tfs.opts.AttrTimeout)

	child := &tracedNode{tfs: n.tfs, path: childPath}
	return n.NewInode(ctx, child, fs.StableAttr{
		Mode: st.Mode & unix.S_IFMT,
		Ino:  st.Ino,
	}), 0
}

// Getattr stats the open descriptor when there is one, the path otherwise
func (n *tracedNode) Getattr(ctx context.Context, f fs.FileHandle, out *fuse.AttrOut) syscall.Errno {
	if n.tfs.checkUnmounting() {
		return syscall.ENOTCONN
	}

	var st unix.Stat_t
	var errno syscall.Errno
	if fh, ok := f.(*tracedFile); ok {
		fd := n.tfs.handles.FD(fh.handle)
		if fd < 0 {
			return syscall.EBADF
		}
		errno = n.tfs.statFD(fd, &st)
	} else {
		errno = n.tfs.statPath(n.path, &st)
	}
	if errno != 0 {
		return errno
	}

	n.tfs.fillAttr(&out.Attr, &st)
	out.SetTimeout(n.tfs.opts.AttrTimeout)
	return 0
}

// Open opens the backing file through the tracer
func (n *tracedNode) Open(ctx context.Context, flags uint32) (fs.FileHandle, uint32, syscall.Errno) {
	if n.tfs.checkUnmounting() {
		return nil, 0, syscall.ENOTCONN
	}

	oflags := openFlags(flags)
	if n.tfs.opts.ReadOnly && wantsWrite(oflags) {
		return nil, 0, syscall.EROFS
	}

	fd, errno := n.tfs.open(n.path, OpenExisting(oflags&^unix.O_CREAT))
	if errno != 0 {
		return nil, 0, errno
	}

	handle := n.tfs.handles.Add(fd)
	return &tracedFile{node: n, handle: handle}, 0, 0
}

// Create creates and opens a backing file; the mode reaches openat
func (n *tracedNode) Create(ctx context.Context, name string, flags uint32, mode uint32, out *fuse.EntryOut) (*fs.Inode, fs.FileHandle, uint32, syscall.Errno) {
	if n.tfs.checkUnmounting() {
		return nil, nil, 0, syscall.ENOTCONN
	}
	if n.tfs.opts.ReadOnly {
		return nil, nil, 0, syscall.EROFS
	}

	childPath := n.child(name)
	oflags := openFlags(flags)

	fd, errno := n.tfs.open(childPath, CreateWith(oflags, mode&07777))
	if errno != 0 {
		return nil, nil, 0, errno
	}

	var st unix.Stat_t
	if errno := n.tfs.statFD(fd, &st); errno != 0 {
		unix.Close(fd)
		return nil, nil, 0, errno
	}

	n.tfs.fillAttr(&out.Attr, &st)
	out.SetEntryTimeout(n.tfs.opts.EntryTimeout)
	out.SetAttrTimeout(n.tfs.opts.AttrTimeout)

	child := &tracedNode{tfs: n.tfs, path: childPath}
	inode := n.NewInode(ctx, child, fs.StableAttr{
		Mode: st.Mode & unix.S_IFMT,
		Ino:  st.Ino,
	})

	handle := n.tfs.handles.Add(fd)
	return inode, &tracedFile{node: child, handle: handle}, 0, 0
}

// Readdir lists the backing directory. Listing is not traced.
func (n *tracedNode) Readdir(ctx context.Context) (fs.DirStream, syscall.Errno) {
	if n.tfs.checkUnmounting() {
		return nil, syscall.ENOTCONN
	}

	entries, err := os.ReadDir(filepath.Join(n.tfs.backing, n.path))
	if err != nil {
		return nil, mapError(err)
	}

	fuseEntries := make([]fuse.DirEntry, 0, len(entries))
	for _, e := range entries {
		de := fuse.DirEntry{
			Name: e.Name(),
			Mode: fileModeType(e.Type()),
		}
		if info, err := e.Info(); err == nil {
			if st, ok := info.Sys().(*syscall.Stat_t); ok {
				de.Ino = st.Ino
			}
		}
		fuseEntries = append(fuseEntries, de)
	}

	return fs.NewListDirStream(fuseEntries), 0
}

// Readlink reads a symlink in the backing directory
func (n *tracedNode) Readlink(ctx context.Context) ([]byte, syscall.Errno) {
	if n.tfs.checkUnmounting() {
		return nil, syscall.ENOTCONN
	}

	buf := make([]byte, unix.PathMax)
	size, err := unix.Readlinkat(n.tfs.rootFD, n.path, buf)
	if err != nil {
		return nil, mapError(err)
	}
	return buf[:size], 0
}

func (n *tracedNode) child(name string) string {
	return filepath.Join(n.path, name)
}

// tracedFile is an open backing descriptor
type tracedFile struct {
	node   *tracedNode
	handle uint64
}

// Read reads through the tracer at off
func (fh *tracedFile) Read(ctx context.Context, dest []byte, off int64) (fuse.ReadResult, syscall.Errno) {
	tfs := fh.node.tfs

	fd := tfs.handles.FD(fh.handle)
	if fd < 0 {
		return nil, syscall.EBADF
	}

	n, errno := tfs.readAt(fh.node.path, fd, dest, off)
	if errno != 0 {
		return nil, errno
	}
	return fuse.ReadResultData(dest[:n]), 0
}

// Write writes with pwrite. Writes are not traced.
func (fh *tracedFile) Write(ctx context.Context, data []byte, off int64) (uint32, syscall.Errno) {
	tfs := fh.node.tfs
	if tfs.opts.ReadOnly {
		return 0, syscall.EROFS
	}

	fd := tfs.handles.FD(fh.handle)
	if fd < 0 {
		return 0, syscall.EBADF
	}

	n, err := unix.Pwrite(fd, data, off)
	if err != nil {
		return 0, mapError(err)
	}
	return uint32(n), 0
}

// Release closes the backing descriptor
func (fh *tracedFile) Release(ctx context.Context) syscall.Errno {
	return fh.node.tfs.handles.Release(fh.handle)
}

var _ fs.FileHandle = (*tracedFile)(nil)
var _ fs.FileReader = (*tracedFile)(nil)
var _ fs.FileWriter = (*tracedFile)(nil)
var _ fs.FileReleaser = (*tracedFile)(nil)

// fillAttr fills a FUSE Attr from a backing stat
func (f *TracedFS) fillAttr(attr *fuse.Attr, st *unix.Stat_t) {
	attr.Ino = st.Ino
	attr.Size = uint64(st.Size)
	attr.Blocks = uint64(st.Blocks)
	attr.Mode = st.Mode
	attr.Nlink = uint32(st.Nlink)
	attr.Rdev = uint32(st.Rdev)
	attr.Blksize = uint32(st.Blksize)

	attr.Atime = uint64(st.Atim.Sec)
	attr.Atimensec = uint32(st.Atim.Nsec)
	attr.Mtime = uint64(st.Mtim.Sec)
	attr.Mtimensec = uint32(st.Mtim.Nsec)
	attr.Ctime = uint64(st.Ctim.Sec)
	attr.Ctimensec = uint32(st.Ctim.Nsec)

	attr.Uid = st.Uid
	if f.opts.UID != 0 {
		attr.Uid = f.opts.UID
	}
	attr.Gid = st.Gid
	if f.opts.GID != 0 {
		attr.Gid = f.opts.GID
	}
}

// openFlags keeps the access mode and the flags openat should honor from a
// FUSE open request
func openFlags(flags uint32) int {
	out := int(flags) & unix.O_ACCMODE
	for _, f := range []int{unix.O_APPEND, unix.O_TRUNC, unix.O_EXCL, unix.O_NOFOLLOW, unix.O_DIRECT, unix.O_SYNC} {
		if int(flags)&f != 0 {
			out |= f
		}
	}
	return out | unix.O_CLOEXEC
}

func wantsWrite(flags int) bool {
	acc := flags & unix.O_ACCMODE
	return acc == unix.O_WRONLY || acc == unix.O_RDWR || flags&unix.O_TRUNC != 0
}

// fileModeType maps the type bits of an os.FileMode to S_IF* bits
func fileModeType(m os.FileMode) uint32 {
	switch {
	case m&os.ModeDir != 0:
		return unix.S_IFDIR
	case m&os.ModeSymlink != 0:
		return unix.S_IFLNK
	case m&os.ModeNamedPipe != 0:
		return unix.S_IFIFO
	case m&os.ModeSocket != 0:
		return unix.S_IFSOCK
	case m&os.ModeCharDevice != 0:
		return unix.S_IFCHR
	case m&os.ModeDevice != 0:
		return unix.S_IFBLK
	}
	return unix.S_IFREG
}
