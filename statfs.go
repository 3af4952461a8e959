//go:build linux

package tracedio

import (
	"context"
	"syscall"

	"github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"
)

// Statfs reports the backing filesystem's statistics. Not traced.
func (n *tracedNode) Statfs(ctx context.Context, out *fuse.StatfsOut) syscall.Errno {
	if n.tfs.checkUnmounting() {
		return syscall.ENOTCONN
	}

	var st syscall.Statfs_t
	if err := syscall.Fstatfs(n.tfs.rootFD, &st); err != nil {
		return mapError(err)
	}
	out.FromStatfsT(&st)
	return 0
}

var _ fs.NodeStatfser = (*tracedNode)(nil)
