//go:build linux

package tracedio

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"
	"golang.org/x/sys/unix"
)

// MountOptions configures a traced loopback mount.
type MountOptions struct {
	// Mountpoint is the directory where the filesystem will be mounted
	Mountpoint string

	// ReadOnly rejects create and write with EROFS
	ReadOnly bool

	// AllowOther allows other users to access the mounted filesystem
	// Requires 'user_allow_other' in /etc/fuse.conf
	AllowOther bool

	// UID/GID override file ownership when non-zero
	UID uint32
	GID uint32

	// AttrTimeout sets attribute cache timeout. Zero makes every stat
	// reach the tracer.
	AttrTimeout time.Duration

	// EntryTimeout sets directory entry cache timeout
	EntryTimeout time.Duration

	// FSName is the name shown in mount table
	FSName string

	// Options contains additional FUSE options
	Options []string

	// Debug enables go-fuse debug output
	Debug bool

	// Logger receives mount lifecycle messages
	Logger log.Logger
}

// DefaultMountOptions returns mount options for tracing every request.
//
// Kernel caching is off (zero timeouts) so that lookups and stats are not
// absorbed by the page and dentry caches before reaching the tracer.
func DefaultMountOptions(mountpoint string) *MountOptions {
	return &MountOptions{
		Mountpoint:   mountpoint,
		ReadOnly:     false,
		AttrTimeout:  0,
		EntryTimeout: 0,
		FSName:       "tracedio",
		Logger:       log.NewNopLogger(),
	}
}

// Mount mirrors the backing directory at opts.Mountpoint, tracing through t.
//
// Once mounted, t must only be used through the returned TracedFS (or
// while holding its Locker).
func Mount(backing string, t *Tracer, opts *MountOptions) (*TracedFS, error) {
	if opts == nil {
		return nil, fmt.Errorf("mount options cannot be nil")
	}
	if opts.Mountpoint == "" {
		return nil, fmt.Errorf("mountpoint cannot be empty")
	}
	if t == nil {
		return nil, fmt.Errorf("tracer cannot be nil")
	}

	if err := os.MkdirAll(opts.Mountpoint, 0755); err != nil {
		return nil, fmt.Errorf("failed to create mountpoint: %w", err)
	}
	mounted, err := IsMounted(opts.Mountpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to check mountpoint: %w", err)
	}
	if mounted {
		return nil, fmt.Errorf("%s is already a mountpoint", opts.Mountpoint)
	}
	entries, err := os.ReadDir(opts.Mountpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to read mountpoint: %w", err)
	}
	if len(entries) > 0 {
		return nil, fmt.Errorf("mountpoint is not empty")
	}

	backing, err = filepath.Abs(backing)
	if err != nil {
		return nil, err
	}
	rootFD, err := unix.Open(backing, unix.O_RDONLY|unix.O_DIRECTORY|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to open backing directory: %w", &os.PathError{Op: "open", Path: backing, Err: err})
	}

	tfs := newTracedFS(backing, rootFD, t, opts)

	fuseOpts := &fs.Options{
		MountOptions: fuse.MountOptions{
			Name:          opts.FSName,
			FsName:        backing,
			Debug:         opts.Debug,
			AllowOther:    opts.AllowOther,
			Options:       opts.Options,
			MaxBackground: 12,
		},
		AttrTimeout:  &opts.AttrTimeout,
		EntryTimeout: &opts.EntryTimeout,
	}
	if opts.ReadOnly {
		fuseOpts.MountOptions.Options = append(fuseOpts.MountOptions.Options, "ro")
	}

	server, err := fs.Mount(opts.Mountpoint, tfs.root, fuseOpts)
	if err != nil {
		unix.Close(rootFD)
		return nil, fmt.Errorf("failed to mount filesystem: %w", err)
	}
	tfs.server = server

	level.Info(tfs.logger).Log("msg", "mounted", "backing", backing, "mountpoint", opts.Mountpoint, "read_only", opts.ReadOnly)
	return tfs, nil
}

// Unmount unmounts the filesystem and closes every backing descriptor.
func (f *TracedFS) Unmount() error {
	f.unmounting.Store(true)

	var err error
	if f.server != nil {
		err = f.server.Unmount()
	}

	f.handles.CloseAll()
	if f.rootFD >= 0 {
		unix.Close(f.rootFD)
		f.rootFD = -1
	}

	level.Info(f.logger).Log("msg", "unmounted", "mountpoint", f.opts.Mountpoint, "err", err)
	return err
}

// Wait blocks until the filesystem is unmounted
func (f *TracedFS) Wait() error {
	if f.server == nil {
		return fmt.Errorf("filesystem not mounted")
	}

	f.server.Wait()
	return nil
}

// IsMounted reports whether path is the root of a mounted filesystem, that
// is whether it lives on a different device than its parent or is "/".
func IsMounted(path string) (bool, error) {
	path, err := filepath.Abs(path)
	if err != nil {
		return false, err
	}
	parent := filepath.Dir(path)
	if parent == path {
		return true, nil
	}

	var st, pst unix.Stat_t
	if err := unix.Lstat(path, &st); err != nil {
		return false, &os.PathError{Op: "lstat", Path: path, Err: err}
	}
	if err := unix.Stat(parent, &pst); err != nil {
		return false, &os.PathError{Op: "stat", Path: parent, Err: err}
	}
	return st.Dev != pst.Dev, nil
}
