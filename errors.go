package tracedio

import (
	"errors"
	"io"
	"os"
	"syscall"
)

// mapError turns an error from the traced layer into the errno a FUSE
// reply carries
func mapError(err error) syscall.Errno {
	if err == nil {
		return 0
	}

	// Traced syscalls return the raw errno, possibly wrapped
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return errno
	}

	switch {
	case errors.Is(err, io.EOF):
		return 0
	case errors.Is(err, os.ErrNotExist):
		return syscall.ENOENT
	case errors.Is(err, os.ErrExist):
		return syscall.EEXIST
	case errors.Is(err, os.ErrPermission):
		return syscall.EACCES
	case errors.Is(err, os.ErrClosed):
		return syscall.EBADF
	case errors.Is(err, os.ErrInvalid):
		return syscall.EINVAL
	}

	return syscall.EIO
}
