package tracedio

import (
	"golang.org/x/sys/unix"
)

// Syscalls performs the operations a Tracer times.
//
// Implementations report failure with the raw unix.Errno so that callers of
// the tracer see exactly what the kernel returned.
type Syscalls interface {
	Openat(dirfd int, path string, flags int, mode uint32) (int, error)
	Fstat(fd int, st *unix.Stat_t) error
}

type unixSyscalls struct{}

// UnixSyscalls returns the openat(2) and fstat(2) implementation.
func UnixSyscalls() Syscalls {
	return unixSyscalls{}
}

func (unixSyscalls) Openat(dirfd int, path string, flags int, mode uint32) (int, error) {
	return unix.Openat(dirfd, path, flags, mode)
}

func (unixSyscalls) Fstat(fd int, st *unix.Stat_t) error {
	return unix.Fstat(fd, st)
}

// BlockingReader reads exactly len(buf) bytes from fd, issuing as many
// underlying reads as it takes. It returns fewer bytes only on end of file
// or error.
type BlockingReader interface {
	BlockingRead(fd int, buf []byte) (int, error)
}

// FullReader is the default BlockingReader. It loops over read(2),
// retrying EINTR, until buf is full, read returns 0, or read fails.
type FullReader struct{}

func (FullReader) BlockingRead(fd int, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := unix.Read(fd, buf[total:])
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return total, err
		}
		if n == 0 {
			break
		}
		total += n
	}
	return total, nil
}
