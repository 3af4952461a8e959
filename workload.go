package tracedio

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// DefaultChunkSize is the read size TraceFile uses when chunk <= 0.
const DefaultChunkSize = 64 * 1024

// TraceFile reads path (relative to dirfd) to the end through t: one traced
// openat, one traced fstat, then traced reads of chunk bytes until a read
// comes back short. It returns the number of bytes read.
//
// Pass unix.AT_FDCWD as dirfd to resolve path against the working
// directory.
func TraceFile(t *Tracer, dirfd int, path string, chunk int) (int64, error) {
	if chunk <= 0 {
		chunk = DefaultChunkSize
	}

	fd, err := t.Openat(dirfd, path, OpenExisting(unix.O_RDONLY|unix.O_CLOEXEC))
	if err != nil {
		return 0, fmt.Errorf("open %s: %w", path, err)
	}
	defer unix.Close(fd)

	var st unix.Stat_t
	if err := t.Fstat(fd, &st); err != nil {
		return 0, fmt.Errorf("stat %s: %w", path, err)
	}
	if st.Mode&unix.S_IFMT == unix.S_IFDIR {
		return 0, fmt.Errorf("read %s: %w", path, unix.EISDIR)
	}

	buf := chunks.get(chunk)
	defer chunks.put(buf)

	var total int64
	for {
		n, err := t.Read(path, fd, buf)
		total += int64(n)
		if err != nil {
			return total, fmt.Errorf("read %s: %w", path, err)
		}
		if n < len(buf) {
			return total, nil
		}
	}
}
