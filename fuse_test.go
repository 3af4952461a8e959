//go:build linux

package tracedio

import (
	"bytes"
	"os"
	"path/filepath"
	"syscall"
	"testing"

	"golang.org/x/sys/unix"
)

func newTestTracedFS(t *testing.T, reader BlockingReader) (*TracedFS, int) {
	t.Helper()

	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "data"), []byte("0123456789"), 0644); err != nil {
		t.Fatal(err)
	}
	fd, err := unix.Open(filepath.Join(dir, "data"), unix.O_RDONLY|unix.O_CLOEXEC, 0)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { unix.Close(fd) })

	tr := New(&Accumulator{}, &Options{Reader: reader, Output: &bytes.Buffer{}})
	return newTracedFS(dir, unix.AT_FDCWD, tr, DefaultMountOptions(t.TempDir())), fd
}

func TestTracedFS_ReadAt(t *testing.T) {
	tfs, fd := newTestTracedFS(t, FullReader{})

	dest := make([]byte, 4)
	n, errno := tfs.readAt("data", fd, dest, 6)
	if errno != 0 {
		t.Fatalf("readAt() errno = %v", errno)
	}
	if got := string(dest[:n]); got != "6789" {
		t.Errorf("readAt() = %q, want 6789", got)
	}

	n, errno = tfs.readAt("data", fd, dest, 8)
	if errno != 0 || string(dest[:n]) != "89" {
		t.Errorf("readAt() at 8 = %q, %v, want 89, 0", dest[:n], errno)
	}
}

func TestTracedFS_ReadAtDropsPartialData(t *testing.T) {
	tfs, fd := newTestTracedFS(t, fakeReader{n: 3, err: unix.EIO})

	n, errno := tfs.readAt("data", fd, make([]byte, 8), 0)
	if errno != syscall.EIO {
		t.Errorf("readAt() errno = %v, want EIO", errno)
	}
	if n != 0 {
		t.Errorf("readAt() n = %d, want 0", n)
	}
}

func TestTracedFS_StatPathTraced(t *testing.T) {
	tfs, _ := newTestTracedFS(t, FullReader{})
	dir := tfs.backing
	rootFD, err := unix.Open(dir, unix.O_RDONLY|unix.O_DIRECTORY|unix.O_CLOEXEC, 0)
	if err != nil {
		t.Fatal(err)
	}
	defer unix.Close(rootFD)
	tfs.rootFD = rootFD

	var st unix.Stat_t
	if errno := tfs.statPath("data", &st); errno != 0 {
		t.Fatalf("statPath() errno = %v", errno)
	}
	if st.Size != 10 {
		t.Errorf("Size = %d, want 10", st.Size)
	}
	if errno := tfs.statPath("missing", &st); errno != syscall.ENOENT {
		t.Errorf("statPath(missing) errno = %v, want ENOENT", errno)
	}

	acct := tfs.Accumulator()
	if acct.NrOpen != 2 || acct.NrStat != 1 {
		t.Errorf("NrOpen, NrStat = %d, %d, want 2, 1", acct.NrOpen, acct.NrStat)
	}
}
