//go:build linux

package tracedio

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestMount_Validation(t *testing.T) {
	tr := New(nil, nil)

	if _, err := Mount(t.TempDir(), tr, nil); err == nil {
		t.Error("Mount() with nil options succeeded")
	}
	if _, err := Mount(t.TempDir(), tr, &MountOptions{}); err == nil {
		t.Error("Mount() with empty mountpoint succeeded")
	}
	if _, err := Mount(t.TempDir(), nil, DefaultMountOptions(t.TempDir())); err == nil {
		t.Error("Mount() with nil tracer succeeded")
	}

	busy := t.TempDir()
	if err := os.WriteFile(filepath.Join(busy, "f"), nil, 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Mount(t.TempDir(), tr, DefaultMountOptions(busy)); err == nil {
		t.Error("Mount() on a non-empty mountpoint succeeded")
	}

	missing := filepath.Join(t.TempDir(), "missing")
	if _, err := Mount(missing, tr, DefaultMountOptions(t.TempDir())); err == nil {
		t.Error("Mount() of a missing backing directory succeeded")
	}
}

func TestIsMounted(t *testing.T) {
	dir := t.TempDir()
	if mounted, err := IsMounted(dir); err != nil || mounted {
		t.Errorf("IsMounted(%q) = %v, %v, want false, nil", dir, mounted, err)
	}
	if mounted, err := IsMounted("/"); err != nil || !mounted {
		t.Errorf("IsMounted(/) = %v, %v, want true, nil", mounted, err)
	}
	if _, err := IsMounted(filepath.Join(dir, "missing")); !os.IsNotExist(err) {
		t.Errorf("IsMounted(missing) error = %v, want not exist", err)
	}
}

func TestMount_RefusesMountpoint(t *testing.T) {
	// /proc is its own filesystem on Linux unless the sandbox hides it
	if mounted, err := IsMounted("/proc"); err != nil || !mounted {
		t.Skip("/proc is not a separate mount")
	}

	_, err := Mount(t.TempDir(), New(nil, nil), DefaultMountOptions("/proc"))
	if err == nil || !strings.Contains(err.Error(), "already a mountpoint") {
		t.Errorf("Mount() on /proc error = %v, want already a mountpoint", err)
	}
}

func TestDefaultMountOptions(t *testing.T) {
	opts := DefaultMountOptions("/mnt/traced")

	if opts.Mountpoint != "/mnt/traced" {
		t.Errorf("Mountpoint = %q, want /mnt/traced", opts.Mountpoint)
	}
	if opts.AttrTimeout != 0 || opts.EntryTimeout != 0 {
		t.Errorf("timeouts = %v/%v, want 0/0", opts.AttrTimeout, opts.EntryTimeout)
	}
	if opts.FSName != "tracedio" {
		t.Errorf("FSName = %q, want tracedio", opts.FSName)
	}
	if opts.Logger == nil {
		t.Error("Logger = nil")
	}
}

// TestMount_TracesRequests needs a working FUSE setup and is skipped
// without one.
func TestMount_TracesRequests(t *testing.T) {
	if _, err := os.Stat("/dev/fuse"); err != nil {
		t.Skip("FUSE not available")
	}

	backing := t.TempDir()
	if err := os.WriteFile(filepath.Join(backing, "hello.txt"), []byte("hello, traced"), 0644); err != nil {
		t.Fatal(err)
	}

	var out bytes.Buffer
	tr := New(&Accumulator{}, &Options{Output: &out})
	mnt := t.TempDir()

	tfs, err := Mount(backing, tr, DefaultMountOptions(mnt))
	if err != nil {
		t.Skipf("mount failed: %v", err)
	}
	defer tfs.Unmount()

	data, err := os.ReadFile(filepath.Join(mnt, "hello.txt"))
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if string(data) != "hello, traced" {
		t.Errorf("ReadFile() = %q, want %q", data, "hello, traced")
	}

	if err := os.WriteFile(filepath.Join(mnt, "new.txt"), []byte("x"), 0600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	info, err := os.Stat(filepath.Join(backing, "new.txt"))
	if err != nil {
		t.Fatalf("backing file missing: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("created mode = %#o, want 0600", perm)
	}

	acct := tfs.Accumulator()
	if acct.NrOpen == 0 {
		t.Error("NrOpen = 0, want traced opens")
	}
	if acct.NrStat == 0 {
		t.Error("NrStat = 0, want traced stats")
	}

	if err := tfs.Unmount(); err != nil {
		t.Fatalf("Unmount() error = %v", err)
	}
	if tfs.OpenFiles() != 0 {
		t.Errorf("OpenFiles() = %d, want 0", tfs.OpenFiles())
	}

	tfs.Dump()
	if !bytes.HasPrefix(out.Bytes(), []byte("open ")) {
		t.Errorf("Dump() = %q, want the report", out.String())
	}
}
