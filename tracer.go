// Package tracedio times file-system syscalls.
//
// A Tracer wraps openat, fstat and a blocking read with wall-clock interval
// measurement and folds every interval into an Accumulator. Dump prints the
// totals. Timing brackets only the underlying call and is recorded on every
// exit path, so failed calls count too.
//
// Neither Tracer nor Accumulator is safe for concurrent use.
package tracedio

import (
	"fmt"
	"io"
	"strconv"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"golang.org/x/sys/unix"
)

// OpenRequest describes how Tracer.Openat opens a path. A mode is carried
// only by requests built with CreateWith.
type OpenRequest struct {
	flags   int
	mode    uint32
	hasMode bool
}

// OpenExisting opens an existing entry. No mode is passed to openat; if
// flags include O_CREAT anyway, new entries are created with mode 0.
func OpenExisting(flags int) OpenRequest {
	return OpenRequest{flags: flags}
}

// CreateWith opens path, creating it with mode if it does not exist.
// O_CREAT is added to flags.
func CreateWith(flags int, mode uint32) OpenRequest {
	return OpenRequest{flags: flags | unix.O_CREAT, mode: mode, hasMode: true}
}

// Flags returns the flags passed to openat.
func (r OpenRequest) Flags() int {
	return r.flags
}

// Mode returns the mode passed to openat. It is consumed only when the
// flags request creation.
func (r OpenRequest) Mode() uint32 {
	if r.flags&unix.O_CREAT == 0 || !r.hasMode {
		return 0
	}
	return r.mode
}

// Tracer times openat, fstat and blocking reads into an Accumulator.
type Tracer struct {
	acct    *Accumulator
	clock   Clock
	sys     Syscalls
	reader  BlockingReader
	out     io.Writer
	perCall io.Writer
	logger  log.Logger
}

// New returns a tracer recording into acct. A nil acct gets a fresh
// Accumulator; nil opts means DefaultOptions().
func New(acct *Accumulator, opts *Options) *Tracer {
	if acct == nil {
		acct = &Accumulator{}
	}
	opts = opts.withDefaults()
	return &Tracer{
		acct:    acct,
		clock:   opts.Clock,
		sys:     opts.Syscalls,
		reader:  opts.Reader,
		out:     opts.Output,
		perCall: opts.PerCall,
		logger:  opts.Logger,
	}
}

// Accumulator returns the accumulator the tracer records into.
func (t *Tracer) Accumulator() *Accumulator {
	return t.acct
}

// startTimer reads the start timestamp and returns a closure that reads the
// stop timestamp and returns the elapsed nanoseconds
func (t *Tracer) startTimer() func() uint64 {
	start := timestamp(t.clock)
	return func() uint64 {
		return timestamp(t.clock) - start
	}
}

// Openat opens path relative to dirfd and records the interval in the open
// bucket. It returns the descriptor, or -1 and the syscall error unchanged.
func (t *Tracer) Openat(dirfd int, path string, req OpenRequest) (fd int, err error) {
	flags, mode := req.Flags(), req.Mode()

	defer func(stop func() uint64) {
		ns := stop()
		t.acct.recordOpen(ns)
		t.emit("open", path, ns)
		if err != nil {
			level.Debug(t.logger).Log("msg", "openat failed", "path", path, "flags", flags, "err", err)
		}
	}(t.startTimer())

	return t.sys.Openat(dirfd, path, flags, mode)
}

// Fstat fills st for fd and records the interval in the stat bucket.
func (t *Tracer) Fstat(fd int, st *unix.Stat_t) (err error) {
	defer func(stop func() uint64) {
		ns := stop()
		t.acct.recordStat(ns)
		t.emit("stat", strconv.Itoa(fd), ns)
		if err != nil {
			level.Debug(t.logger).Log("msg", "fstat failed", "fd", fd, "err", err)
		}
	}(t.startTimer())

	return t.sys.Fstat(fd, st)
}

// Read fills buf from fd through the blocking read delegate and records the
// interval in the read bucket. path only labels diagnostics.
//
// The interval covers the whole delegate call, including every underlying
// read it issued to satisfy len(buf).
func (t *Tracer) Read(path string, fd int, buf []byte) (n int, err error) {
	defer func(stop func() uint64) {
		ns := stop()
		t.acct.recordRead(ns)
		t.emit("read", path, ns)
		if err != nil {
			level.Debug(t.logger).Log("msg", "read failed", "path", path, "fd", fd, "err", err)
		}
	}(t.startTimer())

	return t.reader.BlockingRead(fd, buf)
}

// Dump writes the accumulated totals to the tracer's output. It does not
// modify the accumulator and may be called any number of times.
func (t *Tracer) Dump() {
	if _, err := t.acct.WriteTo(t.out); err != nil {
		level.Error(t.logger).Log("msg", "failed to write report", "err", err)
	}
}

// emit writes a per-call line when per-call output is enabled
func (t *Tracer) emit(op, label string, ns uint64) {
	if t.perCall == nil {
		return
	}
	if _, err := fmt.Fprintf(t.perCall, "%s %s %s\n", op, label, formatNanos(ns)); err != nil {
		level.Error(t.logger).Log("msg", "failed to write per-call line", "op", op, "err", err)
	}
}
