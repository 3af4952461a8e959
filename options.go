package tracedio

import (
	"io"
	"os"

	"github.com/go-kit/log"
)

// Options configures a Tracer.
//
// Use DefaultOptions() to get the defaults, then customize as needed.
type Options struct {
	// Clock supplies the start and stop timestamps of every interval
	Clock Clock

	// Syscalls performs the underlying openat and fstat
	Syscalls Syscalls

	// Reader is the blocking read delegate behind Tracer.Read
	Reader BlockingReader

	// Output receives the report written by Tracer.Dump
	Output io.Writer

	// PerCall, when set, receives one line per traced call in addition to
	// the accumulated totals
	PerCall io.Writer

	// Logger receives diagnostics about failed calls
	Logger log.Logger
}

// DefaultOptions returns options for tracing the real syscalls.
//
// Default values:
//   - Clock: CLOCK_REALTIME
//   - Syscalls: openat(2) and fstat(2) via golang.org/x/sys/unix
//   - Reader: FullReader, retrying partial reads
//   - Output: os.Stdout
//   - PerCall: nil (aggregate only)
//   - Logger: no-op
func DefaultOptions() *Options {
	return &Options{
		Clock:    RealtimeClock(),
		Syscalls: UnixSyscalls(),
		Reader:   FullReader{},
		Output:   os.Stdout,
		Logger:   log.NewNopLogger(),
	}
}

// withDefaults fills unset fields from DefaultOptions
func (o *Options) withDefaults() *Options {
	d := DefaultOptions()
	if o == nil {
		return d
	}
	out := *o
	if out.Clock == nil {
		out.Clock = d.Clock
	}
	if out.Syscalls == nil {
		out.Syscalls = d.Syscalls
	}
	if out.Reader == nil {
		out.Reader = d.Reader
	}
	if out.Output == nil {
		out.Output = d.Output
	}
	if out.Logger == nil {
		out.Logger = d.Logger
	}
	return &out
}
