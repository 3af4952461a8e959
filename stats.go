package tracedio

import (
	"fmt"
	"io"
)

const nanosPerSecond = 1000000000

// Accumulator holds the running latency totals for the traced operations.
//
// The zero value is ready to use. Counters only grow; nothing in this
// package resets them.
//
// Accumulator uses plain increments and is not safe for concurrent use.
// All traced calls that share an Accumulator must come from a single
// goroutine or be serialized by the caller (see TracedFS for an example).
type Accumulator struct {
	// OpenNanos is the total time spent in openat.
	OpenNanos uint64
	// ReadNanos is the total time spent in the blocking read delegate.
	ReadNanos uint64
	// StatNanos is the total time spent in fstat.
	StatNanos uint64

	// NrOpen counts traced openat calls, failed ones included.
	NrOpen uint64
	// NrStat counts traced fstat calls, failed ones included.
	NrStat uint64
}

// recordOpen folds one openat interval into the open bucket
func (a *Accumulator) recordOpen(ns uint64) {
	a.OpenNanos += ns
	a.NrOpen++
}

// recordRead folds one read interval into the read bucket
func (a *Accumulator) recordRead(ns uint64) {
	a.ReadNanos += ns
}

// recordStat folds one fstat interval into the stat bucket
func (a *Accumulator) recordStat(ns uint64) {
	a.StatNanos += ns
	a.NrStat++
}

// WriteTo writes the report in its fixed line order:
//
//	open <secs>.<nanos>
//	read <secs>.<nanos>
//	stat <secs>.<nanos>
//	nr_files <count>
//	nr_fstat <count>
//
// Nanoseconds are always printed with 9 digits.
func (a *Accumulator) WriteTo(w io.Writer) (int64, error) {
	n, err := fmt.Fprintf(w, "open %s\nread %s\nstat %s\nnr_files %d\nnr_fstat %d\n",
		formatNanos(a.OpenNanos),
		formatNanos(a.ReadNanos),
		formatNanos(a.StatNanos),
		a.NrOpen,
		a.NrStat)
	return int64(n), err
}

// formatNanos renders ns as seconds with a 9-digit fraction
func formatNanos(ns uint64) string {
	return fmt.Sprintf("%d.%09d", ns/nanosPerSecond, ns%nanosPerSecond)
}
