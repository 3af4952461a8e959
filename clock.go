package tracedio

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// Clock reads the current time with nanosecond resolution.
type Clock interface {
	Now() (unix.Timespec, error)
}

// realtimeClock reads CLOCK_REALTIME
type realtimeClock struct{}

func (realtimeClock) Now() (unix.Timespec, error) {
	var ts unix.Timespec
	err := unix.ClockGettime(unix.CLOCK_REALTIME, &ts)
	return ts, err
}

// RealtimeClock returns the wall clock used by default.
func RealtimeClock() Clock {
	return realtimeClock{}
}

// asNanoseconds converts a timespec to nanoseconds since the epoch
func asNanoseconds(ts unix.Timespec) uint64 {
	return uint64(ts.Sec)*nanosPerSecond + uint64(ts.Nsec)
}

// timestamp reads the clock. A clock that cannot be read invalidates every
// measurement, so failure panics.
func timestamp(c Clock) uint64 {
	ts, err := c.Now()
	if err != nil {
		panic(fmt.Sprintf("tracedio: clock read failed: %v", err))
	}
	return asNanoseconds(ts)
}
