package tracedio

import (
	"sync"
)

var (
	processOnce   sync.Once
	processTracer *Tracer
)

// Process returns the process-wide tracer, built with DefaultOptions on
// first use. Its accumulator lives as long as the process.
//
// The process-wide tracer has a single owner: one goroutine (or a caller
// holding its own lock) issues every traced call and every Dump. Only the
// construction is synchronized.
func Process() *Tracer {
	processOnce.Do(func() {
		processTracer = New(&Accumulator{}, DefaultOptions())
	})
	return processTracer
}
