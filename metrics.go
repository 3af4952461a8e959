package tracedio

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	openSecondsDesc = prometheus.NewDesc(
		"tracedio_open_seconds_total",
		"Total time spent in traced openat calls.",
		nil, nil)
	readSecondsDesc = prometheus.NewDesc(
		"tracedio_read_seconds_total",
		"Total time spent in traced blocking reads.",
		nil, nil)
	statSecondsDesc = prometheus.NewDesc(
		"tracedio_stat_seconds_total",
		"Total time spent in traced fstat calls.",
		nil, nil)
	openCallsDesc = prometheus.NewDesc(
		"tracedio_open_calls_total",
		"Number of traced openat calls.",
		nil, nil)
	statCallsDesc = prometheus.NewDesc(
		"tracedio_stat_calls_total",
		"Number of traced fstat calls.",
		nil, nil)
)

// Collector exports an Accumulator as Prometheus counters.
//
// Scrapes run on the HTTP server's goroutines, so every read of the
// accumulator happens under mu, the same lock the owner of the accumulator
// holds around traced calls.
type Collector struct {
	acct *Accumulator
	mu   sync.Locker
}

// NewCollector returns a collector reading acct under mu.
func NewCollector(acct *Accumulator, mu sync.Locker) *Collector {
	return &Collector{acct: acct, mu: mu}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- openSecondsDesc
	ch <- readSecondsDesc
	ch <- statSecondsDesc
	ch <- openCallsDesc
	ch <- statCallsDesc
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	c.mu.Lock()
	snap := *c.acct
	c.mu.Unlock()

	ch <- prometheus.MustNewConstMetric(openSecondsDesc, prometheus.CounterValue, seconds(snap.OpenNanos))
	ch <- prometheus.MustNewConstMetric(readSecondsDesc, prometheus.CounterValue, seconds(snap.ReadNanos))
	ch <- prometheus.MustNewConstMetric(statSecondsDesc, prometheus.CounterValue, seconds(snap.StatNanos))
	ch <- prometheus.MustNewConstMetric(openCallsDesc, prometheus.CounterValue, float64(snap.NrOpen))
	ch <- prometheus.MustNewConstMetric(statCallsDesc, prometheus.CounterValue, float64(snap.NrStat))
}

func seconds(ns uint64) float64 {
	return float64(ns) / nanosPerSecond
}

var _ prometheus.Collector = (*Collector)(nil)
