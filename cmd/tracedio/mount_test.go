//go:build linux

package main

import (
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"github.com/absfs/tracedio"
)

// countingLocker records how often the scrape took the lock
type countingLocker struct {
	sync.Mutex
	locks int
}

func (l *countingLocker) Lock() {
	l.Mutex.Lock()
	l.locks++
}

func TestMetricsHandler(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data")
	require.NoError(t, os.WriteFile(path, []byte("metrics"), 0644))

	acct := &tracedio.Accumulator{}
	tr := tracedio.New(acct, &tracedio.Options{Output: io.Discard})
	_, err := tracedio.TraceFile(tr, unix.AT_FDCWD, path, 0)
	require.NoError(t, err)

	mu := &countingLocker{}
	srv := httptest.NewServer(metricsHandler(acct, mu))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	text := string(body)

	require.Contains(t, text, "tracedio_open_calls_total 1\n")
	require.Contains(t, text, "tracedio_stat_calls_total 1\n")
	for _, name := range []string{"tracedio_open_seconds_total", "tracedio_read_seconds_total", "tracedio_stat_seconds_total"} {
		require.True(t, strings.Contains(text, "\n"+name+" "), "missing %s", name)
	}
	require.Equal(t, 1, mu.locks)
}

func TestMetricsHandler_UnknownPath(t *testing.T) {
	srv := httptest.NewServer(metricsHandler(&tracedio.Accumulator{}, &sync.Mutex{}))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/other")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}
