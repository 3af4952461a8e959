//go:build linux

package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/absfs/tracedio"
)

func init() {
	subcommands = append(subcommands, newMountCmd)
}

func newMountCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mount BACKING MOUNTPOINT",
		Short: "Mirror a directory over FUSE and trace every request",
		Long: `mount mirrors BACKING at MOUNTPOINT. Lookups, stats, opens and reads on
the mount go through the tracer. On SIGINT or SIGTERM the filesystem is
unmounted and the totals are printed.

Example:
  tracedio mount /data /mnt/traced
  tracedio mount --read-only --metrics-addr :9400 /data /mnt/traced`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMount(cmd, v, args[0], args[1])
		},
	}

	cmd.Flags().Bool("read-only", false, "reject create and write")
	cmd.Flags().Bool("allow-other", false, "allow other users to access the mount")
	cmd.Flags().Bool("fuse-debug", false, "enable go-fuse debug output")
	cmd.Flags().String("metrics-addr", "", "serve Prometheus metrics on this address (disabled when empty)")
	v.BindPFlag("mount.read_only", cmd.Flags().Lookup("read-only"))
	v.BindPFlag("mount.allow_other", cmd.Flags().Lookup("allow-other"))
	v.BindPFlag("mount.fuse_debug", cmd.Flags().Lookup("fuse-debug"))
	v.BindPFlag("mount.metrics_addr", cmd.Flags().Lookup("metrics-addr"))

	return cmd
}

func runMount(cmd *cobra.Command, v *viper.Viper, backing, mountpoint string) error {
	logger := newLogger(v, cmd.ErrOrStderr())
	t := newTracer(cmd, v, logger)

	opts := tracedio.DefaultMountOptions(mountpoint)
	opts.ReadOnly = v.GetBool("mount.read_only")
	opts.AllowOther = v.GetBool("mount.allow_other")
	opts.Debug = v.GetBool("mount.fuse_debug")
	opts.Logger = logger

	tfs, err := tracedio.Mount(backing, t, opts)
	if err != nil {
		return err
	}

	var srv *http.Server
	if addr := v.GetString("mount.metrics_addr"); addr != "" {
		srv = serveMetrics(addr, tfs, logger)
	}

	unmounted := make(chan struct{})
	go func() {
		tfs.Wait()
		close(unmounted)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case sig := <-sigCh:
		level.Info(logger).Log("msg", "received signal, unmounting", "signal", sig)
		if err := tfs.Unmount(); err != nil {
			level.Error(logger).Log("msg", "unmount failed", "err", err)
		}
	case <-unmounted:
		level.Info(logger).Log("msg", "filesystem unmounted externally")
	}

	if srv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			level.Error(logger).Log("msg", "metrics server shutdown failed", "err", err)
		}
	}

	tfs.Dump()
	return nil
}

// metricsHandler serves acct on /metrics, reading it under mu
func metricsHandler(acct *tracedio.Accumulator, mu sync.Locker) http.Handler {
	reg := prometheus.NewRegistry()
	reg.MustRegister(tracedio.NewCollector(acct, mu))

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	return mux
}

func serveMetrics(addr string, tfs *tracedio.TracedFS, logger log.Logger) *http.Server {
	srv := &http.Server{
		Addr:    addr,
		Handler: metricsHandler(tfs.Tracer().Accumulator(), tfs.Locker()),
	}

	go func() {
		level.Info(logger).Log("msg", "serving metrics", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			level.Error(logger).Log("msg", "metrics server failed", "err", err)
		}
	}()
	return srv
}
