package main

import (
	"fmt"

	"github.com/go-kit/log/level"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sys/unix"

	"github.com/absfs/tracedio"
)

func newReadCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "read PATH...",
		Short: "Read files through the tracer and print the totals",
		Long: `read opens, stats and reads every PATH to the end through the tracer,
then prints the accumulated totals. Files that fail are logged and counted
but do not stop the run.

Example:
  tracedio read /etc/hosts /etc/passwd
  tracedio read --dir /var/lib/data --chunk 4096 a.bin b.bin`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRead(cmd, v, args)
		},
	}

	cmd.Flags().String("dir", "", "directory relative paths are opened against (default is the working directory)")
	cmd.Flags().Int("chunk", tracedio.DefaultChunkSize, "bytes requested per traced read")
	v.BindPFlag("read.dir", cmd.Flags().Lookup("dir"))
	v.BindPFlag("read.chunk", cmd.Flags().Lookup("chunk"))

	return cmd
}

func runRead(cmd *cobra.Command, v *viper.Viper, paths []string) error {
	logger := newLogger(v, cmd.ErrOrStderr())
	t := newTracer(cmd, v, logger)

	dirfd := unix.AT_FDCWD
	if dir := v.GetString("read.dir"); dir != "" {
		fd, err := unix.Open(dir, unix.O_RDONLY|unix.O_DIRECTORY|unix.O_CLOEXEC, 0)
		if err != nil {
			return fmt.Errorf("open %s: %w", dir, err)
		}
		defer unix.Close(fd)
		dirfd = fd
	}

	chunk := v.GetInt("read.chunk")
	failed := 0
	for _, path := range paths {
		n, err := tracedio.TraceFile(t, dirfd, path, chunk)
		if err != nil {
			level.Warn(logger).Log("msg", "trace failed", "path", path, "err", err)
			failed++
			continue
		}
		level.Debug(logger).Log("msg", "traced file", "path", path, "bytes", n)
	}

	t.Dump()

	if failed > 0 {
		return fmt.Errorf("%d of %d files failed", failed, len(paths))
	}
	return nil
}
