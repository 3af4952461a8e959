package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/absfs/tracedio"
)

// subcommands are added to the root command in order. Platform specific
// commands register themselves from init.
var subcommands = []func(v *viper.Viper) *cobra.Command{
	newReadCmd,
}

func newRootCmd() *cobra.Command {
	v := viper.New()
	var cfgFile string

	rootCmd := &cobra.Command{
		Use:   "tracedio",
		Short: "Time file-system syscalls",
		Long: `tracedio wraps openat, fstat and read with wall-clock timing and prints
the accumulated totals:

  open <secs>.<nanos>
  read <secs>.<nanos>
  stat <secs>.<nanos>
  nr_files <count>
  nr_fstat <count>`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig(v, cfgFile)
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default is $HOME/.tracedio/config)")
	flags.String("log-level", "info", "log level: debug, info, warn or error")
	flags.Bool("per-call", false, "also print one line per traced call")
	v.BindPFlag("log_level", flags.Lookup("log-level"))
	v.BindPFlag("per_call", flags.Lookup("per-call"))

	for _, newCmd := range subcommands {
		rootCmd.AddCommand(newCmd(v))
	}
	return rootCmd
}

// initConfig reads the config file and TRACEDIO_* environment variables
func initConfig(v *viper.Viper, cfgFile string) error {
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".tracedio"))
		}
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix("tracedio")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return fmt.Errorf("failed to read config: %w", err)
		}
	}
	return nil
}

// newLogger builds a logfmt logger filtered at the configured level
func newLogger(v *viper.Viper, w io.Writer) log.Logger {
	logger := log.NewLogfmtLogger(log.NewSyncWriter(w))
	logger = level.NewFilter(logger, level.Allow(level.ParseDefault(v.GetString("log_level"), level.InfoValue())))
	return log.With(logger, "ts", log.DefaultTimestampUTC, "caller", log.DefaultCaller)
}

// newTracer builds a tracer reporting to the command's output
func newTracer(cmd *cobra.Command, v *viper.Viper, logger log.Logger) *tracedio.Tracer {
	opts := tracedio.DefaultOptions()
	opts.Output = cmd.OutOrStdout()
	opts.Logger = logger
	if v.GetBool("per_call") {
		opts.PerCall = cmd.OutOrStdout()
	}
	return tracedio.New(&tracedio.Accumulator{}, opts)
}
