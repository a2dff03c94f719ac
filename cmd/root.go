package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/LittleBreak/work-box-sub001/internal/config"
	"github.com/LittleBreak/work-box-sub001/internal/logging"
	"github.com/LittleBreak/work-box-sub001/internal/metrics"
)

var (
	flags config.Flags

	cfg      *config.Config
	logger   = logging.NewOrNop(logging.DefaultConfig())
	registry = prometheus.NewRegistry()
	stats    = metrics.New(registry)
)

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flags.Shell, "shell", "", "Shell used for sessions and commands (default: $SHELL or /bin/sh)")
	pf.StringVar(&flags.WorkDir, "work-dir", "", "Default working directory (default: home directory)")
	pf.DurationVar(&flags.ExecTimeout, "exec-timeout", 0, "Default timeout for one-shot commands (default: 30s)")
	pf.StringVar(&flags.LogLevel, "log-level", "", "Log level: debug, info, warn, error")
	pf.BoolVar(&flags.LogDevelopment, "log-dev", false, "Human-readable development logging")
}

var rootCmd = &cobra.Command{
	Use:   "workbox",
	Short: "workbox: local terminal sessions and sandboxed command execution",
	Long: `workbox hosts pseudo-terminal shell sessions on this machine and runs
one-shot shell commands with a command blocklist, an output cap and a timeout.

Configuration is read from ~/.workbox/config.yaml, then WORKBOX_* environment
variables, then flags.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(flags)
		if err != nil {
			return fmt.Errorf("configuration error: %w", err)
		}
		lc := logging.DefaultConfig()
		lc.Level = cfg.LogLevel
		lc.Development = cfg.LogDevelopment
		logger, err = logging.New(lc)
		if err != nil {
			return fmt.Errorf("logger: %w", err)
		}
		logger.Debug("configuration loaded",
			zap.String("file", config.FilePath()),
			zap.String("work_dir", cfg.WorkDir),
			zap.Duration("exec_timeout", cfg.ExecTimeout),
		)
		return nil
	},
}

func Execute() {
	err := rootCmd.Execute()
	_ = logger.Sync()
	if err != nil {
		var ec exitCodeError
		if errors.As(err, &ec) {
			os.Exit(ec.code)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
