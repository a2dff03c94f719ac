package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/LittleBreak/work-box-sub001/internal/executor"
	"github.com/LittleBreak/work-box-sub001/internal/ui"
)

// exitCodeError makes Execute exit with a command's own exit code.
type exitCodeError struct {
	code int
}

func (e exitCodeError) Error() string {
	return fmt.Sprintf("exit status %d", e.code)
}

var (
	flagExecCwd     string
	flagExecTimeout int
	flagExecQuiet   bool
)

func init() {
	execCmd.Flags().StringVar(&flagExecCwd, "cwd", "", "Working directory (default: --work-dir)")
	execCmd.Flags().IntVar(&flagExecTimeout, "timeout", 0, "Timeout in milliseconds (default: --exec-timeout)")
	execCmd.Flags().BoolVarP(&flagExecQuiet, "quiet", "q", false, "Do not print the exit status line")
	rootCmd.AddCommand(execCmd)
}

var execCmd = &cobra.Command{
	Use:   "exec [flags] -- <command>",
	Short: "Run one shell command in a pseudo-terminal and print its output",
	Long: `Runs a command through the configured shell inside a pseudo-terminal.
Dangerous commands are rejected, output is capped at 10000 bytes and
the command is killed when the timeout elapses (exit code 124).

workbox exits with the command's exit code.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		res, err := newExecutor().Execute(ctx, executor.Request{
			Command: strings.Join(args, " "),
			Cwd:     flagExecCwd,
			Timeout: flagExecTimeout,
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			return err
		}

		fmt.Fprint(cmd.OutOrStdout(), res.Stdout)
		if !strings.HasSuffix(res.Stdout, "\n") && res.Stdout != "" {
			fmt.Fprintln(cmd.OutOrStdout())
		}
		if !flagExecQuiet {
			ui.Stderr.ExitStatus(res.ExitCode, res.TimedOut, res.Truncated)
		}
		if err != nil {
			return err
		}
		if res.ExitCode != 0 {
			return exitCodeError{code: res.ExitCode}
		}
		return nil
	},
}

func newExecutor() *executor.Executor {
	return executor.New(executor.Options{
		Shell:          cfg.Shell,
		HomeDir:        cfg.WorkDir,
		DefaultTimeout: cfg.ExecTimeout,
		Logger:         logger,
		Metrics:        stats,
	})
}
