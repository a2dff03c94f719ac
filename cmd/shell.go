package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/LittleBreak/work-box-sub001/internal/session"
	"github.com/LittleBreak/work-box-sub001/internal/ui"
)

var flagShellCwd string

func init() {
	shellCmd.Flags().StringVar(&flagShellCwd, "cwd", "", "Working directory of the session (default: --work-dir)")
	shellCmd.Flags().StringVar(&flags.MetricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address while attached")
	rootCmd.AddCommand(shellCmd)
}

var shellCmd = &cobra.Command{
	Use:   "shell",
	Short: "Attach this terminal to a managed shell session",
	Long: `Creates a pseudo-terminal session with the configured shell and attaches
the local terminal to it. Window size changes are forwarded to the session.
The command exits with the shell's exit code.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr := session.NewManager(session.Options{
			Shell:   cfg.Shell,
			HomeDir: cfg.WorkDir,
			Logger:  logger,
			Metrics: stats,
		})
		defer mgr.CloseAll()

		if cfg.MetricsAddr != "" {
			srv := serveMetrics(cfg.MetricsAddr)
			defer func() {
				ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
				defer cancel()
				_ = srv.Shutdown(ctx)
			}()
		}

		stdin := int(os.Stdin.Fd())
		interactive := term.IsTerminal(stdin)

		opts := session.CreateOptions{Cwd: flagShellCwd}
		if interactive {
			if w, h, err := term.GetSize(stdin); err == nil {
				opts.Cols, opts.Rows = uint16(w), uint16(h)
			}
		}
		id, err := mgr.Create(opts)
		if err != nil {
			return fmt.Errorf("create session: %w", err)
		}

		a, err := attach(mgr, id, os.Stdout)
		if err != nil {
			ui.Stderr.Error("%v", err)
			if code, ok := a.exitCode(time.Second); ok {
				ui.Stderr.ExitStatus(code, false, false)
				if code != 0 {
					return exitCodeError{code: code}
				}
				return nil
			}
			return err
		}
		info := a.info

		ui.Stderr.Banner(version)
		ui.Stderr.KeyValue("Session", id)
		ui.Stderr.KeyValue("Shell", info.Shell)
		ui.Stderr.KeyValue("Work dir", info.Cwd)
		if cfg.MetricsAddr != "" {
			ui.Stderr.KeyValue("Metrics", "http://"+cfg.MetricsAddr+"/metrics")
		}
		ui.Stderr.Separator()
		ui.Stderr.Info("Attached to %s; exit the shell to detach", info.Shell)

		if interactive {
			state, err := term.MakeRaw(stdin)
			if err != nil {
				return fmt.Errorf("raw mode: %w", err)
			}
			defer func() { _ = term.Restore(stdin, state) }()

			stop := watchResize(resizer(mgr, id, stdin, info.Cols, info.Rows))
			defer stop()
		}

		go pumpInput(mgr, id, os.Stdin)

		code := <-a.exited
		if interactive {
			fmt.Fprint(os.Stderr, "\r")
		}
		ui.Stderr.ExitStatus(code, false, false)
		if code != 0 {
			return exitCodeError{code: code}
		}
		return nil
	},
}

type attachment struct {
	info   session.Info
	exited chan int
}

// attach subscribes out and an exit channel to session id. The exit
// subscription goes first so a shell that dies mid-attach still reports its
// code through exitCode.
func attach(mgr *session.Manager, id string, out io.Writer) (*attachment, error) {
	a := &attachment{exited: make(chan int, 1)}
	if err := mgr.OnExit(id, func(code int) { a.exited <- code }); err != nil {
		return nil, fmt.Errorf("shell exited before it could be attached: %w", err)
	}
	if err := mgr.OnData(id, func(data []byte) { _, _ = out.Write(data) }); err != nil {
		return a, fmt.Errorf("shell exited before it could be attached: %w", err)
	}
	info, err := mgr.Info(id)
	if err != nil {
		return a, fmt.Errorf("shell exited before it could be attached: %w", err)
	}
	a.info = info
	return a, nil
}

// exitCode waits up to d for the shell's exit code.
func (a *attachment) exitCode(d time.Duration) (int, bool) {
	if a == nil {
		return 0, false
	}
	select {
	case code := <-a.exited:
		return code, true
	case <-time.After(d):
		return 0, false
	}
}

// pumpInput forwards r to the session until r ends or the session is gone.
func pumpInput(mgr *session.Manager, id string, r io.Reader) {
	buf := make([]byte, 4096)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			if werr := mgr.Write(id, buf[:n]); werr != nil {
				if !errors.Is(werr, session.ErrSessionNotFound) {
					logger.Debug("session write failed", zap.String("session_id", id), zap.Error(werr))
				}
				return
			}
		}
		if err != nil {
			return
		}
	}
}

// resizer returns a callback that forwards local size changes to the session.
func resizer(mgr *session.Manager, id string, fd int, cols, rows uint16) func() {
	var mu sync.Mutex
	return func() {
		w, h, err := term.GetSize(fd)
		if err != nil || w <= 0 || h <= 0 {
			return
		}
		mu.Lock()
		defer mu.Unlock()
		if uint16(w) == cols && uint16(h) == rows {
			return
		}
		if err := mgr.Resize(id, uint16(w), uint16(h)); err != nil {
			return
		}
		cols, rows = uint16(w), uint16(h)
	}
}

func serveMetrics(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("metrics server stopped", zap.String("addr", addr), zap.Error(err))
		}
	}()
	return srv
}
