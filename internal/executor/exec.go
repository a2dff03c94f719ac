// Package executor runs one-shot, non-interactive shell commands inside a
// pseudo-terminal with a blocklist, an output cap and a wall-clock timeout.
package executor

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"github.com/LittleBreak/work-box-sub001/internal/metrics"
	"github.com/LittleBreak/work-box-sub001/internal/ptyproc"
)

const (
	defaultTimeout = 30 * time.Second
	// maxTimeout caps caller timeouts; larger values would overflow a
	// time.Duration in milliseconds.
	maxTimeout = 24 * time.Hour
	maxOutput  = 10000

	// TimeoutExitCode is reported when the timeout wins, as timeout(1) does.
	TimeoutExitCode = 124

	timeoutMarker    = "\n[Command timed out after %dms]"
	truncationMarker = "[Output truncated: exceeded 10000 bytes]"
)

// Options configures an Executor.
type Options struct {
	// Spawner defaults to the platform PTY spawner.
	Spawner ptyproc.Spawner
	// Shell defaults to ptyproc.DefaultShell().
	Shell string
	// HomeDir is the working directory when a request has none.
	HomeDir string
	// DefaultTimeout applies to requests without a timeout (30s if zero).
	DefaultTimeout time.Duration
	// Clock defaults to the wall clock.
	Clock   clock.Clock
	Logger  *zap.Logger
	Metrics *metrics.Metrics
}

// Request is one command to run.
type Request struct {
	Command string `json:"command"`
	Cwd     string `json:"cwd,omitempty"`
	// Timeout in milliseconds; zero or negative uses the default, values
	// above 24h are clamped.
	Timeout int `json:"timeout,omitempty"`
}

// Result is the collected outcome of a command. A timeout is a Result with
// ExitCode 124, not an error.
type Result struct {
	Stdout    string `json:"stdout"`
	ExitCode  int    `json:"exitCode"`
	Truncated bool   `json:"truncated,omitempty"`
	TimedOut  bool   `json:"timedOut,omitempty"`
}

// Executor runs commands. It holds no per-call state, so concurrent
// Execute calls are independent.
type Executor struct {
	spawner        ptyproc.Spawner
	shell          string
	homeDir        string
	defaultTimeout time.Duration
	clock          clock.Clock
	logger         *zap.Logger
	metrics        *metrics.Metrics
}

// New creates an Executor.
func New(opts Options) *Executor {
	if opts.Spawner == nil {
		opts.Spawner = ptyproc.NewSpawner()
	}
	if opts.Shell == "" {
		opts.Shell = ptyproc.DefaultShell()
	}
	if opts.HomeDir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			opts.HomeDir = home
		}
	}
	if opts.DefaultTimeout <= 0 {
		opts.DefaultTimeout = defaultTimeout
	}
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	return &Executor{
		spawner:        opts.Spawner,
		shell:          opts.Shell,
		homeDir:        opts.HomeDir,
		defaultTimeout: opts.DefaultTimeout,
		clock:          opts.Clock,
		logger:         opts.Logger.Named("executor"),
		metrics:        opts.Metrics,
	}
}

// Execute validates req, runs it through the shell and waits for it to
// exit or time out. The spawned process has been sent a kill before
// Execute returns, whichever way it settles. Rejected commands never
// spawn.
func (e *Executor) Execute(ctx context.Context, req Request) (Result, error) {
	if err := Validate(req.Command); err != nil {
		e.metrics.ExecutionFinished(metrics.OutcomeRejected, 0, false)
		e.logger.Warn("command rejected", zap.String("command", req.Command), zap.Error(err))
		return Result{}, err
	}

	timeout := e.timeout(req.Timeout)
	cwd := req.Cwd
	if cwd == "" {
		cwd = e.homeDir
	}

	start := e.clock.Now()
	x := newExecution(timeout)
	// Armed before spawning so the deadline covers the spawn itself.
	x.setTimer(e.clock.AfterFunc(timeout, x.onTimeout))

	proc, err := e.spawner.Spawn(e.shell, ptyproc.CommandArgs(e.shell, req.Command), ptyproc.SpawnOptions{
		TermType: ptyproc.DefaultTermType,
		Cols:     ptyproc.DefaultCols,
		Rows:     ptyproc.DefaultRows,
		Cwd:      cwd,
		Env:      ptyproc.Environ(nil, ptyproc.DefaultTermType),
	})
	if err != nil {
		x.cancel()
		e.metrics.ExecutionFinished(metrics.OutcomeError, e.clock.Since(start), false)
		return Result{}, fmt.Errorf("spawn %s: %w", e.shell, err)
	}

	unsubData := proc.OnData(x.append)
	unsubExit := proc.OnExit(x.onExit)
	defer unsubData()
	defer unsubExit()
	x.attach(proc)

	log := e.logger.With(zap.String("command", req.Command), zap.Int("pid", proc.Pid()))
	log.Debug("command started", zap.String("cwd", cwd), zap.Duration("timeout", timeout))

	select {
	case res := <-x.done:
		e.finish(log, res, e.clock.Since(start))
		return res, nil
	case <-ctx.Done():
		if res, ok := x.cancel(); ok {
			e.metrics.ExecutionFinished(metrics.OutcomeCanceled, e.clock.Since(start), res.Truncated)
			log.Info("command canceled", zap.Error(ctx.Err()))
			return res, ctx.Err()
		}
		res := <-x.done
		e.finish(log, res, e.clock.Since(start))
		return res, nil
	}
}

func (e *Executor) timeout(ms int) time.Duration {
	switch {
	case ms <= 0:
		return e.defaultTimeout
	case int64(ms) >= maxTimeout.Milliseconds():
		return maxTimeout
	}
	return time.Duration(ms) * time.Millisecond
}

func (e *Executor) finish(log *zap.Logger, res Result, took time.Duration) {
	outcome := metrics.OutcomeExited
	if res.TimedOut {
		outcome = metrics.OutcomeTimeout
		log.Warn("command timed out", zap.Duration("took", took))
	} else {
		log.Debug("command exited", zap.Int("exit_code", res.ExitCode), zap.Duration("took", took))
	}
	e.metrics.ExecutionFinished(outcome, took, res.Truncated)
}
