// Package ptyproc spawns child processes attached to a pseudo-terminal and
// exposes them through a small event-driven handle.
//
// The Spawner interface is the seam between the session pool and the OS:
// production code uses the platform spawner (creack/pty on Unix, ConPTY on
// Windows) and tests substitute the fake from package ptytest.
package ptyproc

import (
	"errors"
	"os"
	"runtime"
	"sort"
	"strings"
)

const (
	// DefaultTermType is the TERM value handed to spawned shells.
	DefaultTermType = "xterm-256color"

	DefaultCols = 80
	DefaultRows = 30
)

// SpawnOptions describes the terminal a process is started in.
type SpawnOptions struct {
	TermType string
	Cols     uint16
	Rows     uint16
	Cwd      string
	Env      map[string]string
}

// ExitEvent is delivered once when a process terminates.
// Signal is nil unless the process was terminated by a signal.
type ExitEvent struct {
	ExitCode int
	Signal   os.Signal
}

// Unsubscribe detaches a callback. Calling it more than once is a no-op.
type Unsubscribe func()

// Process is a running child attached to a pseudo-terminal.
//
// Events of each kind are held until the first subscriber of that kind
// registers, so output produced between Spawn and OnData is not lost.
// Output is delivered in the order it was read; the exit event is
// delivered after the output stream has drained.
type Process interface {
	Pid() int
	Write(data []byte) error
	Resize(cols, rows uint16) error
	// Kill signals the process and everything it started on its terminal.
	// A nil signal means SIGKILL. Killing an exited process is not an error.
	Kill(sig os.Signal) error
	OnData(fn func(data []byte)) Unsubscribe
	OnExit(fn func(ev ExitEvent)) Unsubscribe
}

// Spawner starts processes. Implementations must not leave a running
// process behind when they return an error.
type Spawner interface {
	Spawn(program string, args []string, opts SpawnOptions) (Process, error)
}

// ErrProcessExited is returned by Write and Resize once the process is gone.
var ErrProcessExited = errors.New("process has exited")

// DefaultShell resolves the interactive shell for this platform.
func DefaultShell() string {
	if runtime.GOOS == "windows" {
		if v := os.Getenv("COMSPEC"); v != "" {
			return v
		}
		return "powershell.exe"
	}
	if v := os.Getenv("SHELL"); v != "" {
		return v
	}
	return "/bin/sh"
}

// CommandArgs returns the non-interactive argument form that makes shell
// run command and exit.
func CommandArgs(shell, command string) []string {
	base := shell
	if i := strings.LastIndexAny(shell, `/\`); i >= 0 {
		base = shell[i+1:]
	}
	base = strings.ToLower(base)
	if base == "cmd" || base == "cmd.exe" {
		return []string{"/C", command}
	}
	return []string{"-c", command}
}

// Environ merges overrides over the current process environment and sets
// TERM when termType is non-empty.
func Environ(overrides map[string]string, termType string) map[string]string {
	env := make(map[string]string, len(overrides)+32)
	for _, kv := range os.Environ() {
		if k, v, ok := strings.Cut(kv, "="); ok && k != "" {
			env[k] = v
		}
	}
	for k, v := range overrides {
		env[k] = v
	}
	if termType != "" {
		env["TERM"] = termType
	}
	return env
}

// envList flattens env into KEY=VALUE pairs in a stable order.
func envList(env map[string]string) []string {
	out := make([]string, 0, len(env))
	for k, v := range env {
		out = append(out, k+"="+v)
	}
	sort.Strings(out)
	return out
}

// spawnEnv is the environment a spawner hands to the child: opts.Env
// verbatim (or the inherited environment when nil) with TERM forced.
func spawnEnv(opts SpawnOptions) map[string]string {
	if opts.Env == nil {
		return Environ(nil, opts.TermType)
	}
	env := make(map[string]string, len(opts.Env)+1)
	for k, v := range opts.Env {
		env[k] = v
	}
	env["TERM"] = opts.TermType
	return env
}

func normalize(opts SpawnOptions) SpawnOptions {
	if opts.Cols == 0 {
		opts.Cols = DefaultCols
	}
	if opts.Rows == 0 {
		opts.Rows = DefaultRows
	}
	if opts.TermType == "" {
		opts.TermType = DefaultTermType
	}
	return opts
}
