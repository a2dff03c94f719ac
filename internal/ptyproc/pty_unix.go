//go:build !windows

package ptyproc

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"syscall"
	"time"

	"github.com/creack/pty"
)

const (
	readBufferSize = 32 * 1024
	// subscribeGrace is how long a reader whose process already exited
	// waits for its first OnData before draining to nobody.
	subscribeGrace = 100 * time.Millisecond
	// drainTimeout bounds how long the exit event waits for buffered
	// output; a grandchild holding the tty open would otherwise stall it.
	drainTimeout = 500 * time.Millisecond
)

type unixSpawner struct{}

// NewSpawner returns the creack/pty backed spawner.
func NewSpawner() Spawner {
	return unixSpawner{}
}

func (unixSpawner) Spawn(program string, args []string, opts SpawnOptions) (Process, error) {
	opts = normalize(opts)

	cmd := exec.Command(program, args...)
	cmd.Dir = opts.Cwd
	cmd.Env = envList(spawnEnv(opts))

	ptmx, err := pty.StartWithSize(cmd, &pty.Winsize{Cols: opts.Cols, Rows: opts.Rows})
	if err != nil {
		return nil, fmt.Errorf("start pty: %w", err)
	}

	p := &unixProcess{
		cmd:      cmd,
		ptmx:     ptmx,
		events:   newEmitter(),
		exited:   make(chan struct{}),
		readDone: make(chan struct{}),
	}
	go p.readLoop()
	go p.waitLoop()
	return p, nil
}

type unixProcess struct {
	cmd    *exec.Cmd
	ptmx   *os.File
	events *emitter

	exited   chan struct{} // closed once the child has been reaped
	readDone chan struct{}
}

func (p *unixProcess) Pid() int {
	return p.cmd.Process.Pid
}

func (p *unixProcess) Write(data []byte) error {
	select {
	case <-p.exited:
		return ErrProcessExited
	default:
	}
	if _, err := p.ptmx.Write(data); err != nil {
		if errors.Is(err, os.ErrClosed) {
			return ErrProcessExited
		}
		return fmt.Errorf("write pty: %w", err)
	}
	return nil
}

func (p *unixProcess) Resize(cols, rows uint16) error {
	select {
	case <-p.exited:
		return ErrProcessExited
	default:
	}
	return pty.Setsize(p.ptmx, &pty.Winsize{Cols: cols, Rows: rows})
}

// Kill signals the whole process group. pty.Start runs the child with
// Setsid, so its pid is also the group id and background jobs of the shell
// share it.
func (p *unixProcess) Kill(sig os.Signal) error {
	if sig == nil {
		sig = syscall.SIGKILL
	}
	s, ok := sig.(syscall.Signal)
	if !ok {
		return fmt.Errorf("unsupported signal %v", sig)
	}
	err := syscall.Kill(-p.Pid(), s)
	if err != nil && !errors.Is(err, syscall.ESRCH) {
		return fmt.Errorf("signal group %d: %w", p.Pid(), err)
	}
	return nil
}

func (p *unixProcess) OnData(fn func([]byte)) Unsubscribe {
	return p.events.onData(fn)
}

func (p *unixProcess) OnExit(fn func(ExitEvent)) Unsubscribe {
	return p.events.onExit(fn)
}

func (p *unixProcess) readLoop() {
	defer close(p.readDone)

	select {
	case <-p.events.dataReady:
	case <-p.exited:
		select {
		case <-p.events.dataReady:
		case <-time.After(subscribeGrace):
		}
	}

	buf := make([]byte, readBufferSize)
	for {
		n, err := p.ptmx.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			p.events.emitData(chunk)
		}
		if err != nil {
			return
		}
	}
}

func (p *unixProcess) waitLoop() {
	ev := exitEvent(p.cmd.Wait())
	close(p.exited)

	select {
	case <-p.readDone:
	case <-time.After(drainTimeout):
	}
	_ = p.ptmx.Close()

	p.events.emitExit(ev)
}

func exitEvent(err error) ExitEvent {
	if err == nil {
		return ExitEvent{}
	}
	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		return ExitEvent{ExitCode: -1}
	}
	if ws, ok := exitErr.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		return ExitEvent{ExitCode: 128 + int(ws.Signal()), Signal: ws.Signal()}
	}
	return ExitEvent{ExitCode: exitErr.ExitCode()}
}
