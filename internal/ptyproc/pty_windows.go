//go:build windows

package ptyproc

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"syscall"
	"time"

	"github.com/UserExistsError/conpty"
)

const (
	readBufferSize = 32 * 1024
	drainTimeout   = 500 * time.Millisecond
)

type conptySpawner struct{}

// NewSpawner returns the ConPTY backed spawner.
func NewSpawner() Spawner {
	return conptySpawner{}
}

func (conptySpawner) Spawn(program string, args []string, opts SpawnOptions) (Process, error) {
	opts = normalize(opts)

	parts := make([]string, 0, len(args)+1)
	parts = append(parts, syscall.EscapeArg(program))
	for _, a := range args {
		parts = append(parts, syscall.EscapeArg(a))
	}

	cpty, err := conpty.Start(strings.Join(parts, " "),
		conpty.ConPtyDimensions(int(opts.Cols), int(opts.Rows)),
		conpty.ConPtyWorkDir(opts.Cwd),
		conpty.ConPtyEnv(envList(spawnEnv(opts))),
	)
	if err != nil {
		return nil, fmt.Errorf("start conpty: %w", err)
	}

	p := &conptyProcess{
		cpty:     cpty,
		events:   newEmitter(),
		exited:   make(chan struct{}),
		readDone: make(chan struct{}),
	}
	go p.readLoop()
	go p.waitLoop()
	return p, nil
}

type conptyProcess struct {
	cpty   *conpty.ConPty
	events *emitter

	exited   chan struct{}
	readDone chan struct{}
}

func (p *conptyProcess) Pid() int {
	return p.cpty.Pid()
}

func (p *conptyProcess) Write(data []byte) error {
	select {
	case <-p.exited:
		return ErrProcessExited
	default:
	}
	if _, err := p.cpty.Write(data); err != nil {
		return fmt.Errorf("write conpty: %w", err)
	}
	return nil
}

func (p *conptyProcess) Resize(cols, rows uint16) error {
	select {
	case <-p.exited:
		return ErrProcessExited
	default:
	}
	return p.cpty.Resize(int(cols), int(rows))
}

// Kill terminates the process; Windows has no signal delivery so sig is
// ignored.
func (p *conptyProcess) Kill(sig os.Signal) error {
	select {
	case <-p.exited:
		return nil
	default:
	}
	proc, err := os.FindProcess(p.Pid())
	if err != nil {
		return nil
	}
	if err := proc.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return fmt.Errorf("kill %d: %w", p.Pid(), err)
	}
	return nil
}

func (p *conptyProcess) OnData(fn func([]byte)) Unsubscribe {
	return p.events.onData(fn)
}

func (p *conptyProcess) OnExit(fn func(ExitEvent)) Unsubscribe {
	return p.events.onExit(fn)
}

func (p *conptyProcess) readLoop() {
	defer close(p.readDone)

	select {
	case <-p.events.dataReady:
	case <-p.exited:
		return
	}

	buf := make([]byte, readBufferSize)
	for {
		n, err := p.cpty.Read(buf)
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

func (p *conptyProcess) waitLoop() {
	code, err := p.cpty.Wait(context.Background())
	ev := ExitEvent{ExitCode: int(code)}
	if err != nil {
		ev.ExitCode = -1
	}
	close(p.exited)

	select {
	case <-p.readDone:
	case <-time.After(drainTimeout):
	}
	_ = p.cpty.Close()

	p.events.emitExit(ev)
}
