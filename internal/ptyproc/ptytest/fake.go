// Package ptytest provides an in-memory ptyproc.Spawner for tests.
//
// Fake processes never run anything: tests drive them with EmitData and
// EmitExit, and inspect what the code under test wrote, resized or killed.
// Events are delivered synchronously on the caller's goroutine.
package ptytest

import (
	"errors"
	"os"
	"sync"

	"github.com/LittleBreak/work-box-sub001/internal/ptyproc"
)

// Spawner records every spawn and hands out Process values.
type Spawner struct {
	mu      sync.Mutex
	nextPID int
	procs   []*Process

	// Err, when set, makes Spawn fail without creating a process.
	Err error

	// Spawned receives every new process when non-nil. Sends never block;
	// a full channel drops the notification.
	Spawned chan *Process
}

// NewSpawner returns a Spawner whose Spawned channel holds up to 64
// processes.
func NewSpawner() *Spawner {
	return &Spawner{nextPID: 1000, Spawned: make(chan *Process, 64)}
}

func (s *Spawner) Spawn(program string, args []string, opts ptyproc.SpawnOptions) (ptyproc.Process, error) {
	s.mu.Lock()
	if s.Err != nil {
		err := s.Err
		s.mu.Unlock()
		return nil, err
	}
	s.nextPID++
	p := &Process{
		Program: program,
		Args:    append([]string(nil), args...),
		Opts:    opts,
		pid:     s.nextPID,
		data:    make(map[int]func([]byte)),
		exit:    make(map[int]func(ptyproc.ExitEvent)),
	}
	s.procs = append(s.procs, p)
	ch := s.Spawned
	s.mu.Unlock()

	if ch != nil {
		select {
		case ch <- p:
		default:
		}
	}
	return p, nil
}

// Processes returns every process spawned so far, in spawn order.
func (s *Spawner) Processes() []*Process {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*Process(nil), s.procs...)
}

// Count returns the number of successful spawns.
func (s *Spawner) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.procs)
}

// ErrClosed is returned by Write and Resize after EmitExit.
var ErrClosed = errors.New("fake process exited")

// Process is a scripted ptyproc.Process.
type Process struct {
	Program string
	Args    []string
	Opts    ptyproc.SpawnOptions

	pid int

	mu      sync.Mutex
	seq     int
	data    map[int]func([]byte)
	exit    map[int]func(ptyproc.ExitEvent)
	exited  bool
	writes  [][]byte
	resizes [][2]uint16
	kills   []os.Signal
}

func (p *Process) Pid() int { return p.pid }

func (p *Process) Write(data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.exited {
		return ErrClosed
	}
	p.writes = append(p.writes, append([]byte(nil), data...))
	return nil
}

func (p *Process) Resize(cols, rows uint16) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.exited {
		return ErrClosed
	}
	p.resizes = append(p.resizes, [2]uint16{cols, rows})
	return nil
}

// Kill records the request; it does not emit an exit event.
func (p *Process) Kill(sig os.Signal) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.kills = append(p.kills, sig)
	return nil
}

func (p *Process) OnData(fn func([]byte)) ptyproc.Unsubscribe {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.seq++
	key := p.seq
	p.data[key] = fn
	return func() {
		p.mu.Lock()
		delete(p.data, key)
		p.mu.Unlock()
	}
}

func (p *Process) OnExit(fn func(ptyproc.ExitEvent)) ptyproc.Unsubscribe {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.seq++
	key := p.seq
	p.exit[key] = fn
	return func() {
		p.mu.Lock()
		delete(p.exit, key)
		p.mu.Unlock()
	}
}

// EmitData delivers chunk to every current data subscriber. Emitting after
// EmitExit is allowed, mirroring a pty that still has buffered output.
func (p *Process) EmitData(chunk string) {
	p.mu.Lock()
	subs := make([]func([]byte), 0, len(p.data))
	for _, fn := range p.data {
		subs = append(subs, fn)
	}
	p.mu.Unlock()

	for _, fn := range subs {
		fn([]byte(chunk))
	}
}

// EmitExit marks the process exited and notifies exit subscribers.
func (p *Process) EmitExit(code int) {
	p.mu.Lock()
	p.exited = true
	subs := make([]func(ptyproc.ExitEvent), 0, len(p.exit))
	for _, fn := range p.exit {
		subs = append(subs, fn)
	}
	p.mu.Unlock()

	for _, fn := range subs {
		fn(ptyproc.ExitEvent{ExitCode: code})
	}
}

// Writes returns everything written to the process.
func (p *Process) Writes() [][]byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([][]byte(nil), p.writes...)
}

// Resizes returns every (cols, rows) pair received.
func (p *Process) Resizes() [][2]uint16 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([][2]uint16(nil), p.resizes...)
}

// Kills returns the signals passed to Kill, one entry per call.
func (p *Process) Kills() []os.Signal {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]os.Signal(nil), p.kills...)
}

// Subscribers reports the current number of data and exit subscribers.
func (p *Process) Subscribers() (data, exit int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.data), len(p.exit)
}
