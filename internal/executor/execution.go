package executor

import (
	"bytes"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/LittleBreak/work-box-sub001/internal/ptyproc"
)

// execution is the private state of one Execute call. Exit, timeout and
// cancellation all go through settle; only the first caller wins, and the
// winner alone kills the process.
type execution struct {
	timeout time.Duration
	done    chan Result

	mu        sync.Mutex
	out       bytes.Buffer
	truncated bool
	settled   bool
	proc      ptyproc.Process
	timer     *clock.Timer
}

func newExecution(timeout time.Duration) *execution {
	return &execution{
		timeout: timeout,
		done:    make(chan Result, 1),
	}
}

func (x *execution) setTimer(t *clock.Timer) {
	x.mu.Lock()
	x.timer = t
	x.mu.Unlock()
}

func (x *execution) append(chunk []byte) {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.out.Write(chunk)
	if x.out.Len() > maxOutput {
		x.truncated = true
	}
}

// attach hands the spawned process over. If a trigger already settled the
// execution while spawning, the process is killed here instead.
func (x *execution) attach(proc ptyproc.Process) {
	x.mu.Lock()
	if !x.settled {
		x.proc = proc
		x.mu.Unlock()
		return
	}
	x.mu.Unlock()
	_ = proc.Kill(os.Kill)
}

// settle flips the settle-once flag. The caller that gets ok == true owns
// the returned process and timer.
func (x *execution) settle(exitCode int, timedOut bool) (res Result, proc ptyproc.Process, timer *clock.Timer, ok bool) {
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.settled {
		return Result{}, nil, nil, false
	}
	x.settled = true
	if timedOut {
		fmt.Fprintf(&x.out, timeoutMarker, x.timeout.Milliseconds())
	}

	proc, timer = x.proc, x.timer
	x.proc = nil
	return x.result(exitCode, timedOut), proc, timer, true
}

// result builds the caller-visible output. Only process output raises the
// truncation flag, so a timeout marker past the cap is cut with the rest.
func (x *execution) result(exitCode int, timedOut bool) Result {
	stdout := x.out.String()
	if x.truncated {
		stdout = strings.ToValidUTF8(stdout[:maxOutput], "") + "\n" + truncationMarker
	}
	return Result{
		Stdout:    stdout,
		ExitCode:  exitCode,
		Truncated: x.truncated,
		TimedOut:  timedOut,
	}
}

func (x *execution) onExit(ev ptyproc.ExitEvent) {
	res, proc, timer, ok := x.settle(ev.ExitCode, false)
	if !ok {
		return
	}
	if timer != nil {
		timer.Stop()
	}
	if proc != nil {
		_ = proc.Kill(os.Kill)
	}
	x.done <- res
}

func (x *execution) onTimeout() {
	res, proc, _, ok := x.settle(TimeoutExitCode, true)
	if !ok {
		return
	}
	if proc != nil {
		_ = proc.Kill(os.Kill)
	}
	x.done <- res
}

// cancel settles without delivering a result; the caller reports the
// context error instead.
func (x *execution) cancel() (Result, bool) {
	res, proc, timer, ok := x.settle(-1, false)
	if !ok {
		return Result{}, false
	}
	if timer != nil {
		timer.Stop()
	}
	if proc != nil {
		_ = proc.Kill(os.Kill)
	}
	return res, true
}
