//go:build !windows

package ptyproc

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capture struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (c *capture) write(b []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.buf.Write(b)
}

func (c *capture) String() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.buf.String()
}

func spawnOrSkip(t *testing.T, command string) Process {
	t.Helper()
	p, err := NewSpawner().Spawn("/bin/sh", CommandArgs("/bin/sh", command), SpawnOptions{Cwd: t.TempDir()})
	if err != nil {
		t.Skipf("pty unavailable: %v", err)
	}
	return p
}

func waitExit(t *testing.T, p Process) ExitEvent {
	t.Helper()
	ch := make(chan ExitEvent, 1)
	p.OnExit(func(ev ExitEvent) { ch <- ev })
	select {
	case ev := <-ch:
		return ev
	case <-time.After(10 * time.Second):
		t.Fatal("process did not exit")
		return ExitEvent{}
	}
}

func TestUnixSpawner_OutputBeforeExit(t *testing.T) {
	p := spawnOrSkip(t, "printf 'hello from pty'; exit 3")

	var out capture
	p.OnData(out.write)
	ev := waitExit(t, p)

	assert.Equal(t, 3, ev.ExitCode)
	assert.Nil(t, ev.Signal)
	assert.Contains(t, out.String(), "hello from pty")
	assert.Greater(t, p.Pid(), 0)
	assert.ErrorIs(t, p.Write([]byte("late\n")), ErrProcessExited)
	assert.NoError(t, p.Kill(nil), "killing an exited process is a no-op")
}

func TestUnixSpawner_TermAndSize(t *testing.T) {
	p := spawnOrSkip(t, `echo "$TERM"; stty size`)

	var out capture
	p.OnData(out.write)
	ev := waitExit(t, p)

	require.Equal(t, 0, ev.ExitCode)
	assert.Contains(t, out.String(), DefaultTermType)
	assert.Contains(t, out.String(), "30 80")
}

// processGone reports whether pid has exited. Orphans may linger as zombies
// when nothing reaps them, which counts as gone.
func processGone(pid int) bool {
	data, err := os.ReadFile(fmt.Sprintf("/proc/%d/stat", pid))
	if err == nil {
		i := bytes.LastIndexByte(data, ')')
		return i >= 0 && len(data) > i+2 && data[i+2] == 'Z'
	}
	if _, err := os.Stat("/proc/self"); err == nil {
		return true
	}
	return errors.Is(syscall.Kill(pid, 0), syscall.ESRCH)
}

func TestUnixSpawner_Kill(t *testing.T) {
	p := spawnOrSkip(t, "sleep 30")
	p.OnData(func([]byte) {})

	require.NoError(t, p.Kill(syscall.SIGHUP))
	ev := waitExit(t, p)

	assert.Equal(t, syscall.SIGHUP, ev.Signal)
	assert.Equal(t, 128+int(syscall.SIGHUP), ev.ExitCode)
}

func TestUnixSpawner_WriteAndResize(t *testing.T) {
	p := spawnOrSkip(t, "read line; echo \"got:$line\"")

	var out capture
	p.OnData(out.write)
	require.NoError(t, p.Resize(100, 40))
	require.NoError(t, p.Write([]byte("ping\n")))
	ev := waitExit(t, p)

	assert.Equal(t, 0, ev.ExitCode)
	assert.Contains(t, out.String(), "got:ping")
}

func TestUnixSpawner_KillReachesWholeGroup(t *testing.T) {
	p := spawnOrSkip(t, `trap '' HUP; sleep 4343 & echo "bg:$!"; wait`)

	var out capture
	p.OnData(out.write)

	bgPID := regexp.MustCompile(`bg:(\d+)`)
	var pid int
	require.Eventually(t, func() bool {
		m := bgPID.FindStringSubmatch(out.String())
		if m == nil {
			return false
		}
		pid, _ = strconv.Atoi(m[1])
		return true
	}, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, p.Kill(nil))
	ev := waitExit(t, p)

	assert.Equal(t, syscall.SIGKILL, ev.Signal)
	assert.Eventually(t, func() bool { return processGone(p.Pid()) && processGone(pid) },
		5*time.Second, 10*time.Millisecond, "background job %d survived", pid)
}
