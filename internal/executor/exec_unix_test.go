//go:build !windows

package executor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/LittleBreak/work-box-sub001/internal/ptyproc"
)

func newPTYExecutor(t *testing.T) *Executor {
	t.Helper()
	if _, err := os.Stat("/bin/sh"); err != nil {
		t.Skip("no /bin/sh")
	}
	return New(Options{
		Spawner: ptyproc.NewSpawner(),
		Shell:   "/bin/sh",
		HomeDir: t.TempDir(),
		Logger:  zaptest.NewLogger(t),
	})
}

// gone reports whether pid has exited; unreaped zombies count as gone.
func gone(pid int) bool {
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

func TestExecutePTY_Echo(t *testing.T) {
	e := newPTYExecutor(t)

	res, err := e.Execute(context.Background(), Request{Command: "echo hello"})
	require.NoError(t, err)

	assert.Equal(t, 0, res.ExitCode)
	assert.Contains(t, res.Stdout, "hello")
	assert.False(t, res.TimedOut)
}

func TestExecutePTY_TimeoutLeavesNoSurvivors(t *testing.T) {
	e := newPTYExecutor(t)

	res, err := e.Execute(context.Background(), Request{
		Command: `trap '' HUP; echo "sh:$$"; sleep 4343 & echo "bg:$!"; wait`,
		Timeout: 500,
	})
	require.NoError(t, err)
	require.True(t, res.TimedOut)
	assert.Equal(t, TimeoutExitCode, res.ExitCode)
	assert.Contains(t, res.Stdout, "[Command timed out after 500ms]")

	var pids []int
	for _, label := range []string{"sh", "bg"} {
		m := regexp.MustCompile(label + `:(\d+)`).FindStringSubmatch(res.Stdout)
		require.NotNil(t, m, "no %s pid in %q", label, res.Stdout)
		pid, err := strconv.Atoi(m[1])
		require.NoError(t, err)
		pids = append(pids, pid)
	}

	assert.Eventually(t, func() bool {
		for _, pid := range pids {
			if !gone(pid) {
				return false
			}
		}
		return true
	}, 5*time.Second, 20*time.Millisecond, "processes %v outlived Execute", pids)
}
