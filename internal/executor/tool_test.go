package executor

import (
	"context"
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTool_Description(t *testing.T) {
	h := newHarness(t)
	tool := h.exec.Tool()

	assert.Equal(t, "run_command", tool.Name)
	assert.Contains(t, tool.Description, "10000 bytes")
	require.NotNil(t, tool.Handler)

	raw, err := json.Marshal(tool)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.NotContains(t, decoded, "Handler")

	params := decoded["parameters"].(map[string]any)
	assert.Equal(t, "object", params["type"])
	assert.Equal(t, []any{"command"}, params["required"])

	props := params["properties"].(map[string]any)
	assert.Equal(t, "string", props["command"].(map[string]any)["type"])
	assert.Equal(t, "string", props["cwd"].(map[string]any)["type"])
	assert.Equal(t, "number", props["timeout"].(map[string]any)["type"])
}

func TestTool_HandlerForwardsToExecute(t *testing.T) {
	h := newHarness(t)
	tool := h.exec.Tool()

	ch := make(chan outcome, 1)
	go func() {
		res, err := tool.Handler(context.Background(), json.RawMessage(`{"command":"pwd","cwd":"/work","timeout":1500}`))
		ch <- outcome{res, err}
	}()

	p := h.next(t)
	assert.Equal(t, []string{"-c", "pwd"}, p.Args)
	assert.Equal(t, "/work", p.Opts.Cwd)

	h.clock.Add(1500 * time.Millisecond)
	o := await(t, ch)
	require.NoError(t, o.err)
	assert.Equal(t, TimeoutExitCode, o.res.ExitCode)
	assert.Contains(t, o.res.Stdout, "timed out after 1500ms")
}

func TestTool_HandlerErrors(t *testing.T) {
	h := newHarness(t)
	tool := h.exec.Tool()

	_, err := tool.Handler(context.Background(), json.RawMessage(`{"command":`))
	assert.Error(t, err)

	_, err = tool.Handler(context.Background(), json.RawMessage(`{}`))
	assert.ErrorIs(t, err, ErrInvalidCommand)

	_, err = tool.Handler(context.Background(), json.RawMessage(`{"command":"shutdown now"}`))
	assert.ErrorIs(t, err, ErrDangerousCommand)

	assert.Equal(t, 0, h.spawner.Count())
}

func TestTool_FractionalTimeoutRoundsUp(t *testing.T) {
	h := newHarness(t)
	tool := h.exec.Tool()

	ch := make(chan outcome, 1)
	go func() {
		res, err := tool.Handler(context.Background(), json.RawMessage(`{"command":"sleep 9","timeout":0.5}`))
		ch <- outcome{res, err}
	}()

	h.next(t)
	h.clock.Add(time.Millisecond)
	o := await(t, ch)
	require.NoError(t, o.err)
	assert.Contains(t, o.res.Stdout, "timed out after 1ms")
}

func TestTimeoutMillis(t *testing.T) {
	tests := []struct {
		in   float64
		want int
	}{
		{0, 0},
		{-5, 0},
		{math.NaN(), 0},
		{0.5, 1},
		{1500, 1500},
		{1500.2, 1501},
		{1e300, int(maxTimeout.Milliseconds())},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, timeoutMillis(tt.in), "%v", tt.in)
	}
}
