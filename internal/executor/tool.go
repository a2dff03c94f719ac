package executor

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
)

// ToolName is the name the executor registers under with tool-invocation
// frameworks.
const ToolName = "run_command"

// Tool describes Execute to a tool-invocation framework.
type Tool struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  ParameterSchema `json:"parameters"`
	Handler     ToolHandler     `json:"-"`
}

// ToolHandler decodes JSON parameters and runs them.
type ToolHandler func(ctx context.Context, params json.RawMessage) (Result, error)

// ParameterSchema is the JSON Schema object of the tool's parameters.
type ParameterSchema struct {
	Type       string              `json:"type"`
	Properties map[string]Property `json:"properties"`
	Required   []string            `json:"required"`
}

type Property struct {
	Type        string `json:"type"`
	Description string `json:"description"`
}

type toolParams struct {
	Command string   `json:"command"`
	Cwd     string   `json:"cwd"`
	Timeout *float64 `json:"timeout"`
}

// Tool returns the run_command description bound to e.
func (e *Executor) Tool() Tool {
	return Tool{
		Name: ToolName,
		Description: "Run a shell command non-interactively and return its combined terminal output " +
			"and exit code. Output beyond 10000 bytes is truncated; commands that run past " +
			"the timeout are killed and report exit code 124.",
		Parameters: ParameterSchema{
			Type: "object",
			Properties: map[string]Property{
				"command": {Type: "string", Description: "Shell command to run"},
				"cwd":     {Type: "string", Description: "Working directory. Defaults to the home directory"},
				"timeout": {Type: "number", Description: "Timeout in milliseconds. Defaults to 30000"},
			},
			Required: []string{"command"},
		},
		Handler: e.handleTool,
	}
}

func (e *Executor) handleTool(ctx context.Context, params json.RawMessage) (Result, error) {
	var p toolParams
	if err := json.Unmarshal(params, &p); err != nil {
		return Result{}, fmt.Errorf("decode %s params: %w", ToolName, err)
	}
	req := Request{Command: p.Command, Cwd: p.Cwd}
	if p.Timeout != nil {
		req.Timeout = timeoutMillis(*p.Timeout)
	}
	return e.Execute(ctx, req)
}

// timeoutMillis rounds fractional timeouts up so a small positive value
// never falls back to the default, and clamps before converting to int.
func timeoutMillis(ms float64) int {
	switch {
	case math.IsNaN(ms) || ms <= 0:
		return 0
	case ms >= float64(maxTimeout.Milliseconds()):
		return int(maxTimeout.Milliseconds())
	}
	return int(math.Ceil(ms))
}
