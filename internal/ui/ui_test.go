package ui

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPrinter_PlainWhenNotTerminal(t *testing.T) {
	var buf bytes.Buffer
	p := New(&buf)

	p.KeyValue("Shell", "/bin/sh")
	p.Info("session %s", "abc")

	assert.NotContains(t, buf.String(), "\033[")
	assert.Contains(t, buf.String(), "▸ Shell       /bin/sh\n")
	assert.Contains(t, buf.String(), "● session abc\n")
}

func TestPrinter_ExitStatus(t *testing.T) {
	tests := []struct {
		name      string
		code      int
		timedOut  bool
		truncated bool
		want      []string
	}{
		{"success", 0, false, false, []string{"✔ exit 0"}},
		{"failure", 2, false, false, []string{"✖ exit 2"}},
		{"timeout", 124, true, false, []string{"▲ timed out (exit 124)"}},
		{"truncated", 0, false, true, []string{"✔ exit 0", "▲ output truncated"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			New(&buf).ExitStatus(tt.code, tt.timedOut, tt.truncated)
			for _, w := range tt.want {
				assert.Contains(t, buf.String(), w)
			}
		})
	}
}
