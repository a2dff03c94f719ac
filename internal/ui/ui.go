package ui

import (
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// ANSI color/style codes
const (
	reset  = "\033[0m"
	bold   = "\033[1m"
	dim    = "\033[2m"
	cyan   = "\033[36m"
	green  = "\033[32m"
	yellow = "\033[33m"
	red    = "\033[31m"
	white  = "\033[97m"
)

// Printer writes human-facing status lines. Colors are emitted only when
// the target is a terminal.
type Printer struct {
	w     io.Writer
	color bool
}

// New returns a Printer on w, colored when w is a terminal.
func New(w io.Writer) *Printer {
	color := false
	if f, ok := w.(*os.File); ok {
		color = term.IsTerminal(int(f.Fd()))
	}
	return &Printer{w: w, color: color}
}

// Stderr is the printer the CLI uses; stdout stays reserved for command output.
var Stderr = New(os.Stderr)

// s wraps text with ANSI codes only when colors are enabled.
func (p *Printer) s(codes, text string) string {
	if !p.color {
		return text
	}
	return codes + text + reset
}

// Banner prints the startup banner.
//
//	 workbox v0.1.0
func (p *Printer) Banner(version string) {
	fmt.Fprintf(p.w, "\n  %s %s\n", p.s(bold+cyan, "workbox"), p.s(dim, "v"+version))
}

// KeyValue prints a labeled line:  ▸ label  value
func (p *Printer) KeyValue(label, value string) {
	fmt.Fprintf(p.w, "  %s %-11s %s\n", p.s(cyan, "▸"), p.s(dim, label), p.s(white, value))
}

// Info prints an info line:  ● message
func (p *Printer) Info(format string, a ...any) {
	fmt.Fprintf(p.w, "  %s %s\n", p.s(cyan, "●"), fmt.Sprintf(format, a...))
}

// Success prints a success line:  ✔ message
func (p *Printer) Success(format string, a ...any) {
	fmt.Fprintf(p.w, "  %s %s\n", p.s(green, "✔"), fmt.Sprintf(format, a...))
}

// Warn prints a warning line:  ▲ message
func (p *Printer) Warn(format string, a ...any) {
	fmt.Fprintf(p.w, "  %s %s\n", p.s(yellow, "▲"), fmt.Sprintf(format, a...))
}

// Error prints an error line:  ✖ message
func (p *Printer) Error(format string, a ...any) {
	fmt.Fprintf(p.w, "  %s %s\n", p.s(red, "✖"), fmt.Sprintf(format, a...))
}

// ExitStatus summarizes how a command or shell ended.
func (p *Printer) ExitStatus(exitCode int, timedOut, truncated bool) {
	switch {
	case timedOut:
		p.Warn("timed out (exit %d)", exitCode)
	case exitCode == 0:
		p.Success("exit 0")
	default:
		p.Error("exit %d", exitCode)
	}
	if truncated {
		p.Warn("output truncated")
	}
}

// Separator prints a dim horizontal line.
func (p *Printer) Separator() {
	fmt.Fprintf(p.w, "  %s\n", p.s(dim, strings.Repeat("─", 48)))
}
