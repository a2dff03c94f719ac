package executor

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var (
	// ErrInvalidCommand is returned for empty or whitespace-only commands.
	ErrInvalidCommand = errors.New("command must not be empty")
	// ErrDangerousCommand matches every *DangerousCommandError.
	ErrDangerousCommand = errors.New("dangerous command rejected")
)

// DangerousCommandError reports a command refused by the blocklist.
type DangerousCommandError struct {
	Command string
	Rule    string
}

func (e *DangerousCommandError) Error() string {
	return fmt.Sprintf("dangerous command rejected (%s): %s", e.Rule, e.Command)
}

func (e *DangerousCommandError) Is(target error) bool {
	return target == ErrDangerousCommand
}

type rule struct {
	name string
	re   *regexp.Regexp
}

// blocklist only covers rm -rf on the filesystem root itself; rm -rf on
// any other absolute path (rm -rf /home) is not matched.
var blocklist = []rule{
	{"rm -rf /", regexp.MustCompile(`\brm\s+-[a-zA-Z]*(?:r[a-zA-Z]*f|f[a-zA-Z]*r)[a-zA-Z]*\s+/(?:\s|$|[;&|])`)},
	{"sudo", regexp.MustCompile(`\bsudo\b`)},
	{"dd", regexp.MustCompile(`\bdd\b`)},
	{"mkfs", regexp.MustCompile(`\bmkfs\b`)},
	{"format", regexp.MustCompile(`\bformat\b`)},
	{"shutdown", regexp.MustCompile(`\bshutdown\b`)},
	{"reboot", regexp.MustCompile(`\breboot\b`)},
}

// Validate checks command before anything is spawned for it.
func Validate(command string) error {
	if strings.TrimSpace(command) == "" {
		return ErrInvalidCommand
	}
	for _, r := range blocklist {
		if r.re.MatchString(command) {
			return &DangerousCommandError{Command: command, Rule: r.name}
		}
	}
	return nil
}
