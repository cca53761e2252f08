package cleanup

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// Executor runs the command of a non built-in action on one target.
type Executor interface {
	Execute(ctx context.Context, a Action, t Target) error
}

// ShellExecutor runs commands through a POSIX shell in the target's work
// directory.
type ShellExecutor struct {
	Shell   string
	Timeout time.Duration
}

func (s ShellExecutor) Execute(ctx context.Context, a Action, t Target) error {
	shell := s.Shell
	if shell == "" {
		shell = "/bin/sh"
	}
	if s.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.Timeout)
		defer cancel()
	}
	cmd := exec.CommandContext(ctx, shell, "-c", Expand(a.Command, t))
	cmd.Dir = t.WorkDir()
	output, err := cmd.CombinedOutput()
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return fmt.Errorf("timeout running %q", a.Command)
		}
		if out := strings.TrimSpace(string(output)); out != "" {
			return fmt.Errorf("%w: %s", err, out)
		}
		return err
	}
	return nil
}
