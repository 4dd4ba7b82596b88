package infra

import (
	"context"
	"fmt"
	"os/exec"
	"time"
)

// DefaultCommandTimeout bounds every helper process (osascript, wmctrl, ioreg).
const DefaultCommandTimeout = 3 * time.Second

// CommandRunner abstracts command execution for testing
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) error
	Output(ctx context.Context, name string, args ...string) ([]byte, error)
	LookPath(name string) bool
}

// RealCommandRunner executes real system commands with a timeout.
type RealCommandRunner struct {
	Timeout time.Duration
}

// NewCommandRunner creates a runner using DefaultCommandTimeout.
func NewCommandRunner() *RealCommandRunner {
	return &RealCommandRunner{Timeout: DefaultCommandTimeout}
}

// Run executes a command and waits for it to complete
func (r *RealCommandRunner) Run(ctx context.Context, name string, args ...string) error {
	_, err := r.Output(ctx, name, args...)
	return err
}

// Output executes a command and returns its stdout
func (r *RealCommandRunner) Output(ctx context.Context, name string, args ...string) ([]byte, error) {
	timeout := r.Timeout
	if timeout <= 0 {
		timeout = DefaultCommandTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	out, err := exec.CommandContext(ctx, name, args...).Output()
	if ctx.Err() == context.DeadlineExceeded {
		return out, fmt.Errorf("%s timed out after %s", name, timeout)
	}
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok && len(exitErr.Stderr) > 0 {
			return out, fmt.Errorf("%s: %w (stderr: %q)", name, err, string(exitErr.Stderr))
		}
		return out, fmt.Errorf("%s: %w", name, err)
	}
	return out, nil
}

// LookPath checks if a command is available in PATH.
func (r *RealCommandRunner) LookPath(name string) bool {
	_, err := exec.LookPath(name)
	return err == nil
}
