package daemon

import (
	"os"
	"os/exec"
	"strings"
	"syscall"
)

// DetachFlag is stripped from the child's arguments so it runs in the foreground
// of its own session instead of forking again.
const DetachFlag = "--detach"

// StartDetached re-executes executable with args in a new session.
// The child is detached from the terminal and returns its PID.
func StartDetached(executable string, args []string) (int, error) {
	if executable == "" {
		exe, err := os.Executable()
		if err != nil {
			return 0, err
		}
		executable = exe
	}

	cmd := exec.Command(executable, ChildArgs(args)...)

	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setsid: true, // Create new session (detach from terminal)
	}

	// No stdin/stdout/stderr - fully detached
	cmd.Stdin = nil
	cmd.Stdout = nil
	cmd.Stderr = nil

	if err := cmd.Start(); err != nil {
		return 0, err
	}
	pid := cmd.Process.Pid
	// The child outlives us; don't leave a zombie reaper goroutine behind.
	_ = cmd.Process.Release()
	return pid, nil
}

// ChildArgs returns args without any form of the detach flag.
func ChildArgs(args []string) []string {
	out := make([]string, 0, len(args))
	for _, arg := range args {
		if arg == DetachFlag || strings.HasPrefix(arg, DetachFlag+"=") {
			continue
		}
		out = append(out, arg)
	}
	return out
}
