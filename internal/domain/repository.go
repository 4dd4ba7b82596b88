package domain

import (
	"context"
	"time"
)

// WindowSource enumerates candidate windows.
type WindowSource interface {
	// Enumerate returns open windows in enumeration order, trimmed,
	// deduplicated by title and without titles containing an ignored keyword.
	// An empty result is not an error.
	Enumerate(ctx context.Context, ignored []string) ([]WindowHandle, error)
}

// WindowLister is the OS primitive behind WindowSource.
// Implementation: X11 _NET_CLIENT_LIST on Linux, CGWindowList on macOS.
type WindowLister interface {
	// ListWindows returns raw windows, possibly with blank or duplicate titles.
	ListWindows(ctx context.Context) ([]WindowHandle, error)
}

// PointerReader reads the current pointer position.
type PointerReader interface {
	Position(ctx context.Context) (Point, error)
}

// KeyTap is a background keyboard listener.
// It reports that a key was pressed, never which key.
type KeyTap interface {
	// Name identifies the tap for logs (e.g. "evdev", "mutter-idle").
	Name() string

	// Start installs the tap and calls onKey from its own goroutine for
	// every keystroke until ctx is canceled or Stop is called.
	// Returns ErrInputTapUnavailable if the tap cannot be installed.
	Start(ctx context.Context, onKey func(time.Time)) error

	// Stop removes the tap and waits for its goroutine to exit.
	Stop() error

	// Err is non-nil once a started tap has stopped observing keystrokes,
	// e.g. every keyboard was unplugged or the idle counter went away.
	// The tap must be stopped and started again to recover.
	Err() error
}

// ActivityMonitor answers whether the user is currently active.
type ActivityMonitor interface {
	// Start installs the keystroke tap. Failure is not fatal: the monitor
	// then reports "not idle" until a tap can be installed.
	Start(ctx context.Context) error

	// IsIdle blocks for up to window and returns true only if no pointer
	// movement and no keystroke happened during it. Returns false as soon
	// as activity is detected.
	IsIdle(ctx context.Context, window time.Duration) bool

	// State returns the last observed input timestamps.
	State() ActivityState

	// Stop removes the tap.
	Stop() error
}

// ConfigStore provides reloadable settings.
// Implementation: JSON (or TOML/YAML) file, reread on every Load.
type ConfigStore interface {
	// Load returns a fresh snapshot. Never fails: falls back to defaults.
	Load() Config

	// IsWithinAllowedTimeslot reports whether now is inside an allowed timeslot.
	IsWithinAllowedTimeslot(now time.Time, cfg Config) bool
}

// ActivationBackend is one way of bringing a window to the foreground.
// Implementations: x11, wmctrl, xdotool (Linux), system-events, open (macOS).
type ActivationBackend interface {
	// Name returns the backend name (e.g. "x11", "wmctrl").
	Name() string

	// Available returns true if this backend can be used on this system.
	Available() bool

	// Activate raises the window. Errors are best-effort diagnostics.
	Activate(ctx context.Context, window WindowHandle) error
}

// FocusGesture performs the "switch to previous application" gesture.
type FocusGesture interface {
	// Remember records the currently focused window before an activation.
	Remember(ctx context.Context) error

	// SwitchToPrevious returns focus to what was active before.
	SwitchToPrevious(ctx context.Context) error
}

// Activator brings a window to the foreground.
type Activator interface {
	// Activate never panics on a missing app; it reports NotRunning instead.
	Activate(ctx context.Context, window WindowHandle, opts ActivateOptions) ActivationResult
}

// SwitchLogger appends switch records to durable storage.
type SwitchLogger interface {
	// Append writes one record. Only activated records produce a line.
	Append(record SwitchRecord) error

	// Path returns the log file path.
	Path() string
}

// ProcessManager handles OS process lookups.
// Implementation: uses gopsutil for cross-platform support.
type ProcessManager interface {
	// FindByName returns PIDs whose process name equals name (case-insensitive).
	FindByName(name string) ([]int, error)

	// IsRunning checks if a PID exists and is running.
	IsRunning(pid int) bool

	// GetCurrentPID returns the current process PID.
	GetCurrentPID() int
}

// FileSystemManager handles filesystem operations.
type FileSystemManager interface {
	// Exists checks if a path exists.
	Exists(path string) bool

	// EnsureDir creates the parent directory of path if missing.
	EnsureDir(path string) error

	// ExpandHome expands ~ to the user's home directory.
	ExpandHome(path string) string
}
