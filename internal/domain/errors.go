package domain

import "errors"

// Every error below is recovered inside the scheduler loop; none terminates the process.
var (
	// ErrConfigLoad means the config file was missing or malformed; defaults apply.
	ErrConfigLoad = errors.New("config load failed")

	// ErrEnumerationEmpty means no candidate windows were found this cycle.
	ErrEnumerationEmpty = errors.New("no candidate windows")

	// ErrNotRunning means the target application is no longer running.
	ErrNotRunning = errors.New("application not running")

	// ErrActivationFailed means every activation backend failed for a window.
	ErrActivationFailed = errors.New("activation failed")

	// ErrInputTapUnavailable means the keyboard tap could not be installed.
	// The monitor must then treat the user as active.
	ErrInputTapUnavailable = errors.New("input tap unavailable")

	// ErrUnsupportedPlatform is returned by OS primitives on platforms without a backend.
	ErrUnsupportedPlatform = errors.New("unsupported platform")
)
