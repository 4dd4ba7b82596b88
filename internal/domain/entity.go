// Package domain contains core business entities and interfaces.
// This is the innermost layer in Clean Architecture - no external dependencies.
package domain

import (
	"fmt"
	"time"
)

// WindowHandle identifies one open window as seen by a single enumeration.
// Handles are never cached across cycles; the window set may change at any time.
type WindowHandle struct {
	ID    string // Platform identifier (X11 window id, or owning app name on macOS)
	Title string // Display title, trimmed and non-empty
	App   string // Owning application name (WM_CLASS class / kCGWindowOwnerName)
	PID   int    // Owning process, 0 if unknown
}

// String returns the title, which is what users and the switch log see.
func (w WindowHandle) String() string {
	return w.Title
}

// Timeslot is a same-day range of minutes since midnight, both ends inclusive.
type Timeslot struct {
	Start int
	End   int
	Raw   string
}

// Contains reports whether the time-of-day of t falls within the slot.
func (s Timeslot) Contains(t time.Time) bool {
	minute := t.Hour()*60 + t.Minute()
	return minute >= s.Start && minute <= s.End
}

func (s Timeslot) String() string {
	return fmt.Sprintf("%02d:%02d-%02d:%02d", s.Start/60, s.Start%60, s.End/60, s.End%60)
}

// Config is an immutable snapshot of settings, reloaded at the top of every cycle.
type Config struct {
	IgnoredKeywords []string
	LoggingEnabled  bool
	BackgroundMode  bool
	MinDelay        time.Duration
	MaxDelay        time.Duration
	Timeslots       []Timeslot // Empty means always allowed
	TargetApps      []string   // Empty means no filter
	LogFilePath     string

	// SwitchBack issues the "switch to previous application" gesture right after
	// a successful activation, so the target only flashes to the foreground.
	SwitchBack      bool
	SwitchBackDelay time.Duration

	IdleWindow    time.Duration // Bounded wait for quiet input before each activation
	RecoverySleep time.Duration // Sleep when no candidates are found
	TimeslotSleep time.Duration // Sleep when outside all allowed timeslots
	InterCycleMin time.Duration
	InterCycleMax time.Duration
}

// ActivityState is a point-in-time copy of the monitor's input timestamps.
type ActivityState struct {
	LastPointerMove time.Time
	LastKeystroke   time.Time
}

// Point is a pointer position in screen coordinates.
type Point struct {
	X int
	Y int
}

// Outcome classifies a switch record.
type Outcome string

const (
	OutcomeActivated Outcome = "activated"
	OutcomeSkipped   Outcome = "skipped"
	OutcomeFailed    Outcome = "failed"
)

// SwitchRecord is one append-only entry in the switch log.
type SwitchRecord struct {
	Timestamp time.Time
	Title     string
	Outcome   Outcome
}

// ActivationStatus is the result class of a single activation attempt.
type ActivationStatus int

const (
	ActivationActivated ActivationStatus = iota
	ActivationNotRunning
	ActivationError
)

func (s ActivationStatus) String() string {
	switch s {
	case ActivationActivated:
		return "activated"
	case ActivationNotRunning:
		return "not_running"
	case ActivationError:
		return "error"
	default:
		return "unknown"
	}
}

// ActivationResult captures what happened during one Activate call.
type ActivationResult struct {
	Status  ActivationStatus
	Backend string // Backend that succeeded, or the last one tried
	Err     error
}

// Outcome maps the activation status onto the switch record outcome.
func (r ActivationResult) Outcome() Outcome {
	switch r.Status {
	case ActivationActivated:
		return OutcomeActivated
	case ActivationNotRunning:
		return OutcomeSkipped
	default:
		return OutcomeFailed
	}
}

// ActivateOptions tunes a single activation.
type ActivateOptions struct {
	SwitchBack      bool
	SwitchBackDelay time.Duration
}

// SchedulerState names the state machine position of the scheduler.
type SchedulerState string

const (
	StateIdle                SchedulerState = "idle"
	StateSelectingCandidates SchedulerState = "selecting_candidates"
	StateAwaitingQuiet       SchedulerState = "awaiting_quiet"
	StateGating              SchedulerState = "gating"
	StateActivating          SchedulerState = "activating"
	StateLogging             SchedulerState = "logging"
	StateCooldown            SchedulerState = "cooldown"
)
