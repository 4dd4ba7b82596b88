package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/eliteGoblin/focusd/win_switch/internal/domain"
)

// ParseTimeslot parses "HH:MM-HH:MM" into a same-day inclusive range.
// A range whose end is before its start is rejected, never wrapped past midnight.
func ParseTimeslot(raw string) (domain.Timeslot, error) {
	parts := strings.Split(strings.TrimSpace(raw), "-")
	if len(parts) != 2 {
		return domain.Timeslot{}, fmt.Errorf("timeslot %q: expected HH:MM-HH:MM", raw)
	}

	start, err := parseClock(parts[0])
	if err != nil {
		return domain.Timeslot{}, fmt.Errorf("timeslot %q: start: %w", raw, err)
	}
	end, err := parseClock(parts[1])
	if err != nil {
		return domain.Timeslot{}, fmt.Errorf("timeslot %q: end: %w", raw, err)
	}

	if end < start {
		return domain.Timeslot{}, fmt.Errorf("timeslot %q: end is before start", raw)
	}

	return domain.Timeslot{Start: start, End: end, Raw: raw}, nil
}

// parseClock returns minutes since midnight for "HH:MM".
func parseClock(s string) (int, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(s))
	if err != nil {
		return 0, err
	}
	return t.Hour()*60 + t.Minute(), nil
}

// ParseTimeslots parses every entry, skipping malformed ones.
// Skipped entries come back as warnings; they never affect valid entries.
func ParseTimeslots(entries []any) ([]domain.Timeslot, []error) {
	var slots []domain.Timeslot
	var warnings []error

	for _, entry := range entries {
		raw, ok := entry.(string)
		if !ok {
			warnings = append(warnings, fmt.Errorf("timeslot %v: not a string", entry))
			continue
		}
		slot, err := ParseTimeslot(raw)
		if err != nil {
			warnings = append(warnings, err)
			continue
		}
		slots = append(slots, slot)
	}

	return slots, warnings
}

// IsWithinAllowedTimeslot returns true when no timeslots are configured,
// otherwise true iff now falls inside at least one of them.
func IsWithinAllowedTimeslot(now time.Time, cfg domain.Config) bool {
	if len(cfg.Timeslots) == 0 {
		return true
	}
	for _, slot := range cfg.Timeslots {
		if slot.Contains(now) {
			return true
		}
	}
	return false
}
