// Package config loads the reloadable winswitch settings and evaluates timeslot policy.
package config

import (
	"time"

	"github.com/eliteGoblin/focusd/win_switch/internal/domain"
)

// Built-in defaults, used when the config file is absent or unusable.
const (
	DefaultMinDelay        = 5 * time.Second
	DefaultMaxDelay        = 10 * time.Second
	DefaultSwitchBackDelay = 300 * time.Millisecond
	DefaultIdleWindow      = 3 * time.Second
	DefaultRecoverySleep   = 10 * time.Second
	DefaultTimeslotSleep   = 300 * time.Second
	DefaultInterCycleMin   = 10 * time.Second
	DefaultInterCycleMax   = 60 * time.Second
	DefaultLogFilePath     = "~/.winswitch/switch_log.txt"
)

// Defaults returns the built-in configuration.
func Defaults() domain.Config {
	return domain.Config{
		IgnoredKeywords: nil,
		LoggingEnabled:  true,
		BackgroundMode:  false,
		MinDelay:        DefaultMinDelay,
		MaxDelay:        DefaultMaxDelay,
		LogFilePath:     DefaultLogFilePath,
		SwitchBack:      true,
		SwitchBackDelay: DefaultSwitchBackDelay,
		IdleWindow:      DefaultIdleWindow,
		RecoverySleep:   DefaultRecoverySleep,
		TimeslotSleep:   DefaultTimeslotSleep,
		InterCycleMin:   DefaultInterCycleMin,
		InterCycleMax:   DefaultInterCycleMax,
	}
}

// fileConfig mirrors the on-disk keys. Pointers distinguish "absent" from zero.
type fileConfig struct {
	IgnoredKeywords []string `json:"ignored_keywords" toml:"ignored_keywords" yaml:"ignored_keywords"`
	EnableLogging   *bool    `json:"enable_logging" toml:"enable_logging" yaml:"enable_logging"`
	BackgroundMode  *bool    `json:"background_mode" toml:"background_mode" yaml:"background_mode"`
	LogFilePath     *string  `json:"logfilepath" toml:"logfilepath" yaml:"logfilepath"`
	TimeslotsOfDay  []any    `json:"timeslotsofday" toml:"timeslotsofday" yaml:"timeslotsofday"`

	MinDelay             *int     `json:"min_delay" toml:"min_delay" yaml:"min_delay"`
	MaxDelay             *int     `json:"max_delay" toml:"max_delay" yaml:"max_delay"`
	TargetApps           []string `json:"target_apps" toml:"target_apps" yaml:"target_apps"`
	SwitchBack           *bool    `json:"switch_back" toml:"switch_back" yaml:"switch_back"`
	SwitchBackDelayMs    *int     `json:"switch_back_delay_ms" toml:"switch_back_delay_ms" yaml:"switch_back_delay_ms"`
	IdleWindowSeconds    *int     `json:"idle_window_seconds" toml:"idle_window_seconds" yaml:"idle_window_seconds"`
	RecoverySleepSeconds *int     `json:"recovery_sleep_seconds" toml:"recovery_sleep_seconds" yaml:"recovery_sleep_seconds"`
	TimeslotSleepSeconds *int     `json:"timeslot_sleep_seconds" toml:"timeslot_sleep_seconds" yaml:"timeslot_sleep_seconds"`
	InterCycleMinSeconds *int     `json:"inter_cycle_min_seconds" toml:"inter_cycle_min_seconds" yaml:"inter_cycle_min_seconds"`
	InterCycleMaxSeconds *int     `json:"inter_cycle_max_seconds" toml:"inter_cycle_max_seconds" yaml:"inter_cycle_max_seconds"`
}

// knownKeys lists every key fileConfig understands.
var knownKeys = map[string]bool{
	"ignored_keywords":        true,
	"enable_logging":          true,
	"background_mode":         true,
	"logfilepath":             true,
	"timeslotsofday":          true,
	"min_delay":               true,
	"max_delay":               true,
	"target_apps":             true,
	"switch_back":             true,
	"switch_back_delay_ms":    true,
	"idle_window_seconds":     true,
	"recovery_sleep_seconds":  true,
	"timeslot_sleep_seconds":  true,
	"inter_cycle_min_seconds": true,
	"inter_cycle_max_seconds": true,
}

// apply merges the present keys onto cfg and returns per-entry warnings.
func (f *fileConfig) apply(cfg *domain.Config) []error {
	var warnings []error

	if f.IgnoredKeywords != nil {
		cfg.IgnoredKeywords = f.IgnoredKeywords
	}
	if f.EnableLogging != nil {
		cfg.LoggingEnabled = *f.EnableLogging
	}
	if f.BackgroundMode != nil {
		cfg.BackgroundMode = *f.BackgroundMode
	}
	if f.LogFilePath != nil && *f.LogFilePath != "" {
		cfg.LogFilePath = *f.LogFilePath
	}
	if f.TimeslotsOfDay != nil {
		slots, errs := ParseTimeslots(f.TimeslotsOfDay)
		cfg.Timeslots = slots
		warnings = append(warnings, errs...)
	}
	if f.TargetApps != nil {
		cfg.TargetApps = f.TargetApps
	}
	if f.SwitchBack != nil {
		cfg.SwitchBack = *f.SwitchBack
	}

	setSeconds(&cfg.MinDelay, f.MinDelay)
	setSeconds(&cfg.MaxDelay, f.MaxDelay)
	setSeconds(&cfg.IdleWindow, f.IdleWindowSeconds)
	setSeconds(&cfg.RecoverySleep, f.RecoverySleepSeconds)
	setSeconds(&cfg.TimeslotSleep, f.TimeslotSleepSeconds)
	setSeconds(&cfg.InterCycleMin, f.InterCycleMinSeconds)
	setSeconds(&cfg.InterCycleMax, f.InterCycleMaxSeconds)
	if f.SwitchBackDelayMs != nil && *f.SwitchBackDelayMs >= 0 {
		cfg.SwitchBackDelay = time.Duration(*f.SwitchBackDelayMs) * time.Millisecond
	}

	return warnings
}

func setSeconds(dst *time.Duration, v *int) {
	if v != nil && *v >= 0 {
		*dst = time.Duration(*v) * time.Second
	}
}

// Overrides are run-scoped settings from CLI flags. They win over the file
// and are reapplied after every reload.
type Overrides struct {
	MinDelay   *time.Duration
	MaxDelay   *time.Duration
	TargetApps []string
}

func (o Overrides) apply(cfg *domain.Config) {
	if o.MinDelay != nil {
		cfg.MinDelay = *o.MinDelay
	}
	if o.MaxDelay != nil {
		cfg.MaxDelay = *o.MaxDelay
	}
	if len(o.TargetApps) > 0 {
		cfg.TargetApps = o.TargetApps
	}
}
