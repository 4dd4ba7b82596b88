// Package daemon implements the window switching loop and process detaching.
package daemon

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/win_switch/internal/console"
	"github.com/eliteGoblin/focusd/win_switch/internal/domain"
)

// SwitchLoggerFactory opens the switch log for a (possibly reloaded) path.
type SwitchLoggerFactory func(path string) domain.SwitchLogger

// SchedulerConfig holds run-scoped scheduler settings.
// Everything reloadable lives in domain.Config instead.
type SchedulerConfig struct {
	SkipLog bool             // --skip-log: never write the switch log this run
	Console *console.Printer // Foreground output, nil when detached
}

// Scheduler cycles focus through candidate windows while the user is idle.
type Scheduler struct {
	config          SchedulerConfig
	store           domain.ConfigStore
	source          domain.WindowSource
	monitor         domain.ActivityMonitor
	activator       domain.Activator
	newSwitchLogger SwitchLoggerFactory
	logger          *zap.Logger

	sleep   SleepFunc
	jitter  *Jitter
	now     func() time.Time
	changes <-chan struct{}

	mu                 sync.Mutex
	state              domain.SchedulerState
	lastActivatedTitle string
	switchLogger       domain.SwitchLogger
}

// NewScheduler creates a new scheduler.
func NewScheduler(
	config SchedulerConfig,
	store domain.ConfigStore,
	source domain.WindowSource,
	monitor domain.ActivityMonitor,
	activator domain.Activator,
	newSwitchLogger SwitchLoggerFactory,
	logger *zap.Logger,
) *Scheduler {
	return &Scheduler{
		config:          config,
		store:           store,
		source:          source,
		monitor:         monitor,
		activator:       activator,
		newSwitchLogger: newSwitchLogger,
		logger:          logger,
		sleep:           ContextSleep,
		jitter:          NewJitter(time.Now().UnixNano()),
		now:             time.Now,
		state:           domain.StateIdle,
	}
}

// WithSleep replaces the sleep used for every wait.
func (s *Scheduler) WithSleep(sleep SleepFunc) *Scheduler {
	s.sleep = sleep
	return s
}

// WithJitter replaces the random source for cooldowns.
func (s *Scheduler) WithJitter(j *Jitter) *Scheduler {
	s.jitter = j
	return s
}

// WithClock replaces the clock used for timeslots and records.
func (s *Scheduler) WithClock(now func() time.Time) *Scheduler {
	s.now = now
	return s
}

// WithConfigChanges lets config edits cut the out-of-timeslot sleep short.
func (s *Scheduler) WithConfigChanges(changes <-chan struct{}) *Scheduler {
	s.changes = changes
	return s
}

// State returns the current state machine position.
func (s *Scheduler) State() domain.SchedulerState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// LastActivated returns the title of the last activation attempt.
func (s *Scheduler) LastActivated() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActivatedTitle
}

func (s *Scheduler) setState(state domain.SchedulerState) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

// Run cycles until ctx is canceled and then returns ctx.Err().
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info("scheduler started")
	for {
		if err := s.RunCycle(ctx); err != nil {
			s.logger.Info("scheduler stopping")
			return err
		}
	}
}

// RunCycle performs one pass over the candidate windows, including the
// trailing inter-cycle pause. It only returns an error on cancellation.
func (s *Scheduler) RunCycle(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.setState(domain.StateSelectingCandidates)
	cfg := s.store.Load()
	candidates := s.selectCandidates(ctx, cfg)

	if len(candidates) == 0 {
		s.logger.Info("no candidate windows",
			zap.Duration("retry_in", cfg.RecoverySleep),
			zap.Error(domain.ErrEnumerationEmpty))
		s.console(cfg, func(p *console.Printer) { p.Candidates(nil) })
		s.setState(domain.StateIdle)
		return s.sleep(ctx, cfg.RecoverySleep)
	}
	s.console(cfg, func(p *console.Printer) { p.Candidates(candidates) })

	for _, window := range candidates {
		if window.Title == s.LastActivated() {
			s.logger.Debug("skipping repeat of last activated window", zap.String("window", window.Title))
			continue
		}

		s.setState(domain.StateAwaitingQuiet)
		if !s.monitor.IsIdle(ctx, cfg.IdleWindow) {
			if err := ctx.Err(); err != nil {
				return err
			}
			s.logger.Info("user active, skipping window",
				zap.String("window", window.Title),
				zap.String("outcome", string(domain.OutcomeSkipped)))
			continue
		}

		s.setState(domain.StateGating)
		if !s.store.IsWithinAllowedTimeslot(s.now(), cfg) {
			s.logger.Info("outside allowed timeslots, abandoning cycle", zap.Duration("sleep", cfg.TimeslotSleep))
			s.console(cfg, func(p *console.Printer) { p.Status("Outside allowed timeslots, waiting") })
			s.setState(domain.StateIdle)
			return s.sleepUntilConfigChange(ctx, cfg.TimeslotSleep)
		}

		s.setState(domain.StateActivating)
		result := s.activator.Activate(ctx, window, domain.ActivateOptions{
			SwitchBack:      cfg.SwitchBack,
			SwitchBackDelay: cfg.SwitchBackDelay,
		})
		s.mu.Lock()
		s.lastActivatedTitle = window.Title
		s.mu.Unlock()

		s.setState(domain.StateLogging)
		s.record(cfg, domain.SwitchRecord{
			Timestamp: s.now(),
			Title:     window.Title,
			Outcome:   result.Outcome(),
		}, result)

		if result.Status == domain.ActivationNotRunning {
			continue
		}

		s.setState(domain.StateCooldown)
		if err := s.sleep(ctx, s.jitter.Between(cfg.MinDelay, cfg.MaxDelay)); err != nil {
			return err
		}
	}

	s.setState(domain.StateIdle)
	pause := s.jitter.Between(cfg.InterCycleMin, cfg.InterCycleMax)
	s.logger.Info("pausing before next cycle", zap.Duration("pause", pause))
	s.console(cfg, func(p *console.Printer) { p.Status("Pausing for %s before restarting", pause.Round(time.Second)) })
	return s.sleep(ctx, pause)
}

// selectCandidates enumerates windows and applies the target-app filter.
// Enumeration errors are logged and treated as an empty set.
func (s *Scheduler) selectCandidates(ctx context.Context, cfg domain.Config) []domain.WindowHandle {
	windows, err := s.source.Enumerate(ctx, cfg.IgnoredKeywords)
	if err != nil {
		s.logger.Warn("window enumeration failed", zap.Error(err))
		return nil
	}
	return filterTargets(windows, cfg.TargetApps)
}

// filterTargets keeps windows whose title or app equals a target (case-sensitive).
func filterTargets(windows []domain.WindowHandle, targets []string) []domain.WindowHandle {
	if len(targets) == 0 {
		return windows
	}
	wanted := make(map[string]bool, len(targets))
	for _, t := range targets {
		wanted[t] = true
	}

	out := make([]domain.WindowHandle, 0, len(windows))
	for _, w := range windows {
		if wanted[w.Title] || wanted[w.App] {
			out = append(out, w)
		}
	}
	return out
}

// sleepUntilConfigChange sleeps for d unless the config file changes first.
func (s *Scheduler) sleepUntilConfigChange(ctx context.Context, d time.Duration) error {
	if s.changes == nil {
		return s.sleep(ctx, d)
	}

	// Edits before now were already picked up by this cycle's Load
	select {
	case <-s.changes:
	default:
	}

	sleepCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-s.changes:
			s.logger.Info("config changed, re-evaluating timeslots")
			cancel()
		case <-sleepCtx.Done():
		}
	}()

	_ = s.sleep(sleepCtx, d)
	return ctx.Err()
}

// record reports an activation attempt to zap, the console and, when
// enabled, the switch log.
func (s *Scheduler) record(cfg domain.Config, rec domain.SwitchRecord, result domain.ActivationResult) {
	fields := []zap.Field{
		zap.String("window", rec.Title),
		zap.String("outcome", string(rec.Outcome)),
		zap.String("status", result.Status.String()),
	}
	if result.Backend != "" {
		fields = append(fields, zap.String("backend", result.Backend))
	}
	if result.Err != nil {
		fields = append(fields, zap.Error(result.Err))
	}
	s.logger.Info("switch record", fields...)
	s.console(cfg, func(p *console.Printer) { p.Switch(rec.Title, rec.Outcome) })

	if !cfg.LoggingEnabled || s.config.SkipLog {
		return
	}
	if err := s.switchLog(cfg.LogFilePath).Append(rec); err != nil {
		s.logger.Warn("failed to append switch log", zap.String("path", cfg.LogFilePath), zap.Error(err))
	}
}

// switchLog returns the logger for path, reopening it if the path changed.
func (s *Scheduler) switchLog(path string) domain.SwitchLogger {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.switchLogger == nil || s.switchLogger.Path() != path {
		s.switchLogger = s.newSwitchLogger(path)
	}
	return s.switchLogger
}

func (s *Scheduler) console(cfg domain.Config, fn func(p *console.Printer)) {
	if cfg.BackgroundMode || s.config.Console == nil {
		return
	}
	fn(s.config.Console)
}
