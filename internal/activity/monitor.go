// Package activity decides whether the user is idle enough to switch windows.
package activity

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/eliteGoblin/focusd/win_switch/internal/domain"
)

// errActivityDetected ends a check early; the first detector to return it
// cancels the other through the errgroup context.
var errActivityDetected = errors.New("activity detected")

// MonitorConfig holds activity monitor configuration.
type MonitorConfig struct {
	PollInterval     time.Duration // How often the pointer is sampled during a check
	TapRetryInterval time.Duration // Minimum gap between keystroke tap install attempts
}

// DefaultMonitorConfig returns default monitor configuration.
func DefaultMonitorConfig() MonitorConfig {
	return MonitorConfig{
		PollInterval:     100 * time.Millisecond,
		TapRetryInterval: 60 * time.Second,
	}
}

// Monitor implements domain.ActivityMonitor with a pointer poller and a
// keystroke tap racing under one errgroup per check.
type Monitor struct {
	config  MonitorConfig
	pointer domain.PointerReader
	tap     domain.KeyTap
	logger  *zap.Logger

	// Unix nanos; each has a single writer.
	lastPointerMove atomic.Int64
	lastKeystroke   atomic.Int64
	keyNotify       chan struct{}

	mu             sync.Mutex
	tapCtx         context.Context
	tapInstalled   bool
	tapWarned      bool
	lastTapAttempt time.Time
}

// NewMonitor creates a new activity monitor.
func NewMonitor(config MonitorConfig, pointer domain.PointerReader, tap domain.KeyTap, logger *zap.Logger) *Monitor {
	defaults := DefaultMonitorConfig()
	if config.PollInterval <= 0 {
		config.PollInterval = defaults.PollInterval
	}
	if config.TapRetryInterval <= 0 {
		config.TapRetryInterval = defaults.TapRetryInterval
	}
	return &Monitor{
		config:    config,
		pointer:   pointer,
		tap:       tap,
		logger:    logger,
		keyNotify: make(chan struct{}, 1),
	}
}

// Start installs the keystroke tap for the lifetime of ctx. A failure is
// returned for logging only: the monitor keeps reporting "not idle" and
// retries the install from IsIdle.
func (m *Monitor) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tapCtx = ctx
	return m.installTapLocked()
}

func (m *Monitor) installTapLocked() error {
	m.lastTapAttempt = time.Now()
	if err := m.tap.Start(m.tapCtx, m.RecordKeystroke); err != nil {
		if !m.tapWarned {
			m.logger.Warn("keystroke tap unavailable, treating user as active",
				zap.String("tap", m.tap.Name()),
				zap.Duration("retry_interval", m.config.TapRetryInterval),
				zap.Error(err))
			m.tapWarned = true
		}
		return err
	}

	if m.tapWarned {
		m.logger.Info("keystroke tap recovered", zap.String("tap", m.tap.Name()))
	}
	m.tapInstalled = true
	m.tapWarned = false
	return nil
}

// tapReady reports whether keystrokes are observable, retrying the install
// at most once per TapRetryInterval.
func (m *Monitor) tapReady() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.tapInstalled {
		err := m.tap.Err()
		if err == nil {
			return true
		}
		m.dropTapLocked(err)
		return false
	}
	if m.tapCtx == nil || m.tapCtx.Err() != nil {
		return false
	}
	if time.Since(m.lastTapAttempt) < m.config.TapRetryInterval {
		return false
	}
	return m.installTapLocked() == nil
}

// dropTapLocked removes a tap that stopped observing input so the next
// attempt after TapRetryInterval reinstalls it.
func (m *Monitor) dropTapLocked(err error) {
	if !m.tapWarned {
		m.logger.Warn("keystroke tap lost, treating user as active",
			zap.String("tap", m.tap.Name()),
			zap.Duration("retry_interval", m.config.TapRetryInterval),
			zap.Error(err))
		m.tapWarned = true
	}
	if stopErr := m.tap.Stop(); stopErr != nil {
		m.logger.Debug("failed to stop keystroke tap", zap.Error(stopErr))
	}
	m.tapInstalled = false
	m.lastTapAttempt = time.Now()
}

// RecordKeystroke is the tap callback. It never blocks.
func (m *Monitor) RecordKeystroke(t time.Time) {
	m.lastKeystroke.Store(t.UnixNano())
	select {
	case m.keyNotify <- struct{}{}:
	default:
	}
}

// IsIdle blocks for up to window and returns true only if neither the
// pointer moved nor a key was pressed since the call started.
func (m *Monitor) IsIdle(ctx context.Context, window time.Duration) bool {
	if !m.tapReady() {
		return false
	}

	checkStart := time.Now()
	origin, err := m.pointer.Position(ctx)
	if err != nil {
		m.logger.Debug("pointer read failed, treating user as active", zap.Error(err))
		return false
	}

	windowCtx, cancel := context.WithTimeout(ctx, window)
	defer cancel()
	g, gctx := errgroup.WithContext(windowCtx)

	g.Go(func() error {
		return m.watchPointer(gctx, origin)
	})
	g.Go(func() error {
		return m.watchKeys(gctx, checkStart)
	})

	if err := g.Wait(); err != nil {
		if !errors.Is(err, errActivityDetected) {
			m.logger.Debug("activity check failed, treating user as active", zap.Error(err))
		}
		return false
	}
	if err := m.tap.Err(); err != nil {
		m.logger.Debug("keystroke tap failed during check, treating user as active", zap.Error(err))
		return false
	}
	return ctx.Err() == nil
}

func (m *Monitor) watchPointer(ctx context.Context, origin domain.Point) error {
	ticker := time.NewTicker(m.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			pos, err := m.pointer.Position(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return err
			}
			if pos != origin {
				m.lastPointerMove.Store(time.Now().UnixNano())
				return errActivityDetected
			}
		}
	}
}

func (m *Monitor) watchKeys(ctx context.Context, checkStart time.Time) error {
	since := checkStart.UnixNano()
	for {
		if m.lastKeystroke.Load() >= since {
			return errActivityDetected
		}
		select {
		case <-ctx.Done():
			return nil
		case <-m.keyNotify:
		}
	}
}

// State returns the last observed input timestamps.
func (m *Monitor) State() domain.ActivityState {
	return domain.ActivityState{
		LastPointerMove: fromUnixNano(m.lastPointerMove.Load()),
		LastKeystroke:   fromUnixNano(m.lastKeystroke.Load()),
	}
}

// Stop removes the tap.
func (m *Monitor) Stop() error {
	m.mu.Lock()
	installed := m.tapInstalled
	m.tapInstalled = false
	m.tapCtx = nil
	m.mu.Unlock()

	if !installed {
		return nil
	}
	return m.tap.Stop()
}

func fromUnixNano(ns int64) time.Time {
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns)
}

// Ensure Monitor implements domain.ActivityMonitor.
var _ domain.ActivityMonitor = (*Monitor)(nil)
