// Package usecase contains application business logic.
package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/win_switch/internal/domain"
)

// ActivatorImpl implements domain.Activator over an ordered backend chain.
type ActivatorImpl struct {
	processManager domain.ProcessManager
	backends       []domain.ActivationBackend
	gesture        domain.FocusGesture
	logger         *zap.Logger
	wait           func(ctx context.Context, d time.Duration) error
}

// NewActivator creates a new activator. Backends are tried in order;
// gesture may be nil when no previous-app gesture exists.
func NewActivator(
	pm domain.ProcessManager,
	backends []domain.ActivationBackend,
	gesture domain.FocusGesture,
	logger *zap.Logger,
) *ActivatorImpl {
	return &ActivatorImpl{
		processManager: pm,
		backends:       backends,
		gesture:        gesture,
		logger:         logger,
		wait:           waitContext,
	}
}

// Activate brings window to the foreground and optionally returns focus to
// the previous app. A vanished app is reported as NotRunning.
func (a *ActivatorImpl) Activate(ctx context.Context, window domain.WindowHandle, opts domain.ActivateOptions) (result domain.ActivationResult) {
	defer func() {
		if r := recover(); r != nil {
			a.logger.Error("activation panicked", zap.String("window", window.Title), zap.Any("panic", r))
			result = domain.ActivationResult{
				Status: domain.ActivationError,
				Err:    fmt.Errorf("%w: panic: %v", domain.ErrActivationFailed, r),
			}
		}
	}()

	if !a.isRunning(window) {
		a.logger.Info("application not running",
			zap.String("window", window.Title),
			zap.String("app", window.App),
			zap.Int("pid", window.PID))
		return domain.ActivationResult{Status: domain.ActivationNotRunning, Err: domain.ErrNotRunning}
	}

	switchBack := opts.SwitchBack && a.gesture != nil
	if switchBack {
		if err := a.gesture.Remember(ctx); err != nil {
			a.logger.Debug("failed to remember focused window", zap.Error(err))
		}
	}

	result = a.activateWithFallback(ctx, window)
	if result.Status != domain.ActivationActivated {
		return result
	}

	a.logger.Info("activated window",
		zap.String("window", window.Title),
		zap.String("backend", result.Backend))

	if switchBack {
		a.switchBack(ctx, opts.SwitchBackDelay)
	}
	return result
}

func (a *ActivatorImpl) activateWithFallback(ctx context.Context, window domain.WindowHandle) domain.ActivationResult {
	var lastErr error
	tried := 0

	for _, backend := range a.backends {
		if !backend.Available() {
			continue
		}
		tried++

		err := backend.Activate(ctx, window)
		if err == nil {
			return domain.ActivationResult{Status: domain.ActivationActivated, Backend: backend.Name()}
		}

		a.logger.Warn("activation backend failed",
			zap.String("backend", backend.Name()),
			zap.String("window", window.Title),
			zap.Error(err))
		lastErr = err
		if ctx.Err() != nil {
			break
		}
	}

	if tried == 0 {
		lastErr = errors.New("no activation backend available")
	}
	return domain.ActivationResult{
		Status: domain.ActivationError,
		Err:    fmt.Errorf("%w: %v", domain.ErrActivationFailed, lastErr),
	}
}

func (a *ActivatorImpl) switchBack(ctx context.Context, delay time.Duration) {
	if err := a.wait(ctx, delay); err != nil {
		return
	}
	if err := a.gesture.SwitchToPrevious(ctx); err != nil {
		a.logger.Warn("failed to switch back to previous window", zap.Error(err))
	}
}

// isRunning checks the owning process. Lookup failures count as running so
// a flaky process table never hides a window.
//
// Without a PID the app name is looked up only when it names a process,
// i.e. the window has no platform ID or its ID is the app name (macOS).
// An X11 WM_CLASS is not a process name, so such windows count as running.
func (a *ActivatorImpl) isRunning(window domain.WindowHandle) bool {
	if window.PID > 0 {
		return a.processManager.IsRunning(window.PID)
	}

	name := window.App
	if name == "" || (window.ID != "" && window.ID != name) {
		return true
	}

	pids, err := a.processManager.FindByName(name)
	if err != nil {
		a.logger.Debug("process lookup failed", zap.String("name", name), zap.Error(err))
		return true
	}
	return len(pids) > 0
}

func waitContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Ensure ActivatorImpl implements domain.Activator.
var _ domain.Activator = (*ActivatorImpl)(nil)
