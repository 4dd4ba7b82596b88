package infra

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/win_switch/internal/domain"
)

// Platform bundles the OS capabilities winswitch needs. Each OS file
// provides newPlatform; fields may be unavailable stubs on partial setups
// (e.g. Wayland without XWayland).
type Platform struct {
	Name     string
	Lister   domain.WindowLister
	Backends []domain.ActivationBackend // In preference order
	Gesture  domain.FocusGesture
	Pointer  domain.PointerReader
	KeyTap   domain.KeyTap

	closers []func() error
}

// NewPlatform detects and wires the backends for the running OS.
func NewPlatform(runner CommandRunner, logger *zap.Logger) *Platform {
	p := newPlatform(runner, logger)
	logger.Debug("platform detected",
		zap.String("platform", p.Name),
		zap.Strings("backends", backendNames(p.Backends)),
		zap.String("key_tap", p.KeyTap.Name()))
	return p
}

// Close releases display connections held by the backends.
func (p *Platform) Close() error {
	var firstErr error
	for _, c := range p.closers {
		if err := c(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	p.closers = nil
	return firstErr
}

func backendNames(backends []domain.ActivationBackend) []string {
	names := make([]string, 0, len(backends))
	for _, b := range backends {
		names = append(names, b.Name())
	}
	return names
}

// commandBackend activates a window by running an external helper.
type commandBackend struct {
	name    string
	binary  string
	runner  CommandRunner
	argsFor func(window domain.WindowHandle) []string
}

func (b *commandBackend) Name() string { return b.name }

func (b *commandBackend) Available() bool {
	return b.runner.LookPath(b.binary)
}

func (b *commandBackend) Activate(ctx context.Context, window domain.WindowHandle) error {
	return b.runner.Run(ctx, b.binary, b.argsFor(window)...)
}

// unavailable stands in for a capability the OS or session cannot provide.
type unavailable struct {
	name string
	err  error
}

func (u *unavailable) Name() string    { return u.name }
func (u *unavailable) Available() bool { return false }

func (u *unavailable) ListWindows(context.Context) ([]domain.WindowHandle, error) {
	return nil, u.err
}

func (u *unavailable) Activate(context.Context, domain.WindowHandle) error { return u.err }
func (u *unavailable) Remember(context.Context) error                     { return u.err }
func (u *unavailable) SwitchToPrevious(context.Context) error             { return u.err }

func (u *unavailable) Position(context.Context) (domain.Point, error) {
	return domain.Point{}, u.err
}

func (u *unavailable) Start(context.Context, func(time.Time)) error {
	return fmt.Errorf("%s: %w", u.name, domain.ErrInputTapUnavailable)
}

func (u *unavailable) Stop() error { return nil }
func (u *unavailable) Err() error  { return nil }

var (
	_ domain.WindowLister      = (*unavailable)(nil)
	_ domain.ActivationBackend = (*unavailable)(nil)
	_ domain.FocusGesture      = (*unavailable)(nil)
	_ domain.PointerReader     = (*unavailable)(nil)
	_ domain.KeyTap            = (*unavailable)(nil)
	_ domain.ActivationBackend = (*commandBackend)(nil)
)

// firstAvailableTap starts the first tap that installs successfully.
type firstAvailableTap struct {
	taps   []domain.KeyTap
	logger *zap.Logger

	mu     sync.Mutex
	active domain.KeyTap
}

func newFirstAvailableTap(logger *zap.Logger, taps ...domain.KeyTap) *firstAvailableTap {
	return &firstAvailableTap{taps: taps, logger: logger}
}

func (t *firstAvailableTap) Name() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.active != nil {
		return t.active.Name()
	}
	names := make([]string, 0, len(t.taps))
	for _, tap := range t.taps {
		names = append(names, tap.Name())
	}
	return strings.Join(names, "|")
}

func (t *firstAvailableTap) Start(ctx context.Context, onKey func(time.Time)) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.active != nil {
		if t.active.Err() == nil {
			return nil
		}
		// A dead tap may be outranked by one that works now.
		_ = t.active.Stop()
		t.active = nil
	}

	var errs []string
	for _, tap := range t.taps {
		err := tap.Start(ctx, onKey)
		if err == nil {
			t.active = tap
			t.logger.Info("keystroke tap installed", zap.String("tap", tap.Name()))
			return nil
		}
		errs = append(errs, err.Error())
	}
	return fmt.Errorf("%w: %s", domain.ErrInputTapUnavailable, strings.Join(errs, "; "))
}

// Err reports the active tap's failure. Nothing installed is not a failure.
func (t *firstAvailableTap) Err() error {
	t.mu.Lock()
	active := t.active
	t.mu.Unlock()
	if active == nil {
		return nil
	}
	return active.Err()
}

func (t *firstAvailableTap) Stop() error {
	t.mu.Lock()
	active := t.active
	t.active = nil
	t.mu.Unlock()

	if active == nil {
		return nil
	}
	return active.Stop()
}

var _ domain.KeyTap = (*firstAvailableTap)(nil)
