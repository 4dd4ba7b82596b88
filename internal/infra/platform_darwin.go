//go:build darwin

package infra

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/win_switch/internal/domain"
)

func newPlatform(runner CommandRunner, logger *zap.Logger) *Platform {
	p := &Platform{
		Name:    "darwin",
		Lister:  &cgWindowLister{runner: runner},
		Pointer: &cgPointerReader{runner: runner},
		Gesture: &cmdTabGesture{runner: runner},
		Backends: []domain.ActivationBackend{
			&systemEventsBackend{runner: runner},
			&commandBackend{
				name:   "open",
				binary: "open",
				runner: runner,
				argsFor: func(w domain.WindowHandle) []string {
					return []string{"-a", activationTarget(w)}
				},
			},
		},
	}

	p.KeyTap = newIdleCounterTap("hid-idle", func(ctx context.Context) (time.Duration, error) {
		out, err := runner.Output(ctx, "ioreg", "-c", "IOHIDSystem")
		if err != nil {
			return 0, err
		}
		return parseHIDIdleTime(out)
	}, logger)

	return p
}

// activationTarget is the app to bring forward. Windows without an owner
// fall back to their title, which is how the app was addressed historically.
func activationTarget(w domain.WindowHandle) string {
	if w.App != "" {
		return w.App
	}
	return w.Title
}

type cgWindowLister struct {
	runner CommandRunner
}

func (l *cgWindowLister) ListWindows(ctx context.Context) ([]domain.WindowHandle, error) {
	out, err := runJXAScript(ctx, l.runner, windowListScript)
	if err != nil {
		return nil, err
	}
	return parseWindowList(out)
}

type cgPointerReader struct {
	runner CommandRunner
}

func (r *cgPointerReader) Position(ctx context.Context) (domain.Point, error) {
	out, err := runJXAScript(ctx, r.runner, pointerScript)
	if err != nil {
		return domain.Point{}, err
	}
	return parsePoint(out)
}

// systemEventsBackend sets frontmost on the owning process. Needs Accessibility.
type systemEventsBackend struct {
	runner CommandRunner
}

func (b *systemEventsBackend) Name() string { return "system-events" }

func (b *systemEventsBackend) Available() bool {
	return b.runner.LookPath("osascript")
}

func (b *systemEventsBackend) Activate(ctx context.Context, window domain.WindowHandle) error {
	_, err := runJXAScript(ctx, b.runner, frontmostScript(activationTarget(window)))
	return err
}

// cmdTabGesture returns to the previous app. macOS tracks the app order
// itself, so Remember has nothing to record.
type cmdTabGesture struct {
	runner CommandRunner
}

func (g *cmdTabGesture) Remember(context.Context) error { return nil }

func (g *cmdTabGesture) SwitchToPrevious(ctx context.Context) error {
	_, err := runJXAScript(ctx, g.runner, previousAppScript)
	return err
}

var (
	_ domain.WindowLister      = (*cgWindowLister)(nil)
	_ domain.PointerReader     = (*cgPointerReader)(nil)
	_ domain.ActivationBackend = (*systemEventsBackend)(nil)
	_ domain.FocusGesture      = (*cmdTabGesture)(nil)
)
