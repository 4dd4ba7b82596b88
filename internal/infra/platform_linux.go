//go:build linux

package infra

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/win_switch/internal/domain"
)

func newPlatform(runner CommandRunner, logger *zap.Logger) *Platform {
	p := &Platform{Name: "linux"}

	client, err := newX11Client()
	if err != nil {
		logger.Warn("X11 unavailable, window listing disabled", zap.Error(err))
		x11Missing := &unavailable{name: "x11", err: fmt.Errorf("%w: %v", domain.ErrUnsupportedPlatform, err)}
		p.Lister = x11Missing
		p.Pointer = x11Missing
		p.Gesture = x11Missing
	} else {
		p.Lister = client
		p.Pointer = client
		p.Gesture = &x11Gesture{client: client}
		p.Backends = append(p.Backends, &x11Backend{client: client})
		p.closers = append(p.closers, client.Close)
	}

	p.Backends = append(p.Backends,
		&commandBackend{
			name:   "wmctrl",
			binary: "wmctrl",
			runner: runner,
			argsFor: func(w domain.WindowHandle) []string {
				return []string{"-i", "-a", w.ID}
			},
		},
		&commandBackend{
			name:   "xdotool",
			binary: "xdotool",
			runner: runner,
			argsFor: func(w domain.WindowHandle) []string {
				return []string{"windowactivate", w.ID}
			},
		},
	)

	mutter, sampler := newMutterTap(logger)
	p.closers = append(p.closers, sampler.Close)
	p.KeyTap = newFirstAvailableTap(logger, newEvdevTap(logger), mutter)

	return p
}
