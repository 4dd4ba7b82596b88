//go:build !linux && !darwin

package infra

import (
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/win_switch/internal/domain"
)

func newPlatform(_ CommandRunner, logger *zap.Logger) *Platform {
	logger.Warn("no window backend for this platform")
	missing := &unavailable{name: "unsupported", err: domain.ErrUnsupportedPlatform}
	return &Platform{
		Name:    "unsupported",
		Lister:  missing,
		Gesture: missing,
		Pointer: missing,
		KeyTap:  missing,
	}
}
