//go:build linux

package infra

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/godbus/dbus/v5"
	"go.uber.org/zap"
)

const (
	idleMonitorDestination = "org.gnome.Mutter.IdleMonitor"
	idleMonitorObjectPath  = "/org/gnome/Mutter/IdleMonitor/Core"
	idleMonitorMethod      = "org.gnome.Mutter.IdleMonitor.GetIdletime"
)

// mutterIdleSampler queries GNOME Mutter's IdleMonitor over the session bus.
// Works on GNOME Wayland where /dev/input is not readable.
type mutterIdleSampler struct {
	mu   sync.Mutex
	conn *dbus.Conn
}

func (s *mutterIdleSampler) connect() (*dbus.Conn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn != nil && s.conn.Connected() {
		return s.conn, nil
	}
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to session bus: %w", err)
	}
	s.conn = conn
	return conn, nil
}

// Sample returns Mutter's idle time.
func (s *mutterIdleSampler) Sample(ctx context.Context) (time.Duration, error) {
	conn, err := s.connect()
	if err != nil {
		return 0, err
	}

	obj := conn.Object(idleMonitorDestination, dbus.ObjectPath(idleMonitorObjectPath))
	call := obj.CallWithContext(ctx, idleMonitorMethod, 0)
	if call.Err != nil {
		return 0, fmt.Errorf("failed to call IdleMonitor.GetIdletime: %w", call.Err)
	}

	// Milliseconds since the last input event
	var idleMs uint64
	if err := call.Store(&idleMs); err != nil {
		return 0, fmt.Errorf("failed to parse IdleMonitor response: %w", err)
	}
	return time.Duration(idleMs) * time.Millisecond, nil
}

func (s *mutterIdleSampler) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return nil
	}
	err := s.conn.Close()
	s.conn = nil
	return err
}

func newMutterTap(logger *zap.Logger) (*idleCounterTap, *mutterIdleSampler) {
	sampler := &mutterIdleSampler{}
	return newIdleCounterTap("mutter-idle", sampler.Sample, logger), sampler
}
