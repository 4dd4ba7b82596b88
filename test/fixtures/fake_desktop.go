// Package fixtures provides test helpers for integration tests.
package fixtures

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/eliteGoblin/focusd/win_switch/internal/domain"
)

// FakeDesktop simulates the OS capabilities: a window list, a pointer,
// a keyboard tap, a focus gesture and the process table.
type FakeDesktop struct {
	mu        sync.Mutex
	windows   []domain.WindowHandle
	running   map[string]bool // lowercased app names
	focused   string
	previous  string
	pointer   domain.Point
	busy      bool
	onKey     func(time.Time)
	activated []string
}

// NewFakeDesktop creates a desktop with the given windows open.
// Every window's app starts out running.
func NewFakeDesktop(windows ...domain.WindowHandle) *FakeDesktop {
	d := &FakeDesktop{running: map[string]bool{}}
	d.SetWindows(windows...)
	return d
}

// Window builds a handle whose app and ID equal the title.
func Window(title string) domain.WindowHandle {
	return domain.WindowHandle{ID: title, Title: title, App: title}
}

// SetWindows replaces the open windows.
func (d *FakeDesktop) SetWindows(windows ...domain.WindowHandle) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.windows = append([]domain.WindowHandle(nil), windows...)
	for _, w := range windows {
		d.running[strings.ToLower(w.App)] = true
	}
}

// Quit marks app as no longer running while its window stays listed.
func (d *FakeDesktop) Quit(app string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.running[strings.ToLower(app)] = false
}

// SetBusy makes the pointer move on every read, as if the user were working.
func (d *FakeDesktop) SetBusy(busy bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.busy = busy
}

// Press simulates a keystroke.
func (d *FakeDesktop) Press() {
	d.mu.Lock()
	onKey := d.onKey
	d.mu.Unlock()
	if onKey != nil {
		onKey(time.Now())
	}
}

// Activated returns every activated title in order.
func (d *FakeDesktop) Activated() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.activated...)
}

// Focus brings title to the foreground as if the user clicked it.
func (d *FakeDesktop) Focus(title string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.focused = title
}

// Focused returns the title currently in the foreground.
func (d *FakeDesktop) Focused() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.focused
}

// ListWindows implements domain.WindowLister.
func (d *FakeDesktop) ListWindows(context.Context) ([]domain.WindowHandle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]domain.WindowHandle(nil), d.windows...), nil
}

// Position implements domain.PointerReader.
func (d *FakeDesktop) Position(context.Context) (domain.Point, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.busy {
		d.pointer.X++
	}
	return d.pointer, nil
}

// Name implements domain.KeyTap and domain.ActivationBackend.
func (d *FakeDesktop) Name() string { return "fake" }

// Start implements domain.KeyTap.
func (d *FakeDesktop) Start(_ context.Context, onKey func(time.Time)) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onKey = onKey
	return nil
}

// Stop implements domain.KeyTap.
func (d *FakeDesktop) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onKey = nil
	return nil
}

// Err implements domain.KeyTap. The fake keyboard never goes away.
func (d *FakeDesktop) Err() error { return nil }

// Available implements domain.ActivationBackend.
func (d *FakeDesktop) Available() bool { return true }

// Activate implements domain.ActivationBackend.
func (d *FakeDesktop) Activate(_ context.Context, w domain.WindowHandle) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.activated = append(d.activated, w.Title)
	d.focused = w.Title
	return nil
}

// Remember implements domain.FocusGesture.
func (d *FakeDesktop) Remember(context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.previous = d.focused
	return nil
}

// SwitchToPrevious implements domain.FocusGesture.
func (d *FakeDesktop) SwitchToPrevious(context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.focused = d.previous
	return nil
}

// FindByName implements domain.ProcessManager.
func (d *FakeDesktop) FindByName(name string) ([]int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running[strings.ToLower(name)] {
		return []int{1000}, nil
	}
	return nil, nil
}

// IsRunning implements domain.ProcessManager. Fake windows carry no PID.
func (d *FakeDesktop) IsRunning(int) bool { return false }

// GetCurrentPID implements domain.ProcessManager.
func (d *FakeDesktop) GetCurrentPID() int { return 1 }

// BrokenBackend always fails, to exercise the fallback chain.
type BrokenBackend struct{}

// Name implements domain.ActivationBackend.
func (BrokenBackend) Name() string { return "broken" }

// Available implements domain.ActivationBackend.
func (BrokenBackend) Available() bool { return true }

// Activate implements domain.ActivationBackend.
func (BrokenBackend) Activate(context.Context, domain.WindowHandle) error {
	return errors.New("window manager refused activation")
}

// TunedStore shortens the idle window of another store so suites run fast.
type TunedStore struct {
	domain.ConfigStore
	IdleWindow time.Duration
}

// Load implements domain.ConfigStore.
func (s TunedStore) Load() domain.Config {
	cfg := s.ConfigStore.Load()
	cfg.IdleWindow = s.IdleWindow
	return cfg
}

// SleepRecorder is a SleepFunc that records durations and returns at once.
type SleepRecorder struct {
	mu     sync.Mutex
	sleeps []time.Duration
}

// Sleep records d and returns ctx.Err().
func (r *SleepRecorder) Sleep(ctx context.Context, d time.Duration) error {
	r.mu.Lock()
	r.sleeps = append(r.sleeps, d)
	r.mu.Unlock()
	return ctx.Err()
}

// Sleeps returns the recorded durations.
func (r *SleepRecorder) Sleeps() []time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]time.Duration(nil), r.sleeps...)
}

var (
	_ domain.WindowLister      = (*FakeDesktop)(nil)
	_ domain.PointerReader     = (*FakeDesktop)(nil)
	_ domain.KeyTap            = (*FakeDesktop)(nil)
	_ domain.ActivationBackend = (*FakeDesktop)(nil)
	_ domain.FocusGesture      = (*FakeDesktop)(nil)
	_ domain.ProcessManager    = (*FakeDesktop)(nil)
	_ domain.ActivationBackend = BrokenBackend{}
)
