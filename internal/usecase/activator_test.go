package usecase

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/win_switch/internal/domain"
)

// mockProcessManager implements domain.ProcessManager for testing
type mockProcessManager struct {
	findResult map[string][]int
	findErr    error
	running    map[int]bool
	lookups    []string
}

func (m *mockProcessManager) FindByName(name string) ([]int, error) {
	m.lookups = append(m.lookups, name)
	if m.findErr != nil {
		return nil, m.findErr
	}
	return m.findResult[name], nil
}

func (m *mockProcessManager) IsRunning(pid int) bool {
	return m.running[pid]
}

func (m *mockProcessManager) GetCurrentPID() int {
	return os.Getpid()
}

// mockBackend implements domain.ActivationBackend for testing
type mockBackend struct {
	name      string
	available bool
	err       error
	panics    bool
	activated []string
}

func (m *mockBackend) Name() string    { return m.name }
func (m *mockBackend) Available() bool { return m.available }

func (m *mockBackend) Activate(_ context.Context, w domain.WindowHandle) error {
	if m.panics {
		panic("backend exploded")
	}
	m.activated = append(m.activated, w.Title)
	return m.err
}

// mockGesture implements domain.FocusGesture for testing
type mockGesture struct {
	remembered int
	switched   int
	err        error
}

func (m *mockGesture) Remember(context.Context) error {
	m.remembered++
	return nil
}

func (m *mockGesture) SwitchToPrevious(context.Context) error {
	m.switched++
	return m.err
}

func newTestActivator(pm *mockProcessManager, gesture domain.FocusGesture, backends ...domain.ActivationBackend) (*ActivatorImpl, *[]time.Duration) {
	a := NewActivator(pm, backends, gesture, zap.NewNop())
	var waits []time.Duration
	a.wait = func(_ context.Context, d time.Duration) error {
		waits = append(waits, d)
		return nil
	}
	return a, &waits
}

var safari = domain.WindowHandle{ID: "Safari", Title: "Apple", App: "Safari", PID: 412}

func TestActivator_NotRunningByPID(t *testing.T) {
	backend := &mockBackend{name: "primary", available: true}
	a, _ := newTestActivator(&mockProcessManager{}, nil, backend)

	result := a.Activate(context.Background(), safari, domain.ActivateOptions{})

	assert.Equal(t, domain.ActivationNotRunning, result.Status)
	assert.ErrorIs(t, result.Err, domain.ErrNotRunning)
	assert.Equal(t, domain.OutcomeSkipped, result.Outcome())
	assert.Empty(t, backend.activated, "no activation attempted")
}

func TestActivator_NotRunningByName(t *testing.T) {
	pm := &mockProcessManager{findResult: map[string][]int{}}
	a, _ := newTestActivator(pm, nil, &mockBackend{name: "primary", available: true})

	result := a.Activate(context.Background(), domain.WindowHandle{Title: "Inbox", App: "Mail"}, domain.ActivateOptions{})

	assert.Equal(t, domain.ActivationNotRunning, result.Status)
	assert.Equal(t, []string{"Mail"}, pm.lookups)
}

func TestActivator_NotRunningByOwnerID(t *testing.T) {
	pm := &mockProcessManager{findResult: map[string][]int{}}
	a, _ := newTestActivator(pm, nil, &mockBackend{name: "primary", available: true})

	window := domain.WindowHandle{ID: "Mail", Title: "Inbox", App: "Mail"}
	result := a.Activate(context.Background(), window, domain.ActivateOptions{})

	assert.Equal(t, domain.ActivationNotRunning, result.Status)
	assert.Equal(t, []string{"Mail"}, pm.lookups)
}

func TestActivator_X11WindowWithoutPIDAssumesRunning(t *testing.T) {
	pm := &mockProcessManager{findResult: map[string][]int{}}
	backend := &mockBackend{name: "primary", available: true}
	a, _ := newTestActivator(pm, nil, backend)

	window := domain.WindowHandle{ID: "0x04a00003", Title: "Inbox - Google Chrome", App: "Google-chrome"}
	result := a.Activate(context.Background(), window, domain.ActivateOptions{})

	assert.Equal(t, domain.ActivationActivated, result.Status)
	assert.Empty(t, pm.lookups, "WM_CLASS is not a process name")
	assert.Len(t, backend.activated, 1)
}

func TestActivator_LookupErrorAssumesRunning(t *testing.T) {
	pm := &mockProcessManager{findErr: errors.New("proc table unavailable")}
	backend := &mockBackend{name: "primary", available: true}
	a, _ := newTestActivator(pm, nil, backend)

	result := a.Activate(context.Background(), domain.WindowHandle{Title: "Inbox", App: "Mail"}, domain.ActivateOptions{})

	assert.Equal(t, domain.ActivationActivated, result.Status)
}

func TestActivator_PrimaryBackend(t *testing.T) {
	pm := &mockProcessManager{running: map[int]bool{412: true}}
	primary := &mockBackend{name: "primary", available: true}
	fallback := &mockBackend{name: "fallback", available: true}
	a, _ := newTestActivator(pm, nil, primary, fallback)

	result := a.Activate(context.Background(), safari, domain.ActivateOptions{})

	assert.Equal(t, domain.ActivationActivated, result.Status)
	assert.Equal(t, "primary", result.Backend)
	assert.NoError(t, result.Err)
	assert.Empty(t, fallback.activated)
}

func TestActivator_FallbackWhenPrimaryFails(t *testing.T) {
	pm := &mockProcessManager{running: map[int]bool{412: true}}
	primary := &mockBackend{name: "primary", available: true, err: errors.New("denied")}
	skipped := &mockBackend{name: "missing", available: false}
	fallback := &mockBackend{name: "fallback", available: true}
	a, _ := newTestActivator(pm, nil, primary, skipped, fallback)

	result := a.Activate(context.Background(), safari, domain.ActivateOptions{})

	assert.Equal(t, domain.ActivationActivated, result.Status)
	assert.Equal(t, "fallback", result.Backend)
	assert.Equal(t, []string{"Apple"}, primary.activated)
	assert.Empty(t, skipped.activated)
}

func TestActivator_AllBackendsFail(t *testing.T) {
	pm := &mockProcessManager{running: map[int]bool{412: true}}
	a, _ := newTestActivator(pm, nil,
		&mockBackend{name: "a", available: true, err: errors.New("first")},
		&mockBackend{name: "b", available: true, err: errors.New("second")},
	)

	result := a.Activate(context.Background(), safari, domain.ActivateOptions{})

	assert.Equal(t, domain.ActivationError, result.Status)
	assert.ErrorIs(t, result.Err, domain.ErrActivationFailed)
	assert.Contains(t, result.Err.Error(), "second")
	assert.Equal(t, domain.OutcomeFailed, result.Outcome())
}

func TestActivator_NoBackendAvailable(t *testing.T) {
	pm := &mockProcessManager{running: map[int]bool{412: true}}
	a, _ := newTestActivator(pm, nil, &mockBackend{name: "a"})

	result := a.Activate(context.Background(), safari, domain.ActivateOptions{})

	assert.Equal(t, domain.ActivationError, result.Status)
	assert.Contains(t, result.Err.Error(), "no activation backend available")
}

func TestActivator_BackendPanicRecovered(t *testing.T) {
	pm := &mockProcessManager{running: map[int]bool{412: true}}
	a, _ := newTestActivator(pm, nil, &mockBackend{name: "a", available: true, panics: true})

	var result domain.ActivationResult
	require.NotPanics(t, func() {
		result = a.Activate(context.Background(), safari, domain.ActivateOptions{})
	})
	assert.Equal(t, domain.ActivationError, result.Status)
}

func TestActivator_SwitchBackGesture(t *testing.T) {
	pm := &mockProcessManager{running: map[int]bool{412: true}}
	gesture := &mockGesture{}
	a, waits := newTestActivator(pm, gesture, &mockBackend{name: "a", available: true})

	result := a.Activate(context.Background(), safari, domain.ActivateOptions{SwitchBack: true, SwitchBackDelay: 300 * time.Millisecond})

	assert.Equal(t, domain.ActivationActivated, result.Status)
	assert.Equal(t, 1, gesture.remembered)
	assert.Equal(t, 1, gesture.switched)
	assert.Equal(t, []time.Duration{300 * time.Millisecond}, *waits)
}

func TestActivator_SwitchBackDisabled(t *testing.T) {
	pm := &mockProcessManager{running: map[int]bool{412: true}}
	gesture := &mockGesture{}
	a, waits := newTestActivator(pm, gesture, &mockBackend{name: "a", available: true})

	a.Activate(context.Background(), safari, domain.ActivateOptions{SwitchBack: false})

	assert.Zero(t, gesture.remembered)
	assert.Zero(t, gesture.switched)
	assert.Empty(t, *waits)
}

func TestActivator_SwitchBackSkippedOnFailure(t *testing.T) {
	pm := &mockProcessManager{running: map[int]bool{412: true}}
	gesture := &mockGesture{}
	a, _ := newTestActivator(pm, gesture, &mockBackend{name: "a", available: true, err: errors.New("denied")})

	a.Activate(context.Background(), safari, domain.ActivateOptions{SwitchBack: true})

	assert.Zero(t, gesture.switched)
}

func TestActivator_GestureErrorKeepsResult(t *testing.T) {
	pm := &mockProcessManager{running: map[int]bool{412: true}}
	gesture := &mockGesture{err: errors.New("accessibility denied")}
	a, _ := newTestActivator(pm, gesture, &mockBackend{name: "a", available: true})

	result := a.Activate(context.Background(), safari, domain.ActivateOptions{SwitchBack: true})

	assert.Equal(t, domain.ActivationActivated, result.Status)
	assert.NoError(t, result.Err)
	assert.Equal(t, 1, gesture.switched)
}

func TestWaitContext(t *testing.T) {
	assert.NoError(t, waitContext(context.Background(), time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, waitContext(ctx, time.Hour), context.Canceled)
}
