//go:build darwin

package infra

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eliteGoblin/focusd/win_switch/internal/domain"
)

func TestParseWindowList(t *testing.T) {
	out := []byte(`[{"owner":"Safari","name":"Apple","pid":412},{"owner":"Dock","name":"","pid":98}]` + "\n")

	windows, err := parseWindowList(out)

	require.NoError(t, err)
	require.Len(t, windows, 2)
	assert.Equal(t, domain.WindowHandle{ID: "Safari", Title: "Apple", App: "Safari", PID: 412}, windows[0])
	assert.Empty(t, windows[1].Title)
}

func TestParseWindowList_Garbage(t *testing.T) {
	_, err := parseWindowList([]byte("execution error: -1743"))
	assert.Error(t, err)
}

func TestParseHIDIdleTime(t *testing.T) {
	out := []byte(`    | |   "HIDIdleTime" = 1500000000` + "\n")

	idle, err := parseHIDIdleTime(out)

	require.NoError(t, err)
	assert.Equal(t, 1500*time.Millisecond, idle)

	_, err = parseHIDIdleTime([]byte("nothing here"))
	assert.Error(t, err)
}

func TestParsePoint(t *testing.T) {
	p, err := parsePoint([]byte(`{"x":640,"y":-12}`))
	require.NoError(t, err)
	assert.Equal(t, domain.Point{X: 640, Y: -12}, p)
}

func TestFrontmostScript_QuotesAppName(t *testing.T) {
	script := frontmostScript(`Bob's "App"`)
	assert.Contains(t, script, `"Bob's \"App\""`)
}

func TestSystemEventsBackend_UsesOsascript(t *testing.T) {
	runner := newMockCommandRunner()
	runner.available["osascript"] = true
	backend := &systemEventsBackend{runner: runner}

	require.True(t, backend.Available())
	require.NoError(t, backend.Activate(context.Background(), domain.WindowHandle{Title: "Inbox", App: "Mail"}))

	calls := runner.Calls()
	require.Len(t, calls, 1)
	assert.True(t, strings.HasPrefix(calls[0], "osascript -l JavaScript -e"))
	assert.Contains(t, calls[0], `"Mail"`)
}

func TestSystemEventsBackend_ErrorPropagates(t *testing.T) {
	runner := newMockCommandRunner()
	runner.errors["osascript"] = errors.New("not authorized")
	backend := &systemEventsBackend{runner: runner}

	assert.Error(t, backend.Activate(context.Background(), domain.WindowHandle{App: "Mail"}))
}

func TestActivationTarget_FallsBackToTitle(t *testing.T) {
	assert.Equal(t, "Mail", activationTarget(domain.WindowHandle{Title: "Inbox", App: "Mail"}))
	assert.Equal(t, "Notes", activationTarget(domain.WindowHandle{Title: "Notes"}))
}
