//go:build darwin

package infra

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/eliteGoblin/focusd/win_switch/internal/domain"
)

// windowListScript mirrors CGWindowListCopyWindowInfo(OnScreenOnly | ExcludeDesktopElements).
// The last expression is printed to stdout by osascript.
const windowListScript = `
ObjC.import('CoreGraphics');
var opts = $.kCGWindowListOptionOnScreenOnly | $.kCGWindowListExcludeDesktopElements;
var list = ObjC.deepUnwrap($.CGWindowListCopyWindowInfo(opts, $.kCGNullWindowID)) || [];
JSON.stringify(list.map(function (w) {
	return {owner: w.kCGWindowOwnerName || '', name: w.kCGWindowName || '', pid: w.kCGWindowOwnerPID || 0};
}));
`

const pointerScript = `
ObjC.import('CoreGraphics');
var p = $.CGEventGetLocation($.CGEventCreate(null));
JSON.stringify({x: Math.round(p.x), y: Math.round(p.y)});
`

// Cmd+Tab: key code 48 is Tab.
const previousAppScript = `
Application('System Events').keyCode(48, {using: 'command down'});
'ok';
`

func frontmostScript(app string) string {
	return fmt.Sprintf(`
var se = Application('System Events');
var procs = se.processes.whose({name: %s});
if (procs.length === 0) { throw new Error('process not found'); }
procs[0].frontmost = true;
'ok';
`, jsString(app))
}

// jsString quotes s as a JavaScript string literal.
func jsString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

func runJXAScript(ctx context.Context, runner CommandRunner, script string) ([]byte, error) {
	out, err := runner.Output(ctx, "osascript", "-l", "JavaScript", "-e", script)
	if err != nil {
		return out, fmt.Errorf("osascript failed: %w", err)
	}
	return out, nil
}

type cgWindow struct {
	Owner string `json:"owner"`
	Name  string `json:"name"`
	PID   int    `json:"pid"`
}

// parseWindowList converts the window list script output into handles.
// On macOS the handle ID is the owning app, which is what activation targets.
func parseWindowList(out []byte) ([]domain.WindowHandle, error) {
	var raw []cgWindow
	if err := json.Unmarshal([]byte(strings.TrimSpace(string(out))), &raw); err != nil {
		return nil, fmt.Errorf("failed to parse window list: %w", err)
	}

	windows := make([]domain.WindowHandle, 0, len(raw))
	for _, w := range raw {
		windows = append(windows, domain.WindowHandle{
			ID:    w.Owner,
			Title: w.Name,
			App:   w.Owner,
			PID:   w.PID,
		})
	}
	return windows, nil
}

func parsePoint(out []byte) (domain.Point, error) {
	var p domain.Point
	var raw struct {
		X int `json:"x"`
		Y int `json:"y"`
	}
	if err := json.Unmarshal([]byte(strings.TrimSpace(string(out))), &raw); err != nil {
		return p, fmt.Errorf("failed to parse pointer location: %w", err)
	}
	return domain.Point{X: raw.X, Y: raw.Y}, nil
}

var hidIdleTimeRE = regexp.MustCompile(`"HIDIdleTime"\s*=\s*(\d+)`)

// parseHIDIdleTime extracts HIDIdleTime (nanoseconds) from ioreg output.
func parseHIDIdleTime(out []byte) (time.Duration, error) {
	matches := hidIdleTimeRE.FindSubmatch(out)
	if len(matches) < 2 {
		return 0, fmt.Errorf("HIDIdleTime not found in ioreg output")
	}

	nanos, err := strconv.ParseInt(string(matches[1]), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse HIDIdleTime: %w", err)
	}
	return time.Duration(nanos), nil
}
