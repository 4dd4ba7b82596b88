package infra

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"
)

// AutostartKind selects the login-item format.
type AutostartKind string

const (
	// AutostartLaunchAgent is a per-user launchd plist (macOS).
	AutostartLaunchAgent AutostartKind = "launchagent"
	// AutostartXDG is a freedesktop autostart .desktop entry (Linux).
	AutostartXDG AutostartKind = "xdg"
)

// LaunchAgent plist template (runs as user at login)
const launchAgentTemplate = `<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE plist PUBLIC "-//Apple//DTD PLIST 1.0//EN" "http://www.apple.com/DTDs/PropertyList-1.0.dtd">
<plist version="1.0">
<dict>
    <key>Label</key>
    <string>{{xml .Label}}</string>

    <key>ProgramArguments</key>
    <array>
        <string>{{xml .ExecutablePath}}</string>
        <string>--config</string>
        <string>{{xml .ConfigPath}}</string>
    </array>

    <key>RunAtLoad</key>
    <true/>

    <key>KeepAlive</key>
    <dict>
        <key>Crashed</key>
        <true/>
    </dict>

    <key>StandardOutPath</key>
    <string>{{xml .LogPath}}</string>

    <key>StandardErrorPath</key>
    <string>{{xml .ErrorLogPath}}</string>

    <key>ProcessType</key>
    <string>Interactive</string>

    <key>ThrottleInterval</key>
    <integer>10</integer>
</dict>
</plist>
`

// XDG autostart entry template
const desktopEntryTemplate = `[Desktop Entry]
Type=Application
Name={{.Label}}
Comment=Idle-aware window activation scheduler
Exec={{quote .ExecutablePath}} --config {{quote .ConfigPath}}
Terminal=false
NoDisplay=true
X-GNOME-Autostart-enabled=true
`

type autostartConfig struct {
	Label          string
	ExecutablePath string
	ConfigPath     string
	LogPath        string
	ErrorLogPath   string
}

var autostartFuncs = template.FuncMap{
	"xml":   xmlEscape,
	"quote": desktopQuote,
}

// AutostartManager installs winswitch as a login item.
type AutostartManager struct {
	kind   AutostartKind
	paths  *Paths
	runner CommandRunner
}

// NewAutostartManager creates a manager for the given kind.
func NewAutostartManager(kind AutostartKind, paths *Paths, runner CommandRunner) *AutostartManager {
	return &AutostartManager{kind: kind, paths: paths, runner: runner}
}

// Path returns the autostart file location.
func (m *AutostartManager) Path() string {
	return m.paths.AutostartPath
}

// generateContent renders the autostart file for execPath.
func (m *AutostartManager) generateContent(execPath, configPath string) ([]byte, error) {
	tmplStr := desktopEntryTemplate
	label := AppName
	if m.kind == AutostartLaunchAgent {
		tmplStr = launchAgentTemplate
		label = LaunchAgentLabel
	}

	config := autostartConfig{
		Label:          label,
		ExecutablePath: execPath,
		ConfigPath:     configPath,
		LogPath:        m.paths.LogPath,
		ErrorLogPath:   m.paths.ErrorLogPath,
	}

	tmpl, err := template.New(string(m.kind)).Funcs(autostartFuncs).Parse(tmplStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse autostart template: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, config); err != nil {
		return nil, fmt.Errorf("failed to execute autostart template: %w", err)
	}

	return buf.Bytes(), nil
}

// Install writes the autostart file and, for launchd, loads it.
func (m *AutostartManager) Install(ctx context.Context, execPath, configPath string) error {
	if err := os.MkdirAll(m.paths.AutostartDir, 0755); err != nil {
		return err
	}

	content, err := m.generateContent(execPath, configPath)
	if err != nil {
		return fmt.Errorf("failed to generate autostart content: %w", err)
	}

	if m.kind == AutostartLaunchAgent {
		_ = m.runner.Run(ctx, "launchctl", "unload", m.Path()) // Ignore: may not be loaded
	}

	if err := os.WriteFile(m.Path(), content, 0644); err != nil {
		return err
	}

	if m.kind == AutostartLaunchAgent {
		return m.runner.Run(ctx, "launchctl", "load", m.Path())
	}
	return nil
}

// Uninstall unloads (launchd) and removes the autostart file.
func (m *AutostartManager) Uninstall(ctx context.Context) error {
	if !m.IsInstalled() {
		return nil
	}
	if m.kind == AutostartLaunchAgent {
		_ = m.runner.Run(ctx, "launchctl", "unload", m.Path())
	}
	return os.Remove(m.Path())
}

// IsInstalled checks if the autostart file exists.
func (m *AutostartManager) IsInstalled() bool {
	_, err := os.Stat(m.Path())
	return err == nil
}

// NeedsUpdate checks if the file exists but differs from what Install would write.
func (m *AutostartManager) NeedsUpdate(execPath, configPath string) bool {
	if !m.IsInstalled() {
		return false // Doesn't exist, needs install not update
	}

	current, err := os.ReadFile(m.Path())
	if err != nil {
		return true
	}

	expected, err := m.generateContent(execPath, configPath)
	if err != nil {
		return true
	}

	return !bytes.Equal(current, expected)
}

// ResolveExecutable returns the absolute path of the running binary.
func ResolveExecutable() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", err
	}
	if resolved, err := filepath.EvalSymlinks(exe); err == nil {
		exe = resolved
	}
	return exe, nil
}

func xmlEscape(s string) string {
	var buf bytes.Buffer
	_ = xml.EscapeText(&buf, []byte(s))
	return buf.String()
}

// desktopQuote quotes an Exec argument per the desktop entry rules.
func desktopQuote(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`, "`", "\\`", `$`, `\$`)
	return `"` + r.Replace(s) + `"`
}
