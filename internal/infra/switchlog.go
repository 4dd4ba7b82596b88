package infra

import (
	"fmt"
	"os"
	"syscall"

	"github.com/eliteGoblin/focusd/win_switch/internal/domain"
)

// switchLogTimeFormat is the local-time prefix of every log line.
const switchLogTimeFormat = "2006-01-02 15:04:05"

// FileSwitchLogger implements domain.SwitchLogger as an append-only text file.
type FileSwitchLogger struct {
	path string
	fs   domain.FileSystemManager
}

// NewFileSwitchLogger creates a logger writing to path (may use ~).
func NewFileSwitchLogger(path string, fs domain.FileSystemManager) *FileSwitchLogger {
	return &FileSwitchLogger{
		path: fs.ExpandHome(path),
		fs:   fs,
	}
}

// Path returns the expanded log file path.
func (l *FileSwitchLogger) Path() string {
	return l.path
}

// FormatSwitchLine renders one log line, without the trailing newline.
func FormatSwitchLine(record domain.SwitchRecord) string {
	return fmt.Sprintf("%s - Switched to: %s", record.Timestamp.Local().Format(switchLogTimeFormat), record.Title)
}

// Append writes one line for an activated record. Other outcomes are ignored.
func (l *FileSwitchLogger) Append(record domain.SwitchRecord) error {
	if record.Outcome != domain.OutcomeActivated {
		return nil
	}

	if err := l.fs.EnsureDir(l.path); err != nil {
		return fmt.Errorf("failed to create log dir: %w", err)
	}

	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open switch log: %w", err)
	}
	defer f.Close()

	// Another winswitch (or an editor) may be appending too
	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX); err != nil {
		return fmt.Errorf("failed to lock switch log: %w", err)
	}
	defer func() { _ = syscall.Flock(int(f.Fd()), syscall.LOCK_UN) }()

	if _, err := f.WriteString(FormatSwitchLine(record) + "\n"); err != nil {
		return fmt.Errorf("failed to write switch log: %w", err)
	}
	return nil
}

// Ensure FileSwitchLogger implements domain.SwitchLogger.
var _ domain.SwitchLogger = (*FileSwitchLogger)(nil)
