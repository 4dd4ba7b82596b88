package infra

import (
	"os"
	"os/user"
	"path/filepath"
	"runtime"
)

const (
	// AppName is the binary and data directory name.
	AppName = "winswitch"

	// LaunchAgentLabel identifies the macOS login item.
	LaunchAgentLabel = "com.focusd.winswitch"
)

// Paths holds every per-user location winswitch reads or writes.
type Paths struct {
	DataDir       string // ~/.winswitch
	ConfigPath    string // Default config file
	LogPath       string // zap output
	ErrorLogPath  string // zap error output
	LockPath      string // Single-instance lock and PID record
	AutostartDir  string // LaunchAgents or XDG autostart directory
	AutostartPath string // Full path to the autostart file
}

// DefaultPaths resolves paths for the current user and OS.
func DefaultPaths() *Paths {
	return PathsForHome(GetRealUserHome(), runtime.GOOS)
}

// PathsForHome resolves paths under home for goos (for testing).
func PathsForHome(home, goos string) *Paths {
	dataDir := filepath.Join(home, "."+AppName)
	p := &Paths{
		DataDir:      dataDir,
		ConfigPath:   filepath.Join(dataDir, "config.json"),
		LogPath:      filepath.Join(dataDir, AppName+".log"),
		ErrorLogPath: filepath.Join(dataDir, AppName+".error.log"),
		LockPath:     filepath.Join(dataDir, AppName+".pid.lock"),
	}

	switch goos {
	case "darwin":
		p.AutostartDir = filepath.Join(home, "Library", "LaunchAgents")
		p.AutostartPath = filepath.Join(p.AutostartDir, LaunchAgentLabel+".plist")
	default:
		configHome := os.Getenv("XDG_CONFIG_HOME")
		if configHome == "" || !filepath.IsAbs(configHome) {
			configHome = filepath.Join(home, ".config")
		}
		p.AutostartDir = filepath.Join(configHome, "autostart")
		p.AutostartPath = filepath.Join(p.AutostartDir, AppName+".desktop")
	}
	return p
}

// GetRealUserHome returns the real user's home directory, even when running under sudo.
// Under sudo, os.UserHomeDir() returns root's home, so we use SUDO_USER to find the real user.
func GetRealUserHome() string {
	if sudoUser := os.Getenv("SUDO_USER"); sudoUser != "" {
		if u, err := user.Lookup(sudoUser); err == nil {
			return u.HomeDir
		}
	}
	home, _ := os.UserHomeDir()
	return home
}
