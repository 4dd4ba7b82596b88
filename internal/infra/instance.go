package infra

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/eliteGoblin/focusd/win_switch/internal/domain"
)

// ErrAlreadyRunning means another winswitch process holds the instance lock.
var ErrAlreadyRunning = errors.New("another instance is already running")

// InstanceRecord is the PID record written next to the lock file.
type InstanceRecord struct {
	PID       int       `json:"pid"`
	StartedAt time.Time `json:"started_at"`
	Version   string    `json:"version"`
}

// InstanceLock guarantees a single running scheduler per user.
// The flock is held on lockPath for the life of the process; the JSON
// record lives beside it so it can be replaced atomically without
// dropping the lock.
type InstanceLock struct {
	lockPath       string
	recordPath     string
	processManager domain.ProcessManager
	lockFile       *os.File
}

// NewInstanceLock creates a lock at lockPath (e.g. ~/.winswitch/winswitch.pid.lock).
func NewInstanceLock(lockPath string, pm domain.ProcessManager) *InstanceLock {
	return &InstanceLock{
		lockPath:       lockPath,
		recordPath:     strings.TrimSuffix(lockPath, ".lock"),
		processManager: pm,
	}
}

// RecordPath returns the PID record path.
func (l *InstanceLock) RecordPath() string {
	return l.recordPath
}

// Acquire takes the lock without blocking and writes the current PID record.
// It returns the previous record when that process is no longer running.
func (l *InstanceLock) Acquire(version string) (*InstanceRecord, error) {
	if err := os.MkdirAll(filepath.Dir(l.lockPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create lock dir: %w", err)
	}

	lockFile, err := os.OpenFile(l.lockPath, os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to open lock file: %w", err)
	}

	if err := syscall.Flock(int(lockFile.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		lockFile.Close()
		if errors.Is(err, syscall.EWOULDBLOCK) {
			if holder, _ := l.Read(); holder != nil {
				return nil, fmt.Errorf("%w (pid %d)", ErrAlreadyRunning, holder.PID)
			}
			return nil, ErrAlreadyRunning
		}
		return nil, fmt.Errorf("failed to acquire lock: %w", err)
	}
	l.lockFile = lockFile

	var stale *InstanceRecord
	if prev, _ := l.Read(); prev != nil && !l.processManager.IsRunning(prev.PID) {
		stale = prev
	}

	record := &InstanceRecord{
		PID:       l.processManager.GetCurrentPID(),
		StartedAt: time.Now(),
		Version:   version,
	}
	if err := l.atomicWrite(record); err != nil {
		l.Release()
		return nil, err
	}
	return stale, nil
}

// Read returns the current PID record, or nil if none exists.
func (l *InstanceLock) Read() (*InstanceRecord, error) {
	data, err := os.ReadFile(l.recordPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var record InstanceRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, err
	}
	return &record, nil
}

// Release removes the record and drops the lock. Safe to call more than once.
func (l *InstanceLock) Release() error {
	if l.lockFile == nil {
		return nil
	}
	os.Remove(l.recordPath)
	_ = syscall.Flock(int(l.lockFile.Fd()), syscall.LOCK_UN)
	err := l.lockFile.Close()
	l.lockFile = nil
	return err
}

// atomicWrite writes the record to file atomically (write + rename).
func (l *InstanceLock) atomicWrite(record *InstanceRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return err
	}

	tmpPath := fmt.Sprintf("%s.%d.tmp", l.recordPath, os.Getpid())
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return err
	}

	if err := os.Rename(tmpPath, l.recordPath); err != nil {
		os.Remove(tmpPath) // Clean up on failure
		return err
	}
	return nil
}
