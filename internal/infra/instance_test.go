package infra

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInstanceLock_AcquireWritesRecord(t *testing.T) {
	lockPath := filepath.Join(t.TempDir(), ".winswitch", "winswitch.pid.lock")
	lock := NewInstanceLock(lockPath, newMockProcessManager())

	stale, err := lock.Acquire("1.2.3")
	require.NoError(t, err)
	defer lock.Release()

	assert.Nil(t, stale)
	record, err := lock.Read()
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.Equal(t, os.Getpid(), record.PID)
	assert.Equal(t, "1.2.3", record.Version)
	assert.WithinDuration(t, time.Now(), record.StartedAt, 5*time.Second)
	assert.Equal(t, filepath.Join(filepath.Dir(lockPath), "winswitch.pid"), lock.RecordPath())
}

func TestInstanceLock_SecondAcquireFails(t *testing.T) {
	lockPath := filepath.Join(t.TempDir(), "winswitch.pid.lock")
	pm := newMockProcessManager()

	first := NewInstanceLock(lockPath, pm)
	_, err := first.Acquire("dev")
	require.NoError(t, err)
	defer first.Release()

	second := NewInstanceLock(lockPath, pm)
	_, err = second.Acquire("dev")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAlreadyRunning)
}

func TestInstanceLock_ReacquireAfterRelease(t *testing.T) {
	lockPath := filepath.Join(t.TempDir(), "winswitch.pid.lock")
	pm := newMockProcessManager()

	first := NewInstanceLock(lockPath, pm)
	_, err := first.Acquire("dev")
	require.NoError(t, err)
	require.NoError(t, first.Release())
	require.NoError(t, first.Release(), "release is idempotent")

	second := NewInstanceLock(lockPath, pm)
	_, err = second.Acquire("dev")
	require.NoError(t, err)
	defer second.Release()
}

func TestInstanceLock_StaleRecordReported(t *testing.T) {
	dir := t.TempDir()
	lockPath := filepath.Join(dir, "winswitch.pid.lock")
	pm := newMockProcessManager()

	// A crashed process left its record behind without holding the lock
	data, _ := json.Marshal(InstanceRecord{PID: 99999, Version: "old"})
	require.NoError(t, os.WriteFile(filepath.Join(dir, "winswitch.pid"), data, 0600))

	lock := NewInstanceLock(lockPath, pm)
	stale, err := lock.Acquire("new")
	require.NoError(t, err)
	defer lock.Release()

	require.NotNil(t, stale)
	assert.Equal(t, 99999, stale.PID)
	assert.Equal(t, "old", stale.Version)

	record, _ := lock.Read()
	assert.Equal(t, "new", record.Version)
}

func TestInstanceLock_LiveRecordNotStale(t *testing.T) {
	dir := t.TempDir()
	lockPath := filepath.Join(dir, "winswitch.pid.lock")
	pm := newMockProcessManager()
	pm.SetRunning(4242, true)

	data, _ := json.Marshal(InstanceRecord{PID: 4242})
	require.NoError(t, os.WriteFile(filepath.Join(dir, "winswitch.pid"), data, 0600))

	lock := NewInstanceLock(lockPath, pm)
	stale, err := lock.Acquire("dev")
	require.NoError(t, err)
	defer lock.Release()

	assert.Nil(t, stale)
}

func TestInstanceLock_ReleaseRemovesRecord(t *testing.T) {
	lockPath := filepath.Join(t.TempDir(), "winswitch.pid.lock")
	lock := NewInstanceLock(lockPath, newMockProcessManager())

	_, err := lock.Acquire("dev")
	require.NoError(t, err)
	require.NoError(t, lock.Release())

	_, err = os.Stat(lock.RecordPath())
	assert.True(t, os.IsNotExist(err))
}
