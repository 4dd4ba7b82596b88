package infra

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
)

// mockProcessManager is a test double for ProcessManager
type mockProcessManager struct {
	runningPIDs map[int]bool
	byName      map[string][]int
}

func newMockProcessManager() *mockProcessManager {
	return &mockProcessManager{
		runningPIDs: make(map[int]bool),
		byName:      make(map[string][]int),
	}
}

func (m *mockProcessManager) FindByName(name string) ([]int, error) {
	return m.byName[strings.ToLower(name)], nil
}

func (m *mockProcessManager) IsRunning(pid int) bool {
	return m.runningPIDs[pid]
}

func (m *mockProcessManager) GetCurrentPID() int {
	return os.Getpid()
}

func (m *mockProcessManager) SetRunning(pid int, running bool) {
	m.runningPIDs[pid] = running
}

// mockCommandRunner records invocations and returns canned results
type mockCommandRunner struct {
	mu        sync.Mutex
	calls     []string
	outputs   map[string][]byte // keyed by command name
	errors    map[string]error
	available map[string]bool
}

func newMockCommandRunner() *mockCommandRunner {
	return &mockCommandRunner{
		outputs:   make(map[string][]byte),
		errors:    make(map[string]error),
		available: make(map[string]bool),
	}
}

func (m *mockCommandRunner) Run(ctx context.Context, name string, args ...string) error {
	_, err := m.Output(ctx, name, args...)
	return err
}

func (m *mockCommandRunner) Output(_ context.Context, name string, args ...string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, strings.TrimSpace(fmt.Sprintf("%s %s", name, strings.Join(args, " "))))
	return m.outputs[name], m.errors[name]
}

func (m *mockCommandRunner) LookPath(name string) bool {
	return m.available[name]
}

func (m *mockCommandRunner) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}
