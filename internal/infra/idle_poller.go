package infra

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/win_switch/internal/domain"
)

// DefaultIdlePollInterval is how often idle-counter taps sample the OS.
const DefaultIdlePollInterval = 250 * time.Millisecond

// DefaultIdleSampleFailures is how many samples in a row may fail before
// the tap stops and reports itself through Err.
const DefaultIdleSampleFailures = 8

// IdleSampler returns the time since the last user input as reported by the OS.
type IdleSampler func(ctx context.Context) (time.Duration, error)

// idleCounterTap turns an OS idle counter into keystroke callbacks.
// Input happened since the previous sample iff the counter is now smaller
// than the wall time elapsed since that sample.
type idleCounterTap struct {
	name        string
	interval    time.Duration
	maxFailures int
	sample      IdleSampler
	logger      *zap.Logger
	now         func() time.Time

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
	err    error
}

func newIdleCounterTap(name string, sample IdleSampler, logger *zap.Logger) *idleCounterTap {
	return &idleCounterTap{
		name:        name,
		interval:    DefaultIdlePollInterval,
		maxFailures: DefaultIdleSampleFailures,
		sample:      sample,
		logger:      logger,
		now:         time.Now,
	}
}

func (t *idleCounterTap) Name() string { return t.name }

// Start takes a first sample synchronously so an unusable counter is
// reported as ErrInputTapUnavailable instead of silently never firing.
func (t *idleCounterTap) Start(ctx context.Context, onKey func(time.Time)) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cancel != nil {
		if t.err == nil {
			return nil
		}
		t.cancel()
		<-t.done
		t.cancel, t.done = nil, nil
	}
	t.err = nil

	if _, err := t.sample(ctx); err != nil {
		return fmt.Errorf("%s: %w: %v", t.name, domain.ErrInputTapUnavailable, err)
	}

	ctx, cancel := context.WithCancel(ctx)
	t.cancel = cancel
	t.done = make(chan struct{})
	go t.loop(ctx, onKey, t.done)
	return nil
}

func (t *idleCounterTap) loop(ctx context.Context, onKey func(time.Time), done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	lastSample := t.now()
	failures := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			idle, err := t.sample(ctx)
			now := t.now()
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				failures++
				if failures == 1 {
					t.logger.Warn("idle counter sample failed", zap.String("tap", t.name), zap.Error(err))
				}
				if failures >= t.maxFailures {
					t.mu.Lock()
					t.err = fmt.Errorf("%s: %w: %d samples failed in a row: %v",
						t.name, domain.ErrInputTapUnavailable, failures, err)
					t.mu.Unlock()
					return
				}
				continue
			}
			if failures > 0 {
				t.logger.Info("idle counter recovered", zap.String("tap", t.name), zap.Int("failed_samples", failures))
				failures = 0
			}
			if idle < now.Sub(lastSample) {
				onKey(now.Add(-idle))
			}
			lastSample = now
		}
	}
}

func (t *idleCounterTap) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}

func (t *idleCounterTap) Stop() error {
	t.mu.Lock()
	cancel, done := t.cancel, t.done
	t.cancel, t.done = nil, nil
	t.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
	return nil
}

var _ domain.KeyTap = (*idleCounterTap)(nil)
