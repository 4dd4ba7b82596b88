package daemon

import (
	"context"
	"math/rand"
	"sync"
	"time"
)

// SleepFunc waits for d. It returns ctx.Err() early if ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// ContextSleep is the production SleepFunc.
func ContextSleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Jitter draws uniform delays from a seeded source.
type Jitter struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

// NewJitter creates a jitter source. Use a fixed seed in tests.
func NewJitter(seed int64) *Jitter {
	return &Jitter{rnd: rand.New(rand.NewSource(seed))}
}

// Between returns a uniform duration in [min, max], inclusive.
// It returns min when max <= min.
func (j *Jitter) Between(min, max time.Duration) time.Duration {
	if max <= min {
		return min
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	return min + time.Duration(j.rnd.Int63n(int64(max-min)+1))
}
