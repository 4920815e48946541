package fsw

import (
	"context"
	"sync"
	"time"

	"github.com/lunasat/fsw-core/internal/interfaces"
)

// MockClock is a controllable interfaces.Clock for deterministic scheduler
// tests: Now() never advances except by an explicit call to Advance, and
// timers fire in response to Advance rather than wall-clock time.
type MockClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*mockTimer
}

// NewMockClock creates a MockClock starting at the given time.
func NewMockClock(start time.Time) *MockClock {
	return &MockClock{now: start}
}

func (c *MockClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d, firing any timer whose deadline
// falls at or before the new time.
func (c *MockClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	now := c.now
	var fire []*mockTimer
	remaining := c.timers[:0]
	for _, t := range c.timers {
		if !t.stopped && !t.due.After(now) {
			fire = append(fire, t)
		} else {
			remaining = append(remaining, t)
		}
	}
	c.timers = remaining
	c.mu.Unlock()

	for _, t := range fire {
		t.ch <- now
	}
}

func (c *MockClock) NewTimer(d time.Duration) interfaces.Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &mockTimer{ch: make(chan time.Time, 1), due: c.now.Add(d)}
	c.timers = append(c.timers, t)
	return t
}

type mockTimer struct {
	ch      chan time.Time
	due     time.Time
	stopped bool
}

func (t *mockTimer) C() <-chan time.Time { return t.ch }

func (t *mockTimer) Stop() bool {
	wasRunning := !t.stopped
	t.stopped = true
	return wasRunning
}

func (t *mockTimer) Reset(d time.Duration) bool {
	wasRunning := !t.stopped
	t.stopped = false
	return wasRunning
}

// MockTask is a fault-injectable Task for scheduler and state manager
// tests. It records how many times Run was called.
type MockTask struct {
	TaskID      uint8
	TaskName    string
	RunFunc     func(ctx context.Context) error
	mu          sync.Mutex
	runCount    int
	lastErr     error
}

func (m *MockTask) ID() uint8     { return m.TaskID }
func (m *MockTask) Name() string  { return m.TaskName }

func (m *MockTask) Run(ctx context.Context) {
	m.mu.Lock()
	m.runCount++
	m.mu.Unlock()

	if m.RunFunc == nil {
		return
	}
	err := m.RunFunc(ctx)
	m.mu.Lock()
	m.lastErr = err
	m.mu.Unlock()
}

// RunCount returns how many times Run has been called.
func (m *MockTask) RunCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.runCount
}

// LastErr returns the error the most recent RunFunc call returned.
func (m *MockTask) LastErr() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastErr
}

var (
	_ interfaces.Clock = (*MockClock)(nil)
	_ interfaces.Timer = (*mockTimer)(nil)
	_ Task             = (*MockTask)(nil)
)
