package tasks

import (
	"context"
	"runtime"

	"github.com/lunasat/fsw-core"
	"github.com/lunasat/fsw-core/internal/interfaces"
)

// Monitor reports coarse liveness of the flight computer: goroutine
// count and heap usage, logged at its configured cadence. It is the Go
// rendition of tasks/monitor.py's "I am supposed to monitor the system"
// placeholder, given an actual (if still minimal) body.
type Monitor struct {
	fsw.Base
}

// NewMonitor constructs a Monitor task.
func NewMonitor(logger interfaces.Logger, observer interfaces.Observer) *Monitor {
	m := &Monitor{Base: newBase(IDMonitor, "MONITOR", logger, observer)}
	m.MainTask = m.mainTask
	return m
}

func (m *Monitor) mainTask(ctx context.Context) error {
	var stats runtime.MemStats
	runtime.ReadMemStats(&stats)
	if m.Logger != nil {
		m.Logger.Debug("monitor heartbeat", "goroutines", runtime.NumGoroutine(), "heap_bytes", stats.HeapAlloc)
	}
	return nil
}

var _ fsw.Task = (*Monitor)(nil)
