package fsw

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/lunasat/fsw-core/internal/interfaces"
)

// Metrics tracks scheduler and task dispatch statistics.
type Metrics struct {
	DispatchCount  atomic.Uint64 // total dispatches across all tasks
	OverrunCount   atomic.Uint64 // dispatches after which next_due+period had already passed
	TaskErrorCount atomic.Uint64 // MainTask calls that returned an error
	Transitions    atomic.Uint64 // StateManager mode switches

	TotalLatencyNs atomic.Uint64
	StartTime      atomic.Int64

	mu       sync.Mutex
	perTask  map[string]*taskCounters
}

type taskCounters struct {
	dispatches atomic.Uint64
	overruns   atomic.Uint64
	errors     atomic.Uint64
}

// NewMetrics creates a new metrics instance.
func NewMetrics() *Metrics {
	m := &Metrics{perTask: make(map[string]*taskCounters)}
	m.StartTime.Store(time.Now().UnixNano())
	return m
}

func (m *Metrics) counters(taskName string) *taskCounters {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.perTask[taskName]
	if !ok {
		c = &taskCounters{}
		m.perTask[taskName] = c
	}
	return c
}

// RecordDispatch records one task dispatch and its execution latency.
func (m *Metrics) RecordDispatch(taskName string, latencyNs uint64) {
	m.DispatchCount.Add(1)
	m.TotalLatencyNs.Add(latencyNs)
	m.counters(taskName).dispatches.Add(1)
}

// RecordOverrun records a task that fell behind its cadence: after its
// run, next_due+period was already in the past, so the scheduler
// resynchronised it to now.
func (m *Metrics) RecordOverrun(taskName string) {
	m.OverrunCount.Add(1)
	m.counters(taskName).overruns.Add(1)
}

// RecordTaskError records a MainTask call returning an error.
func (m *Metrics) RecordTaskError(taskName string) {
	m.TaskErrorCount.Add(1)
	m.counters(taskName).errors.Add(1)
}

// RecordTransition records a StateManager mode switch.
func (m *Metrics) RecordTransition() {
	m.Transitions.Add(1)
}

// TaskSnapshot is a point-in-time view of one task's counters.
type TaskSnapshot struct {
	Name       string
	Dispatches uint64
	Overruns   uint64
	Errors     uint64
}

// MetricsSnapshot is a point-in-time view of all counters.
type MetricsSnapshot struct {
	DispatchCount  uint64
	OverrunCount   uint64
	TaskErrorCount uint64
	Transitions    uint64
	AvgLatencyNs   uint64
	UptimeNs       uint64
	PerTask        []TaskSnapshot
}

// Snapshot returns a consistent copy of the current counters.
func (m *Metrics) Snapshot() MetricsSnapshot {
	snap := MetricsSnapshot{
		DispatchCount:  m.DispatchCount.Load(),
		OverrunCount:   m.OverrunCount.Load(),
		TaskErrorCount: m.TaskErrorCount.Load(),
		Transitions:    m.Transitions.Load(),
		UptimeNs:       uint64(time.Now().UnixNano() - m.StartTime.Load()),
	}
	if snap.DispatchCount > 0 {
		snap.AvgLatencyNs = m.TotalLatencyNs.Load() / snap.DispatchCount
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for name, c := range m.perTask {
		snap.PerTask = append(snap.PerTask, TaskSnapshot{
			Name:       name,
			Dispatches: c.dispatches.Load(),
			Overruns:   c.overruns.Load(),
			Errors:     c.errors.Load(),
		})
	}
	return snap
}

// NoOpObserver discards all events.
type NoOpObserver struct{}

func (NoOpObserver) ObserveDispatch(string, uint64)       {}
func (NoOpObserver) ObserveOverrun(string)                {}
func (NoOpObserver) ObserveTaskError(string, error)       {}
func (NoOpObserver) ObserveModeTransition(string, string) {}

// MetricsObserver implements interfaces.Observer by recording into a Metrics.
type MetricsObserver struct {
	metrics *Metrics
}

// NewMetricsObserver creates an observer that records to the given metrics.
func NewMetricsObserver(m *Metrics) *MetricsObserver {
	return &MetricsObserver{metrics: m}
}

func (o *MetricsObserver) ObserveDispatch(taskName string, latencyNs uint64) {
	o.metrics.RecordDispatch(taskName, latencyNs)
}

func (o *MetricsObserver) ObserveOverrun(taskName string) {
	o.metrics.RecordOverrun(taskName)
}

func (o *MetricsObserver) ObserveTaskError(taskName string, _ error) {
	o.metrics.RecordTaskError(taskName)
}

func (o *MetricsObserver) ObserveModeTransition(string, string) {
	o.metrics.RecordTransition()
}

var (
	_ interfaces.Observer = (*MetricsObserver)(nil)
	_ interfaces.Observer = (*NoOpObserver)(nil)
)
