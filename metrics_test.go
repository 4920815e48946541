package fsw

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMetricsSnapshot(t *testing.T) {
	m := NewMetrics()
	m.RecordDispatch("MONITOR", 1_000_000)
	m.RecordDispatch("MONITOR", 3_000_000)
	m.RecordOverrun("MONITOR")
	m.RecordTaskError("IMU")
	m.RecordTransition()

	snap := m.Snapshot()
	assert.Equal(t, uint64(2), snap.DispatchCount)
	assert.Equal(t, uint64(1), snap.OverrunCount)
	assert.Equal(t, uint64(1), snap.TaskErrorCount)
	assert.Equal(t, uint64(1), snap.Transitions)
	assert.Equal(t, uint64(2_000_000), snap.AvgLatencyNs)

	var monitor, imu TaskSnapshot
	for _, ts := range snap.PerTask {
		switch ts.Name {
		case "MONITOR":
			monitor = ts
		case "IMU":
			imu = ts
		}
	}
	assert.Equal(t, uint64(2), monitor.Dispatches)
	assert.Equal(t, uint64(1), monitor.Overruns)
	assert.Equal(t, uint64(1), imu.Errors)
}

func TestMetricsObserverRecordsTaskError(t *testing.T) {
	m := NewMetrics()
	obs := NewMetricsObserver(m)
	obs.ObserveTaskError("OBDH", errors.New("disk full"))

	assert.Equal(t, uint64(1), m.Snapshot().TaskErrorCount)
}

func TestNoOpObserverDoesNothing(t *testing.T) {
	var obs NoOpObserver
	obs.ObserveDispatch("x", 1)
	obs.ObserveOverrun("x")
	obs.ObserveTaskError("x", nil)
	obs.ObserveModeTransition("a", "b")
}
