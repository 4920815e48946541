package tasks

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeIMUSensor struct {
	reading IMUReading
	err     error
}

func (f *fakeIMUSensor) Read() (IMUReading, error) { return f.reading, f.err }

type fakeIMULogger struct {
	tag    string
	values map[string]any
	err    error
}

func (f *fakeIMULogger) Log(tag string, values map[string]any) error {
	f.tag, f.values = tag, values
	return f.err
}

func TestIMULogsEachReading(t *testing.T) {
	sensor := &fakeIMUSensor{reading: IMUReading{AccelX: 1, GyroY: 2, MagZ: 3}}
	store := &fakeIMULogger{}
	imu := NewIMU(sensor, store, "imu", nil, nil)

	imu.Run(context.Background())

	assert.Equal(t, "imu", store.tag)
	assert.Equal(t, float32(1), store.values["accel_x"])
	assert.Equal(t, float32(2), store.values["gyro_y"])
	assert.Equal(t, float32(3), store.values["mag_z"])
}

func TestIMUPropagatesSensorError(t *testing.T) {
	sensor := &fakeIMUSensor{err: assertErr("sensor offline")}
	store := &fakeIMULogger{}
	imu := NewIMU(sensor, store, "imu", nil, nil)

	err := imu.MainTask(context.Background())
	require.Error(t, err)
	assert.Nil(t, store.values)
}

type assertErr string

func (e assertErr) Error() string { return string(e) }
