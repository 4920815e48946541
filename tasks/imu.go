package tasks

import (
	"context"

	"github.com/lunasat/fsw-core"
	"github.com/lunasat/fsw-core/internal/interfaces"
)

// IMUReading is one sample pulled off the inertial measurement unit.
type IMUReading struct {
	AccelX, AccelY, AccelZ float32
	GyroX, GyroY, GyroZ    float32
	MagX, MagY, MagZ       float32
}

// IMUSensor is the external collaborator this task depends on: the
// concrete driver (e.g. a BMX160 over I2C) is out of scope per spec.md
// §1, so only the interface it must satisfy is specified here, the way
// tasks/imu.py reached through `hal.pycubed.hardware` without owning it.
type IMUSensor interface {
	Read() (IMUReading, error)
}

// IMULogger is the slice of DataStore the IMU task needs: one named
// stream to append readings to.
type IMULogger interface {
	Log(tag string, values map[string]any) error
}

// IMU samples the inertial measurement unit once per activation and
// appends the reading to the DataStore under the "imu" tag, replacing
// tasks/imu.py's print-only body with an actual persisted record.
type IMU struct {
	fsw.Base
	sensor IMUSensor
	store  IMULogger
	tag    string
}

// NewIMU constructs an IMU collector task writing to tag in store.
func NewIMU(sensor IMUSensor, store IMULogger, tag string, logger interfaces.Logger, observer interfaces.Observer) *IMU {
	t := &IMU{Base: newBase(IDIMU, "IMU", logger, observer), sensor: sensor, store: store, tag: tag}
	t.MainTask = t.mainTask
	return t
}

func (t *IMU) mainTask(ctx context.Context) error {
	reading, err := t.sensor.Read()
	if err != nil {
		return fsw.WrapError("tasks.IMU", err)
	}

	record := map[string]any{
		"accel_x": reading.AccelX, "accel_y": reading.AccelY, "accel_z": reading.AccelZ,
		"gyro_x": reading.GyroX, "gyro_y": reading.GyroY, "gyro_z": reading.GyroZ,
		"mag_x": reading.MagX, "mag_y": reading.MagY, "mag_z": reading.MagZ,
	}
	if err := t.store.Log(t.tag, record); err != nil {
		return fsw.WrapError("tasks.IMU", err)
	}
	return nil
}

var _ fsw.Task = (*IMU)(nil)
