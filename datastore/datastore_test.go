package datastore

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *DataStore {
	t.Helper()
	fs := afero.NewMemMapFs()
	ds := New(fs, "/sd", nil)
	require.NoError(t, ds.Scan())
	return ds
}

func TestDataStoreLogAndGetLatest(t *testing.T) {
	ds := newTestStore(t)
	require.NoError(t, ds.Register("TEMP", "value:f", 1000, true))

	require.NoError(t, ds.Log("TEMP", map[string]any{"value": float32(20.5)}))
	require.NoError(t, ds.Log("TEMP", map[string]any{"value": float32(21.0)}))

	latest, err := ds.GetLatest("TEMP")
	require.NoError(t, err)
	assert.Equal(t, float32(21.0), latest["value"])
}

func TestGetLatestReturnsNilBeforeFirstLog(t *testing.T) {
	ds := newTestStore(t)
	require.NoError(t, ds.Register("TEMP", "value:f", 1000, true))

	latest, err := ds.GetLatest("TEMP")
	require.NoError(t, err)
	assert.Nil(t, latest)
}

func TestDataProcessRotatesAtSizeLimit(t *testing.T) {
	fs := afero.NewMemMapFs()
	schema, err := ParseSchema("value:I") // 4-byte records

	require.NoError(t, err)

	dp, err := NewDataProcess(fs, "/sd", "COUNTER", schema, 2, true, nil) // 2 records per file
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		require.NoError(t, dp.Log(map[string]any{"value": uint32(i)}))
	}

	entries, err := afero.ReadDir(fs, "/sd/COUNTER")
	require.NoError(t, err)
	var dataFiles int
	for _, e := range entries {
		if e.Name() != ".process_configuration.json" {
			dataFiles++
		}
	}
	assert.GreaterOrEqual(t, dataFiles, 3, "5 four-byte records at a 2-record limit must span at least 3 files")
}

func TestTransmitLeaseAndCleanUp(t *testing.T) {
	ds := newTestStore(t)
	schema := "value:I"
	require.NoError(t, ds.Register("LOG", schema, 1, true)) // 1 record per file forces rotation every Log

	require.NoError(t, ds.Log("LOG", map[string]any{"value": uint32(1)}))
	require.NoError(t, ds.Log("LOG", map[string]any{"value": uint32(2)}))
	require.NoError(t, ds.Log("LOG", map[string]any{"value": uint32(3)}))

	path, err := ds.RequestTMPath("LOG", false)
	require.NoError(t, err)

	// Requesting again must not return the same leased file.
	path2, err := ds.RequestTMPath("LOG", false)
	require.NoError(t, err)
	assert.NotEqual(t, path, path2)

	require.NoError(t, ds.NotifyTMPath("LOG", path, true))
	require.NoError(t, ds.CleanUp())

	dp, err := ds.process("LOG")
	require.NoError(t, err)
	_, err = dp.fs.Stat(path)
	assert.Error(t, err, "file queued via a successful NotifyTMPath should be removed by CleanUp")

	_, err = dp.fs.Stat(path2)
	assert.NoError(t, err, "file not yet notified should survive CleanUp")
}

func TestCleanUpSurvivesPartialFailureWithoutSkippingSiblings(t *testing.T) {
	ds := newTestStore(t)
	require.NoError(t, ds.Register("LOG", "value:I", 1, true))

	require.NoError(t, ds.Log("LOG", map[string]any{"value": uint32(1)}))
	require.NoError(t, ds.Log("LOG", map[string]any{"value": uint32(2)}))
	require.NoError(t, ds.Log("LOG", map[string]any{"value": uint32(3)}))
	require.NoError(t, ds.Log("LOG", map[string]any{"value": uint32(4)})) // rotates the 3rd file out of "current"

	dp, err := ds.process("LOG")
	require.NoError(t, err)

	p1, err := dp.RequestTMPath(false)
	require.NoError(t, err)
	p2, err := dp.RequestTMPath(false)
	require.NoError(t, err)
	p3, err := dp.RequestTMPath(false)
	require.NoError(t, err)

	require.NoError(t, dp.NotifyTMPath(p1, true))
	require.NoError(t, dp.NotifyTMPath(p2, true))
	require.NoError(t, dp.NotifyTMPath(p3, true))

	// Remove p2 out from under the process so its delete fails first,
	// proving the snapshot-before-iterate fix still deletes p1 and p3.
	require.NoError(t, dp.fs.Remove(p2))

	_ = dp.CleanUp()

	_, errP1 := dp.fs.Stat(p1)
	_, errP3 := dp.fs.Stat(p3)
	assert.Error(t, errP1, "p1 should have been deleted despite p2 failing")
	assert.Error(t, errP3, "p3 should have been deleted despite p2 failing first in the list")
}

func TestRequestTMPathErrorsWhenNothingAvailable(t *testing.T) {
	ds := newTestStore(t)
	require.NoError(t, ds.Register("EMPTY", "value:I", 1000, true))

	_, err := ds.RequestTMPath("EMPTY", false)
	assert.Error(t, err)
}

func TestRequestTMPathLatestSelectsNewestAndRotatesCurrent(t *testing.T) {
	ds := newTestStore(t)
	require.NoError(t, ds.Register("LOG", "value:I", 1, true)) // 1 record per file

	require.NoError(t, ds.Log("LOG", map[string]any{"value": uint32(1)}))
	require.NoError(t, ds.Log("LOG", map[string]any{"value": uint32(2)}))

	dp, err := ds.process("LOG")
	require.NoError(t, err)
	currentBeforeRequest := dp.currentPath

	path, err := ds.RequestTMPath("LOG", true)
	require.NoError(t, err)
	assert.Equal(t, currentBeforeRequest, path, "latest selection should pick the file still being written")
	assert.NotEqual(t, currentBeforeRequest, dp.currentPath, "selecting the current file for transmit must rotate it out")
}

func TestImageProcessCompletedForcesRotation(t *testing.T) {
	fs := afero.NewMemMapFs()

	ip, err := NewImageProcess(fs, "/sd", "IMG", nil)
	require.NoError(t, err)

	require.NoError(t, ip.LogBytes([]byte{1}))
	firstPath := ip.currentPath
	require.NoError(t, ip.ImageCompleted())
	require.NoError(t, ip.LogBytes([]byte{2}))

	assert.NotEqual(t, firstPath, ip.currentPath)
}

func TestDataStoreLogImageAndImageCompleted(t *testing.T) {
	ds := newTestStore(t)
	require.NoError(t, ds.RegisterImage("CAM"))

	require.NoError(t, ds.LogImage("CAM", []byte("jpegbytes")))
	require.NoError(t, ds.ImageCompleted("CAM"))
	require.NoError(t, ds.LogImage("CAM", []byte("more")))
}

func TestDataProcessNonPersistentOnlyUpdatesLastRecord(t *testing.T) {
	ds := newTestStore(t)
	require.NoError(t, ds.Register("VOLATILE", "value:I", 10, false))

	require.NoError(t, ds.Log("VOLATILE", map[string]any{"value": uint32(42)}))

	latest, err := ds.GetLatest("VOLATILE")
	require.NoError(t, err)
	assert.Equal(t, uint32(42), latest["value"])

	entries, err := afero.ReadDir(ds.fs, "/sd/VOLATILE")
	require.NoError(t, err)
	for _, e := range entries {
		assert.Equal(t, ".process_configuration.json", e.Name(), "a non-persistent process must never write a data file")
	}
}

func TestScanRecoversDataProcessFromSidecar(t *testing.T) {
	fs := afero.NewMemMapFs()
	ds := New(fs, "/sd", nil)
	require.NoError(t, ds.Scan())
	require.NoError(t, ds.Register("TEMP", "value:f", 1000, true))
	require.NoError(t, ds.Log("TEMP", map[string]any{"value": float32(12.5)}))

	// A fresh DataStore over the same filesystem, as after a reboot.
	restarted := New(fs, "/sd", nil)
	require.NoError(t, restarted.Scan())

	require.NoError(t, restarted.Log("TEMP", map[string]any{"value": float32(13.5)}))
	latest, err := restarted.GetLatest("TEMP")
	require.NoError(t, err)
	assert.Equal(t, float32(13.5), latest["value"])
}

func TestScanRecoversImageProcessFromSidecar(t *testing.T) {
	fs := afero.NewMemMapFs()
	ds := New(fs, "/sd", nil)
	require.NoError(t, ds.Scan())
	require.NoError(t, ds.RegisterImage("CAM"))
	require.NoError(t, ds.LogImage("CAM", []byte("first")))

	restarted := New(fs, "/sd", nil)
	require.NoError(t, restarted.Scan())
	require.NoError(t, restarted.LogImage("CAM", []byte("second")))
}

func TestScanSkipsDirectoryWithoutSidecar(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll("/sd/NOTAPROCESS", 0o755))

	ds := New(fs, "/sd", nil)
	require.NoError(t, ds.Scan())

	_, err := ds.GetLatest("NOTAPROCESS")
	assert.Error(t, err)
}

func TestDeleteAllClearsRegistry(t *testing.T) {
	ds := newTestStore(t)
	require.NoError(t, ds.Register("LOG", "value:I", 1000, true))
	require.NoError(t, ds.Log("LOG", map[string]any{"value": uint32(7)}))

	require.NoError(t, ds.DeleteAll())

	_, err := ds.GetLatest("LOG")
	assert.Error(t, err, "DeleteAll should clear the registry, not just the files")
}
