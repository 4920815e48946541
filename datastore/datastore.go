package datastore

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/spf13/afero"

	"github.com/lunasat/fsw-core"
	"github.com/lunasat/fsw-core/internal/constants"
	"github.com/lunasat/fsw-core/internal/interfaces"
)

// DataStore is the on-board data handler: a registry of named
// DataProcess and ImageProcess streams sharing one storage root.
type DataStore struct {
	mu sync.RWMutex

	fs     afero.Fs
	root   string
	logger interfaces.Logger

	processes map[string]*DataProcess
	images    map[string]*ImageProcess
}

// New creates a DataStore rooted at root on fs. Pass afero.NewOsFs() in
// production and afero.NewMemMapFs() in tests.
func New(fs afero.Fs, root string, logger interfaces.Logger) *DataStore {
	return &DataStore{
		fs:        fs,
		root:      root,
		logger:    logger,
		processes: make(map[string]*DataProcess),
		images:    make(map[string]*ImageProcess),
	}
}

// Scan enumerates subdirectories of root from a prior boot, registering
// a DataProcess or ImageProcess for every one whose
// ".process_configuration.json" sidecar parses. Unknown or invalid
// configs are skipped with a logged warning rather than failing the
// whole scan. Names already registered (e.g. by a fresh-boot Register
// call made before Scan runs) are left alone.
func (ds *DataStore) Scan() error {
	ds.mu.Lock()
	defer ds.mu.Unlock()

	if err := ds.fs.MkdirAll(ds.root, 0o755); err != nil {
		return fsw.WrapError("DataStore.Scan", err)
	}

	entries, err := afero.ReadDir(ds.fs, ds.root)
	if err != nil {
		return fsw.WrapError("DataStore.Scan", err)
	}

	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		name := e.Name()
		if _, exists := ds.processes[name]; exists {
			continue
		}
		if _, exists := ds.images[name]; exists {
			continue
		}

		cfgPath := filepath.Join(ds.root, name, constants.ProcessConfigFileName)
		data, err := afero.ReadFile(ds.fs, cfgPath)
		if err != nil {
			continue // no sidecar: not a DataProcess directory
		}

		var cfg processConfig
		if err := json.Unmarshal(data, &cfg); err != nil {
			ds.warn("skipping directory with invalid process configuration", name, err)
			continue
		}

		if cfg.Img {
			ip, err := NewImageProcess(ds.fs, ds.root, name, ds.logger)
			if err != nil {
				ds.warn("failed to reopen image process", name, err)
				continue
			}
			ds.images[name] = ip
			continue
		}

		if cfg.LineLimit <= 0 || cfg.DataFormat == "" {
			ds.warn("skipping process configuration with invalid line_limit or data_format", name, nil)
			continue
		}
		schema, err := ParseSchema(cfg.DataFormat)
		if err != nil {
			ds.warn("skipping process configuration with unparseable data_format", name, err)
			continue
		}
		dp, err := NewDataProcess(ds.fs, ds.root, name, schema, cfg.LineLimit, true, ds.logger)
		if err != nil {
			ds.warn("failed to reopen data process", name, err)
			continue
		}
		ds.processes[name] = dp
	}
	return nil
}

func (ds *DataStore) warn(msg, name string, err error) {
	if ds.logger == nil {
		return
	}
	if err != nil {
		ds.logger.Warn(msg, "dir", name, "err", err)
	} else {
		ds.logger.Warn(msg, "dir", name)
	}
}

// Register creates a DataProcess under the given name: lineLimit records
// per file, packed per format. When persistent is false, Log only
// updates the in-memory last_record and never touches mass storage.
// Fails with ConfigurationError if lineLimit <= 0, format is invalid, or
// name is already registered.
func (ds *DataStore) Register(name, format string, lineLimit int, persistent bool) error {
	ds.mu.Lock()
	defer ds.mu.Unlock()

	if _, exists := ds.processes[name]; exists {
		return fsw.NewError("DataStore.Register", fsw.ErrConfiguration, fmt.Sprintf("data process %q is already registered", name))
	}
	if lineLimit <= 0 {
		return fsw.NewError("DataStore.Register", fsw.ErrConfiguration, "line_limit must be positive")
	}

	schema, err := ParseSchema(format)
	if err != nil {
		return fsw.NewError("DataStore.Register", fsw.ErrConfiguration, err.Error())
	}
	dp, err := NewDataProcess(ds.fs, ds.root, name, schema, lineLimit, persistent, ds.logger)
	if err != nil {
		return err
	}
	ds.processes[name] = dp
	return nil
}

// RegisterImage creates an ImageProcess under the given name, capped at
// constants.ImageSizeLimit bytes per file.
func (ds *DataStore) RegisterImage(name string) error {
	ds.mu.Lock()
	defer ds.mu.Unlock()

	if _, exists := ds.images[name]; exists {
		return fsw.NewError("DataStore.RegisterImage", fsw.ErrConfiguration, fmt.Sprintf("image process %q is already registered", name))
	}

	ip, err := NewImageProcess(ds.fs, ds.root, name, ds.logger)
	if err != nil {
		return err
	}
	ds.images[name] = ip
	return nil
}

func (ds *DataStore) process(name string) (*DataProcess, error) {
	ds.mu.RLock()
	defer ds.mu.RUnlock()
	dp, ok := ds.processes[name]
	if !ok {
		return nil, fsw.NewError("DataStore", fsw.ErrUnknownTag, fmt.Sprintf("data process %q is not registered", name))
	}
	return dp, nil
}

func (ds *DataStore) image(name string) (*ImageProcess, error) {
	ds.mu.RLock()
	defer ds.mu.RUnlock()
	ip, ok := ds.images[name]
	if !ok {
		return nil, fsw.NewError("DataStore", fsw.ErrUnknownTag, fmt.Sprintf("image process %q is not registered", name))
	}
	return ip, nil
}

// Log appends a record to the named DataProcess.
func (ds *DataStore) Log(name string, values map[string]any) error {
	dp, err := ds.process(name)
	if err != nil {
		return err
	}
	return dp.Log(values)
}

// LogImage appends raw bytes to the named ImageProcess.
func (ds *DataStore) LogImage(name string, data []byte) error {
	ip, err := ds.image(name)
	if err != nil {
		return err
	}
	return ip.LogBytes(data)
}

// ImageCompleted forces the named ImageProcess to rotate.
func (ds *DataStore) ImageCompleted(name string) error {
	ip, err := ds.image(name)
	if err != nil {
		return err
	}
	return ip.ImageCompleted()
}

// GetLatest returns the most recent record logged to the named process,
// or nil if nothing has been logged to it yet.
func (ds *DataStore) GetLatest(name string) (map[string]any, error) {
	dp, err := ds.process(name)
	if err != nil {
		return nil, err
	}
	return dp.GetLatest()
}

// RequestTMPath leases a file from the named process for downlink: the
// oldest untransmitted file by default, or the newest when latest is
// true.
func (ds *DataStore) RequestTMPath(name string, latest bool) (string, error) {
	dp, err := ds.process(name)
	if err != nil {
		return "", err
	}
	return dp.RequestTMPath(latest)
}

// ReadFile reads the full contents of a leased path for transmission.
// path must have come from a prior RequestTMPath call; this does not
// check ownership since a leased path is a plain filesystem path once
// handed back to the caller.
func (ds *DataStore) ReadFile(path string) ([]byte, error) {
	data, err := afero.ReadFile(ds.fs, path)
	if err != nil {
		return nil, fsw.WrapError("DataStore.ReadFile", err)
	}
	return data, nil
}

// NotifyTMPath reports the outcome of transmitting a previously leased
// path back to its owning process.
func (ds *DataStore) NotifyTMPath(name, path string, success bool) error {
	dp, err := ds.process(name)
	if err != nil {
		return err
	}
	return dp.NotifyTMPath(path, success)
}

// CleanUp deletes files queued for deletion across every registered
// process, continuing past per-process failures to give every process a
// chance to clean up.
func (ds *DataStore) CleanUp() error {
	ds.mu.RLock()
	processes := make([]*DataProcess, 0, len(ds.processes))
	for _, dp := range ds.processes {
		processes = append(processes, dp)
	}
	ds.mu.RUnlock()

	var firstErr error
	for _, dp := range processes {
		if err := dp.CleanUp(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// TotalSize sums the on-disk size of every registered process and image.
func (ds *DataStore) TotalSize() (int64, error) {
	ds.mu.RLock()
	defer ds.mu.RUnlock()

	var total int64
	for _, dp := range ds.processes {
		size, err := dp.TotalSize()
		if err != nil {
			return 0, err
		}
		total += size
	}
	for _, ip := range ds.images {
		size, err := ip.TotalSize()
		if err != nil {
			return 0, err
		}
		total += size
	}
	return total, nil
}

// DeleteAll removes every file under the storage root, for use during
// STARTUP bring-up. It recreates the root afterward so subsequent
// registrations still succeed.
func (ds *DataStore) DeleteAll() error {
	ds.mu.Lock()
	defer ds.mu.Unlock()

	for _, dp := range ds.processes {
		_ = dp.Close()
	}
	for _, ip := range ds.images {
		_ = ip.Close()
	}

	if err := ds.fs.RemoveAll(ds.root); err != nil {
		return fsw.WrapError("DataStore.DeleteAll", err)
	}
	if err := ds.fs.MkdirAll(ds.root, 0o755); err != nil {
		return fsw.WrapError("DataStore.DeleteAll", err)
	}

	ds.processes = make(map[string]*DataProcess)
	ds.images = make(map[string]*ImageProcess)
	return nil
}
