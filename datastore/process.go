package datastore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/spf13/afero"

	"github.com/lunasat/fsw-core"
	"github.com/lunasat/fsw-core/internal/constants"
	"github.com/lunasat/fsw-core/internal/interfaces"
)

const (
	osAppendFlags = os.O_WRONLY | os.O_APPEND
	osCreateFlags = os.O_WRONLY | os.O_CREATE | os.O_TRUNC
)

// processConfig is the ".process_configuration.json" sidecar persisted in
// every process directory: just enough to recover the stream's schema and
// rotation policy on the next boot (spec.md §6). Lease bookkeeping
// (excluded/delete paths) is deliberately not part of this file -- it is
// runtime state, not the stream's identity, and does not survive restart.
type processConfig struct {
	DataFormat string `json:"data_format,omitempty"`
	LineLimit  int    `json:"line_limit,omitempty"`
	Img        bool   `json:"img,omitempty"`
}

// DataProcess is a single rotating binary-log file stream: one named
// directory of timestamp-ordered files, each capped at line_limit
// records, with transmit-lease tracking for the downlink task.
type DataProcess struct {
	mu sync.Mutex

	fs     afero.Fs
	folder string
	name   string
	schema *Schema

	lineLimit  int
	sizeLimit  int64
	persistent bool

	currentPath string
	currentFile afero.File
	currentSize int64

	lastRecord map[string]any

	excludedPaths map[string]bool
	deletePaths   []string

	logger interfaces.Logger
}

// NewDataProcess creates (or reopens) a rotating log stream rooted at
// root/name, enforcing lineLimit records per file. If the process's
// ".process_configuration.json" sidecar is absent, one is written
// recording schema.Format() and lineLimit; if present it is left alone,
// the way a prior boot's registration pins the stream's definition.
func NewDataProcess(fs afero.Fs, root, name string, schema *Schema, lineLimit int, persistent bool, logger interfaces.Logger) (*DataProcess, error) {
	dp, err := newProcessBase(fs, root, name, int64(lineLimit)*int64(schema.Size), lineLimit, persistent, logger)
	if err != nil {
		return nil, err
	}
	dp.schema = schema
	if err := dp.writeConfigIfAbsent(processConfig{DataFormat: schema.Format(), LineLimit: lineLimit}); err != nil {
		return nil, err
	}
	return dp, nil
}

func newProcessBase(fs afero.Fs, root, name string, sizeLimit int64, lineLimit int, persistent bool, logger interfaces.Logger) (*DataProcess, error) {
	folder := filepath.Join(root, name)
	if err := fs.MkdirAll(folder, 0o755); err != nil {
		return nil, fsw.WrapError("DataProcess.New", err)
	}

	dp := &DataProcess{
		fs:            fs,
		folder:        folder,
		name:          name,
		lineLimit:     lineLimit,
		sizeLimit:     sizeLimit,
		persistent:    persistent,
		excludedPaths: make(map[string]bool),
		logger:        logger,
	}

	if persistent {
		if err := dp.recoverCurrentPath(); err != nil {
			return nil, err
		}
	}
	return dp, nil
}

func (dp *DataProcess) configPath() string {
	return filepath.Join(dp.folder, constants.ProcessConfigFileName)
}

func (dp *DataProcess) writeConfigIfAbsent(cfg processConfig) error {
	if _, err := dp.fs.Stat(dp.configPath()); err == nil {
		return nil
	}
	data, err := json.Marshal(cfg)
	if err != nil {
		return fsw.WrapError("DataProcess.writeConfigIfAbsent", err)
	}
	if err := afero.WriteFile(dp.fs, dp.configPath(), data, 0o644); err != nil {
		return fsw.WrapError("DataProcess.writeConfigIfAbsent", err)
	}
	return nil
}

// recoverCurrentPath reopens the most recently created data file in the
// process's directory, if one exists and still has room under
// sizeLimit. Filenames embed a monotonic timestamp, so the
// lexicographically last entry is the most recently produced file,
// matching the directory-order-is-chronological-order assumption
// everywhere else in this package.
func (dp *DataProcess) recoverCurrentPath() error {
	entries, err := afero.ReadDir(dp.fs, dp.folder)
	if err != nil {
		return fsw.WrapError("DataProcess.recoverCurrentPath", err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() || e.Name() == constants.ProcessConfigFileName {
			continue
		}
		names = append(names, e.Name())
	}
	if len(names) == 0 {
		return nil
	}
	sort.Strings(names)
	latest := filepath.Join(dp.folder, names[len(names)-1])

	info, err := dp.fs.Stat(latest)
	if err != nil || info.Size() >= dp.sizeLimit {
		return nil // full, missing, or unreadable; resolveCurrentFile rotates fresh
	}
	dp.currentPath = latest
	dp.currentSize = info.Size()
	return nil
}

// newFilePath generates the next rotated filename. Filenames embed a
// timestamp so lexical order matches chronological order, letting
// RequestTMPath find the oldest/newest file without reading every
// file's mtime.
func (dp *DataProcess) newFilePath() string {
	stamp := time.Now().UTC().Format(constants.FilenameTimeLayout)
	return filepath.Join(dp.folder, fmt.Sprintf("%s_%s.dat", dp.name, stamp))
}

// resolveCurrentFile opens the active file, creating one if none exists.
func (dp *DataProcess) resolveCurrentFile() error {
	if dp.currentFile != nil {
		return nil
	}

	if dp.currentPath != "" {
		if info, err := dp.fs.Stat(dp.currentPath); err == nil && info.Size() < dp.sizeLimit {
			f, err := dp.fs.OpenFile(dp.currentPath, osAppendFlags, 0o644)
			if err == nil {
				dp.currentFile = f
				dp.currentSize = info.Size()
				return nil
			}
		}
	}

	return dp.rotate()
}

// rotate closes the current file (if any) and opens a fresh one. Status
// is CLOSED for the instant between the two.
func (dp *DataProcess) rotate() error {
	if dp.currentFile != nil {
		if err := dp.currentFile.Close(); err != nil {
			return fsw.WrapError("DataProcess.rotate", err)
		}
		dp.currentFile = nil
	}

	path := dp.newFilePath()
	f, err := dp.fs.OpenFile(path, osCreateFlags, 0o644)
	if err != nil {
		return fsw.WrapError("DataProcess.rotate", err)
	}
	dp.currentFile = f
	dp.currentPath = path
	dp.currentSize = 0
	return nil
}

// Log packs values against the process's schema and appends the record,
// rotating to a new file first if the write would exceed the line limit.
// When persistent is false, only last_record is updated -- nothing is
// written to mass storage.
func (dp *DataProcess) Log(values map[string]any) error {
	dp.mu.Lock()
	defer dp.mu.Unlock()

	record, err := dp.schema.Pack(values)
	if err != nil {
		return fsw.WrapError("DataProcess.Log", err)
	}
	// Round-trip through Unpack so GetLatest returns the canonical,
	// schema-typed value rather than whatever Go type the caller passed.
	unpacked, err := dp.schema.Unpack(record)
	if err != nil {
		return fsw.WrapError("DataProcess.Log", err)
	}
	dp.lastRecord = unpacked

	if !dp.persistent {
		return nil
	}

	if err := dp.resolveCurrentFile(); err != nil {
		return err
	}
	if dp.currentSize+int64(len(record)) > dp.sizeLimit {
		if err := dp.rotate(); err != nil {
			return err
		}
	}

	n, err := dp.currentFile.Write(record)
	if err != nil {
		return fsw.WrapError("DataProcess.Log", err)
	}
	dp.currentSize += int64(n)
	return nil
}

// GetLatest returns the most recently logged record, or nil if nothing
// has been logged yet. It is a pure in-memory read and never touches
// mass storage, even for a persistent process.
func (dp *DataProcess) GetLatest() (map[string]any, error) {
	dp.mu.Lock()
	defer dp.mu.Unlock()

	return dp.lastRecord, nil
}

// RequestTMPath leases a file for the downlink task: the oldest
// untransmitted file by default, or the newest when latest is true. If
// the selected file is the one currently being written, it is rotated
// out first so the leased file is quiescent.
func (dp *DataProcess) RequestTMPath(latest bool) (string, error) {
	dp.mu.Lock()
	defer dp.mu.Unlock()

	entries, err := afero.ReadDir(dp.fs, dp.folder)
	if err != nil {
		return "", fsw.WrapError("DataProcess.RequestTMPath", err)
	}

	var candidates []string
	for _, e := range entries {
		if e.IsDir() || e.Name() == constants.ProcessConfigFileName {
			continue
		}
		path := filepath.Join(dp.folder, e.Name())
		if dp.excludedPaths[path] {
			continue
		}
		queued := false
		for _, p := range dp.deletePaths {
			if p == path {
				queued = true
				break
			}
		}
		if queued {
			continue // already transmitted, awaiting CleanUp
		}
		candidates = append(candidates, path)
	}
	if len(candidates) == 0 {
		return "", fsw.NewError("DataProcess.RequestTMPath", fsw.ErrIO, "no file available for transmit")
	}
	sort.Strings(candidates) // filenames embed timestamp, so lexical order is chronological

	var selected string
	if latest {
		selected = candidates[len(candidates)-1]
	} else {
		selected = candidates[0]
	}

	if selected == dp.currentPath {
		if err := dp.rotate(); err != nil {
			return "", err
		}
	}

	dp.excludedPaths[selected] = true
	return selected, nil
}

// NotifyTMPath releases a path's transmit lease. On success the file is
// queued for deletion on the next CleanUp; on failure it is simply
// released, becoming eligible for RequestTMPath again. If path is not
// currently leased the call is a no-op.
func (dp *DataProcess) NotifyTMPath(path string, success bool) error {
	dp.mu.Lock()
	defer dp.mu.Unlock()

	if !dp.excludedPaths[path] {
		if dp.logger != nil {
			dp.logger.Warn("NotifyTMPath on a path that was not leased", "path", path)
		}
		return nil
	}

	delete(dp.excludedPaths, path)
	if success {
		dp.deletePaths = append(dp.deletePaths, path)
	}
	return nil
}

// CleanUp deletes every file queued by a successful NotifyTMPath. Files
// that fail to delete remain queued for the next CleanUp call; the
// pending list is snapshotted before iterating so a delete failure never
// skips a sibling entry.
func (dp *DataProcess) CleanUp() error {
	dp.mu.Lock()
	defer dp.mu.Unlock()

	pending := append([]string(nil), dp.deletePaths...)
	var survivors []string
	var firstErr error
	for _, path := range pending {
		if err := dp.fs.Remove(path); err != nil {
			if _, statErr := dp.fs.Stat(path); statErr != nil {
				if dp.logger != nil {
					dp.logger.Warn("CleanUp: file already gone", "path", path)
				}
				continue // already gone; nothing left to retry
			}
			if firstErr == nil {
				firstErr = err
			}
			survivors = append(survivors, path)
			continue
		}
		if path == dp.currentPath {
			dp.currentPath = ""
		}
	}
	dp.deletePaths = survivors
	if firstErr != nil {
		return fsw.WrapError("DataProcess.CleanUp", firstErr)
	}
	return nil
}

// TotalSize sums the size of every file in the process's folder.
func (dp *DataProcess) TotalSize() (int64, error) {
	dp.mu.Lock()
	defer dp.mu.Unlock()

	entries, err := afero.ReadDir(dp.fs, dp.folder)
	if err != nil {
		return 0, fsw.WrapError("DataProcess.TotalSize", err)
	}
	var total int64
	for _, e := range entries {
		if !e.IsDir() {
			total += e.Size()
		}
	}
	return total, nil
}

// Close flushes and closes the active file.
func (dp *DataProcess) Close() error {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	if dp.currentFile == nil {
		return nil
	}
	err := dp.currentFile.Close()
	dp.currentFile = nil
	if err != nil {
		return fsw.WrapError("DataProcess.Close", err)
	}
	return nil
}

// ImageProcess is a DataProcess variant whose records are arbitrary byte
// slices rather than fixed-width schema fields: size_limit is a single
// large constant (constants.ImageSizeLimit), and rotation is triggered
// either by hitting it or by an explicit ImageCompleted call.
type ImageProcess struct {
	*DataProcess
}

// NewImageProcess creates (or reopens) an image stream rooted at
// root/name, capped at constants.ImageSizeLimit bytes per file.
func NewImageProcess(fs afero.Fs, root, name string, logger interfaces.Logger) (*ImageProcess, error) {
	dp, err := newProcessBase(fs, root, name, constants.ImageSizeLimit, 0, true, logger)
	if err != nil {
		return nil, err
	}
	if err := dp.writeConfigIfAbsent(processConfig{Img: true}); err != nil {
		return nil, err
	}
	return &ImageProcess{DataProcess: dp}, nil
}

// LogBytes appends raw bytes to the active image file, rotating first if
// the write would exceed size_limit. Unlike DataProcess.Log, there is no
// schema to pack against.
func (ip *ImageProcess) LogBytes(data []byte) error {
	ip.mu.Lock()
	defer ip.mu.Unlock()

	if err := ip.resolveCurrentFile(); err != nil {
		return err
	}
	if ip.currentSize+int64(len(data)) > ip.sizeLimit {
		if err := ip.rotate(); err != nil {
			return err
		}
	}

	n, err := ip.currentFile.Write(data)
	if err != nil {
		return fsw.WrapError("ImageProcess.LogBytes", err)
	}
	ip.currentSize += int64(n)
	return nil
}

// ImageCompleted forces rotation so the next LogBytes call starts a
// fresh image file, even if the current one is far from size_limit.
func (ip *ImageProcess) ImageCompleted() error {
	ip.mu.Lock()
	defer ip.mu.Unlock()
	return ip.rotate()
}
