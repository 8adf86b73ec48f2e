package storage

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	crewerrors "github.com/mrz1836/crew/internal/errors"
)

// ReadJSON decodes the JSON file at path into v.
//
// A file that is absent or contains only whitespace leaves v untouched and
// returns found=false: callers keep whatever default they pre-filled. A file
// that is present but unparseable returns ErrCorruptState: corrupted state
// is surfaced, never silently defaulted.
func ReadJSON(path string, v any) (found bool, err error) {
	data, err := os.ReadFile(path) //#nosec G304 -- paths are constructed from validated team/agent names
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return false, nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("%w: %s: %s", crewerrors.ErrCorruptState, path, err)
	}
	return true, nil
}

// WriteJSONAtomic serializes v and writes it to path atomically: the data
// goes to a temporary file in the same directory, is synced, then renamed
// over the destination. No reader ever observes a partial write; on any
// failure the temporary file is removed and the destination left untouched.
//
// indent selects pretty-printing (team configs, tasks) versus compact output
// (inbox message lists).
func WriteJSONAtomic(path string, v any, indent bool) error {
	var (
		data []byte
		err  error
	)
	if indent {
		data, err = json.MarshalIndent(v, "", "  ")
	} else {
		data, err = json.Marshal(v)
	}
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", path, err)
	}
	data = append(data, '\n')

	if err := os.MkdirAll(filepath.Dir(path), dirPerm); err != nil {
		return fmt.Errorf("failed to create parent directory: %w", err)
	}
	return atomicWrite(path, data)
}

// atomicWrite writes data to a file atomically using write-then-rename.
func atomicWrite(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to write data: %w", err)
	}

	// Ensure data is persisted before the rename makes it visible.
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to sync file: %w", err)
	}

	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to close file: %w", err)
	}

	if err := os.Chmod(tmpPath, filePerm); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to set file permissions: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to rename file: %w", err)
	}

	return nil
}
