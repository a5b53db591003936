// Package fsutil provides the crash-safe write primitives every piece of
// drover state goes through: atomic single-file replacement plus bounded
// retry for transient filesystem contention.
package fsutil

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/drover-project/drover/pkg/logging"
)

// fsyncDir is swappable so tests can exercise the post-rename failure path.
var fsyncDir = FsyncDir

// AtomicWrite writes data to a temporary file in the same directory as
// path, fsyncs, then renames it onto path. A reader concurrent with a
// crash sees either the old content or the new content, never a partial
// write. The temp name embeds a nanosecond timestamp plus a random
// suffix so concurrent writers in one directory never collide. On
// failure the temp file is removed best-effort and the original error
// propagates.
func AtomicWrite(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, fmt.Sprintf(".drover-tmp-%d-*", time.Now().UnixNano()))
	if err != nil {
		return fmt.Errorf("atomic write create tmp: %w", err)
	}
	tmpPath := tmp.Name()

	// Clean up on failure
	success := false
	defer func() {
		if !success {
			tmp.Close()
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		return fmt.Errorf("atomic write: %w", err)
	}
	if err := tmp.Chmod(perm); err != nil {
		return fmt.Errorf("atomic write chmod: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("atomic write fsync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("atomic write close: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("atomic write rename: %w", err)
	}
	success = true

	// The replacement is already visible at this point; a failed
	// directory fsync only weakens durability of the rename across a
	// crash, so it is reported rather than returned.
	if err := fsyncDir(dir); err != nil {
		logging.Warn("directory fsync failed after rename", map[string]any{
			"dir":   dir,
			"error": err.Error(),
		})
	}
	return nil
}

// AtomicWriteJSON marshals value as indented JSON and writes it via
// AtomicWrite. Round-trips null, scalars, arrays, and nested records.
func AtomicWriteJSON(path string, value any, perm os.FileMode) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return fmt.Errorf("atomic write marshal: %w", err)
	}
	return AtomicWrite(path, append(data, '\n'), perm)
}

// AtomicCreateExclusive writes data to a temporary file and hard-links
// it to path, failing if path already exists. This closes the
// check-then-create window on first acquisition: of two concurrent
// creators exactly one wins the link, and the loser sees os.ErrExist.
// The target is never observable partially written.
func AtomicCreateExclusive(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, fmt.Sprintf(".drover-tmp-%d-*", time.Now().UnixNano()))
	if err != nil {
		return fmt.Errorf("exclusive create tmp: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() {
		tmp.Close()
		os.Remove(tmpPath)
	}()

	if _, err := tmp.Write(data); err != nil {
		return fmt.Errorf("exclusive create write: %w", err)
	}
	if err := tmp.Chmod(perm); err != nil {
		return fmt.Errorf("exclusive create chmod: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("exclusive create fsync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("exclusive create close: %w", err)
	}

	if err := os.Link(tmpPath, path); err != nil {
		// Not wrapped with context: callers branch on os.IsExist.
		return err
	}
	if err := fsyncDir(dir); err != nil {
		logging.Warn("directory fsync failed after create", map[string]any{
			"dir":   dir,
			"error": err.Error(),
		})
	}
	return nil
}

// FsyncDir fsyncs a directory to ensure rename visibility is durable.
func FsyncDir(dirPath string) error {
	d, err := os.Open(dirPath)
	if err != nil {
		return fmt.Errorf("fsync dir open: %w", err)
	}
	defer d.Close()
	return d.Sync()
}
