package fsutil_test

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"syscall"
	"testing"

	"github.com/drover-project/drover/pkg/fsutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAtomicWrite_CreatesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.json")
	data := []byte(`{"key": "value"}`)

	err := fsutil.AtomicWrite(path, data, 0644)
	require.NoError(t, err)

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, data, content)
}

func TestAtomicWrite_OverwritesExisting(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.json")
	os.WriteFile(path, []byte("old"), 0644)

	err := fsutil.AtomicWrite(path, []byte("new"), 0644)
	require.NoError(t, err)

	content, _ := os.ReadFile(path)
	assert.Equal(t, "new", string(content))
}

func TestAtomicWrite_NoTmpLeftOnSuccess(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.json")
	fsutil.AtomicWrite(path, []byte("data"), 0644)

	entries, _ := os.ReadDir(dir)
	assert.Len(t, entries, 1, "only the target file should exist")
}

func TestAtomicWrite_FailureLeavesTargetUntouched(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "missing-subdir", "test.json")

	err := fsutil.AtomicWrite(path, []byte("data"), 0644)
	require.Error(t, err)
	assert.NoFileExists(t, path)
}

func TestAtomicWriteJSON_RoundTrip(t *testing.T) {
	dir := t.TempDir()

	values := []any{
		nil,
		true,
		42.5,
		"text",
		[]any{1.0, "two", nil},
		map[string]any{"nested": map[string]any{"deep": []any{"a"}}},
	}
	for i, v := range values {
		path := filepath.Join(dir, fmt.Sprintf("val-%d.json", i))
		require.NoError(t, fsutil.AtomicWriteJSON(path, v, 0644))

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		var back any
		require.NoError(t, json.Unmarshal(data, &back))
		assert.Equal(t, v, back, "value %d", i)
	}
}

func TestAtomicWriteJSON_MarshalErrorLeavesPriorContent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.json")
	require.NoError(t, fsutil.AtomicWrite(path, []byte("prior"), 0644))

	err := fsutil.AtomicWriteJSON(path, make(chan int), 0644)
	require.Error(t, err)

	content, _ := os.ReadFile(path)
	assert.Equal(t, "prior", string(content))
}

func TestAtomicCreateExclusive_NewFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "item-1.lock")

	err := fsutil.AtomicCreateExclusive(path, []byte("owner-a"), 0644)
	require.NoError(t, err)

	content, _ := os.ReadFile(path)
	assert.Equal(t, "owner-a", string(content))
}

func TestAtomicCreateExclusive_ExistingFileLoses(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "item-1.lock")
	require.NoError(t, fsutil.AtomicCreateExclusive(path, []byte("owner-a"), 0644))

	err := fsutil.AtomicCreateExclusive(path, []byte("owner-b"), 0644)
	require.Error(t, err)
	assert.True(t, os.IsExist(err))

	content, _ := os.ReadFile(path)
	assert.Equal(t, "owner-a", string(content), "winner's content must survive")
}

func TestAtomicCreateExclusive_NoTmpResidue(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "item-1.lock")
	fsutil.AtomicCreateExclusive(path, []byte("a"), 0644)
	fsutil.AtomicCreateExclusive(path, []byte("b"), 0644)

	entries, _ := os.ReadDir(dir)
	assert.Len(t, entries, 1)
}

func TestIsTransient(t *testing.T) {
	assert.True(t, fsutil.IsTransient(syscall.EAGAIN))
	assert.True(t, fsutil.IsTransient(syscall.EINTR))
	assert.True(t, fsutil.IsTransient(syscall.EBUSY))
	assert.True(t, fsutil.IsTransient(fmt.Errorf("write: %w", syscall.EAGAIN)))
	assert.False(t, fsutil.IsTransient(syscall.EACCES))
	assert.False(t, fsutil.IsTransient(os.ErrPermission))
	assert.False(t, fsutil.IsTransient(fmt.Errorf("plain error")))
}

func TestRetryTransient_SucceedsAfterTransientFailures(t *testing.T) {
	policy := fsutil.RetryPolicy{MaxRetries: 3, RetryDelay: 0}
	attempts := 0

	err := fsutil.RetryTransient(policy, func() error {
		attempts++
		if attempts < 3 {
			return fmt.Errorf("busy: %w", syscall.EAGAIN)
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestRetryTransient_ExhaustsRetries(t *testing.T) {
	policy := fsutil.RetryPolicy{MaxRetries: 3, RetryDelay: 0}
	attempts := 0

	err := fsutil.RetryTransient(policy, func() error {
		attempts++
		return fmt.Errorf("busy: %w", syscall.EAGAIN)
	})
	require.Error(t, err)
	assert.Equal(t, 3, attempts, "must attempt exactly MaxRetries times")
}

func TestRetryTransient_PermanentErrorAttemptsOnce(t *testing.T) {
	policy := fsutil.RetryPolicy{MaxRetries: 3, RetryDelay: 0}
	attempts := 0

	err := fsutil.RetryTransient(policy, func() error {
		attempts++
		return os.ErrPermission
	})
	require.ErrorIs(t, err, os.ErrPermission)
	assert.Equal(t, 1, attempts)
}

func TestWriteWithRetry_Writes(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.json")

	err := fsutil.WriteWithRetry(path, []byte("data"), 0644, fsutil.DefaultRetryPolicy())
	require.NoError(t, err)

	content, _ := os.ReadFile(path)
	assert.Equal(t, "data", string(content))
}

func TestWriteJSONWithRetry_Writes(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.json")

	err := fsutil.WriteJSONWithRetry(path, map[string]any{"k": "v"}, 0644, fsutil.DefaultRetryPolicy())
	require.NoError(t, err)
	assert.FileExists(t, path)
}

func TestFsyncDir(t *testing.T) {
	dir := t.TempDir()
	err := fsutil.FsyncDir(dir)
	assert.NoError(t, err)
}
