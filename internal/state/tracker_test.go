package state_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/drover-project/drover/internal/state"
	"github.com/drover-project/drover/pkg/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTracker_LoadEmpty(t *testing.T) {
	tracker := state.NewTracker(t.TempDir(), nil)
	p := tracker.Load()
	assert.Empty(t, p.CompletedItems)
	assert.Empty(t, p.FailedItems)
	assert.NotNil(t, p.Sessions)
}

func TestTracker_MarkCompleted(t *testing.T) {
	tracker := state.NewTracker(t.TempDir(), nil)
	ctx := context.Background()

	require.NoError(t, tracker.MarkCompleted(ctx, 42, "session-a"))
	require.NoError(t, tracker.MarkCompleted(ctx, 7, "session-a"))
	require.NoError(t, tracker.MarkCompleted(ctx, 42, "session-b")) // duplicate item

	p := tracker.Load()
	assert.Equal(t, []int{7, 42}, p.CompletedItems, "sorted, deduplicated")
	assert.Equal(t, 2, p.Sessions["session-a"].Completed)
	assert.Equal(t, 1, p.Sessions["session-b"].Completed)
	assert.False(t, p.UpdatedAt.IsZero())
}

func TestTracker_MarkFailed(t *testing.T) {
	tracker := state.NewTracker(t.TempDir(), nil)
	ctx := context.Background()

	require.NoError(t, tracker.MarkFailed(ctx, 3, "session-a"))

	p := tracker.Load()
	assert.Equal(t, []int{3}, p.FailedItems)
	assert.Equal(t, 1, p.Sessions["session-a"].Failed)
	assert.Empty(t, p.CompletedItems)
}

func TestTracker_CorruptSnapshotDegradesToEmpty(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "progress.json"), []byte("{{{"), 0644))

	tracker := state.NewTracker(dir, nil)
	p := tracker.Load()
	assert.Empty(t, p.CompletedItems)

	// And updating over the corrupt file works.
	require.NoError(t, tracker.MarkCompleted(context.Background(), 1, "session-a"))
	assert.Equal(t, []int{1}, tracker.Load().CompletedItems)
}

func TestTracker_CorruptSnapshotDebugDiagnostics(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "progress.json"), []byte("{{{"), 0644))

	var buf bytes.Buffer
	log := logging.NewJSONLogger(logging.LevelDebug)
	log.SetOutput(&buf)

	state.NewTracker(dir, log).Load()
	assert.Contains(t, buf.String(), "parse failure detail",
		"debug-level runs must surface the preview and offset detail")
}

func TestTracker_PersistsAcrossInstances(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, state.NewTracker(dir, nil).MarkCompleted(context.Background(), 5, "s"))

	p := state.NewTracker(dir, nil).Load()
	assert.Equal(t, []int{5}, p.CompletedItems)
}
