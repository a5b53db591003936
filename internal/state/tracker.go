// Package state persists the shared progress snapshot workers consult
// between runs. The snapshot is advisory bookkeeping, not coordination:
// losing it costs reporting, never correctness.
package state

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/gofrs/flock"

	"github.com/drover-project/drover/pkg/fsutil"
	"github.com/drover-project/drover/pkg/jsonutil"
	"github.com/drover-project/drover/pkg/logging"
)

const progressFile = "progress.json"

// Progress is the persisted snapshot of item outcomes across sessions.
type Progress struct {
	CompletedItems []int                   `json:"completed_items"`
	FailedItems    []int                   `json:"failed_items"`
	Sessions       map[string]SessionStats `json:"sessions,omitempty"`
	UpdatedAt      time.Time               `json:"updated_at"`
}

// SessionStats counts outcomes attributed to one session.
type SessionStats struct {
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
}

// Tracker reads and updates the progress snapshot. Updates are
// read-modify-write cycles guarded by an OS file lock so concurrent
// workers on the same filesystem don't overwrite each other's counts;
// the write itself still goes through the atomic writer so readers
// never observe a partial snapshot.
type Tracker struct {
	path  string
	flk   *flock.Flock
	log   *logging.Logger
	retry fsutil.RetryPolicy
}

// NewTracker creates a tracker under the coordination directory.
func NewTracker(dir string, log *logging.Logger) *Tracker {
	if log == nil {
		log = logging.Global()
	}
	path := filepath.Join(dir, progressFile)
	return &Tracker{
		path:  path,
		flk:   flock.New(path + ".flock"),
		log:   log,
		retry: fsutil.DefaultRetryPolicy(),
	}
}

// Load reads the current snapshot. A missing file is an empty snapshot;
// a corrupt file degrades to empty with a warning, it never aborts the
// caller.
func (t *Tracker) Load() *Progress {
	data, err := os.ReadFile(t.path)
	if err != nil {
		if !os.IsNotExist(err) {
			t.log.Warn("unreadable progress snapshot, starting empty", map[string]any{
				"path":  t.path,
				"error": err.Error(),
			})
		}
		return &Progress{Sessions: make(map[string]SessionStats)}
	}

	var p Progress
	if !jsonutil.SafeUnmarshal(data, &p, jsonutil.ParseOptions{Source: t.path, Logger: t.log}) {
		return &Progress{Sessions: make(map[string]SessionStats)}
	}
	if p.Sessions == nil {
		p.Sessions = make(map[string]SessionStats)
	}
	return &p
}

// MarkCompleted records a finished item for the session.
func (t *Tracker) MarkCompleted(ctx context.Context, itemID int, sessionID string) error {
	return t.update(ctx, func(p *Progress) {
		p.CompletedItems = insertSorted(p.CompletedItems, itemID)
		stats := p.Sessions[sessionID]
		stats.Completed++
		p.Sessions[sessionID] = stats
	})
}

// MarkFailed records a failed item for the session.
func (t *Tracker) MarkFailed(ctx context.Context, itemID int, sessionID string) error {
	return t.update(ctx, func(p *Progress) {
		p.FailedItems = insertSorted(p.FailedItems, itemID)
		stats := p.Sessions[sessionID]
		stats.Failed++
		p.Sessions[sessionID] = stats
	})
}

func (t *Tracker) update(ctx context.Context, mutate func(*Progress)) error {
	if err := os.MkdirAll(filepath.Dir(t.path), 0755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}

	locked, err := t.flk.TryLockContext(ctx, 50*time.Millisecond)
	if err != nil {
		return fmt.Errorf("lock progress snapshot: %w", err)
	}
	if !locked {
		return fmt.Errorf("lock progress snapshot: not acquired")
	}
	defer t.flk.Unlock()

	p := t.Load()
	mutate(p)
	p.UpdatedAt = time.Now().UTC()

	if err := fsutil.WriteJSONWithRetry(t.path, p, 0644, t.retry); err != nil {
		return fmt.Errorf("write progress snapshot: %w", err)
	}
	return nil
}

func insertSorted(items []int, id int) []int {
	i := sort.SearchInts(items, id)
	if i < len(items) && items[i] == id {
		return items
	}
	items = append(items, 0)
	copy(items[i+1:], items[i:])
	items[i] = id
	return items
}
