package lock

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/drover-project/drover/pkg/fsutil"
	"github.com/drover-project/drover/pkg/jsonutil"
	"github.com/drover-project/drover/pkg/logging"
	"github.com/drover-project/drover/pkg/model"
)

// LocksSubdir is the directory under the coordination dir holding one
// record file per contested item id.
const LocksSubdir = "locks"

const recordPerm = 0644

// ReadStatus distinguishes the three things a record file can be.
// Callers that only care about "can this block me" treat Corrupt as
// Absent (fail-open); the manager additionally wants to know a corrupt
// file is squatting on the path so it can replace it loudly.
type ReadStatus int

const (
	StatusAbsent ReadStatus = iota
	StatusPresent
	StatusCorrupt
)

// Store maps item ids to on-disk lock records. All writes go through
// the atomic writer; all reads go through the resilient parser.
type Store struct {
	dir   string // coordination directory
	log   *logging.Logger
	retry fsutil.RetryPolicy
}

// NewStore creates a record store rooted at the coordination directory.
// A nil logger uses the global one.
func NewStore(dir string, log *logging.Logger) *Store {
	if log == nil {
		log = logging.Global()
	}
	return &Store{
		dir:   dir,
		log:   log,
		retry: fsutil.DefaultRetryPolicy(),
	}
}

// RecordPath returns the deterministic location of an item's record.
// Keying the filename by item id is what makes "a file exists here" a
// meaningful mutual-exclusion signal.
func (s *Store) RecordPath(itemID int) string {
	return filepath.Join(s.dir, LocksSubdir, fmt.Sprintf("item-%d.lock", itemID))
}

// ReadRecord loads the record for an item. A missing file is Absent; a
// file that fails to decode is Corrupt and reads as carrying no record.
func (s *Store) ReadRecord(itemID int) (*model.LockRecord, ReadStatus) {
	path := s.RecordPath(itemID)
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.log.Warn("unreadable lock record treated as absent", map[string]any{
				"path":  path,
				"error": err.Error(),
			})
		}
		return nil, StatusAbsent
	}

	var rec model.LockRecord
	if !jsonutil.SafeUnmarshal(data, &rec, jsonutil.ParseOptions{Source: path, Logger: s.log}) {
		return nil, StatusCorrupt
	}
	return &rec, StatusPresent
}

// WriteRecord persists a record atomically, creating the locks
// directory on first use.
func (s *Store) WriteRecord(rec *model.LockRecord) error {
	path := s.RecordPath(rec.ItemID)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create locks dir: %w", err)
	}
	return fsutil.WriteJSONWithRetry(path, rec, recordPerm, s.retry)
}

// CreateRecord persists a record only if no file exists for the item.
// Returns os.ErrExist-classified errors on collision.
func (s *Store) CreateRecord(rec *model.LockRecord) error {
	path := s.RecordPath(rec.ItemID)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create locks dir: %w", err)
	}
	data, err := jsonutil.MarshalIndented(rec)
	if err != nil {
		return err
	}
	return fsutil.AtomicCreateExclusive(path, data, recordPerm)
}

// DeleteRecord removes an item's record. Removing a record that does
// not exist is not an error.
func (s *Store) DeleteRecord(itemID int) error {
	err := os.Remove(s.RecordPath(itemID))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove lock record: %w", err)
	}
	return nil
}

// Exists reports whether any record file occupies the item's path,
// decodable or not.
func (s *Store) Exists(itemID int) bool {
	_, err := os.Stat(s.RecordPath(itemID))
	return err == nil
}

// ListRecords enumerates every record under the coordination directory
// and derives staleness against the given timeout. Each file is parsed
// independently: one corrupt record never hides the others, it is
// logged and skipped.
func (s *Store) ListRecords(timeout time.Duration) ([]model.LockSnapshot, error) {
	dir := filepath.Join(s.dir, LocksSubdir)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("list lock records: %w", err)
	}

	now := time.Now().UTC()
	var snaps []model.LockSnapshot
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, "item-") || !strings.HasSuffix(name, ".lock") {
			continue
		}
		path := filepath.Join(dir, name)
		data, err := os.ReadFile(path)
		if err != nil {
			s.log.Warn("skipping unreadable lock record", map[string]any{
				"path":  path,
				"error": err.Error(),
			})
			continue
		}
		var rec model.LockRecord
		if !jsonutil.SafeUnmarshal(data, &rec, jsonutil.ParseOptions{Source: path, Logger: s.log}) {
			continue
		}
		snaps = append(snaps, rec.Snapshot(now, timeout))
	}

	sort.Slice(snaps, func(i, j int) bool { return snaps[i].ItemID < snaps[j].ItemID })
	return snaps, nil
}
