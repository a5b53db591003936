// Package lock implements cross-process ownership of work items over a
// shared filesystem. One record file per item id is the entire
// coordination state: no lock server, no database. Liveness is proven
// by heartbeat timestamps, so hosts are expected to keep reasonably
// synchronized wall clocks.
package lock

import (
	"os"
	"sync"
	"time"

	"github.com/drover-project/drover/pkg/logging"
	"github.com/drover-project/drover/pkg/model"
	"github.com/drover-project/drover/pkg/pathutil"
)

// Manager runs the acquisition, renewal, release, and reclamation state
// machine on top of the record store. The mutex serializes callers
// within one process; across processes the record files themselves are
// the only shared state.
type Manager struct {
	store  *Store
	policy model.CoordinationPolicy
	log    *logging.Logger
	mu     sync.Mutex
}

// Option configures a Manager.
type Option func(*Manager)

// WithPolicy overrides the default timing parameters.
func WithPolicy(p model.CoordinationPolicy) Option {
	return func(m *Manager) { m.policy = p }
}

// WithLogger sets the diagnostic logger.
func WithLogger(log *logging.Logger) Option {
	return func(m *Manager) {
		m.log = log
		m.store.log = log
	}
}

// NewManager creates a lock manager over the given coordination directory.
func NewManager(dir string, opts ...Option) *Manager {
	m := &Manager{
		store:  NewStore(dir, nil),
		policy: model.DefaultPolicy(),
		log:    logging.Global(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Store exposes the underlying record store.
func (m *Manager) Store() *Store {
	return m.store
}

// AcquireOptions carries the optional parts of an acquisition request.
type AcquireOptions struct {
	// ForceClaim permits taking over a stale record owned by another
	// session. Staleness alone never grants ownership: reclamation has
	// to be asked for explicitly, so two processes don't both decide to
	// steal the same abandoned record as a side effect of acquiring.
	ForceClaim bool
	// WorkerID and ContextLabel are diagnostic attributes stored on the
	// record; they have no effect on lock semantics.
	WorkerID     *int
	ContextLabel string
}

// Acquire attempts to take ownership of an item for the given session.
// Denial is a normal outcome; the error return carries only permanent
// I/O or validation failures.
func (m *Manager) Acquire(itemID int, sessionID string, opts AcquireOptions) (model.Outcome, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := pathutil.ValidateLabel(opts.ContextLabel); err != nil {
		return model.Outcome{}, err
	}

	rec, status := m.store.ReadRecord(itemID)
	now := time.Now().UTC()

	switch status {
	case StatusPresent:
		if rec.SessionID == sessionID {
			// Renewal by the current owner: bump the heartbeat, keep
			// the original acquisition time.
			rec.LastHeartbeat = now
			if err := m.store.WriteRecord(rec); err != nil {
				return model.Outcome{}, err
			}
			return model.Outcome{Granted: true, Record: rec}, nil
		}
		if rec.IsStale(now, m.policy.StaleTimeout) && opts.ForceClaim {
			fresh := m.newRecord(itemID, sessionID, now, opts)
			m.log.Warn("force-claiming stale lock", map[string]any{
				"item_id":       itemID,
				"prior_session": rec.SessionID,
				"heartbeat_age": now.Sub(rec.LastHeartbeat).String(),
				"claim_session": sessionID,
			})
			if err := m.store.WriteRecord(fresh); err != nil {
				return model.Outcome{}, err
			}
			return model.Outcome{Granted: true, Record: fresh}, nil
		}
		return model.Outcome{Granted: false, Reason: model.ReasonAlreadyLocked}, nil

	case StatusCorrupt:
		// Fail-open, but loudly: an undecodable record cannot prove a
		// live owner, so it is replaced rather than honored forever.
		m.log.Warn("replacing corrupt lock record", map[string]any{
			"item_id": itemID,
			"path":    m.store.RecordPath(itemID),
			"session": sessionID,
		})
		fresh := m.newRecord(itemID, sessionID, now, opts)
		if err := m.store.WriteRecord(fresh); err != nil {
			return model.Outcome{}, err
		}
		return model.Outcome{Granted: true, Record: fresh}, nil

	default: // StatusAbsent
		fresh := m.newRecord(itemID, sessionID, now, opts)
		if err := m.store.CreateRecord(fresh); err != nil {
			if os.IsExist(err) {
				// Lost the creation race; the winner's record blocks us.
				return model.Outcome{Granted: false, Reason: model.ReasonAlreadyLocked}, nil
			}
			return model.Outcome{}, err
		}
		return model.Outcome{Granted: true, Record: fresh}, nil
	}
}

func (m *Manager) newRecord(itemID int, sessionID string, now time.Time, opts AcquireOptions) *model.LockRecord {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown-host"
	}
	return &model.LockRecord{
		ItemID:        itemID,
		SessionID:     sessionID,
		PID:           os.Getpid(),
		Hostname:      hostname,
		LockedAt:      now,
		LastHeartbeat: now,
		WorkerID:      opts.WorkerID,
		ContextLabel:  opts.ContextLabel,
	}
}

// RenewHeartbeat refreshes the heartbeat on a record this session owns.
// Returns false, leaving the record untouched, when the record is
// absent or owned by a different session.
func (m *Manager) RenewHeartbeat(itemID int, sessionID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, status := m.store.ReadRecord(itemID)
	if status != StatusPresent || rec.SessionID != sessionID {
		return false, nil
	}
	rec.LastHeartbeat = time.Now().UTC()
	if err := m.store.WriteRecord(rec); err != nil {
		return false, err
	}
	return true, nil
}

// Release deletes the item's record if this session owns it. Releasing
// an absent record succeeds (the goal state already holds); releasing a
// record owned by someone else fails and leaves it untouched.
func (m *Manager) Release(itemID int, sessionID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.releaseOwned(itemID, sessionID)
}

func (m *Manager) releaseOwned(itemID int, sessionID string) (bool, error) {
	rec, status := m.store.ReadRecord(itemID)
	if status != StatusPresent {
		return true, nil
	}
	if rec.SessionID != sessionID {
		return false, nil
	}
	if err := m.store.DeleteRecord(itemID); err != nil {
		return false, err
	}
	return true, nil
}

// ForceRelease deletes the item's record regardless of ownership. This
// is the reclamation primitive behind Cleanup.
func (m *Manager) ForceRelease(itemID int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.store.DeleteRecord(itemID); err != nil {
		return false, err
	}
	return true, nil
}

// List returns snapshots of every record, with staleness computed
// against timeout (zero means the manager's configured timeout).
func (m *Manager) List(timeout time.Duration) ([]model.LockSnapshot, error) {
	return m.store.ListRecords(m.effectiveTimeout(timeout))
}

// FindStale returns only the records whose heartbeat has gone silent
// past the timeout.
func (m *Manager) FindStale(timeout time.Duration) ([]model.LockSnapshot, error) {
	snaps, err := m.List(timeout)
	if err != nil {
		return nil, err
	}
	var stale []model.LockSnapshot
	for _, s := range snaps {
		if s.Stale {
			stale = append(stale, s)
		}
	}
	return stale, nil
}

// Cleanup force-releases every stale record and returns how many were
// removed. This is the sanctioned path for reclaiming abandoned items;
// a record that fails to delete is reported and skipped, never aborting
// the rest of the sweep.
func (m *Manager) Cleanup(timeout time.Duration) (int, error) {
	stale, err := m.FindStale(timeout)
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, s := range stale {
		if _, err := m.ForceRelease(s.ItemID); err != nil {
			m.log.ErrorErr("failed to remove stale lock", err, map[string]any{
				"item_id": s.ItemID,
				"session": s.SessionID,
			})
			continue
		}
		m.log.Info("removed stale lock", map[string]any{
			"item_id":       s.ItemID,
			"session":       s.SessionID,
			"heartbeat_age": time.Duration(s.HeartbeatAgeSeconds * float64(time.Second)).String(),
		})
		removed++
	}
	return removed, nil
}

// IsHeld reports whether any record file exists for the item,
// regardless of staleness or decodability. A strict existence check.
func (m *Manager) IsHeld(itemID int) bool {
	return m.store.Exists(itemID)
}

// IsHeldByOther reports whether a different session holds a fresh
// record for the item. Unlike Acquire, a stale record reads as not
// blocking here: this is the advisory "should I bother trying" check,
// while Acquire stays strict unless ForceClaim is set.
func (m *Manager) IsHeldByOther(itemID int, sessionID string, timeout time.Duration) bool {
	rec, status := m.store.ReadRecord(itemID)
	if status != StatusPresent || rec.SessionID == sessionID {
		return false
	}
	return !rec.IsStale(time.Now().UTC(), m.effectiveTimeout(timeout))
}

// ReleaseAllForSession releases every record owned by the session and
// returns the count. Run on graceful shutdown so a terminating worker's
// items don't have to wait out the staleness timeout.
func (m *Manager) ReleaseAllForSession(sessionID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	snaps, err := m.store.ListRecords(m.policy.StaleTimeout)
	if err != nil {
		return 0, err
	}
	released := 0
	for _, s := range snaps {
		if s.SessionID != sessionID {
			continue
		}
		ok, err := m.releaseOwned(s.ItemID, sessionID)
		if err != nil {
			m.log.ErrorErr("failed to release session lock", err, map[string]any{
				"item_id": s.ItemID,
				"session": sessionID,
			})
			continue
		}
		if ok {
			released++
		}
	}
	return released, nil
}

func (m *Manager) effectiveTimeout(timeout time.Duration) time.Duration {
	if timeout <= 0 {
		return m.policy.StaleTimeout
	}
	return timeout
}
