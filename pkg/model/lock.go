package model

import "time"

// LockRecord is the persisted ownership claim for one work item, stored
// at <coordinationDir>/locks/item-<id>.lock.
type LockRecord struct {
	ItemID        int       `json:"item_id"`
	SessionID     string    `json:"session_id"`
	PID           int       `json:"pid"`
	Hostname      string    `json:"hostname"`
	LockedAt      time.Time `json:"locked_at"`
	LastHeartbeat time.Time `json:"last_heartbeat"`
	WorkerID      *int      `json:"worker_id,omitempty"`
	ContextLabel  string    `json:"context_label,omitempty"`
}

// IsStale reports whether the record's heartbeat has been silent for at
// least timeout. The boundary is inclusive: a heartbeat exactly timeout
// old is stale. PID and Hostname are diagnostic only and never consulted
// here; liveness is heartbeat age, nothing else.
func (r *LockRecord) IsStale(now time.Time, timeout time.Duration) bool {
	return now.Sub(r.LastHeartbeat) >= timeout
}

// Snapshot derives a LockSnapshot from the record at the given instant.
func (r *LockRecord) Snapshot(now time.Time, timeout time.Duration) LockSnapshot {
	return LockSnapshot{
		LockRecord:          *r,
		HeldSeconds:         now.Sub(r.LockedAt).Seconds(),
		HeartbeatAgeSeconds: now.Sub(r.LastHeartbeat).Seconds(),
		Stale:               r.IsStale(now, timeout),
	}
}

// LockSnapshot is a LockRecord plus derived age fields, recomputed on
// every listing. Never persisted.
type LockSnapshot struct {
	LockRecord
	HeldSeconds         float64 `json:"held_seconds"`
	HeartbeatAgeSeconds float64 `json:"heartbeat_age_seconds"`
	Stale               bool    `json:"stale"`
}

// DenyReason explains a denied acquisition.
type DenyReason string

// ReasonAlreadyLocked means another session holds a record for the item.
const ReasonAlreadyLocked DenyReason = "already_locked"

// Outcome is the result of an acquisition attempt. Denial is a normal
// outcome, not an error: callers skip the item and move on.
type Outcome struct {
	Granted bool        `json:"granted"`
	Reason  DenyReason  `json:"reason,omitempty"`
	Record  *LockRecord `json:"record,omitempty"`
}

// CoordinationPolicy configures lock timing parameters.
type CoordinationPolicy struct {
	StaleTimeout      time.Duration `json:"stale_timeout"`
	HeartbeatInterval time.Duration `json:"heartbeat_interval"`
}

// DefaultPolicy returns the stock timing parameters: records go stale
// after 120 minutes of heartbeat silence, owners renew every 5 minutes.
func DefaultPolicy() CoordinationPolicy {
	return CoordinationPolicy{
		StaleTimeout:      120 * time.Minute,
		HeartbeatInterval: 5 * time.Minute,
	}
}
