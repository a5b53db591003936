package lock

import (
	"context"
	"sync"
	"time"

	"github.com/drover-project/drover/pkg/logging"
)

// Heartbeater periodically renews the heartbeat on every item a session
// holds, proving liveness to other processes. An item whose renewal is
// refused (record gone, or taken over after a force-claim) is dropped
// from the set and logged; the owner has lost it and renewing harder
// won't bring it back.
type Heartbeater struct {
	mgr       *Manager
	sessionID string
	interval  time.Duration
	log       *logging.Logger

	mu    sync.Mutex
	items map[int]struct{}
}

// NewHeartbeater creates a heartbeater for the session. A zero interval
// uses the manager's configured heartbeat interval.
func NewHeartbeater(mgr *Manager, sessionID string, interval time.Duration) *Heartbeater {
	if interval <= 0 {
		interval = mgr.policy.HeartbeatInterval
	}
	return &Heartbeater{
		mgr:       mgr,
		sessionID: sessionID,
		interval:  interval,
		log:       mgr.log,
		items:     make(map[int]struct{}),
	}
}

// Track adds an item to the renewal set. Call after a granted acquire.
func (h *Heartbeater) Track(itemID int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.items[itemID] = struct{}{}
}

// Untrack removes an item from the renewal set. Call after release.
func (h *Heartbeater) Untrack(itemID int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.items, itemID)
}

// Tracked returns the item ids currently being renewed.
func (h *Heartbeater) Tracked() []int {
	h.mu.Lock()
	defer h.mu.Unlock()
	ids := make([]int, 0, len(h.items))
	for id := range h.items {
		ids = append(ids, id)
	}
	return ids
}

// Run renews all tracked items on each tick until ctx is cancelled.
// It renews once immediately so a freshly started heartbeater does not
// leave its items a full interval closer to staleness.
func (h *Heartbeater) Run(ctx context.Context) {
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	h.renewAll()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.renewAll()
		}
	}
}

func (h *Heartbeater) renewAll() {
	for _, id := range h.Tracked() {
		ok, err := h.mgr.RenewHeartbeat(id, h.sessionID)
		if err != nil {
			h.log.ErrorErr("heartbeat renewal failed", err, map[string]any{
				"item_id": id,
				"session": h.sessionID,
			})
			continue
		}
		if !ok {
			h.log.Warn("lost ownership, dropping item from heartbeat", map[string]any{
				"item_id": id,
				"session": h.sessionID,
			})
			h.Untrack(id)
		}
	}
}
