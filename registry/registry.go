// Package registry holds the per-process table of live, authenticated
// signaling connections. It is the local half of message routing: delivery
// is attempted here first, and only a miss goes out over the broadcast bus.
package registry

import (
	"encoding/json"
	"sync"
	"time"
)

// Conn is the slice of a client session the registry needs. Implemented by
// signaling.ClientSession.
type Conn interface {
	// Send writes a raw frame to the socket.
	Send(payload json.RawMessage) error
	// Open reports whether the socket can still be written to.
	Open() bool
	// Terminate force-closes the socket with the given reason.
	Terminate(reason string) error
}

// Entry describes one registered connection.
type Entry struct {
	UserID          string
	RoomID          string
	Conn            Conn
	ConnectedAt     time.Time
	LastHeartbeatAt time.Time
}

// Registry maps userId to the single routable connection this process holds
// for that user. Cross-process uniqueness is not enforced; the bus fan-out
// plus SendIfLocal's boolean make duplicate registrations across processes
// harmless.
type Registry struct {
	mu      sync.Mutex
	entries map[string]*Entry
	now     func() time.Time
}

func New() *Registry {
	return &Registry{
		entries: make(map[string]*Entry),
		now:     time.Now,
	}
}

// Register inserts or replaces the entry for userID and returns the
// superseded connection, if any, so the caller can force-close it.
func (r *Registry) Register(userID, roomID string, conn Conn) (superseded Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if prev, ok := r.entries[userID]; ok {
		superseded = prev.Conn
	}
	now := r.now()
	r.entries[userID] = &Entry{
		UserID:          userID,
		RoomID:          roomID,
		Conn:            conn,
		ConnectedAt:     now,
		LastHeartbeatAt: now,
	}
	return superseded
}

// Touch refreshes the heartbeat timestamp. No-op if the user is absent.
func (r *Registry) Touch(userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if entry, ok := r.entries[userID]; ok {
		entry.LastHeartbeatAt = r.now()
	}
}

// SendIfLocal delivers payload to userID's socket if this process holds it.
// A closed socket found here is evicted and counts as a miss.
func (r *Registry) SendIfLocal(userID string, payload json.RawMessage) bool {
	r.mu.Lock()
	entry, ok := r.entries[userID]
	if ok && !entry.Conn.Open() {
		delete(r.entries, userID)
		ok = false
	}
	r.mu.Unlock()

	if !ok {
		return false
	}
	return entry.Conn.Send(payload) == nil
}

// BroadcastToRoom delivers payload to every local connection in roomID
// except excludeUserID, evicting any connection found closed mid-iteration.
// Returns the number of deliveries.
func (r *Registry) BroadcastToRoom(roomID string, payload json.RawMessage, excludeUserID string) int {
	r.mu.Lock()
	var targets []*Entry
	for userID, entry := range r.entries {
		if entry.RoomID != roomID || userID == excludeUserID {
			continue
		}
		if !entry.Conn.Open() {
			delete(r.entries, userID)
			continue
		}
		targets = append(targets, entry)
	}
	r.mu.Unlock()

	delivered := 0
	for _, entry := range targets {
		if entry.Conn.Send(payload) == nil {
			delivered++
		}
	}
	return delivered
}

// Remove deletes the entry unconditionally. Returns the entry so callers
// can clean up presence for its room.
func (r *Registry) Remove(userID string) (*Entry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.entries[userID]
	if ok {
		delete(r.entries, userID)
	}
	return entry, ok
}

// RemoveIfConn deletes userID's entry only while it still points at conn.
// Guards the disconnect path of a superseded socket against tearing down
// its replacement.
func (r *Registry) RemoveIfConn(userID string, conn Conn) (*Entry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.entries[userID]
	if !ok || entry.Conn != conn {
		return nil, false
	}
	delete(r.entries, userID)
	return entry, true
}

// PruneStale force-closes and evicts every entry whose heartbeat age
// exceeds maxAge, returning the pruned entries.
func (r *Registry) PruneStale(maxAge time.Duration) []*Entry {
	r.mu.Lock()
	cutoff := r.now().Add(-maxAge)
	var stale []*Entry
	for userID, entry := range r.entries {
		if entry.LastHeartbeatAt.Before(cutoff) {
			delete(r.entries, userID)
			stale = append(stale, entry)
		}
	}
	r.mu.Unlock()

	for _, entry := range stale {
		entry.Conn.Terminate("heartbeat timeout")
	}
	return stale
}

// Drain evicts every entry and returns them; used on shutdown.
func (r *Registry) Drain() []*Entry {
	r.mu.Lock()
	defer r.mu.Unlock()

	drained := make([]*Entry, 0, len(r.entries))
	for userID, entry := range r.entries {
		delete(r.entries, userID)
		drained = append(drained, entry)
	}
	return drained
}

// Len reports the number of registered connections.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}
