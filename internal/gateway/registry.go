package gateway

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// Registry is the process-wide map from user identity to that user's
// live, identified connections. It exists purely for delivery fan-out;
// it is not an authentication store.
type Registry struct {
	mu    sync.RWMutex
	conns map[uuid.UUID]map[*Connection]struct{}
}

func NewRegistry() *Registry {
	return &Registry{conns: make(map[uuid.UUID]map[*Connection]struct{})}
}

// Register adds a connection under the user's id. Idempotent; a user
// may hold many simultaneous connections (multiple devices).
func (r *Registry) Register(userID uuid.UUID, c *Connection) {
	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.conns[userID]
	if !ok {
		set = make(map[*Connection]struct{})
		r.conns[userID] = set
	}
	set[c] = struct{}{}
}

// Unregister removes one connection. The user's entry disappears with
// its last connection; no empty sets linger.
func (r *Registry) Unregister(userID uuid.UUID, c *Connection) {
	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.conns[userID]
	if !ok {
		return
	}
	delete(set, c)
	if len(set) == 0 {
		delete(r.conns, userID)
	}
}

// BroadcastTo sends a payload to every registered connection of one
// user, best effort. A failed send is swallowed: the connection is
// presumed dead and unregisters itself on its own close path. The
// connection set is snapshotted under the lock and sends happen outside
// it, so a slow connection never serializes unrelated deliveries.
func (r *Registry) BroadcastTo(userID uuid.UUID, p *Payload) {
	r.BroadcastToExcept(userID, p, uuid.Nil)
}

// BroadcastToExcept is BroadcastTo minus the connection with the given
// id. Used for sender acknowledgements, which go to the sender's other
// connections but not the one the message arrived on.
func (r *Registry) BroadcastToExcept(userID uuid.UUID, p *Payload, except uuid.UUID) {
	r.mu.RLock()
	set := r.conns[userID]
	targets := make([]*Connection, 0, len(set))
	for c := range set {
		if except != uuid.Nil && c.id == except {
			continue
		}
		targets = append(targets, c)
	}
	r.mu.RUnlock()

	for _, c := range targets {
		if err := c.Send(p); err != nil {
			slog.Debug("broadcast send failed", "user_id", userID, "error", err)
		}
	}
}

// BroadcastAll sends a payload to every registered connection.
func (r *Registry) BroadcastAll(p *Payload) {
	r.mu.RLock()
	var targets []*Connection
	for _, set := range r.conns {
		for c := range set {
			targets = append(targets, c)
		}
	}
	r.mu.RUnlock()

	for _, c := range targets {
		if err := c.Send(p); err != nil {
			slog.Debug("broadcast send failed", "error", err)
		}
	}
}

// CountForUser reports how many live connections a user has registered.
func (r *Registry) CountForUser(userID uuid.UUID) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns[userID])
}
