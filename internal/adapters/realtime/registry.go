package realtime

import (
	"sync"

	"github.com/google/uuid"
)

// Registry tracks the currently open connections
type Registry struct {
	mu    sync.RWMutex
	conns map[uuid.UUID]*Connection
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{conns: make(map[uuid.UUID]*Connection)}
}

// Register adds a fully constructed connection
func (r *Registry) Register(c *Connection) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conns[c.SessionID()] = c
}

// Unregister removes the session. Unknown sessions are ignored.
func (r *Registry) Unregister(sessionID uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.conns, sessionID)
}

// BroadcastTargets returns a point-in-time copy of the live set. Callers
// iterate it without holding the registry lock.
func (r *Registry) BroadcastTargets() []*Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Connection, 0, len(r.conns))
	for _, c := range r.conns {
		out = append(out, c)
	}
	return out
}

// Len returns the number of registered connections
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// CloseAll closes every registered connection. Their writers send a close
// frame and the sessions unregister as their readers exit.
func (r *Registry) CloseAll() {
	for _, c := range r.BroadcastTargets() {
		c.Close()
	}
}
