/*
Package registry tracks the streaming sessions held by this process.

The hub is strictly process-local: a deployment runs many independent
instances, each holding a disjoint set of sessions, and consistency across
them is reconciled through the persisted presence registry and the event bus,
not through this package.
*/
package registry

import (
	"sync"
)

// Hubber defines the gateway for session lifecycle and local fan-out.
type Hubber interface {
	Register(clientID string) *Session
	Lookup(clientID string) (*Session, bool)
	Remove(clientID string)
	Release(s *Session)
	Snapshot() []*Session
	ByName(name string) []*Session
	Shutdown()
}

var _ Hubber = (*Hub)(nil)

// Hub maps connection identifiers to live sessions.
type Hub struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	config   hubConfig
}

func NewHub(opts ...Option) *Hub {
	h := &Hub{
		sessions: make(map[string]*Session),
		config:   defaultHubConfig(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register creates a session with the default display name and a running
// heartbeat. A lingering session under the same identifier (client restarted
// faster than the old stream noticed) is silently replaced.
func (h *Hub) Register(clientID string) *Session {
	s := newSession(clientID, h.config.mailboxSize, h.config.heartbeatInterval)

	h.mu.Lock()
	old := h.sessions[clientID]
	h.sessions[clientID] = s
	h.mu.Unlock()

	if old != nil {
		old.Close()
	}
	return s
}

func (h *Hub) Lookup(clientID string) (*Session, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	s, ok := h.sessions[clientID]
	return s, ok
}

// Remove stops the heartbeat and drops the entry. Safe to call for an
// identifier that was already removed.
func (h *Hub) Remove(clientID string) {
	h.mu.Lock()
	s := h.sessions[clientID]
	delete(h.sessions, clientID)
	h.mu.Unlock()

	if s != nil {
		s.Close()
	}
}

// Release drops the entry only if it still refers to this exact session, so
// a handler finishing up cannot evict the replacement that took over its
// identifier. The session itself is closed either way.
func (h *Hub) Release(s *Session) {
	h.mu.Lock()
	if cur, ok := h.sessions[s.ID()]; ok && cur == s {
		delete(h.sessions, s.ID())
	}
	h.mu.Unlock()
	s.Close()
}

// Snapshot returns the current sessions for fan-out iteration. The copy keeps
// broadcast delivery from holding the hub lock across sink writes.
func (h *Hub) Snapshot() []*Session {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]*Session, 0, len(h.sessions))
	for _, s := range h.sessions {
		out = append(out, s)
	}
	return out
}

// ByName returns every local session bound to a display name. Used to kick
// banned users; sessions on other instances are reached via the bus instead.
func (h *Hub) ByName(name string) []*Session {
	h.mu.RLock()
	defer h.mu.RUnlock()
	var out []*Session
	for _, s := range h.sessions {
		if s.Name() == name {
			out = append(out, s)
		}
	}
	return out
}

// Shutdown closes every session. Heartbeat goroutines exit with them.
func (h *Hub) Shutdown() {
	h.mu.Lock()
	sessions := h.sessions
	h.sessions = make(map[string]*Session)
	h.mu.Unlock()

	for _, s := range sessions {
		s.Close()
	}
}
