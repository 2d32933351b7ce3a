package presence

import (
	"sync"
	"time"
)

// Session is the ephemeral live-connection record for one user. It is owned
// exclusively by the Registry and rebuilt from zero on process restart.
type Session struct {
	ConnectionID   string
	LastLivenessAt time.Time
}

// Registry is the authoritative in-memory view of which users are currently
// connected. All access goes through its methods; handlers never touch the
// underlying map. At most one session exists per user: a new connection
// replaces the prior entry rather than merging with it.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]Session
	now      func() time.Time
}

func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[string]Session),
		now:      time.Now,
	}
}

// Register records a live connection for userID, replacing any existing entry,
// and stamps liveness with the current time.
func (r *Registry) Register(userID, connectionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[userID] = Session{ConnectionID: connectionID, LastLivenessAt: r.now()}
}

// Refresh updates the liveness timestamp only if an entry exists.
func (r *Registry) Refresh(userID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[userID]
	if !ok {
		return false
	}
	s.LastLivenessAt = r.now()
	r.sessions[userID] = s
	return true
}

// Evict removes the entry for userID and reports whether one existed.
func (r *Registry) Evict(userID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.sessions[userID]
	if ok {
		delete(r.sessions, userID)
	}
	return ok
}

// EvictConnection removes the entry only if it still belongs to connectionID.
// A disconnecting handler uses this so that a reconnect which already replaced
// the session is not knocked out by the old connection's teardown.
func (r *Registry) EvictConnection(userID, connectionID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[userID]
	if !ok || s.ConnectionID != connectionID {
		return false
	}
	delete(r.sessions, userID)
	return true
}

// Lookup returns the session for userID, if any.
func (r *Registry) Lookup(userID string) (Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[userID]
	return s, ok
}

// Snapshot returns a consistent copy of all entries for the sweeper.
func (r *Registry) Snapshot() map[string]Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]Session, len(r.sessions))
	for id, s := range r.sessions {
		out[id] = s
	}
	return out
}
