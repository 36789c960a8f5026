package registry

import "sync"

// Session is the delivery surface of one live authenticated connection.
// The transport layer owns the underlying connection; the registry only
// holds a non-owning reference for routing.
type Session interface {
	// Deliver hands an event to the connection's transport. It must not
	// block; a full or closed send buffer returns an error.
	Deliver(eventType string, payload any) error

	// Close tears down the underlying connection.
	Close()
}

// Registry maps authenticated usernames to their active session. It is the
// single source of truth for reachability: a user is online exactly when
// Lookup finds a session for them.
//
// All methods are safe for concurrent use. A single mutex guards the map;
// every critical section is a fixed-size map operation, so unrelated
// connections never wait on each other's I/O.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]Session
}

func New() *Registry {
	return &Registry{sessions: make(map[string]Session)}
}

// Register inserts or overwrites the session for username and returns the
// superseded session, if any. Last write wins on concurrent registration.
// The registry does not close the superseded session; the caller must.
func (r *Registry) Register(username string, s Session) Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	prior := r.sessions[username]
	r.sessions[username] = s
	return prior
}

// Unregister removes the mapping for username. No-op if absent.
func (r *Registry) Unregister(username string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, username)
}

// Release removes the mapping only if it still points at s, and reports
// whether it did. A superseded connection releasing on close must not tear
// down its successor's registration.
func (r *Registry) Release(username string, s Session) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sessions[username] != s {
		return false
	}
	delete(r.sessions, username)
	return true
}

// Lookup returns the current session for username, if any.
func (r *Registry) Lookup(username string) (Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[username]
	return s, ok
}

// Snapshot returns a copy of the current mapping. Callers iterate the copy
// outside the lock.
func (r *Registry) Snapshot() map[string]Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]Session, len(r.sessions))
	for name, s := range r.sessions {
		out[name] = s
	}
	return out
}
